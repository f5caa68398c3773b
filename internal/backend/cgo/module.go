package cgo

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/clang"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
)

// identifier keeps parameter names clear of Go keywords.
func identifier(name string) string {
	if token.IsKeyword(name) {
		return name + "_"
	}
	return name
}

// ModuleFile is the Go file of a module's unconditioned functions, or of
// those guarded by condition.
func ModuleFile(module, condition string) string {
	base := strings.ToLower(module) + "_native"
	if condition != "" {
		base += "_" + strings.ToLower(condition)
	}
	return base + ".go"
}

func renderModule(env *backend.Env, pkg string, module *conversion.ModuleNode) ([]conversion.Artifact, error) {
	plans, err := env.Plans(module)
	if err != nil {
		return nil, err
	}

	// One file per condition, in order of first appearance; a build tag
	// stands in for the preprocessor.
	var conditions []string
	groups := make(map[string][]*trampoline.Plan)
	for _, plan := range plans {
		if plan.HeaderVerbatim != "" {
			log.Debugf("%s: declared verbatim, no Go function", plan.NativeSymbol)
			continue
		}
		if _, ok := groups[plan.Condition]; !ok {
			conditions = append(conditions, plan.Condition)
		}
		groups[plan.Condition] = append(groups[plan.Condition], plan)
	}

	var artifacts []conversion.Artifact
	for _, condition := range conditions {
		f := jen.NewFile(pkg)
		if condition != "" {
			f.HeaderComment("//go:build " + strings.ToLower(condition))
		}
		f.CgoPreamble(preamble(env, module.Name, condition))
		for _, plan := range groups[condition] {
			if err := writeFunction(f, plan); err != nil {
				return nil, fmt.Errorf("%s: %w", plan.Site.Identity(), err)
			}
		}
		artifact, err := render(f, pkg, ModuleFile(module.Name, condition))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	log.Debugf("module %s: %d Go files", module.Name, len(artifacts))
	return artifacts, nil
}

func preamble(env *backend.Env, module, condition string) string {
	lines := []string{"#cgo LDFLAGS: -l" + env.Options.Library}
	if condition != "" {
		lines = append(lines, "#cgo CFLAGS: -D"+condition)
	}
	lines = append(lines, "#include <stdlib.h>", fmt.Sprintf("#include %q", clang.ModuleHeader(module)))
	return strings.Join(lines, "\n")
}

func writeFunction(f *jen.File, plan *trampoline.Plan) error {
	var params, args []jen.Code
	var body []jen.Code
	for _, p := range plan.Params {
		typ, err := goType(p.Bridge)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		name := identifier(p.Name)
		params = append(params, jen.Id(name).Add(typ))
		args = append(args, jen.Id(p.Local))
		body = append(body, unmarshal(p, name)...)
	}

	call := jen.Qual("C", plan.NativeSymbol).Call(args...)
	fn := f.Func().Id(plan.ExportName).Params(params...)
	if plan.Result == nil {
		fn.Block(append(body, call)...)
	} else {
		typ, err := goType(plan.Result.Bridge)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		fn.Add(typ).Block(append(body, jen.Return(remarshal(plan.Result, call)))...)
	}
	f.Line()
	return nil
}

// cType spells a native token as the cgo type the module header declares.
func cType(t typemap.Token) *jen.Statement {
	switch t.Kind {
	case typemap.KindEnum:
		if visibility.OfType(t.Type) == visibility.Public {
			return jen.Qual("C", backend.CName(t.Type))
		}
	case typemap.KindEnumBox:
		if visibility.OfType(t.Type) == visibility.Public {
			return jen.Op("*").Qual("C", backend.CName(t.Type))
		}
	case typemap.KindBinder:
		return jen.Qual("C", t.Name)
	}
	switch t.Name {
	case "void*":
		return jen.Qual("unsafe", "Pointer")
	case "cbstring":
		return jen.Op("*").Qual("C", "char")
	}
	if elem, ok := strings.CutSuffix(t.Name, "*"); ok {
		return jen.Op("*").Qual("C", elem)
	}
	return jen.Qual("C", t.Name)
}

func unmarshal(p trampoline.Param, name string) []jen.Code {
	local := jen.Id(p.Local).Op(":=")
	switch p.Conversion {
	case trampoline.String:
		return []jen.Code{
			local.Qual("C", "CString").Call(jen.Id(name)),
			jen.Defer().Qual("C", "free").Call(jen.Qual("unsafe", "Pointer").Call(jen.Id(p.Local))),
		}
	case trampoline.Box, trampoline.EnumBox:
		return []jen.Code{local.Parens(cType(p.Native)).Call(jen.Qual("unsafe", "Pointer").Call(jen.Id(name)))}
	case trampoline.Array:
		return []jen.Code{local.Qual("C", "cbarray").Values(jen.Dict{
			jen.Id("data"):   jen.Qual("unsafe", "Pointer").Call(jen.Qual("unsafe", "SliceData").Call(jen.Id(name))),
			jen.Id("length"): jen.Qual("C", "size_t").Call(jen.Len(jen.Id(name))),
		})}
	case trampoline.Struct, trampoline.Object:
		return []jen.Code{local.Id(name).Dot("handle")}
	case trampoline.Delegate:
		// The native side owns the handle and hands it back on every call.
		return []jen.Code{local.Qual("unsafe", "Pointer").Call(jen.Uintptr().Call(jen.Qual("runtime/cgo", "NewHandle").Call(jen.Id(name))))}
	case trampoline.Binder:
		return []jen.Code{local.Id(name)}
	}
	return []jen.Code{local.Add(cType(p.Native)).Call(jen.Id(name))}
}

func remarshal(r *trampoline.Result, call *jen.Statement) *jen.Statement {
	switch r.Conversion {
	case trampoline.String:
		return jen.Qual("C", "GoString").Call(call)
	case trampoline.Enum:
		return jen.Id(GoName(r.Bridge.Type)).Call(call)
	case trampoline.Struct, trampoline.Object:
		return jen.Id(constructor(r.Bridge.Type)).Call(call)
	case trampoline.Delegate:
		return jen.Qual("runtime/cgo", "Handle").Call(jen.Uintptr().Call(call)).Dot("Value").Call().Assert(jen.Id(GoName(r.Bridge.Type)))
	case trampoline.Binder:
		return call
	}
	if r.Bridge.Prim == metadata.Handle {
		return call
	}
	return jen.Id(r.Bridge.Name).Call(call)
}
