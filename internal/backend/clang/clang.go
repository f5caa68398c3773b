// Package clang renders the native C side of a binding: one header per type,
// a header and export definition file per module, the runtime header and the
// umbrella headers of both variants. The other backends include its module
// headers from their trampolines.
package clang

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

var log = commonlog.GetLogger("codebinder.backend.clang")

const (
	RuntimeHeader = "CBinder.h"
	PublicDir     = "include"
	InternalDir   = "internal"
	SourceDir     = "src"
)

type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "clang" }

func (b *Backend) Table() *typemap.Table { return backend.NativeTable }

// Mangle keeps the native symbol: on the C side nothing sits in between.
func (b *Backend) Mangle(namespace string, plan *trampoline.Plan) string {
	return plan.NativeSymbol
}

func (b *Backend) Render(env *backend.Env, ctx *conversion.Context) ([]conversion.Artifact, error) {
	switch ctx.Kind {
	case conversion.KindCompilation:
		return renderUmbrellas(env), nil
	case conversion.KindType:
		artifact, err := renderType(env, ctx.Type)
		if err != nil {
			return nil, err
		}
		return []conversion.Artifact{artifact}, nil
	case conversion.KindModule:
		return renderModule(env, ctx.Module)
	}
	return nil, nil
}

// HeaderDir is the directory a type header is placed in.
func HeaderDir(td *metadata.TypeDescriptor) string {
	if visibility.OfType(td) == visibility.Public {
		return PublicDir
	}
	return InternalDir
}

func HeaderName(td *metadata.TypeDescriptor) string { return backend.CName(td) + ".h" }

// ModuleHeader is the file name of a module header, e.g. "Core.h".
func ModuleHeader(module string) string { return backend.Pascal(module) + ".h" }

// IncludePath spells the include of dir/name from a file in fromDir.
func IncludePath(fromDir, dir, name string) string {
	if fromDir == dir {
		return name
	}
	return path.Join("..", dir, name)
}

func typeInclude(fromDir string, td *metadata.TypeDescriptor) string {
	return IncludePath(fromDir, HeaderDir(td), HeaderName(td))
}

func renderType(env *backend.Env, td *metadata.TypeDescriptor) (conversion.Artifact, error) {
	variant := visibility.VariantPublic
	if visibility.OfType(td) != visibility.Public {
		variant = visibility.VariantInternalOnly
	}
	lists, err := env.Visibility.Partition(td, variant)
	if err != nil {
		return conversion.Artifact{}, err
	}

	dir := HeaderDir(td)
	name := backend.CName(td)
	w := writer.New()
	var renderErr error
	w.HeaderGuard(HeaderName(td), func() {
		w.WriteLnf(`#include "%s"`, IncludePath(dir, PublicDir, RuntimeHeader))
		var forwards []string
		for _, ref := range append(lists.Includes, lists.Forwards...) {
			other, ok := env.Tree.Lookup(ref)
			if !ok {
				continue
			}
			if other.Kind == metadata.KindEnum || slices.Contains(lists.Includes, ref) {
				w.WriteLnf(`#include "%s"`, typeInclude(dir, other))
				continue
			}
			forwards = append(forwards, backend.CName(other))
		}
		w.WriteLn()
		for _, fwd := range forwards {
			w.WriteLnf("struct %s_s;", fwd)
		}
		if len(forwards) > 0 {
			w.WriteLn()
		}

		switch td.Kind {
		case metadata.KindEnum:
			renderErr = writeEnum(w, env, td)
		case metadata.KindDelegate:
			renderErr = writeDelegate(w, env, td)
		default:
			w.WriteLnf("typedef struct %s_s* %s;", name, name)
		}
	})
	if renderErr != nil {
		return conversion.Artifact{}, renderErr
	}
	return backend.Artifact(dir, HeaderName(td), "//", w.String()), nil
}

func writeEnum(w *writer.Writer, env *backend.Env, td *metadata.TypeDescriptor) error {
	result, err := env.Enum(td)
	if err != nil {
		return err
	}
	name := backend.CName(td)
	underlying, ok := backend.NativeTable.Primitives[result.Underlying]
	if !ok {
		return fmt.Errorf("%s: enum underlying type %s has no C spelling", td.QualifiedName(), result.Underlying)
	}
	w.WriteLnf("typedef %s %s;", underlying, name)
	w.WriteLn()
	for _, m := range result.Members {
		w.WriteLnf("#define %s_%s ((%s)%s)", name, m.Name, name, backend.CLiteral(m.Value, result.Underlying))
	}
	for _, alias := range result.Aliases {
		w.WriteLnf("#define %s_%s %s_%s", name, alias.Name, name, alias.Target)
	}
	return nil
}

func writeDelegate(w *writer.Writer, env *backend.Env, td *metadata.TypeDescriptor) error {
	params := make([]string, 0, len(td.Params))
	for _, param := range td.Params {
		markers, err := conversion.ResolveMarkers(td.QualifiedName()+"."+param.Name, param.Attributes)
		if err != nil {
			return err
		}
		usage := typemap.Value
		if param.ByRef {
			usage = typemap.ByRef
		}
		token, err := env.Native.Map(param.Type, usage, markers.Binder)
		if err != nil {
			return fmt.Errorf("%s: parameter %s: %w", td.QualifiedName(), param.Name, err)
		}
		params = append(params, token.Name+" "+param.Name)
	}
	ret, err := env.Native.Map(td.Returns, typemap.Return, "")
	if err != nil {
		return fmt.Errorf("%s: result: %w", td.QualifiedName(), err)
	}
	w.WriteLnf("typedef %s (*%s)(%s);", ret.Name, backend.CName(td), paramList(params))
	return nil
}

func paramList(params []string) string {
	if len(params) == 0 {
		return "void"
	}
	return strings.Join(params, ", ")
}

// spelling prefers the enum typedef over the raw underlying integer when the
// enum header is included.
func spelling(token typemap.Token, enums map[*metadata.TypeDescriptor]bool) string {
	switch {
	case token.Kind == typemap.KindEnum && enums[token.Type]:
		return backend.CName(token.Type)
	case token.Kind == typemap.KindEnumBox && enums[token.Type]:
		return backend.CName(token.Type) + "*"
	}
	return token.Name
}

// Declaration is the C prototype of a plan, without the trailing semicolon.
func Declaration(plan *trampoline.Plan, enums map[*metadata.TypeDescriptor]bool) string {
	ret := backend.NativeTable.Void
	if plan.Result != nil {
		ret = spelling(plan.Result.Native, enums)
	}
	params := make([]string, 0, len(plan.Params))
	for _, p := range plan.Params {
		params = append(params, spelling(p.Native, enums)+" "+p.Name)
	}
	return fmt.Sprintf("%s %s(%s)", ret, plan.NativeSymbol, paramList(params))
}

func renderModule(env *backend.Env, module *conversion.ModuleNode) ([]conversion.Artifact, error) {
	plans, err := env.Plans(module)
	if err != nil {
		return nil, err
	}
	lists, err := env.Visibility.References("module "+module.Name, visibility.VariantPublic, backend.Members(module))
	if err != nil {
		return nil, err
	}

	enums := make(map[*metadata.TypeDescriptor]bool)
	header := writer.New()
	header.HeaderGuard(env.Options.Library+"_"+backend.Pascal(module.Name)+"_module.h", func() {
		header.WriteLnf(`#include "%s"`, RuntimeHeader)
		for _, ref := range lists.Forwards {
			if td, ok := env.Tree.Lookup(ref); ok && td.Kind == metadata.KindEnum {
				header.WriteLnf(`#include "%s"`, typeInclude(PublicDir, td))
				enums[td] = true
			}
		}
		header.WriteLn()
		header.ExternC(func() {
			for _, plan := range plans {
				header.WriteLn()
				header.Condition(plan.Condition, func() {
					if plan.HeaderVerbatim != "" {
						header.Text(plan.HeaderVerbatim)
						return
					}
					header.WriteLnf("CBINDER_EXPORT %s;", Declaration(plan, enums))
				})
			}
			header.WriteLn()
		})
	})

	source := writer.New()
	source.WriteLnf(`#include "%s"`, IncludePath(SourceDir, PublicDir, ModuleHeader(module.Name)))
	for _, imp := range module.Imports() {
		source.Condition(imp.Condition, func() {
			source.WriteLnf(`#include "%s"`, imp.Path)
		})
	}
	for _, plan := range plans {
		if plan.ImplVerbatim == "" {
			continue
		}
		source.WriteLn()
		source.Condition(plan.Condition, func() {
			if plan.HeaderVerbatim != "" {
				source.Text(plan.ImplVerbatim)
				return
			}
			source.Block(Declaration(plan, enums)+" {", "}", func() {
				source.Text(plan.ImplVerbatim)
			})
		})
	}

	def := writer.New()
	def.WriteLn("LIBRARY " + env.Options.Library)
	def.WriteLn("EXPORTS")
	def.BlockStart()
	for _, entry := range trampoline.ExportTable(plans) {
		if entry.Plan.Condition != "" {
			// Definition files have no conditionals.
			def.WriteLnf("; %s (requires %s)", entry.Name, entry.Plan.Condition)
			continue
		}
		def.WriteLn(entry.Name)
	}
	def.BlockEnd()

	base := backend.Pascal(module.Name)
	log.Debugf("module %s: %d declarations", module.Name, len(plans))
	return []conversion.Artifact{
		backend.Artifact(PublicDir, ModuleHeader(module.Name), "//", header.String()),
		backend.Artifact(SourceDir, base+".c", "//", source.String()),
		backend.Artifact("", base+".def", ";", def.String()),
	}, nil
}

func renderUmbrellas(env *backend.Env) []conversion.Artifact {
	var types []*metadata.TypeDescriptor
	for _, ctx := range env.Tree.Types() {
		types = append(types, ctx.Type)
	}
	lib := env.Options.Library

	public := writer.New()
	public.HeaderGuard(lib+".h", func() {
		public.WriteLnf(`#include "%s"`, RuntimeHeader)
		for _, td := range env.Visibility.Filter(types, visibility.VariantPublic) {
			public.WriteLnf(`#include "%s"`, HeaderName(td))
		}
		for _, module := range env.Tree.Modules {
			public.WriteLnf(`#include "%s"`, ModuleHeader(module.Name))
		}
	})

	internal := writer.New()
	internal.HeaderGuard(lib+"Internal.h", func() {
		internal.WriteLnf(`#include "%s"`, IncludePath(InternalDir, PublicDir, lib+".h"))
		for _, td := range env.Visibility.Filter(types, visibility.VariantInternal) {
			internal.WriteLnf(`#include "%s"`, HeaderName(td))
		}
	})

	return []conversion.Artifact{
		backend.Artifact(PublicDir, RuntimeHeader, "//", runtimeHeader()),
		backend.Artifact(PublicDir, lib+".h", "//", public.String()),
		backend.Artifact(InternalDir, lib+"Internal.h", "//", internal.String()),
	}
}

func runtimeHeader() string {
	w := writer.New()
	w.HeaderGuard(RuntimeHeader, func() {
		w.WriteLn("#include <stdbool.h>", "#include <stddef.h>", "#include <stdint.h>")
		w.WriteLn()
		w.WriteLn("#if defined(_WIN32)")
		w.BlockStart()
		w.WriteLn("#define CBINDER_EXPORT __declspec(dllexport)")
		w.BlockEnd()
		w.WriteLn("#else")
		w.BlockStart()
		w.WriteLn(`#define CBINDER_EXPORT __attribute__((visibility("default")))`)
		w.BlockEnd()
		w.WriteLn("#endif")
		w.WriteLn()
		w.WriteLn("typedef bool cbbool;", "typedef const char* cbstring;")
		w.WriteLn()
		w.Block("typedef struct {", "} cbarray;", func() {
			w.WriteLn("void* data;", "size_t length;")
		})
	})
	return w.String()
}
