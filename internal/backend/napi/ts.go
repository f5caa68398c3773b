package napi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

const tsDir = "ts"

// imports collects the named TypeScript types a file refers to.
type imports map[string]bool

func (i imports) token(token typemap.Token) {
	switch token.Kind {
	case typemap.KindEnum, typemap.KindDelegate:
		i[TSName(token.Type)] = true
	case typemap.KindEnumBox:
		i[TSName(token.Type)] = true
		i["Box"] = true
	case typemap.KindBox, typemap.KindHandleBox:
		i["Box"] = true
	case typemap.KindArray:
		i.token(*token.Elem)
	}
}

func (i imports) write(w *writer.Writer, self string) {
	names := make([]string, 0, len(i))
	for name := range i {
		if name != self {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)
	for _, name := range names {
		w.WriteLnf(`import { %s } from "./%s";`, name, name)
	}
	w.WriteLn()
}

func tsSpelling(token typemap.Token) string {
	switch token.Kind {
	case typemap.KindEnum, typemap.KindDelegate:
		return TSName(token.Type)
	case typemap.KindEnumBox:
		return "Box<" + TSName(token.Type) + ">"
	case typemap.KindBinder:
		return "unknown"
	}
	return token.Name
}

type tsParam struct {
	Name   string
	Type   metadata.TypeRef
	ByRef  bool
	Binder string
}

// signature spells a parameter list and result type, recording imports.
func signature(mapper *typemap.Mapper, subject string, params []tsParam, returns metadata.TypeRef, uses imports) (string, string, error) {
	out := make([]string, 0, len(params))
	for _, p := range params {
		usage := typemap.Value
		if p.ByRef {
			usage = typemap.ByRef
		}
		token, err := mapper.Map(p.Type, usage, p.Binder)
		if err != nil {
			return "", "", fmt.Errorf("%s: parameter %s: %w", subject, p.Name, err)
		}
		uses.token(token)
		out = append(out, p.Name+": "+tsSpelling(token))
	}
	ret, err := mapper.Map(returns, typemap.Return, "")
	if err != nil {
		return "", "", fmt.Errorf("%s: result: %w", subject, err)
	}
	uses.token(ret)
	return strings.Join(out, ", "), tsSpelling(ret), nil
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

	name := TSName(td)
	uses := make(imports)
	body := writer.New()
	if variant != visibility.VariantPublic {
		body.WriteLn("/** @internal */")
	}

	switch td.Kind {
	case metadata.KindEnum:
		result, err := env.Enum(td)
		if err != nil {
			return conversion.Artifact{}, err
		}
		body.Block("export enum "+name+" {", "}", func() {
			for _, m := range result.Members {
				body.WriteLnf("%s = %s,", m.Name, tsLiteral(m.Value, result.Underlying))
			}
			for _, alias := range result.Aliases {
				body.WriteLnf("%s = %s,", alias.Name, alias.Target)
			}
		})
	case metadata.KindDelegate:
		var params []tsParam
		for _, p := range td.Params {
			markers, err := conversion.ResolveMarkers(td.QualifiedName()+"."+p.Name, p.Attributes)
			if err != nil {
				return conversion.Artifact{}, err
			}
			params = append(params, tsParam{Name: p.Name, Type: p.Type, ByRef: p.ByRef, Binder: markers.Binder})
		}
		args, ret, err := signature(typemap.NewMapper(TSTable, env.Tree), td.QualifiedName(), params, td.Returns, uses)
		if err != nil {
			return conversion.Artifact{}, err
		}
		body.WriteLnf("export type %s = (%s) => %s;", name, args, ret)
	default:
		var class string
		var interfaces []string
		for _, ref := range lists.Includes {
			base, ok := env.Tree.Lookup(ref)
			if !ok {
				continue
			}
			uses[TSName(base)] = true
			if base.Kind == metadata.KindInterface {
				interfaces = append(interfaces, TSName(base))
			} else if class == "" {
				class = TSName(base)
			}
		}
		if td.Kind == metadata.KindInterface {
			decl := "export interface " + name
			if len(interfaces) > 0 {
				decl += " extends " + strings.Join(interfaces, ", ")
			}
			body.WriteLn(decl+" {", "}")
			break
		}
		decl := "export class " + name
		if class != "" {
			decl += " extends " + class
		}
		if len(interfaces) > 0 {
			decl += " implements " + strings.Join(interfaces, ", ")
		}
		body.Block(decl+" {", "}", func() {
			if class == "" {
				body.Block("constructor(readonly handle: bigint) {", "}", func() {})
			}
		})
	}

	w := writer.New()
	uses.write(w, name)
	w.Text(body.String())
	return backend.Artifact(tsDir, name+".ts", "//", w.String()), nil
}

func renderDeclarations(env *backend.Env, module *conversion.ModuleNode, plans []*trampoline.Plan) (conversion.Artifact, error) {
	mapper := typemap.NewMapper(TSTable, env.Tree)
	uses := make(imports)
	body := writer.New()
	for _, plan := range plans {
		if plan.HeaderVerbatim != "" {
			continue
		}
		params := make([]tsParam, 0, len(plan.Params))
		for _, p := range plan.Params {
			binder := ""
			if p.Bridge.Kind == typemap.KindBinder {
				binder = p.Bridge.Name
			}
			params = append(params, tsParam{Name: p.Name, Type: p.Type, ByRef: p.ByRef, Binder: binder})
		}
		returns := metadata.TypeRef{}
		if plan.Result != nil {
			returns = plan.Result.Type
		}
		args, ret, err := signature(mapper, plan.Site.Identity(), params, returns, uses)
		if err != nil {
			return conversion.Artifact{}, err
		}
		if plan.Condition != "" {
			body.WriteLnf("/** Requires %s in the native library. */", plan.Condition)
		}
		body.WriteLnf("export declare function %s(%s): %s;", ExportName(plan), args, ret)
	}

	w := writer.New()
	uses.write(w, "")
	w.Text(body.String())
	return backend.Artifact(tsDir, module.Name+".d.ts", "//", w.String()), nil
}

func renderIndex(env *backend.Env) conversion.Artifact {
	var types []*metadata.TypeDescriptor
	for _, ctx := range env.Tree.Types() {
		types = append(types, ctx.Type)
	}
	w := writer.New()
	w.WriteLn(`export * from "./Box";`)
	for _, td := range env.Visibility.Filter(types, visibility.VariantPublic) {
		w.WriteLnf(`export * from "./%s";`, TSName(td))
	}
	return backend.Artifact(tsDir, "index.ts", "//", w.String())
}
