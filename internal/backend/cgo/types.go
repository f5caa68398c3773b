package cgo

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
)

func renderType(env *backend.Env, pkg string, td *metadata.TypeDescriptor) (conversion.Artifact, error) {
	f := jen.NewFile(pkg)
	var err error
	switch td.Kind {
	case metadata.KindEnum:
		err = writeEnum(f, env, td)
	case metadata.KindDelegate:
		err = writeDelegate(f, env, td)
	case metadata.KindInterface:
		writeInterface(f, td)
	default:
		err = writeWrapper(f, env, td)
	}
	if err != nil {
		return conversion.Artifact{}, err
	}
	return render(f, pkg, fileName(td))
}

// goLiteral spells a stored enum value, undoing the sign extension of
// unsigned underlying types.
func goLiteral(v int64, underlying metadata.Primitive) string {
	if underlying.Signed() {
		return fmt.Sprint(v)
	}
	u := uint64(v)
	if bits := underlying.Bits(); bits < 64 {
		u &= 1<<uint(bits) - 1
	}
	return fmt.Sprint(u)
}

func writeEnum(f *jen.File, env *backend.Env, td *metadata.TypeDescriptor) error {
	result, err := env.Enum(td)
	if err != nil {
		return err
	}
	underlying, ok := Table.Primitives[result.Underlying]
	if !ok {
		return diag.Newf(diag.ErrUnsupportedTypeMapping, td.QualifiedName(), "enum underlying type %s has no Go spelling", result.Underlying)
	}
	name := GoName(td)

	f.Commentf("%s mirrors the native %s enumeration.", name, td.QualifiedName())
	f.Type().Id(name).Id(underlying)
	f.Line()

	f.Const().DefsFunc(func(g *jen.Group) {
		for _, m := range result.Members {
			g.Id(name + m.Name).Id(name).Op("=").Id(goLiteral(m.Value, result.Underlying))
		}
		for _, alias := range result.Aliases {
			g.Id(name + alias.Name).Op("=").Id(name + alias.Target)
		}
	})
	f.Line()

	format, cast := "FormatInt", jen.Int64()
	if !result.Underlying.Signed() {
		format, cast = "FormatUint", jen.Uint64()
	}
	f.Func().Params(jen.Id("v").Id(name)).Id("String").Params().String().Block(
		jen.Switch(jen.Id("v")).BlockFunc(func(g *jen.Group) {
			for _, m := range result.Members {
				g.Case(jen.Id(name + m.Name)).Block(jen.Return(jen.Lit(m.Name)))
			}
		}),
		jen.Return(jen.Lit(name+"(").Op("+").Qual("strconv", format).Call(cast.Call(jen.Id("v")), jen.Lit(10)).Op("+").Lit(")")),
	)
	return nil
}

func writeDelegate(f *jen.File, env *backend.Env, td *metadata.TypeDescriptor) error {
	var params []jen.Code
	for _, param := range td.Params {
		markers, err := conversion.ResolveMarkers(td.QualifiedName()+"."+param.Name, param.Attributes)
		if err != nil {
			return err
		}
		usage := typemap.Value
		if param.ByRef {
			usage = typemap.ByRef
		}
		token, err := env.Bridge.Map(param.Type, usage, markers.Binder)
		if err != nil {
			return fmt.Errorf("%s: parameter %s: %w", td.QualifiedName(), param.Name, err)
		}
		typ, err := goType(token)
		if err != nil {
			return fmt.Errorf("%s: parameter %s: %w", td.QualifiedName(), param.Name, err)
		}
		params = append(params, jen.Id(identifier(param.Name)).Add(typ))
	}

	name := GoName(td)
	f.Commentf("%s is the Go form of the %s callback.", name, td.QualifiedName())
	decl := f.Type().Id(name).Func().Params(params...)
	if td.Returns.IsVoid() {
		return nil
	}
	ret, err := env.Bridge.Map(td.Returns, typemap.Return, "")
	if err != nil {
		return fmt.Errorf("%s: result: %w", td.QualifiedName(), err)
	}
	typ, err := goType(ret)
	if err != nil {
		return fmt.Errorf("%s: result: %w", td.QualifiedName(), err)
	}
	decl.Add(typ)
	return nil
}

func writeInterface(f *jen.File, td *metadata.TypeDescriptor) {
	name := GoName(td)
	f.Commentf("%s is implemented by every wrapper of a native %s.", name, td.QualifiedName())
	f.Type().Id(name).Interface(
		jen.Id("Handle").Params().Qual("unsafe", "Pointer"),
	)
}

// writeWrapper declares the handle wrapper of a class or struct. The first
// base wrapper found in the compilation is embedded and carries the handle.
func writeWrapper(f *jen.File, env *backend.Env, td *metadata.TypeDescriptor) error {
	lists, err := env.Visibility.Partition(td, visibility.VariantInternalOnly)
	if err != nil {
		return err
	}
	var base *metadata.TypeDescriptor
	for _, ref := range lists.Includes {
		if other, ok := env.Tree.Lookup(ref); ok && other.Kind != metadata.KindInterface {
			base = other
			break
		}
	}

	name := GoName(td)
	handle := jen.Id("handle").Qual("unsafe", "Pointer")
	f.Commentf("%s wraps a native %s handle.", name, td.QualifiedName())
	if base != nil {
		f.Type().Id(name).Struct(jen.Id(GoName(base)))
		f.Line()
		f.Func().Id(constructor(td)).Params(handle).Op("*").Id(name).Block(
			jen.Return(jen.Op("&").Id(name).Values(
				jen.Id(GoName(base)).Op(":").Op("*").Id(constructor(base)).Call(jen.Id("handle")),
			)),
		)
		return nil
	}

	f.Type().Id(name).Struct(handle)
	f.Line()
	f.Func().Id(constructor(td)).Params(jen.Id("handle").Qual("unsafe", "Pointer")).Op("*").Id(name).Block(
		jen.Return(jen.Op("&").Id(name).Values(jen.Id("handle").Op(":").Id("handle"))),
	)
	receiver := strings.ToLower(name[:1])
	f.Line()
	f.Comment("Handle returns the native handle.")
	f.Func().Params(jen.Id(receiver).Op("*").Id(name)).Id("Handle").Params().Qual("unsafe", "Pointer").Block(
		jen.Return(jen.Id(receiver).Dot("handle")),
	)
	return nil
}

// goType spells a bridge token as a Go type.
func goType(token typemap.Token) (*jen.Statement, error) {
	switch token.Kind {
	case typemap.KindPrimitive:
		if token.Prim == metadata.Handle {
			return jen.Qual("unsafe", "Pointer"), nil
		}
	case typemap.KindEnum, typemap.KindDelegate:
		return jen.Id(GoName(token.Type)), nil
	case typemap.KindEnumBox, typemap.KindStruct, typemap.KindObject:
		return jen.Op("*").Id(GoName(token.Type)), nil
	case typemap.KindHandleBox:
		if token.Type != nil {
			return nil, diag.Newf(diag.ErrUnsupportedTypeMapping, token.Type.QualifiedName(), "handles cannot be passed by reference to Go")
		}
	case typemap.KindArray:
		switch token.Elem.Kind {
		case typemap.KindPrimitive, typemap.KindEnum:
			if token.Elem.Prim != metadata.String {
				elem, err := goType(*token.Elem)
				if err != nil {
					return nil, err
				}
				return jen.Index().Add(elem), nil
			}
		}
		return nil, diag.Newf(diag.ErrBinderNotFound, token.Name, "Go slices of %s cannot be shared with native code", token.Elem.Name)
	case typemap.KindBinder:
		return jen.Qual("C", token.Name), nil
	}
	return jen.Id(token.Name), nil
}
