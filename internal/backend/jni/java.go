package jni

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

func javaDir(pkg string) string { return "java/" + strings.ReplaceAll(pkg, ".", "/") }

func javaFile(pkg, name string, body func(w *writer.Writer) error) (conversion.Artifact, error) {
	w := writer.New()
	w.WriteLnf("package %s;", pkg)
	w.WriteLn()
	if err := body(w); err != nil {
		return conversion.Artifact{}, err
	}
	return backend.Artifact(javaDir(pkg), name+".java", "//", w.String()), nil
}

func modifier(td *metadata.TypeDescriptor) string {
	if visibility.OfType(td) == visibility.Public {
		return "public "
	}
	return ""
}

func renderType(env *backend.Env, pkg string, td *metadata.TypeDescriptor) (conversion.Artifact, error) {
	variant := visibility.VariantPublic
	if visibility.OfType(td) != visibility.Public {
		variant = visibility.VariantInternalOnly
	}
	lists, err := env.Visibility.Partition(td, variant)
	if err != nil {
		return conversion.Artifact{}, err
	}

	name := JavaName(td)
	return javaFile(pkg, name, func(w *writer.Writer) error {
		switch td.Kind {
		case metadata.KindEnum:
			return writeEnum(w, env, td)
		case metadata.KindDelegate:
			return writeDelegate(w, env, td)
		case metadata.KindInterface:
			writeInterface(w, env, td, lists)
		default:
			writeHandle(w, env, td, lists)
		}
		return nil
	})
}

// javaLiteral spells v in the Java type holding an enum of the given width.
// Unsigned values wrap into the signed range of that type.
func javaLiteral(v int64, underlying metadata.Primitive) string {
	if underlying.Bits() == 64 {
		return strconv.FormatInt(v, 10) + "L"
	}
	return strconv.FormatInt(int64(int32(v)), 10)
}

func javaValueType(underlying metadata.Primitive) string {
	if underlying.Bits() == 64 {
		return "long"
	}
	return "int"
}

func writeEnum(w *writer.Writer, env *backend.Env, td *metadata.TypeDescriptor) error {
	result, err := env.Enum(td)
	if err != nil {
		return err
	}
	name := JavaName(td)
	valueType := javaValueType(result.Underlying)

	w.Block(modifier(td)+"enum "+name+" {", "}", func() {
		for i, m := range result.Members {
			sep := ","
			if i == len(result.Members)-1 {
				sep = ";"
			}
			w.WriteLnf("%s(%s)%s", m.Name, javaLiteral(m.Value, result.Underlying), sep)
		}
		if len(result.Members) == 0 {
			w.WriteLn(";")
		}
		w.WriteLn()
		for _, alias := range result.Aliases {
			w.WriteLnf("public static final %s %s = %s;", name, alias.Name, alias.Target)
		}
		if len(result.Aliases) > 0 {
			w.WriteLn()
		}
		w.WriteLnf("public final %s value;", valueType)
		w.WriteLn()
		w.Block(fmt.Sprintf("%s(%s value) {", name, valueType), "}", func() {
			w.WriteLn("this.value = value;")
		})
		w.WriteLn()
		w.Block(fmt.Sprintf("public static %s fromValue(%s value) {", name, valueType), "}", func() {
			w.Block(fmt.Sprintf("for (%s e : values()) {", name), "}", func() {
				w.Block("if (e.value == value) {", "}", func() {
					w.WriteLn("return e;")
				})
			})
			w.WriteLnf(`throw new IllegalArgumentException("%s: unknown value " + value);`, name)
		})
	})
	return nil
}

func javaParams(mapper *typemap.Mapper, subject string, params []metadata.Parameter) (string, error) {
	out := make([]string, 0, len(params))
	for _, param := range params {
		markers, err := conversion.ResolveMarkers(subject+"."+param.Name, param.Attributes)
		if err != nil {
			return "", err
		}
		usage := typemap.Value
		if param.ByRef {
			usage = typemap.ByRef
		}
		token, err := mapper.Map(param.Type, usage, markers.Binder)
		if err != nil {
			return "", fmt.Errorf("%s: parameter %s: %w", subject, param.Name, err)
		}
		out = append(out, javaSpelling(token)+" "+param.Name)
	}
	return strings.Join(out, ", "), nil
}

// javaSpelling names delegates by their interface and hides binders behind
// Object.
func javaSpelling(token typemap.Token) string {
	switch token.Kind {
	case typemap.KindDelegate:
		return JavaName(token.Type)
	case typemap.KindBinder:
		return "Object"
	}
	return token.Name
}

func writeDelegate(w *writer.Writer, env *backend.Env, td *metadata.TypeDescriptor) error {
	mapper := typemap.NewMapper(JavaTable, env.Tree)
	params, err := javaParams(mapper, td.QualifiedName(), td.Params)
	if err != nil {
		return err
	}
	ret, err := mapper.Map(td.Returns, typemap.Return, "")
	if err != nil {
		return fmt.Errorf("%s: result: %w", td.QualifiedName(), err)
	}
	w.WriteLn("@FunctionalInterface")
	w.Block(modifier(td)+"interface "+JavaName(td)+" {", "}", func() {
		w.WriteLnf("%s invoke(%s);", javaSpelling(ret), params)
	})
	return nil
}

// bases splits the admitted base types into the class to extend and the
// interfaces to implement.
func bases(env *backend.Env, lists visibility.Lists) (class string, interfaces []string) {
	for _, ref := range lists.Includes {
		base, ok := env.Tree.Lookup(ref)
		if !ok {
			continue
		}
		if base.Kind == metadata.KindInterface {
			interfaces = append(interfaces, JavaName(base))
		} else if class == "" && base.Kind == metadata.KindClass {
			class = JavaName(base)
		}
	}
	return class, interfaces
}

func writeInterface(w *writer.Writer, env *backend.Env, td *metadata.TypeDescriptor, lists visibility.Lists) {
	_, interfaces := bases(env, lists)
	decl := modifier(td) + "interface " + JavaName(td)
	if len(interfaces) > 0 {
		decl += " extends " + strings.Join(interfaces, ", ")
	}
	w.WriteLn(decl + " {")
	w.WriteLn("}")
}

func writeHandle(w *writer.Writer, env *backend.Env, td *metadata.TypeDescriptor, lists visibility.Lists) {
	name := JavaName(td)
	class, interfaces := bases(env, lists)
	decl := modifier(td) + "class " + name
	if td.Kind == metadata.KindStruct {
		decl = modifier(td) + "final class " + name
		class = ""
	}
	if class != "" {
		decl += " extends " + class
	}
	if len(interfaces) > 0 {
		decl += " implements " + strings.Join(interfaces, ", ")
	}

	w.Block(decl+" {", "}", func() {
		if class != "" {
			w.Block(fmt.Sprintf("protected %s(long handle) {", name), "}", func() {
				w.WriteLn("super(handle);")
			})
			return
		}
		w.WriteLn("protected final long handle;")
		w.WriteLn()
		w.Block(fmt.Sprintf("protected %s(long handle) {", name), "}", func() {
			w.WriteLn("this.handle = handle;")
		})
		w.WriteLn()
		w.Block("public long handle() {", "}", func() {
			w.WriteLn("return handle;")
		})
	})
}

func renderNativeClass(env *backend.Env, pkg string, module *conversion.ModuleNode, plans []*trampoline.Plan) (conversion.Artifact, error) {
	mapper := typemap.NewMapper(JavaTable, env.Tree)
	class := NativeClass(module.Name)
	return javaFile(pkg, class, func(w *writer.Writer) error {
		var err error
		w.Block("public final class "+class+" {", "}", func() {
			w.Block("static {", "}", func() {
				w.WriteLnf(`System.loadLibrary("%s");`, env.Options.Library)
			})
			w.WriteLn()
			w.Block("private "+class+"() {", "}", func() {})
			for _, plan := range plans {
				if plan.HeaderVerbatim != "" {
					continue
				}
				var decl string
				decl, err = nativeDeclaration(mapper, plan)
				if err != nil {
					return
				}
				w.WriteLn()
				if plan.Condition != "" {
					w.WriteLnf("// Requires %s in the native library.", plan.Condition)
				}
				w.WriteLn(decl)
			}
		})
		return err
	})
}

func nativeDeclaration(mapper *typemap.Mapper, plan *trampoline.Plan) (string, error) {
	params := make([]string, 0, len(plan.Params))
	for _, p := range plan.Params {
		usage := typemap.Value
		if p.ByRef {
			usage = typemap.ByRef
		}
		spelling := "Object"
		if p.Bridge.Kind != typemap.KindBinder {
			token, err := mapper.Map(p.Type, usage, "")
			if err != nil {
				return "", fmt.Errorf("%s: parameter %s: %w", plan.Site.Identity(), p.Name, err)
			}
			spelling = javaSpelling(token)
		}
		params = append(params, spelling+" "+p.Name)
	}
	ret := "void"
	if plan.Result != nil {
		token, err := mapper.Map(plan.Result.Type, typemap.Return, "")
		if err != nil {
			return "", fmt.Errorf("%s: result: %w", plan.Site.Identity(), err)
		}
		ret = javaSpelling(token)
	}
	return fmt.Sprintf("public static native %s %s(%s);", ret, JavaMethod(plan), strings.Join(params, ", ")), nil
}
