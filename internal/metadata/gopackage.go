package metadata

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/types"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/go/packages"
)

const directivePrefix = "//binder:"

// directiveAttributes maps directive names to the attributes they produce.
var directiveAttributes = map[string]string{
	"module":    AttrModule,
	"binding":   AttrNativeBinding,
	"import":    AttrImport,
	"condition": AttrCondition,
	"signature": AttrSignature,
	"flags":     AttrFlags,
	"verbatim":  AttrVerbatim,
	"discard":   AttrDiscard,
}

// LoadGoPackage builds a compilation from the Go package in dir. Functions and
// methods declared without a body are native; //binder: directives in doc
// comments become attributes. The namespace defaults to the package name.
func LoadGoPackage(dir, namespace string) (*Compilation, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, "./")
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found in %s", dir)
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors)
	}
	if pkg.Types == nil || pkg.TypesInfo == nil {
		return nil, fmt.Errorf("type information not available for %s", dir)
	}

	if namespace == "" {
		namespace = pkg.Name
	}
	l := &goLoader{pkg: pkg, namespace: namespace, types: make(map[string]*TypeDescriptor)}
	return l.load()
}

type goLoader struct {
	pkg       *packages.Package
	namespace string
	types     map[string]*TypeDescriptor
	order     []*TypeDescriptor
	enums     map[types.Object]*TypeDescriptor
}

func (l *goLoader) load() (*Compilation, error) {
	l.enums = make(map[types.Object]*TypeDescriptor)

	// Types first so methods and enum constants find their owners.
	for _, file := range l.pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok {
				continue
			}
			for _, spec := range gen.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				doc := typeSpec.Doc
				if doc == nil && len(gen.Specs) == 1 {
					doc = gen.Doc
				}
				if err := l.addType(typeSpec, doc); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, file := range l.pkg.Syntax {
		fileAttrs, err := parseDirectives(file.Doc)
		if err != nil {
			return nil, err
		}
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				if err := l.addConstants(d); err != nil {
					return nil, err
				}
			case *ast.FuncDecl:
				if err := l.addFunc(d, fileAttrs); err != nil {
					return nil, err
				}
			}
		}
	}

	compilation := &Compilation{Name: l.pkg.Name, Types: l.order}
	compilation.Link()
	return compilation, nil
}

func (l *goLoader) addType(spec *ast.TypeSpec, doc *ast.CommentGroup) error {
	obj := l.pkg.TypesInfo.Defs[spec.Name]
	if obj == nil {
		return nil
	}
	attrs, err := parseDirectives(doc)
	if err != nil {
		return fmt.Errorf("type %s: %w", spec.Name.Name, err)
	}

	descriptor := &TypeDescriptor{
		Namespace:  l.namespace,
		Name:       spec.Name.Name,
		Access:     accessOf(obj),
		Attributes: attrs,
	}
	if spec.TypeParams != nil {
		descriptor.GenericArity = spec.TypeParams.NumFields()
	}

	switch underlying := obj.Type().Underlying().(type) {
	case *types.Struct:
		descriptor.Kind = KindStruct
		for i := 0; i < underlying.NumFields(); i++ {
			field := underlying.Field(i)
			ref, byRef, err := l.typeRef(field.Type())
			if err != nil {
				return fmt.Errorf("field %s.%s: %w", spec.Name.Name, field.Name(), err)
			}
			if byRef {
				ref = PrimitiveRef(Handle)
			}
			descriptor.Members = append(descriptor.Members, &Member{
				Kind:    MemberField,
				Name:    field.Name(),
				Access:  accessOf(field),
				Returns: ref,
			})
		}
	case *types.Interface:
		descriptor.Kind = KindInterface
		for i := 0; i < underlying.NumEmbeddeds(); i++ {
			ref, _, err := l.typeRef(underlying.EmbeddedType(i))
			if err == nil && ref.IsNamed() {
				descriptor.Bases = append(descriptor.Bases, ref)
			}
		}
	case *types.Signature:
		descriptor.Kind = KindDelegate
		params, returns, err := l.signature(underlying)
		if err != nil {
			return fmt.Errorf("delegate %s: %w", spec.Name.Name, err)
		}
		descriptor.Params = params
		descriptor.Returns = returns
	case *types.Basic:
		prim := basicPrimitive(underlying)
		if prim.IsInteger() {
			descriptor.Kind = KindEnum
			descriptor.Underlying = prim
			l.enums[obj] = descriptor
		} else {
			descriptor.Kind = KindClass
		}
	default:
		descriptor.Kind = KindClass
	}

	l.types[spec.Name.Name] = descriptor
	l.order = append(l.order, descriptor)
	return nil
}

// addConstants appends typed constants to the enum of their type. Values are
// already folded by the type checker, so aliases show up as repeated values.
func (l *goLoader) addConstants(gen *ast.GenDecl) error {
	for _, spec := range gen.Specs {
		valueSpec, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for _, name := range valueSpec.Names {
			obj, ok := l.pkg.TypesInfo.Defs[name].(*types.Const)
			if !ok {
				continue
			}
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			enum, ok := l.enums[named.Obj()]
			if !ok {
				continue
			}
			if obj.Val().Kind() != constant.Int {
				return fmt.Errorf("constant %s of %s is not an integer", name.Name, enum.Name)
			}
			enum.Values = append(enum.Values, EnumValue{Name: name.Name, Expr: obj.Val().ExactString()})
		}
	}
	return nil
}

func (l *goLoader) addFunc(decl *ast.FuncDecl, fileAttrs []Attribute) error {
	obj, ok := l.pkg.TypesInfo.Defs[decl.Name].(*types.Func)
	if !ok {
		return nil
	}
	attrs, err := parseDirectives(decl.Doc)
	if err != nil {
		return fmt.Errorf("function %s: %w", decl.Name.Name, err)
	}
	sig := obj.Type().(*types.Signature)

	params, returns, err := l.signature(sig)
	if err != nil {
		return fmt.Errorf("function %s: %w", decl.Name.Name, err)
	}
	attrs = bindParameterAttributes(attrs, params)
	member := &Member{
		Kind:    MemberMethod,
		Name:    decl.Name.Name,
		Access:  accessOf(obj),
		Native:  decl.Body == nil,
		Params:  params,
		Returns: returns,
	}

	var owner *TypeDescriptor
	if sig.Recv() != nil {
		recv := sig.Recv().Type()
		if ptr, ok := recv.(*types.Pointer); ok {
			recv = ptr.Elem()
		}
		if named, ok := recv.(*types.Named); ok {
			owner = l.types[named.Obj().Name()]
		}
	} else {
		member.Static = true
		owner, attrs = l.functionHolder(attrs, fileAttrs)
	}
	if owner == nil {
		return nil
	}
	member.Attributes = attrs
	owner.Members = append(owner.Members, member)
	return nil
}

// functionHolder returns the synthetic class that carries package-level
// functions of one module. A function-level module directive wins over the
// file-level one; functions with neither land in a class without a module.
func (l *goLoader) functionHolder(attrs, fileAttrs []Attribute) (*TypeDescriptor, []Attribute) {
	module := ""
	rest := attrs[:0:0]
	for _, attr := range attrs {
		if attr.Is(AttrModule) {
			module, _ = attr.Arg(0, "name")
			continue
		}
		rest = append(rest, attr)
	}
	if module == "" {
		for _, attr := range fileAttrs {
			if attr.Is(AttrModule) {
				module, _ = attr.Arg(0, "name")
			}
		}
	}

	name := cases.Title(language.Und, cases.NoLower).String(l.pkg.Name)
	if module != "" {
		name = cases.Title(language.Und, cases.NoLower).String(module) + "Natives"
	}
	holder, ok := l.types[name]
	if !ok {
		holder = &TypeDescriptor{Namespace: l.namespace, Name: name, Kind: KindClass, Access: Public}
		if module != "" {
			holder.Attributes = []Attribute{{Name: AttrModule, Args: []string{module}}}
		}
		l.types[name] = holder
		l.order = append(l.order, holder)
	}
	return holder, rest
}

func (l *goLoader) signature(sig *types.Signature) ([]Parameter, TypeRef, error) {
	var params []Parameter
	for i := 0; i < sig.Params().Len(); i++ {
		v := sig.Params().At(i)
		ref, byRef, err := l.typeRef(v.Type())
		if err != nil {
			return nil, TypeRef{}, fmt.Errorf("parameter %s: %w", v.Name(), err)
		}
		name := v.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		params = append(params, Parameter{Name: name, Type: ref, ByRef: byRef})
	}

	switch sig.Results().Len() {
	case 0:
		return params, PrimitiveRef(Void), nil
	case 1:
		ref, byRef, err := l.typeRef(sig.Results().At(0).Type())
		if err != nil {
			return nil, TypeRef{}, fmt.Errorf("result: %w", err)
		}
		if byRef {
			ref = PrimitiveRef(Handle)
		}
		return params, ref, nil
	}
	return nil, TypeRef{}, fmt.Errorf("%d results cannot cross a native boundary", sig.Results().Len())
}

// bindParameterAttributes moves attributes carrying a param=<name> argument
// from the function onto that parameter.
func bindParameterAttributes(attrs []Attribute, params []Parameter) []Attribute {
	rest := attrs[:0:0]
	for _, attr := range attrs {
		target, ok := attr.Named["param"]
		if !ok {
			rest = append(rest, attr)
			continue
		}
		for i := range params {
			if params[i].Name == target {
				params[i].Attributes = append(params[i].Attributes, attr)
			}
		}
	}
	return rest
}

// typeRef converts a Go type. The second result reports a top-level pointer.
func (l *goLoader) typeRef(t types.Type) (TypeRef, bool, error) {
	switch typ := t.(type) {
	case *types.Basic:
		prim := basicPrimitive(typ)
		if prim == NotPrimitive {
			return TypeRef{}, false, fmt.Errorf("unsupported basic type %s", typ)
		}
		return PrimitiveRef(prim), false, nil
	case *types.Pointer:
		inner, innerPtr, err := l.typeRef(typ.Elem())
		if err != nil {
			return TypeRef{}, false, err
		}
		if innerPtr {
			return PrimitiveRef(Handle), false, nil
		}
		return inner, true, nil
	case *types.Slice:
		elem, _, err := l.typeRef(typ.Elem())
		if err != nil {
			return TypeRef{}, false, err
		}
		return ArrayOf(elem), false, nil
	case *types.Array:
		elem, _, err := l.typeRef(typ.Elem())
		if err != nil {
			return TypeRef{}, false, err
		}
		return ArrayOf(elem), false, nil
	case *types.Named:
		obj := typ.Obj()
		if obj.Pkg() == nil {
			return TypeRef{}, false, fmt.Errorf("unsupported type %s", typ)
		}
		if obj.Pkg() == l.pkg.Types {
			return NamedRef(l.namespace + "." + obj.Name()), false, nil
		}
		return NamedRef(obj.Pkg().Name() + "." + obj.Name()), false, nil
	case *types.Signature, *types.Map, *types.Chan:
		return PrimitiveRef(Handle), false, nil
	}
	return TypeRef{}, false, fmt.Errorf("unsupported type %s", t)
}

func basicPrimitive(b *types.Basic) Primitive {
	switch b.Kind() {
	case types.Bool, types.UntypedBool:
		return Bool
	case types.Int8:
		return Int8
	case types.Uint8:
		return UInt8
	case types.Int16:
		return Int16
	case types.Uint16:
		return UInt16
	case types.Int32:
		return Int32
	case types.Uint32:
		return UInt32
	case types.Int, types.Int64, types.UntypedInt:
		return Int64
	case types.Uint, types.Uint64:
		return UInt64
	case types.Float32:
		return Float32
	case types.Float64, types.UntypedFloat:
		return Float64
	case types.Uintptr, types.UnsafePointer:
		return Handle
	case types.String, types.UntypedString:
		return String
	}
	return NotPrimitive
}

func accessOf(obj types.Object) Accessibility {
	if obj.Exported() {
		return Public
	}
	return Internal
}

// parseDirectives reads //binder:<name> lines from a comment group. Arguments
// are whitespace separated; key=value pairs become named arguments and Go
// quoted strings may contain spaces.
func parseDirectives(doc *ast.CommentGroup) ([]Attribute, error) {
	if doc == nil {
		return nil, nil
	}
	var attrs []Attribute
	for _, comment := range doc.List {
		if !strings.HasPrefix(comment.Text, directivePrefix) {
			continue
		}
		attr, err := ParseDirective(strings.TrimPrefix(comment.Text, directivePrefix))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// ParseDirective parses the text following "//binder:".
func ParseDirective(text string) (Attribute, error) {
	text = strings.TrimSpace(text)
	name, rest, _ := strings.Cut(text, " ")
	attrName, ok := directiveAttributes[strings.ToLower(name)]
	if !ok {
		return Attribute{}, fmt.Errorf("unknown directive %q", name)
	}

	attr := Attribute{Name: attrName}
	tokens, err := splitDirectiveArgs(rest)
	if err != nil {
		return Attribute{}, fmt.Errorf("directive %s: %w", name, err)
	}
	for _, token := range tokens {
		if key, value, found := strings.Cut(token, "="); found && key != "" && !strings.ContainsAny(key, `"' `) {
			if attr.Named == nil {
				attr.Named = make(map[string]string)
			}
			attr.Named[key] = value
			continue
		}
		attr.Args = append(attr.Args, token)
	}
	return attr, nil
}

func splitDirectiveArgs(text string) ([]string, error) {
	var tokens []string
	for {
		text = strings.TrimLeft(text, " \t")
		if text == "" {
			return tokens, nil
		}
		// A quoted token may follow "key=".
		prefix := ""
		if eq := strings.IndexByte(text, '='); eq > 0 && eq+1 < len(text) && text[eq+1] == '"' && !strings.ContainsAny(text[:eq], " \t") {
			prefix, text = text[:eq+1], text[eq+1:]
		}
		if text[0] == '"' || text[0] == '`' {
			quoted, err := strconv.QuotedPrefix(text)
			if err != nil {
				return nil, err
			}
			unquoted, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, prefix+unquoted)
			text = text[len(quoted):]
			continue
		}
		end := strings.IndexAny(text, " \t")
		if end < 0 {
			end = len(text)
		}
		tokens = append(tokens, prefix+text[:end])
		text = text[end:]
	}
}
