// Package metadata describes the input library (the Source Model) and hosts the
// adapters that produce it: model files, ECMA-335 metadata and Go packages.
package metadata

import (
	"debug/pe"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/flags"
)

type WinMdReader struct {
	metadata    *winmd.Metadata
	dllByMethod map[string]string
	types       map[string]*TypeDescriptor
	order       []*TypeDescriptor
}

// The map of basic element types to Source Model primitives
var builtInElementTypes = map[flags.ElementType]Primitive{
	flags.ElementType_VOID:    Void,
	flags.ElementType_BOOLEAN: Bool,
	flags.ElementType_CHAR:    UInt16,
	flags.ElementType_STRING:  String,
	flags.ElementType_I1:      Int8,
	flags.ElementType_I2:      Int16,
	flags.ElementType_I4:      Int32,
	flags.ElementType_I8:      Int64,
	flags.ElementType_U1:      UInt8,
	flags.ElementType_U2:      UInt16,
	flags.ElementType_U4:      UInt32,
	flags.ElementType_U8:      UInt64,
	flags.ElementType_R4:      Float32,
	flags.ElementType_R8:      Float64,
	flags.ElementType_I:       Handle,
	flags.ElementType_U:       Handle,
}

// The map of types created by `typedef` in C code to primitives
var builtInTypeDefs = map[string]Primitive{
	"BOOL":    Int32,
	"BOOLEAN": UInt8,
	"HRESULT": Int32,
	"PWSTR":   String,
	"PSTR":    String,
}

// NewReader opens the metadata file (.winmd or any ECMA-335 assembly) under
// the given path.
func NewReader(winMdPath string) (*WinMdReader, error) {
	peFile, err := pe.Open(winMdPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", winMdPath, err)
	}
	defer peFile.Close()

	winmdMetadata, err := winmd.New(peFile)
	if err != nil {
		return nil, fmt.Errorf("reading metadata from %s: %w", winMdPath, err)
	}

	reader := &WinMdReader{
		metadata:    winmdMetadata,
		dllByMethod: make(map[string]string),
		types:       make(map[string]*TypeDescriptor),
	}
	if err := reader.indexImports(); err != nil {
		return nil, err
	}
	return reader, nil
}

// indexImports maps every imported method name to the module that implements it.
func (reader *WinMdReader) indexImports() error {
	table := reader.metadata.Tables.ImplMap
	for i := uint32(0); i < table.Len; i++ {
		implMap, err := table.Record(winmd.Index(i))
		if err != nil {
			return fmt.Errorf("reading import map: %w", err)
		}
		moduleRef, err := reader.metadata.Tables.ModuleRef.Record(implMap.ImportScope)
		if err != nil {
			return fmt.Errorf("reading module reference of %s: %w", implMap.ImportName.String(), err)
		}
		reader.dllByMethod[implMap.ImportName.String()] = moduleName(moduleRef.Name.String())
	}
	return nil
}

func moduleName(dll string) string {
	return strings.ToLower(strings.TrimSuffix(dll, filepath.Ext(dll)))
}

// Compilation reads every imported method (or only those named in include)
// into a compilation. Methods are grouped into one partial declaration of
// their declaring type per implementing module, so a module name seen in
// several namespaces merges into one grouping downstream.
func (reader *WinMdReader) Compilation(name string, include map[string]bool) (*Compilation, error) {
	compilation := &Compilation{Name: name}
	sites := make(map[string]*TypeDescriptor)
	var siteKeys []string

	typeDefs := reader.metadata.Tables.TypeDef
	for i := uint32(0); i < typeDefs.Len; i++ {
		typeDef, err := typeDefs.Record(winmd.Index(i))
		if err != nil {
			return nil, fmt.Errorf("reading type definition %d: %w", i, err)
		}
		for idx := typeDef.MethodList.Start; idx < typeDef.MethodList.End; idx++ {
			methodDef, err := reader.metadata.Tables.MethodDef.Record(idx)
			if err != nil {
				return nil, fmt.Errorf("reading method of %s: %w", typeDef.Name.String(), err)
			}
			methodName := methodDef.Name.String()
			dll, imported := reader.dllByMethod[methodName]
			if !imported || (include != nil && !include[methodName]) {
				continue
			}
			member, err := reader.getMethod(methodDef)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", methodName, err)
			}

			key := typeDef.Namespace.String() + "." + typeDef.Name.String() + "@" + dll
			site, ok := sites[key]
			if !ok {
				site = &TypeDescriptor{
					Namespace:  typeDef.Namespace.String(),
					Name:       typeDef.Name.String(),
					Kind:       KindClass,
					Access:     Public,
					Attributes: []Attribute{{Name: AttrModule, Args: []string{dll}}},
				}
				sites[key] = site
				siteKeys = append(siteKeys, key)
			}
			site.Members = append(site.Members, member)
		}
	}

	sort.Strings(siteKeys)
	for _, key := range siteKeys {
		compilation.Types = append(compilation.Types, sites[key])
	}
	compilation.Types = append(compilation.Types, reader.order...)
	compilation.Link()
	return compilation, nil
}

// TryGetMethod tries to get the imported method with given name
func (reader *WinMdReader) TryGetMethod(name string) (*Member, bool) {
	methodDef := findElementInTable(
		reader.metadata.Tables.MethodDef,
		func(methodDef *winmd.MethodDef) bool { return methodDef.Name.String() == name })
	if methodDef == nil {
		return nil, false
	}
	member, err := reader.getMethod(methodDef)
	if err != nil {
		return nil, false
	}
	return member, true
}

// TryGetType tries to get the struct type with given name
func (reader *WinMdReader) TryGetType(name string) (*TypeDescriptor, bool) {
	typeDef := findElementInTable(
		reader.metadata.Tables.TypeDef,
		func(typeDef *winmd.TypeDef) bool { return typeDef.Name.String() == name })
	if typeDef == nil {
		return nil, false
	}
	ref, err := reader.describeTypeDef(typeDef)
	if err != nil || !ref.IsNamed() {
		return nil, false
	}
	return reader.types[ref.Name], true
}

func (reader *WinMdReader) getMethod(methodDef *winmd.MethodDef) (*Member, error) {
	methodSignature, err := reader.metadata.MethodDefSignature(methodDef.Signature)
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}

	returnType, _, err := reader.getType(methodSignature.RetType.Type)
	if err != nil {
		return nil, fmt.Errorf("return type: %w", err)
	}

	var paramNames []string
	for idx := methodDef.ParamList.Start; idx < methodDef.ParamList.End; idx++ {
		param, err := reader.metadata.Tables.Param.Record(idx)
		if err != nil {
			return nil, fmt.Errorf("reading parameter: %w", err)
		}
		paramNames = append(paramNames, param.Name.String())
	}
	// A leading row describes the return value when present.
	if len(paramNames) > len(methodSignature.Param) {
		paramNames = paramNames[len(paramNames)-len(methodSignature.Param):]
	}

	member := &Member{
		Kind:    MemberMethod,
		Name:    methodDef.Name.String(),
		Access:  Public,
		Static:  true,
		Native:  true,
		Returns: returnType,
	}
	for i, methodParam := range methodSignature.Param {
		paramType, byRef, err := reader.getType(methodParam.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		name := fmt.Sprintf("arg%d", i)
		if i < len(paramNames) && paramNames[i] != "" {
			name = paramNames[i]
		}
		member.Params = append(member.Params, Parameter{Name: name, Type: paramType, ByRef: byRef})
	}
	return member, nil
}

// getType converts a signature type. The second result reports a top-level
// pointer, which parameters surface as by-ref.
func (reader *WinMdReader) getType(sigType winmd.SigType) (TypeRef, bool, error) {
	if prim, found := builtInElementTypes[sigType.Kind]; found {
		return PrimitiveRef(prim), false, nil
	}

	switch sigType.Kind {
	case flags.ElementType_PTR, flags.ElementType_BYREF:
		innerSigType, ok := sigType.Value.(winmd.SigType)
		if !ok {
			return PrimitiveRef(Handle), false, nil
		}
		inner, innerPtr, err := reader.getType(innerSigType)
		if err != nil {
			return TypeRef{}, false, err
		}
		// void* and pointer-to-pointer collapse to opaque handles.
		if innerPtr || inner.IsVoid() {
			return PrimitiveRef(Handle), false, nil
		}
		return inner, true, nil
	case flags.ElementType_ARRAY, flags.ElementType_SZARRAY:
		innerSigType, ok := sigType.Value.(winmd.SigType)
		if !ok {
			return TypeRef{}, false, fmt.Errorf("array without element type")
		}
		inner, _, err := reader.getType(innerSigType)
		if err != nil {
			return TypeRef{}, false, err
		}
		return ArrayOf(inner), false, nil
	case flags.ElementType_FNPTR:
		return PrimitiveRef(Handle), false, nil
	}

	typeDef, err := reader.getTypeDef(sigType)
	if err != nil {
		return TypeRef{}, false, fmt.Errorf("no matching type definition for type was found: %w", err)
	}
	ref, err := reader.describeTypeDef(typeDef)
	return ref, false, err
}

// describeTypeDef registers a referenced value type and returns a reference to
// it. Enums and native typedefs collapse to their underlying primitive.
func (reader *WinMdReader) describeTypeDef(typeDef *winmd.TypeDef) (TypeRef, error) {
	name := typeDef.Name.String()
	if prim, found := builtInTypeDefs[name]; found {
		return PrimitiveRef(prim), nil
	}
	qualified := typeDef.Namespace.String() + "." + name
	if _, seen := reader.types[qualified]; seen {
		return NamedRef(qualified), nil
	}

	var fields []*winmd.Field
	for i := typeDef.FieldList.Start; i < typeDef.FieldList.End; i++ {
		field, err := reader.metadata.Tables.Field.Record(i)
		if err != nil {
			return TypeRef{}, fmt.Errorf("no matching field was found: %w", err)
		}
		fields = append(fields, field)
	}

	if len(fields) > 0 && (fields[0].Name.String() == "value__" || len(fields) == 1 && fields[0].Name.String() == "Value") {
		underlying, err := reader.getProperty(fields[0])
		if err != nil {
			return TypeRef{}, err
		}
		if underlying.Returns.Primitive != NotPrimitive {
			return underlying.Returns, nil
		}
	}

	descriptor := &TypeDescriptor{
		Namespace: typeDef.Namespace.String(),
		Name:      name,
		Kind:      KindStruct,
		Access:    Public,
	}
	if len(fields) == 0 {
		descriptor.Kind = KindClass
	}
	// Registered before the fields so self-referencing structs terminate.
	reader.types[qualified] = descriptor
	reader.order = append(reader.order, descriptor)

	for _, field := range fields {
		property, err := reader.getProperty(field)
		if err != nil {
			return TypeRef{}, fmt.Errorf("no matching type definition for type was found: %w", err)
		}
		descriptor.Members = append(descriptor.Members, property)
	}
	return NamedRef(qualified), nil
}

func (reader *WinMdReader) getProperty(field *winmd.Field) (*Member, error) {
	fieldSignature, err := reader.metadata.FieldSignature(field.Signature)
	if err != nil {
		return nil, fmt.Errorf("no matching field signature for field '%s' was found: %w", field.Name.String(), err)
	}
	fieldType, isPointer, err := reader.getType(fieldSignature.Type)
	if err != nil {
		return nil, fmt.Errorf("could not determine field type: %w", err)
	}
	if isPointer {
		fieldType = PrimitiveRef(Handle)
	}
	return &Member{Kind: MemberField, Name: field.Name.String(), Access: Public, Returns: fieldType}, nil
}

func (reader *WinMdReader) getTypeDef(sigType winmd.SigType) (*winmd.TypeDef, error) {
	sigTypeIndex, ok := sigType.Value.(winmd.CodedIndex)
	if !ok {
		return nil, fmt.Errorf("unsupported element type %v", sigType.Kind)
	}
	retTypeRef, err := reader.metadata.Tables.TypeRef.Record(sigTypeIndex.Index)
	if err != nil {
		return nil, fmt.Errorf("did not found matching type reference: %w", err)
	}

	typeDef := findElementInTable(reader.metadata.Tables.TypeDef, func(x *winmd.TypeDef) bool {
		return x.Name.String() == retTypeRef.Name.String() && x.Namespace.String() == retTypeRef.Namespace.String()
	})
	if typeDef == nil {
		return nil, fmt.Errorf("did not found matching type definition for %s.%s", retTypeRef.Namespace.String(), retTypeRef.Name.String())
	}
	return typeDef, nil
}

// Finds element in given table and returns it. If element is not found then `nil` is returned.
func findElementInTable[T any, TP winmd.Record[T]](table winmd.Table[T, TP], match func(TP) bool) TP {
	for idx := uint32(0); idx < table.Len; idx++ {
		element, err := table.Record(winmd.Index(idx))
		if err != nil {
			return nil
		}
		if match(element) {
			return element
		}
	}
	return nil
}
