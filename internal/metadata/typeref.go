package metadata

import (
	"fmt"
	"strings"
)

// Primitive is the closed set of built-in kinds a TypeRef may carry.
type Primitive int

const (
	NotPrimitive Primitive = iota
	Void
	Bool
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
	Handle
	String
)

// The map of primitive spellings accepted in type references to their kinds.
// Aliases cover the C# and Go spellings that adapters produce.
var primitiveNames = map[string]Primitive{
	"void":    Void,
	"bool":    Bool,
	"int8":    Int8,
	"sbyte":   Int8,
	"uint8":   UInt8,
	"byte":    UInt8,
	"int16":   Int16,
	"short":   Int16,
	"uint16":  UInt16,
	"ushort":  UInt16,
	"int32":   Int32,
	"int":     Int32,
	"uint32":  UInt32,
	"uint":    UInt32,
	"int64":   Int64,
	"long":    Int64,
	"uint64":  UInt64,
	"ulong":   UInt64,
	"float32": Float32,
	"float":   Float32,
	"float64": Float64,
	"double":  Float64,
	"handle":  Handle,
	"intptr":  Handle,
	"uintptr": Handle,
	"string":  String,
}

var canonicalPrimitiveNames = map[Primitive]string{
	Void:    "void",
	Bool:    "bool",
	Int8:    "int8",
	UInt8:   "uint8",
	Int16:   "int16",
	UInt16:  "uint16",
	Int32:   "int32",
	UInt32:  "uint32",
	Int64:   "int64",
	UInt64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Handle:  "handle",
	String:  "string",
}

// Primitives lists every primitive kind except NotPrimitive and Void.
func Primitives() []Primitive {
	return []Primitive{Bool, Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64, Float32, Float64, Handle, String}
}

func (p Primitive) String() string {
	if name, ok := canonicalPrimitiveNames[p]; ok {
		return name
	}
	return ""
}

// IsInteger reports whether p is one of the fixed-width integer kinds.
func (p Primitive) IsInteger() bool {
	return p >= Int8 && p <= UInt64
}

// Bits returns the storage width of p, with handles counted as 64-bit.
func (p Primitive) Bits() int {
	switch p {
	case Bool, Int8, UInt8:
		return 8
	case Int16, UInt16:
		return 16
	case Int32, UInt32, Float32:
		return 32
	case Int64, UInt64, Float64, Handle:
		return 64
	}
	return 0
}

// Signed reports whether p is a signed integer kind.
func (p Primitive) Signed() bool {
	switch p {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

func (p Primitive) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Primitive) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*p = NotPrimitive
		return nil
	}
	prim, ok := primitiveNames[strings.ToLower(string(text))]
	if !ok {
		return fmt.Errorf("unknown primitive %q", string(text))
	}
	*p = prim
	return nil
}

// TypeRef references a primitive, a named type or an array of either.
// The zero value is void.
type TypeRef struct {
	Primitive Primitive
	Name      string
	Elem      *TypeRef
}

func PrimitiveRef(p Primitive) TypeRef { return TypeRef{Primitive: p} }

func NamedRef(qualifiedName string) TypeRef { return TypeRef{Name: qualifiedName} }

func ArrayOf(elem TypeRef) TypeRef { return TypeRef{Elem: &elem} }

func (r TypeRef) IsArray() bool { return r.Elem != nil }

func (r TypeRef) IsVoid() bool {
	return r.Elem == nil && r.Name == "" && (r.Primitive == Void || r.Primitive == NotPrimitive)
}

func (r TypeRef) IsNamed() bool { return r.Elem == nil && r.Name != "" }

func (r TypeRef) String() string {
	switch {
	case r.Elem != nil:
		return r.Elem.String() + "[]"
	case r.Name != "":
		return r.Name
	case r.Primitive == NotPrimitive:
		return "void"
	}
	return r.Primitive.String()
}

// ParseTypeRef parses the textual form used by model files and directives:
// "int32", "Demo.Point", "int32[]", "Demo.Point[][]".
func ParseTypeRef(text string) (TypeRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TypeRef{Primitive: Void}, nil
	}
	if strings.HasSuffix(text, "[]") {
		elem, err := ParseTypeRef(strings.TrimSuffix(text, "[]"))
		if err != nil {
			return TypeRef{}, err
		}
		if elem.IsVoid() {
			return TypeRef{}, fmt.Errorf("array of void in %q", text)
		}
		return ArrayOf(elem), nil
	}
	if prim, ok := primitiveNames[strings.ToLower(text)]; ok {
		return TypeRef{Primitive: prim}, nil
	}
	for _, r := range text {
		if !(r == '.' || r == '_' || r == '`' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return TypeRef{}, fmt.Errorf("invalid character %q in type reference %q", r, text)
		}
	}
	return NamedRef(text), nil
}

func MustParseTypeRef(text string) TypeRef {
	ref, err := ParseTypeRef(text)
	if err != nil {
		panic(err)
	}
	return ref
}

func (r TypeRef) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *TypeRef) UnmarshalText(text []byte) error {
	ref, err := ParseTypeRef(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// Binary forms reuse the text form so CBOR snapshots stay readable.
func (r TypeRef) MarshalBinary() ([]byte, error) { return r.MarshalText() }

func (r *TypeRef) UnmarshalBinary(data []byte) error { return r.UnmarshalText(data) }
