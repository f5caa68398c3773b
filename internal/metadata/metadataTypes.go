package metadata

import (
	"fmt"
	"strings"
)

type TypeKind int

const (
	KindClass TypeKind = iota
	KindStruct
	KindInterface
	KindEnum
	KindDelegate
)

var typeKindNames = []string{"class", "struct", "interface", "enum", "delegate"}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

func (k TypeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TypeKind) UnmarshalText(text []byte) error {
	idx, err := lookupName(typeKindNames, string(text), "type kind")
	*k = TypeKind(idx)
	return err
}

type Accessibility int

const (
	Public Accessibility = iota
	Internal
	Protected
	Private
)

var accessibilityNames = []string{"public", "internal", "protected", "private"}

func (a Accessibility) String() string {
	if int(a) < len(accessibilityNames) {
		return accessibilityNames[a]
	}
	return fmt.Sprintf("Accessibility(%d)", int(a))
}

func (a Accessibility) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Accessibility) UnmarshalText(text []byte) error {
	idx, err := lookupName(accessibilityNames, string(text), "accessibility")
	*a = Accessibility(idx)
	return err
}

type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberConstructor
	MemberDestructor
	MemberField
	MemberProperty
	MemberIndexer
)

var memberKindNames = []string{"method", "constructor", "destructor", "field", "property", "indexer"}

func (k MemberKind) String() string {
	if int(k) < len(memberKindNames) {
		return memberKindNames[k]
	}
	return fmt.Sprintf("MemberKind(%d)", int(k))
}

func (k MemberKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *MemberKind) UnmarshalText(text []byte) error {
	idx, err := lookupName(memberKindNames, string(text), "member kind")
	*k = MemberKind(idx)
	return err
}

func lookupName(names []string, name, what string) (int, error) {
	if name == "" {
		return 0, nil
	}
	for i, candidate := range names {
		if strings.EqualFold(candidate, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, name)
}

// Compilation is the whole input library as seen by the generator.
type Compilation struct {
	Name    string            `toml:"name" cbor:"name"`
	Version string            `toml:"version,omitempty" cbor:"version,omitempty"`
	Types   []*TypeDescriptor `toml:"types" cbor:"types"`
}

// TypeDescriptor describes one declaration site of a type. Partial declarations
// appear as several descriptors sharing a qualified name.
type TypeDescriptor struct {
	Namespace    string            `toml:"namespace,omitempty" cbor:"namespace,omitempty"`
	Name         string            `toml:"name" cbor:"name"`
	Kind         TypeKind          `toml:"kind" cbor:"kind"`
	Access       Accessibility     `toml:"access" cbor:"access"`
	GenericArity int               `toml:"arity,omitempty" cbor:"arity,omitempty"`
	Bases        []TypeRef         `toml:"bases,omitempty" cbor:"bases,omitempty"`
	Members      []*Member         `toml:"members,omitempty" cbor:"members,omitempty"`
	Nested       []*TypeDescriptor `toml:"nested,omitempty" cbor:"nested,omitempty"`
	Attributes   []Attribute       `toml:"attributes,omitempty" cbor:"attributes,omitempty"`

	// Enum only.
	Underlying Primitive   `toml:"underlying,omitempty" cbor:"underlying,omitempty"`
	Values     []EnumValue `toml:"values,omitempty" cbor:"values,omitempty"`

	// Delegate only.
	Params  []Parameter `toml:"params,omitempty" cbor:"params,omitempty"`
	Returns TypeRef     `toml:"returns,omitempty" cbor:"returns,omitempty"`

	outer *TypeDescriptor
}

// EnumValue is a raw enumeration member; Expr is empty for implicit values.
type EnumValue struct {
	Name string `toml:"name" cbor:"name"`
	Expr string `toml:"value,omitempty" cbor:"value,omitempty"`
}

type Member struct {
	Kind       MemberKind    `toml:"kind" cbor:"kind"`
	Name       string        `toml:"name" cbor:"name"`
	Access     Accessibility `toml:"access" cbor:"access"`
	Static     bool          `toml:"static,omitempty" cbor:"static,omitempty"`
	Abstract   bool          `toml:"abstract,omitempty" cbor:"abstract,omitempty"`
	Native     bool          `toml:"native,omitempty" cbor:"native,omitempty"`
	Params     []Parameter   `toml:"params,omitempty" cbor:"params,omitempty"`
	Returns    TypeRef       `toml:"returns,omitempty" cbor:"returns,omitempty"`
	Attributes []Attribute   `toml:"attributes,omitempty" cbor:"attributes,omitempty"`
}

type Parameter struct {
	Name       string      `toml:"name" cbor:"name"`
	Type       TypeRef     `toml:"type" cbor:"type"`
	ByRef      bool        `toml:"byref,omitempty" cbor:"byref,omitempty"`
	Attributes []Attribute `toml:"attributes,omitempty" cbor:"attributes,omitempty"`
}

// IsArray reports whether the parameter is passed as an array.
func (p Parameter) IsArray() bool { return p.Type.IsArray() }

// QualifiedName joins the namespace, the enclosing type chain and the type name.
func (t *TypeDescriptor) QualifiedName() string {
	var parts []string
	for cur := t; cur != nil; cur = cur.outer {
		parts = append(parts, cur.Name)
	}
	if t.root().Namespace != "" {
		parts = append(parts, t.root().Namespace)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Outer returns the enclosing type, or nil for top-level declarations.
func (t *TypeDescriptor) Outer() *TypeDescriptor { return t.outer }

func (t *TypeDescriptor) root() *TypeDescriptor {
	cur := t
	for cur.outer != nil {
		cur = cur.outer
	}
	return cur
}

// NamespaceOf returns the namespace of the outermost enclosing type.
func (t *TypeDescriptor) NamespaceOf() string { return t.root().Namespace }

// Link sets the enclosing-type back references of every nested declaration.
// Adapters and loaders call it once after building the descriptors.
func (c *Compilation) Link() {
	var link func(outer *TypeDescriptor, nested []*TypeDescriptor)
	link = func(outer *TypeDescriptor, nested []*TypeDescriptor) {
		for _, n := range nested {
			n.outer = outer
			if outer != nil && n.Namespace == "" {
				n.Namespace = outer.NamespaceOf()
			}
			link(n, n.Nested)
		}
	}
	link(nil, c.Types)
}

// Walk visits every declaration, outer types before nested ones, in source order.
func (c *Compilation) Walk(visit func(t *TypeDescriptor) bool) {
	var walk func(types []*TypeDescriptor) bool
	walk = func(types []*TypeDescriptor) bool {
		for _, t := range types {
			if !visit(t) {
				return false
			}
			if !walk(t.Nested) {
				return false
			}
		}
		return true
	}
	walk(c.Types)
}

// Identity is the "Type.Member" name used in diagnostics.
func (m *Member) Identity(owner *TypeDescriptor) string {
	if owner == nil {
		return m.Name
	}
	return owner.QualifiedName() + "." + m.Name
}
