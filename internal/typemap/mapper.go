// Package typemap maps Source Model type references onto the spellings a
// backend uses at the native boundary. Backends contribute data (a Table); the
// rules are the same for all of them.
package typemap

import (
	"fmt"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

type Usage int

const (
	Value Usage = iota
	ByRef
	Return
	ArrayElement
)

var usageNames = []string{"value", "byref", "return", "element"}

func (u Usage) String() string {
	if int(u) < len(usageNames) {
		return usageNames[u]
	}
	return fmt.Sprintf("Usage(%d)", int(u))
}

// Usages lists every usage, in declaration order.
func Usages() []Usage { return []Usage{Value, ByRef, Return, ArrayElement} }

type TokenKind int

const (
	KindVoid TokenKind = iota
	KindPrimitive
	KindBox
	KindEnum
	KindEnumBox
	KindStruct
	KindObject
	KindDelegate
	KindHandleBox
	KindArray
	KindBinder
)

// Token is the result of a mapping: the target spelling plus what the
// trampoline synthesizer needs to know to convert the value.
type Token struct {
	Name  string
	Kind  TokenKind
	Usage Usage
	// Prim is the primitive carried across the boundary; the underlying
	// integer for enums.
	Prim metadata.Primitive
	Elem *Token
	Type *metadata.TypeDescriptor
}

// Table is the per-backend mapping data.
type Table struct {
	Name       string
	Void       string
	Primitives map[metadata.Primitive]string
	Boxes      map[metadata.Primitive]string
	// Opaque handle spellings.
	StructHandle string
	ObjectHandle string
	Delegate     string
	// Arrays holds one pattern per usage; "%s" is replaced by the element
	// spelling. A usage without a pattern has no array convention.
	Arrays map[Usage]string
	// TypedArrays overrides Arrays for arrays passed by value, keyed by the
	// primitive the elements cross the boundary as. Enum and handle elements
	// count as their underlying integer; binders and delegates never match.
	// A table whose Arrays has no Value pattern accepts only these.
	TypedArrays map[metadata.Primitive]string
}

// Resolver finds the descriptor behind a named reference.
type Resolver interface {
	Lookup(qualifiedName string) (*metadata.TypeDescriptor, bool)
}

// Mapper applies a Table. It is safe for concurrent use once built.
type Mapper struct {
	Table *Table
	Types Resolver
}

func NewMapper(table *Table, types Resolver) *Mapper {
	return &Mapper{Table: table, Types: types}
}

// Map returns the token for ref in the given usage. A non-empty binder wins
// over the table unconditionally.
func (m *Mapper) Map(ref metadata.TypeRef, usage Usage, binder string) (Token, error) {
	if binder != "" {
		return Token{Name: binder, Kind: KindBinder, Usage: usage}, nil
	}

	switch {
	case ref.IsArray():
		return m.mapArray(ref, usage)
	case ref.IsNamed():
		return m.mapNamed(ref, usage)
	case ref.IsVoid():
		if usage != Return {
			return Token{}, diag.Newf(diag.ErrUnsupportedTypeMapping, ref.String(), "void is only valid as a %s", Return)
		}
		return Token{Name: m.Table.Void, Kind: KindVoid, Usage: usage, Prim: metadata.Void}, nil
	}
	return m.mapPrimitive(ref.Primitive, usage)
}

func (m *Mapper) mapPrimitive(prim metadata.Primitive, usage Usage) (Token, error) {
	if usage == ByRef {
		boxed := prim
		kind := KindBox
		if prim == metadata.Handle {
			boxed = metadata.Int64
			kind = KindHandleBox
		}
		name, ok := m.Table.Boxes[boxed]
		if !ok {
			return Token{}, m.unsupported(prim.String(), usage)
		}
		return Token{Name: name, Kind: kind, Usage: usage, Prim: prim}, nil
	}
	name, ok := m.Table.Primitives[prim]
	if !ok {
		return Token{}, m.unsupported(prim.String(), usage)
	}
	return Token{Name: name, Kind: KindPrimitive, Usage: usage, Prim: prim}, nil
}

func (m *Mapper) mapNamed(ref metadata.TypeRef, usage Usage) (Token, error) {
	var descriptor *metadata.TypeDescriptor
	if m.Types != nil {
		descriptor, _ = m.Types.Lookup(ref.Name)
	}
	if descriptor == nil {
		return Token{}, diag.Newf(diag.ErrUnsupportedTypeMapping, ref.Name, "type is not defined in the compilation and has no binder")
	}
	for _, attr := range descriptor.Attributes {
		if attr.Is(metadata.AttrNativeBinding) {
			if name, ok := attr.Arg(0, "name"); ok && name != "" {
				return Token{Name: name, Kind: KindBinder, Usage: usage, Type: descriptor}, nil
			}
		}
	}

	if descriptor.Kind == metadata.KindEnum {
		underlying := descriptor.Underlying
		if underlying == metadata.NotPrimitive {
			underlying = metadata.Int32
		}
		token, err := m.mapPrimitive(underlying, usage)
		if err != nil {
			return Token{}, m.unsupported(ref.Name, usage)
		}
		token.Kind = KindEnum
		if usage == ByRef {
			token.Kind = KindEnumBox
		}
		token.Type = descriptor
		return token, nil
	}

	if usage == ByRef {
		name, ok := m.Table.Boxes[metadata.Int64]
		if !ok {
			return Token{}, m.unsupported(ref.Name, usage)
		}
		return Token{Name: name, Kind: KindHandleBox, Usage: usage, Prim: metadata.Handle, Type: descriptor}, nil
	}

	token := Token{Usage: usage, Prim: metadata.Handle, Type: descriptor}
	switch descriptor.Kind {
	case metadata.KindStruct:
		token.Name, token.Kind = m.Table.StructHandle, KindStruct
	case metadata.KindDelegate:
		token.Name, token.Kind = m.Table.Delegate, KindDelegate
	default:
		token.Name, token.Kind = m.Table.ObjectHandle, KindObject
	}
	if token.Name == "" {
		return Token{}, m.unsupported(ref.Name, usage)
	}
	return token, nil
}

func (m *Mapper) mapArray(ref metadata.TypeRef, usage Usage) (Token, error) {
	if usage == ArrayElement {
		return Token{}, diag.Newf(diag.ErrBinderNotFound, ref.String(), "arrays of arrays need a binder on %s", m.Table.Name)
	}
	elem, err := m.Map(*ref.Elem, ArrayElement, "")
	if err != nil {
		return Token{}, err
	}
	token := Token{Kind: KindArray, Usage: usage, Prim: elem.Prim, Elem: &elem}
	if usage == Value && elem.Kind != KindBinder && elem.Kind != KindDelegate {
		if typed, ok := m.Table.TypedArrays[elem.Prim]; ok {
			token.Name = typed
			return token, nil
		}
	}

	// Tables without a generic pattern only pass flat primitive buffers.
	pattern, ok := m.Table.Arrays[usage]
	if !ok {
		return Token{}, diag.Newf(diag.ErrBinderNotFound, ref.String(), "no %s array convention for %s elements on %s", usage, elem.Name, m.Table.Name)
	}
	token.Name = pattern
	if strings.Contains(pattern, "%s") {
		token.Name = fmt.Sprintf(pattern, elem.Name)
	}
	return token, nil
}

func (m *Mapper) unsupported(subject string, usage Usage) error {
	return diag.Newf(diag.ErrUnsupportedTypeMapping, subject, "no %s entry on %s", usage, m.Table.Name)
}

// Index is a Resolver over a flat set of descriptors.
type Index map[string]*metadata.TypeDescriptor

// NewIndex indexes every declaration of c, nested ones included. The first
// declaration site of a partial type wins.
func NewIndex(c *metadata.Compilation) Index {
	index := make(Index)
	c.Walk(func(t *metadata.TypeDescriptor) bool {
		if _, seen := index[t.QualifiedName()]; !seen {
			index[t.QualifiedName()] = t
		}
		return true
	})
	return index
}

func (i Index) Lookup(qualifiedName string) (*metadata.TypeDescriptor, bool) {
	t, ok := i[qualifiedName]
	return t, ok
}
