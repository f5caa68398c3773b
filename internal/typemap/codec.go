package typemap

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

// Slot is the native representation of a value at the boundary: scalars in a
// 64-bit register image, strings as UTF-8 bytes, arrays as element slots.
type Slot struct {
	Bits  uint64
	Bytes []byte
	Elems []Slot
}

// Marshal converts a Go value into its boundary slot. Scalars use the Go type
// matching the primitive (int32 for Int32, uintptr for Handle); arrays are []any.
// Signed integers are sign-extended into Bits.
func (m *Mapper) Marshal(ref metadata.TypeRef, v any) (Slot, error) {
	if ref.IsArray() {
		elems, ok := v.([]any)
		if !ok {
			return Slot{}, fmt.Errorf("%s: expected []any, got %T", ref, v)
		}
		slot := Slot{Bits: uint64(len(elems)), Elems: make([]Slot, len(elems))}
		for i, elem := range elems {
			s, err := m.Marshal(*ref.Elem, elem)
			if err != nil {
				return Slot{}, fmt.Errorf("%s[%d]: %w", ref, i, err)
			}
			slot.Elems[i] = s
		}
		return slot, nil
	}

	prim, err := m.boundaryPrimitive(ref)
	if err != nil {
		return Slot{}, err
	}
	switch x := v.(type) {
	case bool:
		if prim == metadata.Bool {
			if x {
				return Slot{Bits: 1}, nil
			}
			return Slot{}, nil
		}
	case int8:
		if prim == metadata.Int8 {
			return Slot{Bits: uint64(int64(x))}, nil
		}
	case uint8:
		if prim == metadata.UInt8 {
			return Slot{Bits: uint64(x)}, nil
		}
	case int16:
		if prim == metadata.Int16 {
			return Slot{Bits: uint64(int64(x))}, nil
		}
	case uint16:
		if prim == metadata.UInt16 {
			return Slot{Bits: uint64(x)}, nil
		}
	case int32:
		if prim == metadata.Int32 {
			return Slot{Bits: uint64(int64(x))}, nil
		}
	case uint32:
		if prim == metadata.UInt32 {
			return Slot{Bits: uint64(x)}, nil
		}
	case int64:
		if prim == metadata.Int64 {
			return Slot{Bits: uint64(x)}, nil
		}
	case uint64:
		if prim == metadata.UInt64 {
			return Slot{Bits: x}, nil
		}
	case float32:
		if prim == metadata.Float32 {
			return Slot{Bits: uint64(math.Float32bits(x))}, nil
		}
	case float64:
		if prim == metadata.Float64 {
			return Slot{Bits: math.Float64bits(x)}, nil
		}
	case uintptr:
		if prim == metadata.Handle {
			return Slot{Bits: uint64(x)}, nil
		}
	case string:
		if prim == metadata.String {
			if !utf8.ValidString(x) {
				return Slot{}, fmt.Errorf("%s: string is not valid UTF-8", ref)
			}
			return Slot{Bits: uint64(len(x)), Bytes: []byte(x)}, nil
		}
	}
	return Slot{}, fmt.Errorf("%s: cannot marshal %T", ref, v)
}

// Unmarshal is the inverse of Marshal. Bits outside the width of the primitive
// are an error.
func (m *Mapper) Unmarshal(ref metadata.TypeRef, slot Slot) (any, error) {
	if ref.IsArray() {
		if uint64(len(slot.Elems)) != slot.Bits {
			return nil, fmt.Errorf("%s: length %d does not match %d elements", ref, slot.Bits, len(slot.Elems))
		}
		out := make([]any, len(slot.Elems))
		for i, elem := range slot.Elems {
			v, err := m.Unmarshal(*ref.Elem, elem)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", ref, i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	prim, err := m.boundaryPrimitive(ref)
	if err != nil {
		return nil, err
	}
	bits := slot.Bits
	if prim.IsInteger() {
		if err := checkWidth(prim, bits); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
	}
	switch prim {
	case metadata.Bool:
		if bits > 1 {
			return nil, fmt.Errorf("%s: %#x is not a boolean", ref, bits)
		}
		return bits == 1, nil
	case metadata.Int8:
		return int8(bits), nil
	case metadata.UInt8:
		return uint8(bits), nil
	case metadata.Int16:
		return int16(bits), nil
	case metadata.UInt16:
		return uint16(bits), nil
	case metadata.Int32:
		return int32(bits), nil
	case metadata.UInt32:
		return uint32(bits), nil
	case metadata.Int64:
		return int64(bits), nil
	case metadata.UInt64:
		return bits, nil
	case metadata.Float32:
		if bits > math.MaxUint32 {
			return nil, fmt.Errorf("%s: %#x overflows 32 bits", ref, bits)
		}
		return math.Float32frombits(uint32(bits)), nil
	case metadata.Float64:
		return math.Float64frombits(bits), nil
	case metadata.Handle:
		return uintptr(bits), nil
	case metadata.String:
		if uint64(len(slot.Bytes)) != bits {
			return nil, fmt.Errorf("%s: length %d does not match %d bytes", ref, bits, len(slot.Bytes))
		}
		if !utf8.Valid(slot.Bytes) {
			return nil, fmt.Errorf("%s: string is not valid UTF-8", ref)
		}
		return string(slot.Bytes), nil
	}
	return nil, diag.Newf(diag.ErrUnsupportedTypeMapping, ref.String(), "no boundary representation")
}

// checkWidth verifies that bits is a valid image of a value of prim: zero
// extended for unsigned kinds, sign extended for signed ones.
func checkWidth(prim metadata.Primitive, bits uint64) error {
	width := prim.Bits()
	if width == 64 {
		return nil
	}
	if prim.Signed() {
		v := int64(bits)
		lo, hi := -(int64(1) << (width - 1)), int64(1)<<(width-1)-1
		if v < lo || v > hi {
			return fmt.Errorf("%#x is not a sign-extended %s", bits, prim)
		}
		return nil
	}
	if bits>>width != 0 {
		return fmt.Errorf("%#x overflows %s", bits, prim)
	}
	return nil
}

// boundaryPrimitive resolves what actually crosses the boundary for ref: the
// primitive itself, the underlying integer of enums, a handle for other
// named types.
func (m *Mapper) boundaryPrimitive(ref metadata.TypeRef) (metadata.Primitive, error) {
	if !ref.IsNamed() {
		if ref.IsVoid() {
			return metadata.NotPrimitive, diag.Newf(diag.ErrUnsupportedTypeMapping, ref.String(), "void has no value")
		}
		return ref.Primitive, nil
	}
	var descriptor *metadata.TypeDescriptor
	if m.Types != nil {
		descriptor, _ = m.Types.Lookup(ref.Name)
	}
	if descriptor == nil {
		return metadata.NotPrimitive, diag.Newf(diag.ErrUnsupportedTypeMapping, ref.Name, "type is not defined in the compilation")
	}
	if descriptor.Kind == metadata.KindEnum {
		if descriptor.Underlying == metadata.NotPrimitive {
			return metadata.Int32, nil
		}
		return descriptor.Underlying, nil
	}
	return metadata.Handle, nil
}
