package typemap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

var testTable = &Table{
	Name: "test",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool: "bool", metadata.Int8: "i8", metadata.UInt8: "u8",
		metadata.Int16: "i16", metadata.UInt16: "u16", metadata.Int32: "i32",
		metadata.UInt32: "u32", metadata.Int64: "i64", metadata.UInt64: "u64",
		metadata.Float32: "f32", metadata.Float64: "f64", metadata.Handle: "handle",
		metadata.String: "str",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool: "BoolBox", metadata.Int8: "I8Box", metadata.UInt8: "U8Box",
		metadata.Int16: "I16Box", metadata.UInt16: "U16Box", metadata.Int32: "I32Box",
		metadata.UInt32: "U32Box", metadata.Int64: "I64Box", metadata.UInt64: "U64Box",
		metadata.Float32: "F32Box", metadata.Float64: "F64Box", metadata.String: "StrBox",
	},
	StructHandle: "struct_handle",
	ObjectHandle: "object_handle",
	Delegate:     "callback",
	Arrays: map[Usage]string{
		Value:  "%s*",
		Return: "Vec<%s>",
	},
	TypedArrays: map[metadata.Primitive]string{metadata.Float32: "Float32Array"},
}

func testMapper() *Mapper {
	c := &metadata.Compilation{Types: []*metadata.TypeDescriptor{
		{Namespace: "Demo", Name: "Color", Kind: metadata.KindEnum, Underlying: metadata.UInt8},
		{Namespace: "Demo", Name: "Mode", Kind: metadata.KindEnum},
		{Namespace: "Demo", Name: "Point", Kind: metadata.KindStruct},
		{Namespace: "Demo", Name: "Widget", Kind: metadata.KindClass},
		{Namespace: "Demo", Name: "OnDone", Kind: metadata.KindDelegate},
		{Namespace: "Demo", Name: "Blob", Kind: metadata.KindClass, Attributes: []metadata.Attribute{
			{Name: metadata.AttrNativeBinding, Args: []string{"NativeBlob"}},
		}},
	}}
	c.Link()
	return NewMapper(testTable, NewIndex(c))
}

func TestMapPrimitives(t *testing.T) {
	m := testMapper()

	t.Run("deterministic for every primitive and usage", func(t *testing.T) {
		for _, p := range metadata.Primitives() {
			for _, u := range Usages() {
				first, err1 := m.Map(metadata.PrimitiveRef(p), u, "")
				second, err2 := m.Map(metadata.PrimitiveRef(p), u, "")
				require.Equal(t, first, second, "%s/%s", p, u)
				require.Equal(t, err1, err2)
			}
		}
	})

	t.Run("by-ref boxes differ from values except handles", func(t *testing.T) {
		for _, p := range metadata.Primitives() {
			value, err := m.Map(metadata.PrimitiveRef(p), Value, "")
			require.NoError(t, err)
			boxed, err := m.Map(metadata.PrimitiveRef(p), ByRef, "")
			require.NoError(t, err)
			require.NotEqual(t, value.Name, boxed.Name, p.String())
		}
		boxed, err := m.Map(metadata.PrimitiveRef(metadata.Handle), ByRef, "")
		require.NoError(t, err)
		require.Equal(t, "I64Box", boxed.Name)
		require.Equal(t, KindHandleBox, boxed.Kind)
	})

	t.Run("missing entry is unsupported", func(t *testing.T) {
		table := *testTable
		table.Primitives = map[metadata.Primitive]string{}
		_, err := NewMapper(&table, nil).Map(metadata.PrimitiveRef(metadata.Int32), Value, "")
		require.ErrorIs(t, err, diag.ErrUnsupportedTypeMapping)
	})

	t.Run("void only as return", func(t *testing.T) {
		token, err := m.Map(metadata.TypeRef{}, Return, "")
		require.NoError(t, err)
		require.Equal(t, KindVoid, token.Kind)
		_, err = m.Map(metadata.TypeRef{}, Value, "")
		require.ErrorIs(t, err, diag.ErrUnsupportedTypeMapping)
	})
}

func TestMapNamed(t *testing.T) {
	m := testMapper()

	t.Run("enums use their underlying width", func(t *testing.T) {
		token, err := m.Map(metadata.NamedRef("Demo.Color"), Value, "")
		require.NoError(t, err)
		require.Equal(t, Token{Name: "u8", Kind: KindEnum, Usage: Value, Prim: metadata.UInt8, Type: token.Type}, token)

		token, err = m.Map(metadata.NamedRef("Demo.Color"), ByRef, "")
		require.NoError(t, err)
		require.Equal(t, "U8Box", token.Name)
		require.Equal(t, KindEnumBox, token.Kind)

		token, err = m.Map(metadata.NamedRef("Demo.Mode"), Return, "")
		require.NoError(t, err)
		require.Equal(t, "i32", token.Name)
	})

	t.Run("handles", func(t *testing.T) {
		for name, want := range map[string]string{
			"Demo.Point":  "struct_handle",
			"Demo.Widget": "object_handle",
			"Demo.OnDone": "callback",
		} {
			token, err := m.Map(metadata.NamedRef(name), Value, "")
			require.NoError(t, err)
			require.Equal(t, want, token.Name)
			require.Equal(t, metadata.Handle, token.Prim)
		}
	})

	t.Run("binder on the type or the call wins", func(t *testing.T) {
		token, err := m.Map(metadata.NamedRef("Demo.Blob"), Value, "")
		require.NoError(t, err)
		require.Equal(t, Token{Name: "NativeBlob", Kind: KindBinder, Usage: Value, Type: token.Type}, token)

		token, err = m.Map(metadata.PrimitiveRef(metadata.Int32), Value, "Custom")
		require.NoError(t, err)
		require.Equal(t, "Custom", token.Name)
	})

	t.Run("unknown type without binder", func(t *testing.T) {
		_, err := m.Map(metadata.NamedRef("Other.Thing"), Value, "")
		require.ErrorIs(t, err, diag.ErrUnsupportedTypeMapping)
		subject, _ := diag.SubjectOf(err)
		require.Equal(t, "Other.Thing", subject)
	})
}

func TestMapArrays(t *testing.T) {
	m := testMapper()

	token, err := m.Map(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32)), Value, "")
	require.NoError(t, err)
	require.Equal(t, "i32*", token.Name)
	require.Equal(t, "i32", token.Elem.Name)
	require.Equal(t, ArrayElement, token.Elem.Usage)

	token, err = m.Map(metadata.ArrayOf(metadata.NamedRef("Demo.Color")), Return, "")
	require.NoError(t, err)
	require.Equal(t, "Vec<u8>", token.Name)

	token, err = m.Map(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Float32)), Value, "")
	require.NoError(t, err)
	require.Equal(t, "Float32Array", token.Name)

	_, err = m.Map(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32)), ByRef, "")
	require.ErrorIs(t, err, diag.ErrBinderNotFound)

	_, err = m.Map(metadata.ArrayOf(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32))), Value, "")
	require.ErrorIs(t, err, diag.ErrBinderNotFound)

	token, err = m.Map(metadata.ArrayOf(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32))), Value, "Jagged")
	require.NoError(t, err)
	require.Equal(t, "Jagged", token.Name)

	t.Run("typed conventions only", func(t *testing.T) {
		table := *testTable
		table.Arrays = map[Usage]string{Return: "Vec<%s>"}
		table.TypedArrays = map[metadata.Primitive]string{
			metadata.Int32:  "Int32Buffer",
			metadata.UInt8:  "ByteBuffer",
			metadata.Handle: "HandleBuffer",
		}
		m := NewMapper(&table, testMapper().Types)

		token, err := m.Map(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32)), Value, "")
		require.NoError(t, err)
		require.Equal(t, "Int32Buffer", token.Name)

		token, err = m.Map(metadata.ArrayOf(metadata.NamedRef("Demo.Color")), Value, "")
		require.NoError(t, err)
		require.Equal(t, "ByteBuffer", token.Name)

		token, err = m.Map(metadata.ArrayOf(metadata.NamedRef("Demo.Widget")), Value, "")
		require.NoError(t, err)
		require.Equal(t, "HandleBuffer", token.Name)

		for _, elem := range []metadata.TypeRef{
			metadata.PrimitiveRef(metadata.String),
			metadata.PrimitiveRef(metadata.Bool),
			metadata.NamedRef("Demo.OnDone"),
			metadata.NamedRef("Demo.Blob"),
		} {
			_, err := m.Map(metadata.ArrayOf(elem), Value, "")
			require.ErrorIs(t, err, diag.ErrBinderNotFound, elem.String())
		}

		token, err = m.Map(metadata.ArrayOf(metadata.PrimitiveRef(metadata.String)), Return, "")
		require.NoError(t, err)
		require.Equal(t, "Vec<str>", token.Name)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	m := testMapper()
	cases := map[metadata.Primitive][]any{
		metadata.Int8:    {int8(0), int8(1), int8(math.MaxInt8), int8(math.MinInt8)},
		metadata.UInt8:   {uint8(0), uint8(1), uint8(math.MaxUint8)},
		metadata.Int16:   {int16(0), int16(1), int16(math.MaxInt16), int16(math.MinInt16)},
		metadata.UInt16:  {uint16(0), uint16(1), uint16(math.MaxUint16)},
		metadata.Int32:   {int32(0), int32(1), int32(math.MaxInt32), int32(math.MinInt32)},
		metadata.UInt32:  {uint32(0), uint32(1), uint32(math.MaxUint32)},
		metadata.Int64:   {int64(0), int64(1), int64(math.MaxInt64), int64(math.MinInt64)},
		metadata.UInt64:  {uint64(0), uint64(1), uint64(math.MaxUint64)},
		metadata.Bool:    {false, true},
		metadata.Float32: {float32(0), float32(-1.5), float32(math.MaxFloat32)},
		metadata.Float64: {float64(0), math.SmallestNonzeroFloat64, -math.MaxFloat64},
		metadata.Handle:  {uintptr(0), uintptr(0xdeadbeef)},
		metadata.String:  {"", "héllo, world"},
	}

	for prim, values := range cases {
		ref := metadata.PrimitiveRef(prim)
		for _, v := range values {
			slot, err := m.Marshal(ref, v)
			require.NoError(t, err, "%s %v", prim, v)
			back, err := m.Unmarshal(ref, slot)
			require.NoError(t, err, "%s %v", prim, v)
			require.Equal(t, v, back, prim.String())
		}
	}

	t.Run("signed values are sign extended", func(t *testing.T) {
		slot, err := m.Marshal(metadata.PrimitiveRef(metadata.Int8), int8(-1))
		require.NoError(t, err)
		require.Equal(t, uint64(math.MaxUint64), slot.Bits)
	})

	t.Run("arrays", func(t *testing.T) {
		ref := metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32))
		for _, v := range [][]any{{}, {int32(1), int32(-2), int32(math.MaxInt32)}} {
			slot, err := m.Marshal(ref, v)
			require.NoError(t, err)
			back, err := m.Unmarshal(ref, slot)
			require.NoError(t, err)
			require.Equal(t, v, back)
		}
	})

	t.Run("enums cross as their underlying integer", func(t *testing.T) {
		slot, err := m.Marshal(metadata.NamedRef("Demo.Color"), uint8(200))
		require.NoError(t, err)
		back, err := m.Unmarshal(metadata.NamedRef("Demo.Color"), slot)
		require.NoError(t, err)
		require.Equal(t, uint8(200), back)
	})

	t.Run("out of range images are rejected", func(t *testing.T) {
		_, err := m.Unmarshal(metadata.PrimitiveRef(metadata.UInt8), Slot{Bits: 256})
		require.Error(t, err)
		_, err = m.Unmarshal(metadata.PrimitiveRef(metadata.Int16), Slot{Bits: 0x8000})
		require.Error(t, err)
		_, err = m.Unmarshal(metadata.PrimitiveRef(metadata.Bool), Slot{Bits: 2})
		require.Error(t, err)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := m.Marshal(metadata.PrimitiveRef(metadata.Int32), int64(1))
		require.Error(t, err)
	})
}
