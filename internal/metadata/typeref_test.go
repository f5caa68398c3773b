package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTypeRef(t *testing.T) {
	t.Run("primitives accept language spellings", func(t *testing.T) {
		for text, want := range map[string]Primitive{
			"int":     Int32,
			"long":    Int64,
			"UInt16":  UInt16,
			"double":  Float64,
			"uintptr": Handle,
			"string":  String,
		} {
			ref, err := ParseTypeRef(text)
			require.NoError(t, err, text)
			require.Equal(t, want, ref.Primitive, text)
			require.False(t, ref.IsNamed())
		}
	})

	t.Run("named and nested arrays", func(t *testing.T) {
		ref, err := ParseTypeRef("Demo.Point[][]")
		require.NoError(t, err)
		require.True(t, ref.IsArray())
		require.True(t, ref.Elem.IsArray())
		require.True(t, ref.Elem.Elem.IsNamed())
		require.Equal(t, "Demo.Point[][]", ref.String())
	})

	t.Run("empty text is void", func(t *testing.T) {
		ref, err := ParseTypeRef("  ")
		require.NoError(t, err)
		require.True(t, ref.IsVoid())
		require.Equal(t, "void", TypeRef{}.String())
	})

	t.Run("rejects arrays of void and bad characters", func(t *testing.T) {
		_, err := ParseTypeRef("void[]")
		require.Error(t, err)
		_, err = ParseTypeRef("Demo.Point*")
		require.Error(t, err)
	})

	t.Run("text form round trips", func(t *testing.T) {
		in := ArrayOf(NamedRef("Demo.Color"))
		text, err := in.MarshalText()
		require.NoError(t, err)
		var out TypeRef
		require.NoError(t, out.UnmarshalText(text))
		require.Equal(t, in, out)
	})
}

func TestPrimitiveWidths(t *testing.T) {
	require.Equal(t, 64, Handle.Bits())
	require.Equal(t, 8, Bool.Bits())
	require.True(t, Int16.Signed())
	require.False(t, UInt16.Signed())
	require.False(t, Float32.IsInteger())
	require.NotContains(t, Primitives(), Void)
}

func TestAttribute(t *testing.T) {
	attr := Attribute{Name: "ModuleAttribute", Args: []string{"core"}, Named: map[string]string{"condition": "WIN32"}}
	require.True(t, attr.Is(AttrModule))
	require.True(t, attr.Is("module"))
	require.False(t, attr.Is(AttrFlags))

	name, ok := attr.Arg(0, "name")
	require.True(t, ok)
	require.Equal(t, "core", name)

	cond, ok := attr.Arg(1, "condition")
	require.True(t, ok)
	require.Equal(t, "WIN32", cond)

	_, ok = attr.Arg(2, "missing")
	require.False(t, ok)
}

func TestQualifiedName(t *testing.T) {
	inner := &TypeDescriptor{Name: "Inner"}
	outer := &TypeDescriptor{Namespace: "Demo", Name: "Outer", Nested: []*TypeDescriptor{inner}}
	c := &Compilation{Types: []*TypeDescriptor{outer}}
	c.Link()

	require.Equal(t, "Demo.Outer.Inner", inner.QualifiedName())
	require.Equal(t, outer, inner.Outer())
	require.Equal(t, "Demo", inner.NamespaceOf())

	var visited []string
	c.Walk(func(t *TypeDescriptor) bool {
		visited = append(visited, t.Name)
		return true
	})
	require.Equal(t, []string{"Outer", "Inner"}, visited)
}
