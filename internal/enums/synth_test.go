package enums

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

func values(pairs ...string) []metadata.EnumValue {
	var out []metadata.EnumValue
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, metadata.EnumValue{Name: pairs[i], Expr: pairs[i+1]})
	}
	return out
}

func memberValues(r *Result, synthesized bool) []int64 {
	var out []int64
	for _, m := range r.Members {
		if m.Synthesized == synthesized {
			out = append(out, m.Value)
		}
	}
	return out
}

func TestSynthesizeFlags(t *testing.T) {
	r, err := Synthesize("Demo.Access", metadata.Int32, true,
		values("None", "0", "Read", "1", "Write", "2", "Execute", "4", "ReadWrite", "Read | Write"))
	require.NoError(t, err)

	require.Equal(t, []int64{0, 1, 2, 4}, memberValues(r, false))
	require.Equal(t, []int64{3, 5, 6, 7}, memberValues(r, true))
	require.Equal(t, []Alias{{Name: "ReadWrite", Target: "_bitmask_3", Value: 3}}, r.Aliases)
	require.False(t, r.Ordinal)

	m, ok := r.FromValue(6)
	require.True(t, ok)
	require.Equal(t, "_bitmask_6", m.Name)
}

func TestSynthesizeFlagsKeepsDeclaredCombinations(t *testing.T) {
	r, err := Synthesize("Demo.Access", metadata.UInt8, true,
		values("Read", "0x1", "Write", "0x2", "All", "0x3"))
	require.NoError(t, err)
	require.Empty(t, memberValues(r, true))

	m, _ := r.FromValue(3)
	require.Equal(t, "All", m.Name)
}

func TestSynthesizeOrdinal(t *testing.T) {
	t.Run("implicit values are ordinal", func(t *testing.T) {
		r, err := Synthesize("Demo.Color", metadata.Int32, false, values("Red", "", "Green", "", "Blue", ""))
		require.NoError(t, err)
		require.True(t, r.Ordinal)

		m, ok := r.FromValue(1)
		require.True(t, ok)
		require.Equal(t, "Green", m.Name)

		_, ok = r.FromValue(3)
		require.False(t, ok)
	})

	t.Run("gaps are explicit", func(t *testing.T) {
		r, err := Synthesize("Demo.Sparse", metadata.Int32, false, values("Zero", "0", "Two", "2"))
		require.NoError(t, err)
		require.False(t, r.Ordinal)
	})

	t.Run("implicit values continue from the previous one", func(t *testing.T) {
		r, err := Synthesize("Demo.Level", metadata.Int16, false, values("Low", "-1", "Mid", "", "High", "10", "Top", ""))
		require.NoError(t, err)
		require.Equal(t, []int64{-1, 0, 10, 11}, memberValues(r, false))
	})
}

func TestSynthesizeAliases(t *testing.T) {
	t.Run("duplicates and symbolic values alias", func(t *testing.T) {
		r, err := Synthesize("Demo.Mode", metadata.UInt32, false,
			values("Off", "0", "On", "1u", "Enabled", "1", "Default", "Off"))
		require.NoError(t, err)
		require.Equal(t, []Alias{
			{Name: "Enabled", Target: "On", Value: 1},
			{Name: "Default", Target: "Off", Value: 0},
		}, r.Aliases)
		require.True(t, r.Ordinal)
	})

	t.Run("symbolic value without a canonical target", func(t *testing.T) {
		_, err := Synthesize("Demo.Mode", metadata.Int32, false, values("A", "1", "B", "2", "C", "A | B"))
		require.ErrorIs(t, err, diag.ErrMissingAliasTarget)
		subject, _ := diag.SubjectOf(err)
		require.Equal(t, "Demo.Mode.C", subject)
	})
}

func TestSynthesizeLiterals(t *testing.T) {
	r, err := Synthesize("Demo.Bits", metadata.UInt32, false,
		values("Hex", "0x10", "Bin", "0b101", "Long", "7L", "Shift", "1 << 8", "Mask", "~0u"))
	require.NoError(t, err)
	require.Equal(t, []int64{16, 5, 7, 256, 0xFFFFFFFF}, memberValues(r, false))
}

func TestSynthesizeErrors(t *testing.T) {
	t.Run("value out of range", func(t *testing.T) {
		_, err := Synthesize("Demo.Small", metadata.UInt8, false, values("Big", "256"))
		require.ErrorIs(t, err, diag.ErrInvalidEnumValue)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := Synthesize("Demo.Ref", metadata.Int32, false, values("A", "Missing + 1"))
		require.ErrorIs(t, err, diag.ErrInvalidEnumValue)
	})

	t.Run("too many flag bits", func(t *testing.T) {
		var raw []metadata.EnumValue
		for i := 0; i <= MaxFlagBits; i++ {
			raw = append(raw, metadata.EnumValue{Name: fmt.Sprintf("F%d", i), Expr: fmt.Sprintf("%#x", uint64(1)<<i)})
		}
		_, err := Synthesize("Demo.Wide", metadata.Int64, true, raw)
		require.ErrorIs(t, err, diag.ErrTooManyFlagBits)
	})
}

func TestFromDescriptor(t *testing.T) {
	c := &metadata.Compilation{Types: []*metadata.TypeDescriptor{{
		Namespace:  "Demo",
		Name:       "Access",
		Kind:       metadata.KindEnum,
		Attributes: []metadata.Attribute{{Name: "FlagsAttribute"}},
		Values:     values("Read", "1", "Write", "2"),
	}}}
	c.Link()

	r, err := FromDescriptor(c.Types[0])
	require.NoError(t, err)
	require.True(t, r.Flags)
	require.Equal(t, metadata.Int32, r.Underlying)
	require.Equal(t, "Demo.Access", r.Name)
	require.Equal(t, []int64{3}, memberValues(r, true))
}
