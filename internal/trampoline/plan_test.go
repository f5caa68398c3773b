package trampoline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata/metadatatest"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var cTable = &typemap.Table{
	Name: "c",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool: "bool", metadata.UInt8: "uint8_t", metadata.Int32: "int32_t",
		metadata.UInt32: "uint32_t", metadata.UInt64: "uint64_t", metadata.Float32: "float",
		metadata.Handle: "void*", metadata.String: "const char*",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Int32: "int32_t*", metadata.UInt32: "uint32_t*", metadata.Int64: "int64_t*",
	},
	StructHandle: "void*",
	ObjectHandle: "void*",
	Delegate:     "void*",
	Arrays:       map[typemap.Usage]string{typemap.Value: "%s*"},
}

var bridgeTable = &typemap.Table{
	Name: "bridge",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool: "jboolean", metadata.UInt8: "jbyte", metadata.Int32: "jint",
		metadata.UInt32: "jint", metadata.UInt64: "jlong", metadata.Float32: "jfloat",
		metadata.Handle: "jlong", metadata.String: "jstring",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Int32: "jobject", metadata.UInt32: "jobject", metadata.Int64: "jobject",
	},
	StructHandle: "jlong",
	ObjectHandle: "jlong",
	Delegate:     "jobject",
	Arrays:       map[typemap.Usage]string{typemap.Value: "%sArray"},
}

func synthesizer(tree *conversion.Tree) *Synthesizer {
	return &Synthesizer{
		Namespace: "Demo",
		Bridge:    typemap.NewMapper(bridgeTable, tree),
		Native:    typemap.NewMapper(cTable, tree),
		Mangle: func(namespace string, p *Plan) string {
			return JoinSymbol("x", p.Module, p.NativeName)
		},
	}
}

func exportNames(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestPlans(t *testing.T) {
	tree, err := conversion.Build(metadatatest.Demo(), "test")
	require.NoError(t, err)
	s := synthesizer(tree)

	plans, err := s.Plans(tree.Modules[0])
	require.NoError(t, err)

	t.Run("export table follows module order", func(t *testing.T) {
		require.Equal(t, []string{
			"x_core_Open",
			"x_core_Close",
			"x_core_SumInts",
			"x_core_SumFloats",
			"x_core_Read",
			"x_core_Version",
		}, exportNames(ExportTable(plans)))
	})

	t.Run("two signatures yield two distinct plans", func(t *testing.T) {
		ints, floats := plans[2], plans[3]
		require.True(t, ints.Overloaded)
		require.Equal(t, 1, floats.Index)
		require.Equal(t, "int32_t*", ints.Params[0].Native.Name)
		require.Equal(t, "float*", floats.Params[0].Native.Name)
		require.Equal(t, "float", floats.Result.Native.Name)
		require.Equal(t, "Demo_core_SumFloats", floats.NativeSymbol)
	})

	t.Run("conversions", func(t *testing.T) {
		open := plans[0]
		require.Equal(t, String, open.Params[0].Conversion)
		require.Equal(t, EnumBox, open.Params[1].Conversion)
		require.Equal(t, "uint32_t*", open.Params[1].Native.Name)
		require.Equal(t, Direct, open.Result.Conversion)

		require.Nil(t, plans[1].Result)

		read := plans[4]
		require.Equal(t, Array, read.Params[0].Conversion)
		require.Equal(t, Box, read.Params[1].Conversion)
		require.Equal(t, "CORE_HAS_VERSION", plans[5].Condition)
	})

	t.Run("media conversions and verbatim", func(t *testing.T) {
		media, err := s.Plans(tree.Modules[1])
		require.NoError(t, err)
		play := media[0]
		var got []Conversion
		for _, p := range play.Params {
			got = append(got, p.Conversion)
		}
		require.Equal(t, []Conversion{Object, Struct, Delegate, Enum}, got)

		stop := media[1]
		require.True(t, stop.HasVerbatim())
		require.Equal(t, []string{"/* stop is implemented by hand */"}, Render(stop, Patterns{}))
	})

	t.Run("deterministic", func(t *testing.T) {
		again, err := s.Plans(tree.Modules[0])
		require.NoError(t, err)
		require.Equal(t, exportNames(ExportTable(plans)), exportNames(ExportTable(again)))
	})
}

func moduleOf(t *testing.T, members ...*metadata.Member) (*conversion.Tree, *conversion.ModuleNode) {
	t.Helper()
	c := &metadata.Compilation{Name: "M", Types: []*metadata.TypeDescriptor{{
		Namespace:  "M",
		Name:       "Api",
		Kind:       metadata.KindClass,
		Attributes: []metadata.Attribute{{Name: metadata.AttrModule, Args: []string{"api"}}},
		Members:    members,
	}}}
	c.Link()
	tree, err := conversion.Build(c, "test")
	require.NoError(t, err)
	return tree, tree.Modules[0]
}

func nativeMethod(name string, attrs []metadata.Attribute, params ...metadata.Parameter) *metadata.Member {
	return &metadata.Member{Kind: metadata.MemberMethod, Name: name, Native: true, Static: true, Params: params, Attributes: attrs}
}

func TestExportTable(t *testing.T) {
	t.Run("three natives in order", func(t *testing.T) {
		tree, module := moduleOf(t, nativeMethod("A", nil), nativeMethod("B", nil), nativeMethod("C", nil))
		plans, err := synthesizer(tree).Plans(module)
		require.NoError(t, err)
		require.Equal(t, []string{"x_api_A", "x_api_B", "x_api_C"}, exportNames(ExportTable(plans)))
	})

	t.Run("unnamed overloads are indexed", func(t *testing.T) {
		sig := metadata.Attribute{Name: metadata.AttrSignature, Args: []string{"int32"}}
		tree, module := moduleOf(t, nativeMethod("F", []metadata.Attribute{sig, sig},
			metadata.Parameter{Name: "v", Type: metadata.PrimitiveRef(metadata.Int32)}))
		plans, err := synthesizer(tree).Plans(module)
		require.NoError(t, err)
		require.Equal(t, []string{"x_api_F_0", "x_api_F_1"}, exportNames(ExportTable(plans)))
	})

	t.Run("parameter count mismatch", func(t *testing.T) {
		sig := metadata.Attribute{Name: metadata.AttrSignature, Args: []string{"int32,int32"}}
		tree, module := moduleOf(t, nativeMethod("F", []metadata.Attribute{sig},
			metadata.Parameter{Name: "v", Type: metadata.PrimitiveRef(metadata.Int32)}))
		_, err := synthesizer(tree).Plans(module)
		require.ErrorIs(t, err, diag.ErrInvalidSignature)
		require.ErrorContains(t, err, "M.Api.F")
	})

	t.Run("unmappable parameter", func(t *testing.T) {
		tree, module := moduleOf(t, nativeMethod("G", nil,
			metadata.Parameter{Name: "v", Type: metadata.PrimitiveRef(metadata.Int16)}))
		_, err := synthesizer(tree).Plans(module)
		require.ErrorIs(t, err, diag.ErrUnsupportedTypeMapping)
		require.ErrorContains(t, err, "M.Api.G")
	})

	t.Run("parameter binder", func(t *testing.T) {
		tree, module := moduleOf(t, nativeMethod("H", nil, metadata.Parameter{
			Name:       "v",
			Type:       metadata.ArrayOf(metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32))),
			Attributes: []metadata.Attribute{{Name: metadata.AttrNativeBinding, Args: []string{"Matrix"}}},
		}))
		plans, err := synthesizer(tree).Plans(module)
		require.NoError(t, err)
		require.Equal(t, Binder, plans[0].Params[0].Conversion)
		require.Equal(t, "Matrix", plans[0].Params[0].Native.Name)
	})
}

func TestDuplicateNativeSymbol(t *testing.T) {
	build := func(t *testing.T, nested, extra []*metadata.Member) (*conversion.Tree, *conversion.ModuleNode) {
		t.Helper()
		module := []metadata.Attribute{{Name: metadata.AttrModule, Args: []string{"api"}}}
		c := &metadata.Compilation{Name: "M", Types: []*metadata.TypeDescriptor{
			{
				Namespace: "M", Name: "Api", Kind: metadata.KindClass, Attributes: module,
				Members: []*metadata.Member{nativeMethod("Open", nil)},
				Nested:  []*metadata.TypeDescriptor{{Name: "Stream", Kind: metadata.KindClass, Members: nested}},
			},
			{Namespace: "M", Name: "Extras", Kind: metadata.KindClass, Attributes: module, Members: extra},
		}}
		c.Link()
		tree, err := conversion.Build(c, "test")
		require.NoError(t, err)
		require.Len(t, tree.Modules, 1)
		return tree, tree.Modules[0]
	}

	t.Run("nested site", func(t *testing.T) {
		tree, module := build(t, []*metadata.Member{nativeMethod("Open", nil)}, nil)
		_, err := synthesizer(tree).Plans(module)
		require.ErrorIs(t, err, diag.ErrDuplicateSymbol)
		subject, ok := diag.SubjectOf(err)
		require.True(t, ok)
		require.Equal(t, "Demo_api_Open", subject)
	})

	t.Run("partial site", func(t *testing.T) {
		tree, module := build(t, nil, []*metadata.Member{nativeMethod("Open", nil)})
		_, err := synthesizer(tree).Plans(module)
		require.ErrorIs(t, err, diag.ErrDuplicateSymbol)
		require.ErrorContains(t, err, "M.Extras")
	})

	t.Run("distinct names", func(t *testing.T) {
		tree, module := build(t, []*metadata.Member{nativeMethod("Read", nil)}, []*metadata.Member{nativeMethod("Close", nil)})
		plans, err := synthesizer(tree).Plans(module)
		require.NoError(t, err)
		require.Len(t, plans, 3)
	})
}
