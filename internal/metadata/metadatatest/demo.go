// Package metadatatest provides a small compilation exercising every feature
// the generator supports, for use in tests.
package metadatatest

import "github.com/ceztko/CodeBinder-sub002/internal/metadata"

func attr(name string, args ...string) metadata.Attribute {
	return metadata.Attribute{Name: name, Args: args}
}

func named(name string, kv ...string) metadata.Attribute {
	a := metadata.Attribute{Name: name, Named: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Named[kv[i]] = kv[i+1]
	}
	return a
}

func param(name, typ string) metadata.Parameter {
	return metadata.Parameter{Name: name, Type: metadata.MustParseTypeRef(typ)}
}

func refParam(name, typ string) metadata.Parameter {
	p := param(name, typ)
	p.ByRef = true
	return p
}

func native(name, returns string, params ...metadata.Parameter) *metadata.Member {
	return &metadata.Member{
		Kind:    metadata.MemberMethod,
		Name:    name,
		Access:  metadata.Public,
		Static:  true,
		Native:  true,
		Params:  params,
		Returns: metadata.MustParseTypeRef(returns),
	}
}

// Demo returns a fresh, linked compilation named "Demo".
//
// Modules: "core" (declared by Demo.Core, its nested Demo.Core.Stream and the
// partial site Demo.Extras), "media" (Demo.Media) and "util"
// (Demo.Util.Helpers). Demo.Loose declares a native method outside any module.
func Demo() *metadata.Compilation {
	sum := native("Sum", "int32", param("values", "int32[]"))
	sum.Attributes = []metadata.Attribute{
		named(metadata.AttrSignature, "params", "int32[]", "name", "SumInts"),
		named(metadata.AttrSignature, "params", "float32[]", "returns", "float32", "name", "SumFloats"),
	}

	version := native("Version", "int32")
	version.Attributes = []metadata.Attribute{attr(metadata.AttrCondition, "CORE_HAS_VERSION")}

	stop := native("Stop", "void")
	stop.Attributes = []metadata.Attribute{
		named(metadata.AttrVerbatim, "text", "/* stop is implemented by hand */", "phase", "implementation"),
	}

	discarded := native("Internal", "void")
	discarded.Attributes = []metadata.Attribute{attr(metadata.AttrDiscard)}

	c := &metadata.Compilation{
		Name:    "Demo",
		Version: "1.2.0",
		Types: []*metadata.TypeDescriptor{
			{
				Namespace: "Demo", Name: "Color", Kind: metadata.KindEnum, Access: metadata.Public,
				Values: []metadata.EnumValue{{Name: "Red"}, {Name: "Green"}, {Name: "Blue"}},
			},
			{
				Namespace: "Demo", Name: "Access", Kind: metadata.KindEnum, Access: metadata.Public,
				Underlying: metadata.UInt32,
				Attributes: []metadata.Attribute{attr(metadata.AttrFlags)},
				Values: []metadata.EnumValue{
					{Name: "None", Expr: "0"},
					{Name: "Read", Expr: "1"},
					{Name: "Write", Expr: "2"},
					{Name: "Execute", Expr: "4"},
					{Name: "ReadWrite", Expr: "Read | Write"},
				},
			},
			{
				Namespace: "Demo", Name: "Point", Kind: metadata.KindStruct, Access: metadata.Public,
				Members: []*metadata.Member{
					{Kind: metadata.MemberField, Name: "X", Access: metadata.Public, Returns: metadata.PrimitiveRef(metadata.Int32)},
					{Kind: metadata.MemberField, Name: "Y", Access: metadata.Public, Returns: metadata.PrimitiveRef(metadata.Int32)},
				},
			},
			{Namespace: "Demo", Name: "Base", Kind: metadata.KindClass, Access: metadata.Public},
			{Namespace: "Demo", Name: "Secret", Kind: metadata.KindClass, Access: metadata.Internal},
			{
				Namespace: "Demo", Name: "Widget", Kind: metadata.KindClass, Access: metadata.Public,
				Bases: []metadata.TypeRef{metadata.NamedRef("Demo.Base"), metadata.NamedRef("System.Object")},
				Members: []*metadata.Member{
					{Kind: metadata.MemberMethod, Name: "Peek", Access: metadata.Public, Returns: metadata.NamedRef("Demo.Secret")},
					{
						Kind: metadata.MemberMethod, Name: "Move", Access: metadata.Public,
						Params: []metadata.Parameter{param("to", "Demo.Point")},
					},
				},
			},
			{
				Namespace: "Demo", Name: "OnDone", Kind: metadata.KindDelegate, Access: metadata.Public,
				Params:  []metadata.Parameter{param("code", "int32")},
				Returns: metadata.PrimitiveRef(metadata.Bool),
			},
			{
				Namespace: "Demo", Name: "Core", Kind: metadata.KindClass, Access: metadata.Public,
				Attributes: []metadata.Attribute{attr(metadata.AttrModule, "core"), attr(metadata.AttrImport, "core_impl.h")},
				Members: []*metadata.Member{
					native("Open", "handle", param("path", "string"), refParam("access", "Demo.Access")),
					native("Close", "void", param("handle", "handle")),
					sum,
					discarded,
				},
				Nested: []*metadata.TypeDescriptor{{
					Name: "Stream", Kind: metadata.KindClass, Access: metadata.Public,
					Members: []*metadata.Member{
						native("Read", "int32", param("buffer", "uint8[]"), refParam("count", "int32")),
					},
				}},
			},
			{
				Namespace: "Demo", Name: "Extras", Kind: metadata.KindClass, Access: metadata.Public,
				Attributes: []metadata.Attribute{attr(metadata.AttrModule, "core")},
				Members:    []*metadata.Member{version},
			},
			{
				Namespace: "Demo", Name: "Media", Kind: metadata.KindClass, Access: metadata.Public,
				Attributes: []metadata.Attribute{attr(metadata.AttrModule, "media"), attr(metadata.AttrImport, "media.h", "HAVE_MEDIA")},
				Members: []*metadata.Member{
					native("Play", "bool",
						param("widget", "Demo.Widget"),
						param("at", "Demo.Point"),
						param("done", "Demo.OnDone"),
						param("tint", "Demo.Color")),
					stop,
				},
			},
			{
				Namespace: "Demo", Name: "Loose", Kind: metadata.KindClass, Access: metadata.Public,
				Members: []*metadata.Member{native("Orphan", "void")},
			},
			{
				Namespace: "Demo.Util", Name: "Helpers", Kind: metadata.KindClass, Access: metadata.Public,
				Attributes: []metadata.Attribute{attr(metadata.AttrModule, "util")},
				Members:    []*metadata.Member{native("Hash", "uint64", param("data", "uint8[]"))},
			},
		},
	}
	c.Link()
	return c
}
