// Package objc renders an Objective-C binding: wrapper classes, enums and
// block types per type, class extensions exposing the internal API, and one
// class of trampolines per module.
package objc

import (
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var log = commonlog.GetLogger("codebinder.backend.objc")

const (
	PublicDir     = "public"
	InternalDir   = "internal"
	SourceDir     = "src"
	DefaultPrefix = "CB"
)

// Table spells the Objective-C side. Handles, delegates and enums are renamed
// after their wrapper types when declared.
var Table = &typemap.Table{
	Name: "objc",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool:    "BOOL",
		metadata.Int8:    "int8_t",
		metadata.UInt8:   "uint8_t",
		metadata.Int16:   "int16_t",
		metadata.UInt16:  "uint16_t",
		metadata.Int32:   "int32_t",
		metadata.UInt32:  "uint32_t",
		metadata.Int64:   "int64_t",
		metadata.UInt64:  "uint64_t",
		metadata.Float32: "float",
		metadata.Float64: "double",
		metadata.Handle:  "void*",
		metadata.String:  "NSString*",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool:    "BOOL*",
		metadata.Int8:    "int8_t*",
		metadata.UInt8:   "uint8_t*",
		metadata.Int16:   "int16_t*",
		metadata.UInt16:  "uint16_t*",
		metadata.Int32:   "int32_t*",
		metadata.UInt32:  "uint32_t*",
		metadata.Int64:   "int64_t*",
		metadata.UInt64:  "uint64_t*",
		metadata.Float32: "float*",
		metadata.Float64: "double*",
	},
	StructHandle: "id",
	ObjectHandle: "id",
	Delegate:     "id",
	TypedArrays:  typedArrays(),
}

func typedArrays() map[metadata.Primitive]string {
	out := make(map[metadata.Primitive]string)
	for _, p := range metadata.Primitives() {
		if p != metadata.String {
			out[p] = "NSData*"
		}
	}
	return out
}

type Backend struct {
	opts backend.Options
}

func New(opts backend.Options) *Backend { return &Backend{opts: opts} }

func (b *Backend) Name() string { return "objc" }

func (b *Backend) Table() *typemap.Table { return Table }

// Mangle returns the selector of the class method a plan becomes.
func (b *Backend) Mangle(namespace string, plan *trampoline.Plan) string {
	name := backend.Camel(plan.NativeName)
	if len(plan.Params) == 0 {
		return name
	}
	var sel strings.Builder
	sel.WriteString(name + ":")
	for _, p := range plan.Params[1:] {
		sel.WriteString(p.Name + ":")
	}
	return sel.String()
}

func (b *Backend) Render(env *backend.Env, ctx *conversion.Context) ([]conversion.Artifact, error) {
	n := naming{prefix: env.Options.Prefix}
	if n.prefix == "" {
		n.prefix = DefaultPrefix
	}
	switch ctx.Kind {
	case conversion.KindCompilation:
		return renderUmbrellas(env, n), nil
	case conversion.KindType:
		return renderType(env, n, ctx.Type)
	case conversion.KindModule:
		return renderModule(env, n, ctx.Module)
	}
	return nil, nil
}

type naming struct {
	prefix string
}

func (n naming) class(td *metadata.TypeDescriptor) string {
	return n.prefix + backend.FlatName(td, "_")
}

func (n naming) module(module string) string {
	return n.prefix + backend.Pascal(module) + "Native"
}

// spelling renames handles, delegates and enums after their wrapper types.
func (n naming) spelling(token typemap.Token) string {
	switch token.Kind {
	case typemap.KindStruct, typemap.KindObject:
		return n.class(token.Type) + "*"
	case typemap.KindDelegate, typemap.KindEnum:
		return n.class(token.Type)
	case typemap.KindEnumBox:
		return n.class(token.Type) + "*"
	}
	return token.Name
}

// isWrapper reports whether td becomes an Objective-C class.
func isWrapper(td *metadata.TypeDescriptor) bool {
	return td.Kind == metadata.KindClass || td.Kind == metadata.KindStruct
}
