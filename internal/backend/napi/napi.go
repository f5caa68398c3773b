// Package napi renders a Node.js binding: TypeScript declarations of the
// compilation's types and of each module's exports, and the N-API C++
// trampolines with one export table per module.
package napi

import (
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var log = commonlog.GetLogger("codebinder.backend.napi")

const value = "napi_value"

// Table is the bridge side: every JavaScript value is a napi_value. Arrays
// cross only as typed arrays, so boolean and string elements have no
// convention.
var Table = &typemap.Table{
	Name:         "napi",
	Void:         "void",
	Primitives:   sameForAll(value),
	Boxes:        sameForAll(value, metadata.String),
	StructHandle: value,
	ObjectHandle: value,
	Delegate:     value,
	TypedArrays:  sameForAll(value, metadata.Bool, metadata.String),
}

// TSTable is the spelling of the TypeScript declarations. 64-bit integers and
// handles are bigints.
var TSTable = &typemap.Table{
	Name: "typescript",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool:    "boolean",
		metadata.Int8:    "number",
		metadata.UInt8:   "number",
		metadata.Int16:   "number",
		metadata.UInt16:  "number",
		metadata.Int32:   "number",
		metadata.UInt32:  "number",
		metadata.Int64:   "bigint",
		metadata.UInt64:  "bigint",
		metadata.Float32: "number",
		metadata.Float64: "number",
		metadata.Handle:  "bigint",
		metadata.String:  "string",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool:    "Box<boolean>",
		metadata.Int8:    "Box<number>",
		metadata.UInt8:   "Box<number>",
		metadata.Int16:   "Box<number>",
		metadata.UInt16:  "Box<number>",
		metadata.Int32:   "Box<number>",
		metadata.UInt32:  "Box<number>",
		metadata.Int64:   "Box<bigint>",
		metadata.UInt64:  "Box<bigint>",
		metadata.Float32: "Box<number>",
		metadata.Float64: "Box<number>",
	},
	StructHandle: "bigint",
	ObjectHandle: "bigint",
	Delegate:     "Function",
	Arrays: map[typemap.Usage]string{
		typemap.Value: "%s[]",
	},
	TypedArrays: map[metadata.Primitive]string{
		metadata.Int8:    "Int8Array",
		metadata.UInt8:   "Uint8Array",
		metadata.Int16:   "Int16Array",
		metadata.UInt16:  "Uint16Array",
		metadata.Int32:   "Int32Array",
		metadata.UInt32:  "Uint32Array",
		metadata.Int64:   "BigInt64Array",
		metadata.UInt64:  "BigUint64Array",
		metadata.Float32: "Float32Array",
		metadata.Float64: "Float64Array",
		metadata.Handle:  "BigUint64Array",
	},
}

func sameForAll(name string, except ...metadata.Primitive) map[metadata.Primitive]string {
	out := make(map[metadata.Primitive]string)
	for _, p := range metadata.Primitives() {
		out[p] = name
	}
	for _, p := range except {
		delete(out, p)
	}
	return out
}

type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "napi" }

func (b *Backend) Table() *typemap.Table { return Table }

func (b *Backend) Mangle(namespace string, plan *trampoline.Plan) string {
	return trampoline.JoinSymbol("NAPI", namespace, plan.Module, plan.NativeName)
}

// ExportName is the JavaScript property a plan is exported as.
func ExportName(plan *trampoline.Plan) string { return backend.Camel(plan.NativeName) }

// InitFunction is the C++ function adding the exports of module.
func InitFunction(module string) string { return "Init_" + trampoline.JoinSymbol(module) }

func (b *Backend) Render(env *backend.Env, ctx *conversion.Context) ([]conversion.Artifact, error) {
	switch ctx.Kind {
	case conversion.KindCompilation:
		return renderRuntime(env), nil
	case conversion.KindType:
		artifact, err := renderType(env, ctx.Type)
		if err != nil {
			return nil, err
		}
		return []conversion.Artifact{artifact}, nil
	case conversion.KindModule:
		return renderModule(env, ctx.Module)
	}
	return nil, nil
}

// TSName flattens nested types: Demo.Core.Stream becomes Core_Stream.
func TSName(td *metadata.TypeDescriptor) string { return backend.FlatName(td, "_") }

// tsLiteral spells an enum value; unsigned values are printed in their own
// width.
func tsLiteral(v int64, underlying metadata.Primitive) string {
	if underlying.Signed() {
		return strconv.FormatInt(v, 10)
	}
	u := uint64(v)
	if bits := underlying.Bits(); bits < 64 {
		u &= 1<<uint(bits) - 1
	}
	return strconv.FormatUint(u, 10)
}
