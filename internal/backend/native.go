package backend

import (
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

// NativeTable is the C spelling of the native ABI every bridge calls into.
var NativeTable = &typemap.Table{
	Name: "native",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool:    "cbbool",
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
		metadata.String:  "cbstring",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool:    "cbbool*",
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
		metadata.String:  "cbstring*",
	},
	StructHandle: "void*",
	ObjectHandle: "void*",
	Delegate:     "void*",
	Arrays: map[typemap.Usage]string{
		typemap.Value:  "cbarray",
		typemap.Return: "cbarray",
	},
}
