// Package cgo renders a Go binding built with jennifer: Go enums, handle
// wrappers and function types per type, and cgo trampolines per module.
package cgo

import (
	"bytes"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
)

var log = commonlog.GetLogger("codebinder.backend.cgo")

// Table spells the Go side. Boxes are pointers into Go memory; handles,
// enums and delegates are renamed after their Go types when rendered.
var Table = &typemap.Table{
	Name: "cgo",
	Void: "",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool:    "bool",
		metadata.Int8:    "int8",
		metadata.UInt8:   "uint8",
		metadata.Int16:   "int16",
		metadata.UInt16:  "uint16",
		metadata.Int32:   "int32",
		metadata.UInt32:  "uint32",
		metadata.Int64:   "int64",
		metadata.UInt64:  "uint64",
		metadata.Float32: "float32",
		metadata.Float64: "float64",
		metadata.Handle:  "unsafe.Pointer",
		metadata.String:  "string",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool:    "*bool",
		metadata.Int8:    "*int8",
		metadata.UInt8:   "*uint8",
		metadata.Int16:   "*int16",
		metadata.UInt16:  "*uint16",
		metadata.Int32:   "*int32",
		metadata.UInt32:  "*uint32",
		metadata.Int64:   "*int64",
		metadata.UInt64:  "*uint64",
		metadata.Float32: "*float32",
		metadata.Float64: "*float64",
	},
	StructHandle: "unsafe.Pointer",
	ObjectHandle: "unsafe.Pointer",
	Delegate:     "unsafe.Pointer",
	Arrays: map[typemap.Usage]string{
		typemap.Value: "[]%s",
	},
}

type Backend struct {
	opts backend.Options
}

func New(opts backend.Options) *Backend { return &Backend{opts: opts} }

func (b *Backend) Name() string { return "cgo" }

func (b *Backend) Table() *typemap.Table { return Table }

// Mangle returns the exported Go function name of a plan. Every module
// lands in the same package, so the module name leads.
func (b *Backend) Mangle(namespace string, plan *trampoline.Plan) string {
	return backend.Pascal(plan.Module) + backend.Pascal(plan.NativeName)
}

// Package is the Go package name: the configured one, else the lower-cased
// last namespace component.
func (b *Backend) Package(namespace string) string {
	if b.opts.Package != "" {
		return b.opts.Package
	}
	if i := strings.LastIndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return strings.ToLower(namespace)
}

func (b *Backend) Render(env *backend.Env, ctx *conversion.Context) ([]conversion.Artifact, error) {
	pkg := b.Package(env.Options.Namespace)
	switch ctx.Kind {
	case conversion.KindType:
		artifact, err := renderType(env, pkg, ctx.Type)
		if err != nil {
			return nil, err
		}
		return []conversion.Artifact{artifact}, nil
	case conversion.KindModule:
		return renderModule(env, pkg, ctx.Module)
	}
	return nil, nil
}

// GoName is the Go identifier of a type, unexported unless the type is
// reachable from outside the library.
func GoName(td *metadata.TypeDescriptor) string {
	name := backend.FlatName(td, "")
	if visibility.OfType(td) != visibility.Public {
		return backend.Camel(name)
	}
	return name
}

func constructor(td *metadata.TypeDescriptor) string {
	return "new" + backend.Pascal(backend.FlatName(td, ""))
}

func fileName(td *metadata.TypeDescriptor) string {
	return strings.ToLower(backend.FlatName(td, "_")) + ".go"
}

func goDir(pkg string) string { return "go/" + pkg }

func render(f *jen.File, pkg, name string) (conversion.Artifact, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return conversion.Artifact{}, err
	}
	return backend.Artifact(goDir(pkg), name, "//", buf.String()), nil
}
