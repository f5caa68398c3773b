// Package jni renders a Java binding: Java enums, handle classes and
// functional interfaces, one class of static native methods per module, and
// the C++ trampolines that forward each JNI entry point to the native symbol.
package jni

import (
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var log = commonlog.GetLogger("codebinder.backend.jni")

// Table is the JNI spelling used by the C++ trampolines. By-ref values travel
// as one-element Java arrays.
var Table = &typemap.Table{
	Name: "jni",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool:    "jboolean",
		metadata.Int8:    "jbyte",
		metadata.UInt8:   "jbyte",
		metadata.Int16:   "jshort",
		metadata.UInt16:  "jshort",
		metadata.Int32:   "jint",
		metadata.UInt32:  "jint",
		metadata.Int64:   "jlong",
		metadata.UInt64:  "jlong",
		metadata.Float32: "jfloat",
		metadata.Float64: "jdouble",
		metadata.Handle:  "jlong",
		metadata.String:  "jstring",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool:    "jbooleanArray",
		metadata.Int8:    "jbyteArray",
		metadata.UInt8:   "jbyteArray",
		metadata.Int16:   "jshortArray",
		metadata.UInt16:  "jshortArray",
		metadata.Int32:   "jintArray",
		metadata.UInt32:  "jintArray",
		metadata.Int64:   "jlongArray",
		metadata.UInt64:  "jlongArray",
		metadata.Float32: "jfloatArray",
		metadata.Float64: "jdoubleArray",
	},
	StructHandle: "jlong",
	ObjectHandle: "jlong",
	Delegate:     "jobject",
	TypedArrays: map[metadata.Primitive]string{
		metadata.Bool:    "jbooleanArray",
		metadata.Int8:    "jbyteArray",
		metadata.UInt8:   "jbyteArray",
		metadata.Int16:   "jshortArray",
		metadata.UInt16:  "jshortArray",
		metadata.Int32:   "jintArray",
		metadata.UInt32:  "jintArray",
		metadata.Int64:   "jlongArray",
		metadata.UInt64:  "jlongArray",
		metadata.Float32: "jfloatArray",
		metadata.Float64: "jdoubleArray",
		metadata.Handle:  "jlongArray",
	},
}

// JavaTable is the spelling of the Java native declarations.
var JavaTable = &typemap.Table{
	Name: "java",
	Void: "void",
	Primitives: map[metadata.Primitive]string{
		metadata.Bool:    "boolean",
		metadata.Int8:    "byte",
		metadata.UInt8:   "byte",
		metadata.Int16:   "short",
		metadata.UInt16:  "short",
		metadata.Int32:   "int",
		metadata.UInt32:  "int",
		metadata.Int64:   "long",
		metadata.UInt64:  "long",
		metadata.Float32: "float",
		metadata.Float64: "double",
		metadata.Handle:  "long",
		metadata.String:  "String",
	},
	Boxes: map[metadata.Primitive]string{
		metadata.Bool:    "boolean[]",
		metadata.Int8:    "byte[]",
		metadata.UInt8:   "byte[]",
		metadata.Int16:   "short[]",
		metadata.UInt16:  "short[]",
		metadata.Int32:   "int[]",
		metadata.UInt32:  "int[]",
		metadata.Int64:   "long[]",
		metadata.UInt64:  "long[]",
		metadata.Float32: "float[]",
		metadata.Float64: "double[]",
	},
	StructHandle: "long",
	ObjectHandle: "long",
	Delegate:     "Object",
	Arrays: map[typemap.Usage]string{
		typemap.Value: "%s[]",
	},
}

type Backend struct {
	opts backend.Options
}

func New(opts backend.Options) *Backend { return &Backend{opts: opts} }

func (b *Backend) Name() string { return "jni" }

func (b *Backend) Table() *typemap.Table { return Table }

// Package is the Java package of the generated classes: the configured one,
// else the lower-cased binding namespace.
func (b *Backend) Package(namespace string) string {
	if b.opts.Package != "" {
		return b.opts.Package
	}
	return strings.ToLower(namespace)
}

// NativeClass is the simple name of the class declaring the natives of module.
func NativeClass(module string) string { return backend.Pascal(module) + "Native" }

// JavaName flattens nested types: Demo.Core.Stream becomes Core_Stream.
func JavaName(td *metadata.TypeDescriptor) string { return backend.FlatName(td, "_") }

// JavaMethod is the Java name of a plan. Overloads share the method name and
// are told apart by the JVM through their descriptors.
func JavaMethod(plan *trampoline.Plan) string {
	if plan.Overloaded {
		return backend.Camel(plan.Method)
	}
	return backend.Camel(plan.NativeName)
}

// Mangle returns the JNI symbol of the plan's Java method, using the long form
// for overloads.
func (b *Backend) Mangle(namespace string, plan *trampoline.Plan) string {
	pkg := b.Package(namespace)
	class := pkg + "." + NativeClass(plan.Module)
	return trampoline.JNIName(class, JavaMethod(plan), paramDescriptors(pkg, plan), plan.Overloaded)
}

func (b *Backend) Render(env *backend.Env, ctx *conversion.Context) ([]conversion.Artifact, error) {
	pkg := b.Package(env.Options.Namespace)
	switch ctx.Kind {
	case conversion.KindCompilation:
		return renderRuntime(env), nil
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

// descriptor is the JVM type descriptor of a bridge token.
func descriptor(pkg string, token typemap.Token) string {
	switch token.Kind {
	case typemap.KindVoid:
		return "V"
	case typemap.KindBox, typemap.KindEnumBox:
		return "[" + primitiveDescriptor(token.Prim)
	case typemap.KindHandleBox:
		return "[J"
	case typemap.KindStruct, typemap.KindObject:
		return "J"
	case typemap.KindDelegate:
		return "L" + strings.ReplaceAll(pkg, ".", "/") + "/" + JavaName(token.Type) + ";"
	case typemap.KindArray:
		return "[" + descriptor(pkg, *token.Elem)
	case typemap.KindBinder:
		return "Ljava/lang/Object;"
	}
	return primitiveDescriptor(token.Prim)
}

func primitiveDescriptor(prim metadata.Primitive) string {
	switch prim {
	case metadata.Bool:
		return "Z"
	case metadata.Int8, metadata.UInt8:
		return "B"
	case metadata.Int16, metadata.UInt16:
		return "S"
	case metadata.Int32, metadata.UInt32:
		return "I"
	case metadata.Float32:
		return "F"
	case metadata.Float64:
		return "D"
	case metadata.String:
		return "Ljava/lang/String;"
	}
	return "J"
}

func paramDescriptors(pkg string, plan *trampoline.Plan) string {
	var b strings.Builder
	for _, p := range plan.Params {
		b.WriteString(descriptor(pkg, p.Bridge))
	}
	return b.String()
}

// MethodDescriptor is the full JVM descriptor of a plan, as RegisterNatives
// expects it.
func MethodDescriptor(pkg string, plan *trampoline.Plan) string {
	ret := "V"
	if plan.Result != nil {
		ret = descriptor(pkg, plan.Result.Bridge)
	}
	return "(" + paramDescriptors(pkg, plan) + ")" + ret
}
