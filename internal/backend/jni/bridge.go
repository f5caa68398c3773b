package jni

import (
	"fmt"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/clang"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

const runtimeHeader = "CBinderJni.h"

var patterns = trampoline.Patterns{
	Unmarshal: map[trampoline.Conversion]string{
		trampoline.Direct:   "{native} {local} = ({native}){name};",
		trampoline.String:   "cbinder::JString {local}(env, {name});",
		trampoline.Box:      "cbinder::JBox<{native}> {local}(env, {name});",
		trampoline.EnumBox:  "cbinder::JBox<{native}> {local}(env, {name});",
		trampoline.Array:    "cbinder::JArray<{bridge}> {local}(env, {name});",
		trampoline.Struct:   "{native} {local} = reinterpret_cast<{native}>({name});",
		trampoline.Object:   "{native} {local} = reinterpret_cast<{native}>({name});",
		trampoline.Delegate: "{native} {local} = env->NewGlobalRef({name});",
	},
	WriteBack: map[trampoline.Conversion]string{
		trampoline.Box:     "{local}.Commit();",
		trampoline.EnumBox: "{local}.Commit();",
	},
	Invoke: "{result};",
	Remarshal: map[trampoline.Conversion]string{
		trampoline.Direct:   "return ({bridge}){result};",
		trampoline.String:   "return env->NewStringUTF({result});",
		trampoline.Struct:   "return reinterpret_cast<{bridge}>({result});",
		trampoline.Object:   "return reinterpret_cast<{bridge}>({result});",
		trampoline.Delegate: "return static_cast<{bridge}>({result});",
	},
}

// RegisterFunction is the C++ function registering the natives of module.
func RegisterFunction(module string) string {
	return "Register_" + trampoline.JoinSymbol(module)
}

func renderModule(env *backend.Env, pkg string, module *conversion.ModuleNode) ([]conversion.Artifact, error) {
	plans, err := env.Plans(module)
	if err != nil {
		return nil, err
	}
	java, err := renderNativeClass(env, pkg, module, plans)
	if err != nil {
		return nil, err
	}

	w := writer.New()
	w.WriteLn("#include <jni.h>")
	w.WriteLnf(`#include "%s"`, runtimeHeader)
	w.WriteLnf(`#include "%s"`, clang.ModuleHeader(module.Name))
	for _, imp := range module.Imports() {
		w.Condition(imp.Condition, func() {
			w.WriteLnf(`#include "%s"`, imp.Path)
		})
	}

	for _, plan := range plans {
		w.WriteLn()
		w.Condition(plan.Condition, func() {
			if plan.HeaderVerbatim != "" {
				w.Text(plan.HeaderVerbatim)
				return
			}
			w.WriteLn(signature(plan))
			w.Block("{", "}", func() {
				w.WriteLn(trampoline.Render(plan, patterns)...)
			})
		})
	}

	table := backend.Pascal(module.Name) + "Natives"
	class := strings.ReplaceAll(pkg, ".", "/") + "/" + NativeClass(module.Name)
	w.WriteLn()
	w.Block(fmt.Sprintf("static const JNINativeMethod %s[] = {", table), "};", func() {
		for _, entry := range trampoline.ExportTable(plans) {
			plan := entry.Plan
			if plan.HeaderVerbatim != "" {
				continue
			}
			w.Condition(plan.Condition, func() {
				w.WriteLnf(`{ const_cast<char*>("%s"), const_cast<char*>("%s"), reinterpret_cast<void*>(%s) },`,
					JavaMethod(plan), MethodDescriptor(pkg, plan), entry.Name)
			})
		}
	})
	w.WriteLn()
	w.WriteLnf("jint %s(JNIEnv* env)", RegisterFunction(module.Name))
	w.Block("{", "}", func() {
		w.WriteLnf(`jclass cls = env->FindClass("%s");`, class)
		w.WriteLn("if (cls == nullptr)")
		w.BlockStart()
		w.WriteLn("return JNI_ERR;")
		w.BlockEnd()
		w.WriteLnf("return env->RegisterNatives(cls, %s, sizeof(%s) / sizeof(%s[0]));", table, table, table)
	})

	log.Debugf("module %s: %d trampolines", module.Name, len(plans))
	return []conversion.Artifact{
		java,
		backend.Artifact("cpp", backend.Pascal(module.Name)+".cpp", "//", w.String()),
	}, nil
}

func signature(plan *trampoline.Plan) string {
	ret := "void"
	if plan.Result != nil {
		ret = plan.Result.Bridge.Name
	}
	params := []string{"JNIEnv* env", "jclass"}
	for _, p := range plan.Params {
		params = append(params, p.Bridge.Name+" "+p.Name)
	}
	return fmt.Sprintf(`extern "C" JNIEXPORT %s JNICALL %s(%s)`, ret, plan.ExportName, strings.Join(params, ", "))
}

func renderRuntime(env *backend.Env) []conversion.Artifact {
	load := writer.New()
	load.WriteLn("#include <jni.h>")
	load.WriteLn()
	for _, module := range env.Tree.Modules {
		load.WriteLnf("jint %s(JNIEnv* env);", RegisterFunction(module.Name))
	}
	load.WriteLn()
	load.WriteLn(`extern "C" JNIEXPORT jint JNICALL JNI_OnLoad(JavaVM* vm, void*)`)
	load.Block("{", "}", func() {
		load.WriteLn("JNIEnv* env;")
		load.WriteLn("if (vm->GetEnv(reinterpret_cast<void**>(&env), JNI_VERSION_1_6) != JNI_OK)")
		load.BlockStart()
		load.WriteLn("return JNI_ERR;")
		load.BlockEnd()
		for _, module := range env.Tree.Modules {
			load.WriteLnf("if (%s(env) != JNI_OK)", RegisterFunction(module.Name))
			load.BlockStart()
			load.WriteLn("return JNI_ERR;")
			load.BlockEnd()
		}
		load.WriteLn("return JNI_VERSION_1_6;")
	})

	return []conversion.Artifact{
		backend.Artifact("cpp", runtimeHeader, "//", runtimeSource),
		backend.Artifact("cpp", "OnLoad.cpp", "//", load.String()),
	}
}

const runtimeSource = `#ifndef CBINDER_JNI_H_
#define CBINDER_JNI_H_

#include <jni.h>
#include <cstring>
#include "CBinder.h"

namespace cbinder {

class JString
{
public:
    JString(JNIEnv* env, jstring str)
        : env_(env), str_(str), chars_(str == nullptr ? nullptr : env->GetStringUTFChars(str, nullptr)) { }
    ~JString()
    {
        if (chars_ != nullptr)
            env_->ReleaseStringUTFChars(str_, chars_);
    }
    operator cbstring() const { return chars_; }
private:
    JNIEnv* env_;
    jstring str_;
    const char* chars_;
};

template <typename T>
class JBox;

// JBox copies the single element of a Java array in and, on Commit, back out.
template <typename T>
class JBox<T*>
{
public:
    JBox(JNIEnv* env, jarray box)
        : env_(env), box_(box), value_()
    {
        if (box_ == nullptr)
            return;
        void* data = env_->GetPrimitiveArrayCritical(box_, nullptr);
        std::memcpy(&value_, data, sizeof(T));
        env_->ReleasePrimitiveArrayCritical(box_, data, JNI_ABORT);
    }
    operator T*() { return box_ == nullptr ? nullptr : &value_; }
    void Commit()
    {
        if (box_ == nullptr)
            return;
        void* data = env_->GetPrimitiveArrayCritical(box_, nullptr);
        std::memcpy(data, &value_, sizeof(T));
        env_->ReleasePrimitiveArrayCritical(box_, data, 0);
    }
private:
    JNIEnv* env_;
    jarray box_;
    T value_;
};

template <typename A>
struct JArrayElements;

#define CBINDER_ARRAY_ELEMENTS(Type, Name) \
template <> \
struct JArrayElements<Type##Array> \
{ \
    static void* Get(JNIEnv* env, Type##Array array) \
    { \
        return env->Get##Name##ArrayElements(array, nullptr); \
    } \
    static void Release(JNIEnv* env, Type##Array array, void* elements) \
    { \
        env->Release##Name##ArrayElements(array, static_cast<Type*>(elements), 0); \
    } \
};

CBINDER_ARRAY_ELEMENTS(jboolean, Boolean)
CBINDER_ARRAY_ELEMENTS(jbyte, Byte)
CBINDER_ARRAY_ELEMENTS(jshort, Short)
CBINDER_ARRAY_ELEMENTS(jint, Int)
CBINDER_ARRAY_ELEMENTS(jlong, Long)
CBINDER_ARRAY_ELEMENTS(jfloat, Float)
CBINDER_ARRAY_ELEMENTS(jdouble, Double)

#undef CBINDER_ARRAY_ELEMENTS

// JArray pins or copies the elements of a primitive Java array for the
// duration of the call. The other arguments stay free to make JNI calls,
// which a critical region would forbid.
template <typename A>
class JArray
{
public:
    JArray(JNIEnv* env, A array)
        : env_(env), array_(array), elements_(nullptr), length_(0)
    {
        if (array_ == nullptr)
            return;
        length_ = static_cast<size_t>(env_->GetArrayLength(array_));
        elements_ = JArrayElements<A>::Get(env_, array_);
    }
    ~JArray()
    {
        if (elements_ != nullptr)
            JArrayElements<A>::Release(env_, array_, elements_);
    }
    operator cbarray() const
    {
        cbarray ret = { elements_, length_ };
        return ret;
    }
private:
    JNIEnv* env_;
    A array_;
    void* elements_;
    size_t length_;
};
        return ret;
    }
private:
    JNIEnv* env_;
    jarray array_;
    void* elements_;
    size_t length_;
};

} // namespace cbinder

#endif // CBINDER_JNI_H_
`
