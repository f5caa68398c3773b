package napi

import (
	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/clang"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

const runtimeHeader = "CBinderNapi.h"

var patterns = trampoline.Patterns{
	Unmarshal: map[trampoline.Conversion]string{
		trampoline.Direct:   "{native} {local} = cbinder::FromJs<{native}>(env, {name});",
		trampoline.String:   "cbinder::JsString {local}(env, {name});",
		trampoline.Box:      "cbinder::JsBox<{native}> {local}(env, {name});",
		trampoline.EnumBox:  "cbinder::JsBox<{native}> {local}(env, {name});",
		trampoline.Array:    "cbinder::JsArray {local}(env, {name});",
		trampoline.Delegate: "{native} {local} = cbinder::Reference(env, {name});",
	},
	WriteBack: map[trampoline.Conversion]string{
		trampoline.Box:     "{local}.Commit();",
		trampoline.EnumBox: "{local}.Commit();",
	},
	Invoke: "{result};",
	Finish: "return nullptr;",
	Remarshal: map[trampoline.Conversion]string{
		trampoline.Direct: "return cbinder::ToJs(env, {result});",
	},
}

func renderModule(env *backend.Env, module *conversion.ModuleNode) ([]conversion.Artifact, error) {
	plans, err := env.Plans(module)
	if err != nil {
		return nil, err
	}
	decls, err := renderDeclarations(env, module, plans)
	if err != nil {
		return nil, err
	}

	w := writer.New()
	w.WriteLn("#include <node_api.h>")
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
			w.WriteLnf("static napi_value %s(napi_env env, napi_callback_info info)", plan.ExportName)
			w.Block("{", "}", func() {
				if n := len(plan.Params); n > 0 {
					w.WriteLnf("size_t argc = %d;", n)
					w.WriteLnf("napi_value argv[%d];", n)
					w.WriteLn("napi_get_cb_info(env, info, &argc, argv, nullptr, nullptr);")
					for i, p := range plan.Params {
						w.WriteLnf("napi_value %s = argv[%d];", p.Name, i)
					}
				} else if plan.ImplVerbatim == "" {
					w.WriteLn("(void)info;")
				}
				w.WriteLn(trampoline.Render(plan, patterns)...)
			})
		})
	}

	w.WriteLn()
	w.WriteLnf("napi_value %s(napi_env env, napi_value exports)", InitFunction(module.Name))
	w.Block("{", "}", func() {
		w.Block("napi_property_descriptor properties[] = {", "};", func() {
			for _, entry := range trampoline.ExportTable(plans) {
				if entry.Plan.HeaderVerbatim != "" {
					continue
				}
				w.Condition(entry.Plan.Condition, func() {
					w.WriteLnf(`{ "%s", nullptr, %s, nullptr, nullptr, nullptr, napi_default, nullptr },`, ExportName(entry.Plan), entry.Name)
				})
			}
		})
		w.WriteLn("napi_define_properties(env, exports, sizeof(properties) / sizeof(properties[0]), properties);")
		w.WriteLn("return exports;")
	})

	log.Debugf("module %s: %d exports", module.Name, len(plans))
	return []conversion.Artifact{
		decls,
		backend.Artifact("cpp", backend.Pascal(module.Name)+".cpp", "//", w.String()),
	}, nil
}

func renderRuntime(env *backend.Env) []conversion.Artifact {
	addon := writer.New()
	addon.WriteLn("#include <node_api.h>")
	addon.WriteLn()
	for _, module := range env.Tree.Modules {
		addon.WriteLnf("napi_value %s(napi_env env, napi_value exports);", InitFunction(module.Name))
	}
	addon.WriteLn()
	addon.WriteLn("static napi_value Init(napi_env env, napi_value exports)")
	addon.Block("{", "}", func() {
		for _, module := range env.Tree.Modules {
			addon.WriteLnf("exports = %s(env, exports);", InitFunction(module.Name))
		}
		addon.WriteLn("return exports;")
	})
	addon.WriteLn()
	addon.WriteLn("NAPI_MODULE(NODE_GYP_MODULE_NAME, Init)")

	box := writer.New()
	box.Block("export interface Box<T> {", "}", func() {
		box.WriteLn("value: T;")
	})

	return []conversion.Artifact{
		backend.Artifact("cpp", runtimeHeader, "//", runtimeSource),
		backend.Artifact("cpp", "Addon.cpp", "//", addon.String()),
		backend.Artifact(tsDir, "Box.ts", "//", box.String()),
		renderIndex(env),
	}
}
