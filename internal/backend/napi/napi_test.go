package napi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/backendtest"
	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

// exportNames reads the property names back from an init table.
func exportNames(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, `{ "`); ok {
			out = append(out, rest[:strings.Index(rest, `"`)])
		}
	}
	return out
}

func TestRender(t *testing.T) {
	artifacts := backendtest.RenderAll(t, New(), backend.Options{})

	t.Run("trampoline unpacks arguments and writes boxes back", func(t *testing.T) {
		text := backendtest.Text(t, artifacts, "cpp/Core.cpp")
		require.Contains(t, text, `static napi_value NAPI_Demo_core_Open(napi_env env, napi_callback_info info)
{
    size_t argc = 2;
    napi_value argv[2];
    napi_get_cb_info(env, info, &argc, argv, nullptr, nullptr);
    napi_value path = argv[0];
    napi_value access = argv[1];
    cbinder::JsString arg0(env, path);
    cbinder::JsBox<uint32_t*> arg1(env, access);
    void* result = Demo_core_Open(arg0, arg1);
    arg1.Commit();
    return cbinder::ToJs(env, result);
}`)
		require.Contains(t, text, "    Demo_core_Close(arg0);\n    return nullptr;\n}")
		require.Contains(t, text, "    (void)info;\n    return cbinder::ToJs(env, Demo_core_Version());\n}")
	})

	t.Run("export table in module order", func(t *testing.T) {
		text := backendtest.Text(t, artifacts, "cpp/Core.cpp")
		require.Equal(t, []string{"open", "close", "sumInts", "sumFloats", "read", "version"}, exportNames(text))
		require.Contains(t, text, "#ifdef CORE_HAS_VERSION\n        { \"version\", nullptr, NAPI_Demo_core_Version,")
		require.Contains(t, backendtest.Text(t, artifacts, "cpp/Addon.cpp"), "exports = Init_media(env, exports);")
	})

	t.Run("module declarations", func(t *testing.T) {
		require.Equal(t, `import { Access } from "./Access";
import { Box } from "./Box";

export declare function open(path: string, access: Box<Access>): bigint;
export declare function close(handle: bigint): void;
export declare function sumInts(values: Int32Array): number;
export declare function sumFloats(values: Float32Array): number;
export declare function read(buffer: Uint8Array, count: Box<number>): number;
/** Requires CORE_HAS_VERSION in the native library. */
export declare function version(): number;
`, backendtest.Text(t, artifacts, "ts/core.d.ts"))
		require.Contains(t, backendtest.Text(t, artifacts, "ts/media.d.ts"),
			"export declare function play(widget: bigint, at: bigint, done: OnDone, tint: Color): boolean;")
	})

	t.Run("types", func(t *testing.T) {
		access := backendtest.Text(t, artifacts, "ts/Access.ts")
		require.Contains(t, access, "    _bitmask_7 = 7,\n    ReadWrite = _bitmask_3,\n}")
		require.Equal(t, "import { Base } from \"./Base\";\n\nexport class Widget extends Base {\n}\n",
			backendtest.Text(t, artifacts, "ts/Widget.ts"))
		require.Contains(t, backendtest.Text(t, artifacts, "ts/Base.ts"), "constructor(readonly handle: bigint) {")
		require.Contains(t, backendtest.Text(t, artifacts, "ts/Secret.ts"), "/** @internal */\nexport class Secret {")
		require.Equal(t, "export type OnDone = (code: number) => boolean;\n", backendtest.Text(t, artifacts, "ts/OnDone.ts"))

		index := backendtest.Text(t, artifacts, "ts/index.ts")
		require.Contains(t, index, `export * from "./Core_Stream";`)
		require.NotContains(t, index, "Secret")
	})
}

func TestLiterals(t *testing.T) {
	require.Equal(t, "4294967295", tsLiteral(-1, metadata.UInt32))
	require.Equal(t, "255", tsLiteral(-1, metadata.UInt8))
	require.Equal(t, "-1", tsLiteral(-1, metadata.Int64))
	require.Equal(t, "18446744073709551615", tsLiteral(-1, metadata.UInt64))
}

func TestArraysNeedATypedArray(t *testing.T) {
	t.Run("numeric elements", func(t *testing.T) {
		env, module := backendtest.ModuleEnv(t, New(), backendtest.Native("Mix",
			backendtest.Param("samples", metadata.ArrayOf(metadata.PrimitiveRef(metadata.Float64)))))
		artifacts, err := renderModule(env, module)
		require.NoError(t, err)
		var text string
		for _, a := range artifacts {
			text += a.Text
		}
		require.Contains(t, text, "cbinder::JsArray arg0(env, samples);")
		require.Contains(t, text, "mix(samples: Float64Array): void;")
	})

	for _, prim := range []metadata.Primitive{metadata.Bool, metadata.String} {
		t.Run(prim.String()+" elements", func(t *testing.T) {
			env, module := backendtest.ModuleEnv(t, New(), backendtest.Native("Join",
				backendtest.Param("names", metadata.ArrayOf(metadata.PrimitiveRef(prim)))))
			_, err := renderModule(env, module)
			require.ErrorIs(t, err, diag.ErrBinderNotFound)
		})
	}
}
