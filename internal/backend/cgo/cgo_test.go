package cgo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/backendtest"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

func TestRender(t *testing.T) {
	artifacts := backendtest.RenderAll(t, New(backend.Options{}), backend.Options{})

	t.Run("core functions", func(t *testing.T) {
		text := backendtest.Text(t, artifacts, "go/demo/core_native.go")
		require.Contains(t, text, "package demo")
		require.Contains(t, text, "#cgo LDFLAGS: -lDemo")
		require.Contains(t, text, `#include "Core.h"`)
		require.Contains(t, text, `import "C"`)

		require.Contains(t, text, "func CoreOpen(path string, access *Access) unsafe.Pointer {")
		require.Contains(t, text, "arg0 := C.CString(path)")
		require.Contains(t, text, "defer C.free(unsafe.Pointer(arg0))")
		require.Contains(t, text, "arg1 := (*C.Demo_Access)(unsafe.Pointer(access))")
		require.Contains(t, text, "return C.Demo_core_Open(arg0, arg1)")

		require.Contains(t, text, "func CoreClose(handle unsafe.Pointer) {")
		require.Contains(t, text, "arg0 := unsafe.Pointer(handle)")
		require.Contains(t, text, "C.Demo_core_Close(arg0)")

		require.Contains(t, text, "func CoreSumInts(values []int32) int32 {")
		require.Contains(t, text, "unsafe.Pointer(unsafe.SliceData(values))")
		require.Contains(t, text, "C.size_t(len(values))")
		require.Contains(t, text, "return int32(C.Demo_core_SumInts(arg0))")
		require.Contains(t, text, "return float32(C.Demo_core_SumFloats(arg0))")

		require.Contains(t, text, "func CoreRead(buffer []uint8, count *int32) int32 {")
		require.Contains(t, text, "arg1 := (*C.int32_t)(unsafe.Pointer(count))")
		require.NotContains(t, text, "CoreVersion")
	})

	t.Run("conditioned functions carry a build tag", func(t *testing.T) {
		a, ok := artifacts["go/demo/core_native_core_has_version.go"]
		require.True(t, ok)
		require.Regexp(t, `^// Code generated by codebinder\. DO NOT EDIT\.\n\n//go:build core_has_version\n`, a.Content())
		require.Contains(t, a.Text, "#cgo CFLAGS: -DCORE_HAS_VERSION")
		require.Contains(t, a.Text, "func CoreVersion() int32 {")
		require.Contains(t, a.Text, "return int32(C.Demo_core_Version())")
	})

	t.Run("media conversions", func(t *testing.T) {
		text := backendtest.Text(t, artifacts, "go/demo/media_native.go")
		require.Contains(t, text, "func MediaPlay(widget *Widget, at *Point, done OnDone, tint Color) bool {")
		require.Contains(t, text, "arg0 := widget.handle")
		require.Contains(t, text, "arg1 := at.handle")
		require.Contains(t, text, "arg2 := unsafe.Pointer(uintptr(cgo.NewHandle(done)))")
		require.Contains(t, text, "arg3 := C.Demo_Color(tint)")
		require.Contains(t, text, "return bool(C.Demo_media_Play(arg0, arg1, arg2, arg3))")
		require.Contains(t, text, "func MediaStop() {")
		require.Contains(t, text, "C.Demo_media_Stop()")
	})

	t.Run("util", func(t *testing.T) {
		text := backendtest.Text(t, artifacts, "go/demo/util_native.go")
		require.Contains(t, text, "func UtilHash(data []uint8) uint64 {")
		require.Contains(t, text, "return uint64(C.Demo_Util_util_Hash(arg0))")
	})

	t.Run("enums", func(t *testing.T) {
		text := backendtest.Text(t, artifacts, "go/demo/access.go")
		require.Contains(t, text, "type Access uint32")
		require.Regexp(t, `AccessRead\s+Access = 1\n`, text)
		require.Regexp(t, `Access_bitmask_3\s+Access = 3\n`, text)
		require.Regexp(t, `AccessReadWrite\s+= Access_bitmask_3\n`, text)
		require.Contains(t, text, "func (v Access) String() string {")
		require.Contains(t, text, "case AccessExecute:")
		require.Contains(t, text, `return "Execute"`)
		require.Contains(t, text, `return "Access(" + strconv.FormatUint(uint64(v), 10) + ")"`)

		color := backendtest.Text(t, artifacts, "go/demo/color.go")
		require.Contains(t, color, "type Color int32")
		require.Contains(t, color, "strconv.FormatInt(int64(v), 10)")
	})

	t.Run("wrappers", func(t *testing.T) {
		base := backendtest.Text(t, artifacts, "go/demo/base.go")
		require.Contains(t, base, "type Base struct {\n\thandle unsafe.Pointer\n}")
		require.Contains(t, base, "func newBase(handle unsafe.Pointer) *Base {")
		require.Contains(t, base, "func (b *Base) Handle() unsafe.Pointer {")

		widget := backendtest.Text(t, artifacts, "go/demo/widget.go")
		require.Contains(t, widget, "type Widget struct {\n\tBase\n}")
		require.Contains(t, widget, "return &Widget{Base: *newBase(handle)}")
		require.NotContains(t, widget, "Handle()")

		secret := backendtest.Text(t, artifacts, "go/demo/secret.go")
		require.Contains(t, secret, "type secret struct {")
		require.Contains(t, secret, "func newSecret(handle unsafe.Pointer) *secret {")

		require.Contains(t, backendtest.Text(t, artifacts, "go/demo/core_stream.go"), "type CoreStream struct {")
	})

	t.Run("delegates", func(t *testing.T) {
		require.Contains(t, backendtest.Text(t, artifacts, "go/demo/ondone.go"), "type OnDone func(code int32) bool")
	})
}

func TestPackage(t *testing.T) {
	artifacts := backendtest.RenderAll(t, New(backend.Options{Package: "demobind"}), backend.Options{Package: "demobind"})
	require.Contains(t, backendtest.Text(t, artifacts, "go/demobind/core_native.go"), "package demobind")
	require.Equal(t, "demo", New(backend.Options{}).Package("Demo"))
	require.Equal(t, "util", New(backend.Options{}).Package("Demo.Util"))
}

func TestStrictVisibility(t *testing.T) {
	b := New(backend.Options{})
	env := backendtest.Env(t, b, backend.Options{StrictVisibility: true})
	td, ok := env.Tree.Lookup("Demo.Widget")
	require.True(t, ok)
	// The package sees internal types; System.Object is external and skipped.
	artifact, err := renderType(env, "demo", td)
	require.NoError(t, err)
	require.Contains(t, artifact.Text, "type Widget struct {\n\tBase\n}")
}

func TestLiterals(t *testing.T) {
	require.Equal(t, "4294967295", goLiteral(-1, metadata.UInt32))
	require.Equal(t, "18446744073709551615", goLiteral(-1, metadata.UInt64))
	require.Equal(t, "-1", goLiteral(-1, metadata.Int16))
	require.Equal(t, "type_", identifier("type"))
	require.Equal(t, "count", identifier("count"))
}
