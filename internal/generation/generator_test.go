package generation

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata/metadatatest"
)

func TestGenerate(t *testing.T) {
	out := t.TempDir()
	generator := NewGenerator(metadatatest.Demo(), out)
	generator.Parallel = 2

	results, err := generator.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, results, len(Backends()))

	for _, rel := range []string{
		"clang/include/CBinder.h",
		"clang/include/Core.h",
		"clang/Core.def",
		"jni/cpp/Core.cpp",
		"napi/ts/core.d.ts",
		"objc/src/CBCoreNative.mm",
		"cgo/go/demo/core_native.go",
	} {
		_, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
	}

	content, err := os.ReadFile(filepath.Join(out, "clang", "Core.def"))
	require.NoError(t, err)
	require.Contains(t, string(content), backend.GeneratedBy)
	require.Contains(t, string(content), "Demo_core_Open")
}

func TestGenerateIsRepeatable(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	for _, out := range []string{first, second} {
		generator := NewGenerator(metadatatest.Demo(), out)
		generator.Backends = []string{"clang", "cgo"}
		_, err := generator.Generate(context.Background())
		require.NoError(t, err)
	}

	for _, rel := range []string{"clang/include/Core.h", "cgo/go/demo/access.go"} {
		a, err := os.ReadFile(filepath.Join(first, filepath.FromSlash(rel)))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, filepath.FromSlash(rel)))
		require.NoError(t, err)
		require.Equal(t, string(a), string(b), rel)
	}
}

func TestParallelRenderMatchesSequential(t *testing.T) {
	sequential := t.TempDir()
	generator := NewGenerator(metadatatest.Demo(), sequential)
	generator.Parallel = 1
	_, err := generator.Generate(context.Background())
	require.NoError(t, err)
	want := readTree(t, sequential)
	require.NotEmpty(t, want)

	for i := 0; i < 10; i++ {
		t.Run(fmt.Sprintf("run %d", i), func(t *testing.T) {
			out := t.TempDir()
			generator := NewGenerator(metadatatest.Demo(), out)
			generator.Parallel = 8
			_, err := generator.Generate(context.Background())
			require.NoError(t, err)
			require.Equal(t, want, readTree(t, out))
		})
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestFailingBackendDoesNotStopOthers(t *testing.T) {
	out := t.TempDir()
	generator := NewGenerator(metadatatest.Demo(), out)
	generator.Backends = []string{"clang", "objc"}
	generator.Options["clang"] = backend.Options{StrictVisibility: true}

	results, err := generator.Generate(context.Background())
	require.ErrorIs(t, err, diag.ErrUnreachableTypeReferenced)
	require.ErrorContains(t, err, "backend clang")

	require.Error(t, results[0].Err)
	require.Empty(t, results[0].Files)
	require.NoError(t, results[1].Err)
	require.NotEmpty(t, results[1].Files)

	_, err = os.Stat(filepath.Join(out, "clang"))
	require.True(t, os.IsNotExist(err))
}

func TestUnknownBackend(t *testing.T) {
	generator := NewGenerator(metadatatest.Demo(), t.TempDir())
	generator.Backends = []string{"cobol"}
	_, err := generator.Generate(context.Background())
	require.ErrorContains(t, err, `unknown backend "cobol"`)
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()
	a := conversion.Artifact{Path: "include/deep", Name: "X.h", Preamble: "// generated", Text: "int x;"}
	require.NoError(t, WriteFile(root, a))
	require.NoError(t, WriteFile(root, a))

	content, err := os.ReadFile(filepath.Join(root, "include", "deep", "X.h"))
	require.NoError(t, err)
	require.Equal(t, "// generated\n\nint x;\n", string(content))

	entries, err := os.ReadDir(filepath.Join(root, "include", "deep"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
