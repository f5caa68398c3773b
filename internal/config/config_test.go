package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[project]
name = "Demo"
namespace = "Demo"
requires = ">= 1.0, < 2.0"

[source]
kind = "winmd"
path = "Windows.Win32.winmd"
include = ["CreateFileW"]
nuget = "microsoft.windows.sdk.win32metadata"
nuget_version = "~> 60.0"

[output]
dir = "gen"
clean = true

[generation]
backends = ["clang", "jni"]
parallel = 4
strict_visibility = true

[backend.jni]
package = "com.example.demo"

[backend.objc]
prefix = "DM"
library = "DemoKit"
`)

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "Demo", c.Project.Name)
	require.Equal(t, SourceWinMd, c.Source.Kind)
	require.Equal(t, []string{"CreateFileW"}, c.Source.Include)
	require.Equal(t, "~> 60.0", c.Source.NugetVersion)
	require.Equal(t, filepath.Join(c.Dir, "Windows.Win32.winmd"), c.SourcePath())
	require.Equal(t, filepath.Join(c.Dir, "gen"), c.OutputPath())
	require.True(t, c.Output.Clean)
	require.Equal(t, []string{"clang", "jni"}, c.Generation.Backends)
	require.Equal(t, 4, c.Generation.Parallel)

	t.Run("backend options", func(t *testing.T) {
		jni := c.BackendOptions("jni")
		require.Equal(t, "com.example.demo", jni.Package)
		require.Equal(t, "Demo", jni.Library)
		require.Equal(t, "Demo", jni.Namespace)
		require.True(t, jni.StrictVisibility)

		objc := c.BackendOptions("objc")
		require.Equal(t, "DM", objc.Prefix)
		require.Equal(t, "DemoKit", objc.Library)

		require.Empty(t, c.BackendOptions("cgo").Package)
	})

	t.Run("requires", func(t *testing.T) {
		require.NoError(t, c.CheckRequires("1.2.0"))
		require.ErrorContains(t, c.CheckRequires("2.1.0"), "does not satisfy")
		require.ErrorContains(t, c.CheckRequires(""), "has no version")
		require.Error(t, c.CheckRequires("not-a-version"))
	})
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[project]\nname = \"minimal\"\n")

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, SourceModel, c.Source.Kind)
	require.Equal(t, "out", c.Output.Dir)
	require.NoError(t, c.CheckRequires(""))
}

func TestLoadInvalid(t *testing.T) {
	t.Run("source kind", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "[source]\nkind = \"idl\"\n")
		_, err := Load(dir)
		require.ErrorContains(t, err, `unknown source kind "idl"`)
	})

	t.Run("constraint", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "[project]\nrequires = \"at least one\"\n")
		_, err := Load(dir)
		require.ErrorContains(t, err, "project.requires")
	})

	t.Run("syntax", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "[project\n")
		_, err := Load(dir)
		require.ErrorContains(t, err, "parse error")
	})
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[project]\nname = \"found\"\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "found", c.Project.Name)

	none, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, none)
}
