package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tliron/commonlog"
)

func TestClearDirectoryIfNotEmpty(t *testing.T) {
	fill := func(t *testing.T) string {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "clang", "include"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "clang", "include", "Core.h"), []byte("x"), 0o644))
		return dir
	}

	t.Run("empty directory is left alone", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, ClearDirectoryIfNotEmpty(t.TempDir(), false, strings.NewReader(""), &out))
		require.Empty(t, out.String())
	})

	t.Run("confirmed", func(t *testing.T) {
		dir := fill(t)
		var out bytes.Buffer
		require.NoError(t, ClearDirectoryIfNotEmpty(dir, false, strings.NewReader("y\n"), &out))
		require.Contains(t, out.String(), "Proceed?")
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("refused", func(t *testing.T) {
		dir := fill(t)
		err := ClearDirectoryIfNotEmpty(dir, false, strings.NewReader("n\n"), &bytes.Buffer{})
		require.ErrorContains(t, err, "agreement")
		_, err = os.Stat(filepath.Join(dir, "clang", "include", "Core.h"))
		require.NoError(t, err)
	})

	t.Run("silent", func(t *testing.T) {
		dir := fill(t)
		var out bytes.Buffer
		require.NoError(t, ClearDirectoryIfNotEmpty(dir, true, strings.NewReader(""), &out))
		require.Empty(t, out.String())
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestReadInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("CreateFileW\n\n# comment\n  CloseHandle  \n"), 0o644))
	names, err := readInputFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"CreateFileW", "CloseHandle"}, names)
}

func TestVerbosityUsage(t *testing.T) {
	usage := verbosityUsage()
	require.Equal(t, "Log verbosity: -1 warning, 0 notice, 1 info, 2 debug.", usage)
	require.Equal(t, commonlog.Notice, commonlog.VerbosityToMaxLevel(0))
	require.NotContains(t, usage, "0 warning")
}
