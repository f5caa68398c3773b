// Package backendtest renders the demo compilation, or a one-module
// compilation built on the spot, through a backend for tests.
package backendtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata/metadatatest"
)

// Env builds the demo tree for b.
func Env(t *testing.T, b backend.Backend, opts backend.Options) *backend.Env {
	t.Helper()
	tree, err := conversion.Build(metadatatest.Demo(), b.Name())
	require.NoError(t, err)
	if opts.Namespace == "" {
		opts.Namespace = "Demo"
	}
	return backend.NewEnv(tree, b, opts)
}

// RenderAll renders every context of the demo tree and indexes the artifacts
// by relative path. Two artifacts sharing a path fail the test.
func RenderAll(t *testing.T, b backend.Backend, opts backend.Options) map[string]conversion.Artifact {
	t.Helper()
	env := Env(t, b, opts)
	out := make(map[string]conversion.Artifact)
	for _, ctx := range env.Tree.Contexts() {
		artifacts, err := b.Render(env, ctx)
		require.NoError(t, err, ctx.Name)
		for _, a := range artifacts {
			_, dup := out[a.RelPath()]
			require.False(t, dup, "duplicate artifact %s", a.RelPath())
			require.True(t, strings.Contains(a.Content(), backend.GeneratedBy), a.RelPath())
			out[a.RelPath()] = a
		}
	}
	return out
}

// Text returns the text of the artifact at relPath.
func Text(t *testing.T, artifacts map[string]conversion.Artifact, relPath string) string {
	t.Helper()
	a, ok := artifacts[relPath]
	require.True(t, ok, "missing artifact %s", relPath)
	return a.Text
}

// ModuleEnv builds a single-module tree named "M" whose module class "api"
// holds members, and returns it with the module node.
func ModuleEnv(t *testing.T, b backend.Backend, members ...*metadata.Member) (*backend.Env, *conversion.ModuleNode) {
	t.Helper()
	c := &metadata.Compilation{Name: "M", Types: []*metadata.TypeDescriptor{{
		Namespace:  "M",
		Name:       "Api",
		Kind:       metadata.KindClass,
		Access:     metadata.Public,
		Attributes: []metadata.Attribute{{Name: metadata.AttrModule, Args: []string{"api"}}},
		Members:    members,
	}}}
	c.Link()
	tree, err := conversion.Build(c, b.Name())
	require.NoError(t, err)
	require.Len(t, tree.Modules, 1)
	return backend.NewEnv(tree, b, backend.Options{Namespace: "M"}), tree.Modules[0]
}

// Native is a static native method with the given parameters.
func Native(name string, params ...metadata.Parameter) *metadata.Member {
	return &metadata.Member{Kind: metadata.MemberMethod, Name: name, Native: true, Static: true, Params: params}
}

// Param is shorthand for a parameter declaration.
func Param(name string, ref metadata.TypeRef) metadata.Parameter {
	return metadata.Parameter{Name: name, Type: ref}
}
