// Package backend holds what every target backend shares: the interface the
// generator drives, the native C type table all bridges call through, and the
// per-tree environment handed to renderers.
package backend

import (
	"fmt"
	"sync"

	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/enums"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
)

const GeneratedBy = "Code generated by codebinder. DO NOT EDIT."

// Backend renders the contexts of a conversion tree into artifacts.
type Backend interface {
	Name() string
	// Table is the bridge-side type table.
	Table() *typemap.Table
	// Mangle names the exported bridge entry point of a plan.
	Mangle(namespace string, plan *trampoline.Plan) string
	// Render returns the artifacts of one context. It must only read env.
	Render(env *Env, ctx *conversion.Context) ([]conversion.Artifact, error)
}

// Options are the per-run settings a backend sees.
type Options struct {
	Library   string
	Namespace string
	// Package is the target package (Java package, Go package).
	Package string
	// Prefix is prepended to generated type names where the target has no
	// namespaces.
	Prefix           string
	StrictVisibility bool
}

// Env bundles the read-only services of one backend over one tree.
type Env struct {
	Tree       *conversion.Tree
	Options    Options
	Bridge     *typemap.Mapper
	Native     *typemap.Mapper
	Visibility *visibility.Partitioner
	Synth      *trampoline.Synthesizer

	enumMu    sync.Mutex
	enumCache map[*metadata.TypeDescriptor]*enums.Result
}

func NewEnv(tree *conversion.Tree, b Backend, opts Options) *Env {
	if opts.Library == "" {
		opts.Library = tree.Compilation.Name
	}
	bridge := typemap.NewMapper(b.Table(), tree)
	native := typemap.NewMapper(NativeTable, tree)
	return &Env{
		Tree:       tree,
		Options:    opts,
		Bridge:     bridge,
		Native:     native,
		Visibility: &visibility.Partitioner{Types: tree, Strict: opts.StrictVisibility},
		Synth: &trampoline.Synthesizer{
			Namespace: opts.Namespace,
			Bridge:    bridge,
			Native:    native,
			Mangle:    b.Mangle,
		},
		enumCache: make(map[*metadata.TypeDescriptor]*enums.Result),
	}
}

// Enum synthesizes the members of an enum declaration once per environment.
func (e *Env) Enum(td *metadata.TypeDescriptor) (*enums.Result, error) {
	e.enumMu.Lock()
	defer e.enumMu.Unlock()
	if r, ok := e.enumCache[td]; ok {
		return r, nil
	}
	r, err := enums.FromDescriptor(td)
	if err != nil {
		return nil, err
	}
	e.enumCache[td] = r
	return r, nil
}

// Plans returns the trampoline plans of module.
func (e *Env) Plans(module *conversion.ModuleNode) ([]*trampoline.Plan, error) {
	return e.Synth.Plans(module)
}

// Members collects the native members of a module, for visibility checks.
func Members(module *conversion.ModuleNode) []*metadata.Member {
	var out []*metadata.Member
	for _, site := range module.Methods() {
		out = append(out, site.Method)
	}
	return out
}

// Variant returns the header variant a type is declared in.
func Variant(td *metadata.TypeDescriptor) visibility.Variant {
	if visibility.OfType(td) == visibility.Public {
		return visibility.VariantPublic
	}
	return visibility.VariantInternal
}

// Artifact builds an artifact with the generated-file preamble in the given
// line comment syntax.
func Artifact(dir, name, commentMarker, text string) conversion.Artifact {
	return conversion.Artifact{
		Path:     dir,
		Name:     name,
		Preamble: fmt.Sprintf("%s %s", commentMarker, GeneratedBy),
		Text:     text,
	}
}
