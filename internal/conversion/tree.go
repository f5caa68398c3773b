// Package conversion groups Source Model declarations into the contexts a
// backend renders: one frozen tree per backend and compilation.
package conversion

import (
	"path"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var log = commonlog.GetLogger("codebinder.conversion")

type ContextKind int

const (
	KindCompilation ContextKind = iota
	KindNamespace
	KindType
	KindModule
)

var contextKindNames = []string{"compilation", "namespace", "type", "module"}

func (k ContextKind) String() string { return contextKindNames[k] }

// Context is one node of a conversion tree.
type Context struct {
	Kind ContextKind
	// Name is the compilation name, the namespace, the qualified type name or
	// the module name.
	Name     string
	Type     *metadata.TypeDescriptor
	Markers  Markers
	Module   *ModuleNode
	Children []*Context

	parent *Context
}

func (c *Context) Parent() *Context { return c.parent }

// Namespace returns the namespace enclosing a type or namespace context.
func (c *Context) Namespace() string {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.Kind == KindNamespace {
			return cur.Name
		}
	}
	return ""
}

// MethodSite is a native method together with the declaration it was found in.
type MethodSite struct {
	Method  *metadata.Member
	Owner   *metadata.TypeDescriptor
	Markers Markers
}

// Identity is the "Type.Member" form used in diagnostics.
func (s MethodSite) Identity() string { return s.Method.Identity(s.Owner) }

// ModuleChild is one declaration site contributing to a module.
type ModuleChild struct {
	Site    *metadata.TypeDescriptor
	Markers Markers
	Methods []MethodSite
}

// ModuleNode is a named grouping of native methods, possibly declared by
// several sites.
type ModuleNode struct {
	Name     string
	Children []*ModuleChild
}

// Methods concatenates the methods of every child in encounter order.
func (n *ModuleNode) Methods() []MethodSite {
	var out []MethodSite
	for _, child := range n.Children {
		out = append(out, child.Methods...)
	}
	return out
}

// Imports returns the imports of the declaring sites and their methods,
// first occurrence wins.
func (n *ModuleNode) Imports() []Import {
	seen := make(map[Import]bool)
	var out []Import
	add := func(imports []Import) {
		for _, imp := range imports {
			if !seen[imp] {
				seen[imp] = true
				out = append(out, imp)
			}
		}
	}
	for _, child := range n.Children {
		add(child.Markers.Imports)
		for _, m := range child.Methods {
			add(m.Markers.Imports)
		}
	}
	return out
}

// Tree is the frozen result of a build. It is read-only and safe for
// concurrent use.
type Tree struct {
	Backend     string
	Compilation *metadata.Compilation
	Root        *Context
	Modules     []*ModuleNode

	index         typemap.Index
	typeMarkers   map[*metadata.TypeDescriptor]Markers
	memberMarkers map[*metadata.Member]Markers
}

// Lookup resolves a qualified type name among the declarations of the compilation.
func (t *Tree) Lookup(qualifiedName string) (*metadata.TypeDescriptor, bool) {
	return t.index.Lookup(qualifiedName)
}

func (t *Tree) TypeMarkers(td *metadata.TypeDescriptor) Markers { return t.typeMarkers[td] }

func (t *Tree) MemberMarkers(m *metadata.Member) Markers { return t.memberMarkers[m] }

// Walk visits every context in pre-order.
func (t *Tree) Walk(visit func(*Context)) {
	var walk func(*Context)
	walk = func(c *Context) {
		visit(c)
		for _, child := range c.Children {
			walk(child)
		}
	}
	walk(t.Root)
}

// Contexts returns every context in pre-order.
func (t *Tree) Contexts() []*Context {
	var out []*Context
	t.Walk(func(c *Context) { out = append(out, c) })
	return out
}

// Types returns the type contexts in pre-order.
func (t *Tree) Types() []*Context {
	var out []*Context
	t.Walk(func(c *Context) {
		if c.Kind == KindType {
			out = append(out, c)
		}
	})
	return out
}

// Artifact is one generated file.
type Artifact struct {
	Path     string
	Name     string
	Preamble string
	Text     string
}

// RelPath joins Path and Name with forward slashes.
func (a Artifact) RelPath() string { return path.Join(a.Path, a.Name) }

// Content is the preamble followed by the text.
func (a Artifact) Content() string {
	if a.Preamble == "" {
		return a.Text
	}
	return a.Preamble + "\n\n" + a.Text
}

// builder owns the growing registries of one build and is discarded once the
// tree is frozen.
type builder struct {
	tree       *Tree
	modules    map[string]*ModuleNode
	namespaces map[string]*Context
	types      map[string]*Context
}

// Build produces the conversion tree of c for backend in a single pass.
func Build(c *metadata.Compilation, backend string) (*Tree, error) {
	b := &builder{
		tree: &Tree{
			Backend:       backend,
			Compilation:   c,
			Root:          &Context{Kind: KindCompilation, Name: c.Name},
			index:         typemap.NewIndex(c),
			typeMarkers:   make(map[*metadata.TypeDescriptor]Markers),
			memberMarkers: make(map[*metadata.Member]Markers),
		},
		modules:    make(map[string]*ModuleNode),
		namespaces: make(map[string]*Context),
		types:      make(map[string]*Context),
	}

	for _, td := range c.Types {
		if err := b.visitType(td, nil, nil); err != nil {
			return nil, err
		}
	}
	for _, module := range b.tree.Modules {
		b.tree.Root.Children = append(b.tree.Root.Children, &Context{
			Kind:   KindModule,
			Name:   module.Name,
			Module: module,
			parent: b.tree.Root,
		})
	}
	log.Debugf("%s: built %d types and %d modules for %s", backend, len(b.types), len(b.modules), c.Name)
	return b.tree, nil
}

// visitType registers td under parent (nil for top-level declarations) and
// routes its native methods to the nearest enclosing module child.
func (b *builder) visitType(td *metadata.TypeDescriptor, parent *Context, enclosing *ModuleChild) error {
	qualified := td.QualifiedName()
	markers, err := ResolveMarkers(qualified, td.Attributes)
	if err != nil {
		return err
	}
	b.tree.typeMarkers[td] = markers
	if markers.Discard {
		log.Debugf("%s: discarded", qualified)
		return nil
	}
	if td.GenericArity > 0 {
		log.Infof("%s: open generic types have no native form, skipping", qualified)
		return nil
	}

	ctx, seen := b.types[qualified]
	if !seen {
		if parent == nil {
			parent = b.namespace(td.NamespaceOf())
		}
		ctx = &Context{Kind: KindType, Name: qualified, Type: td, Markers: markers, parent: parent}
		parent.Children = append(parent.Children, ctx)
		b.types[qualified] = ctx
	}

	child := enclosing
	if markers.Module != "" {
		child = b.moduleChild(markers.Module, td, markers)
	}

	for _, member := range td.Members {
		memberMarkers, err := ResolveMarkers(member.Identity(td), member.Attributes)
		if err != nil {
			return err
		}
		b.tree.memberMarkers[member] = memberMarkers
		if memberMarkers.Discard || !member.Native || member.Kind != metadata.MemberMethod {
			continue
		}
		if child == nil {
			log.Debugf("%s: native method outside any module, excluded", member.Identity(td))
			continue
		}
		child.Methods = append(child.Methods, MethodSite{Method: member, Owner: td, Markers: memberMarkers})
	}

	for _, nested := range td.Nested {
		if nested.Kind == metadata.KindEnum || nested.Kind == metadata.KindInterface {
			if err := b.visitType(nested, ctx, nil); err != nil {
				return err
			}
			continue
		}
		if err := b.visitType(nested, ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) namespace(name string) *Context {
	if ctx, ok := b.namespaces[name]; ok {
		return ctx
	}
	ctx := &Context{Kind: KindNamespace, Name: name, parent: b.tree.Root}
	b.tree.Root.Children = append(b.tree.Root.Children, ctx)
	b.namespaces[name] = ctx
	return ctx
}

// moduleChild looks up or creates the named module and attaches a child for
// the declaration site. Reusing a name merges into the existing module.
func (b *builder) moduleChild(name string, site *metadata.TypeDescriptor, markers Markers) *ModuleChild {
	module, ok := b.modules[name]
	if !ok {
		module = &ModuleNode{Name: name}
		b.modules[name] = module
		b.tree.Modules = append(b.tree.Modules, module)
	} else {
		log.Debugf("module %s: merging declaration from %s", name, site.QualifiedName())
	}
	child := &ModuleChild{Site: site, Markers: markers}
	module.Children = append(module.Children, child)
	return child
}
