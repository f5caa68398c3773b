// Package visibility decides which types an artifact may include or
// forward-declare, per header variant.
package visibility

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var log = commonlog.GetLogger("codebinder.visibility")

type Reachability int

const (
	Public Reachability = iota
	Internal
	External
)

func (r Reachability) String() string {
	switch r {
	case Public:
		return "public"
	case Internal:
		return "internal"
	}
	return "external"
}

type Variant int

const (
	VariantPublic Variant = iota
	VariantInternal
	VariantInternalOnly
)

func (v Variant) String() string {
	switch v {
	case VariantPublic:
		return "public"
	case VariantInternal:
		return "internal"
	}
	return "internal-only"
}

// Admits reports whether a type of reachability r may be referenced from an
// artifact of variant v.
func (v Variant) Admits(r Reachability) bool {
	switch r {
	case Public:
		return v == VariantPublic || v == VariantInternalOnly
	case Internal:
		return v == VariantInternal || v == VariantInternalOnly
	}
	return false
}

// Of computes the reachability of a qualified name within the compilation.
func Of(types typemap.Resolver, qualifiedName string) Reachability {
	td, ok := types.Lookup(qualifiedName)
	if !ok {
		return External
	}
	return OfType(td)
}

// OfType is Public when td and every enclosing type are public.
func OfType(td *metadata.TypeDescriptor) Reachability {
	for cur := td; cur != nil; cur = cur.Outer() {
		if cur.Access != metadata.Public {
			return Internal
		}
	}
	return Public
}

type Omission struct {
	Name         string
	Reachability Reachability
}

// Lists are the references an artifact makes, split by how they are emitted.
type Lists struct {
	Includes []string
	Forwards []string
	Omitted  []Omission
}

// Partitioner computes Lists. With Strict set, omitting a reference to an
// internal type is an error instead of a warning. External references are
// always omitted, the consumer declares them.
type Partitioner struct {
	Types  typemap.Resolver
	Strict bool
}

// Filter keeps the types admitted by variant, in order.
func (p *Partitioner) Filter(types []*metadata.TypeDescriptor, variant Variant) []*metadata.TypeDescriptor {
	var out []*metadata.TypeDescriptor
	for _, td := range types {
		if variant.Admits(OfType(td)) {
			out = append(out, td)
		}
	}
	return out
}

// Partition computes the lists for the artifact declaring td: bases become
// includes, types in member signatures become forward declarations. The
// public variant only looks at public members.
func (p *Partitioner) Partition(td *metadata.TypeDescriptor, variant Variant) (Lists, error) {
	self := td.QualifiedName()
	c := newCollector(p, self, variant)

	for _, base := range td.Bases {
		if err := c.add(base, true); err != nil {
			return Lists{}, err
		}
	}
	for _, member := range td.Members {
		if member.Access == metadata.Private || variant == VariantPublic && member.Access != metadata.Public {
			continue
		}
		if err := c.signature(member.Params, member.Returns); err != nil {
			return Lists{}, err
		}
	}
	if td.Kind == metadata.KindDelegate {
		if err := c.signature(td.Params, td.Returns); err != nil {
			return Lists{}, err
		}
	}
	return c.lists, nil
}

// References computes forward declarations for a free-standing set of
// signatures, such as the native methods of a module.
func (p *Partitioner) References(owner string, variant Variant, members []*metadata.Member) (Lists, error) {
	c := newCollector(p, owner, variant)
	for _, member := range members {
		if err := c.signature(member.Params, member.Returns); err != nil {
			return Lists{}, err
		}
	}
	return c.lists, nil
}

type collector struct {
	p       *Partitioner
	self    string
	variant Variant
	seen    map[string]bool
	lists   Lists
}

func newCollector(p *Partitioner, self string, variant Variant) *collector {
	return &collector{p: p, self: self, variant: variant, seen: map[string]bool{self: true}}
}

func (c *collector) signature(params []metadata.Parameter, returns metadata.TypeRef) error {
	for _, param := range params {
		if err := c.add(param.Type, false); err != nil {
			return err
		}
	}
	return c.add(returns, false)
}

func (c *collector) add(ref metadata.TypeRef, include bool) error {
	for ref.IsArray() {
		ref = *ref.Elem
	}
	if !ref.IsNamed() || c.seen[ref.Name] {
		return nil
	}
	c.seen[ref.Name] = true

	reach := Of(c.p.Types, ref.Name)
	if !c.variant.Admits(reach) {
		switch {
		case reach == External:
			log.Debugf("%s: leaving external %s to the consumer", c.self, ref.Name)
		case c.p.Strict:
			return diag.Newf(diag.ErrUnreachableTypeReferenced, c.self, "%s type %s is not visible from the %s variant", reach, ref.Name, c.variant)
		default:
			log.Warningf("%s: omitting %s reference to %s from the %s variant", c.self, reach, ref.Name, c.variant)
		}
		c.lists.Omitted = append(c.lists.Omitted, Omission{Name: ref.Name, Reachability: reach})
		return nil
	}
	if include {
		c.lists.Includes = append(c.lists.Includes, ref.Name)
	} else {
		c.lists.Forwards = append(c.lists.Forwards, ref.Name)
	}
	return nil
}

func (l Lists) String() string {
	return fmt.Sprintf("includes=%v forwards=%v omitted=%d", l.Includes, l.Forwards, len(l.Omitted))
}
