// Package enums turns raw enumeration declarations into the member sets the
// backends emit: canonical members, synthesized flag combinations and aliases.
package enums

import (
	"fmt"
	"go/constant"
	"go/token"
	"sort"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

// MaxFlagBits bounds the number of flag positions combined into synthesized
// members; 2^MaxFlagBits subsets are enumerated at most.
const MaxFlagBits = 20

const bitmaskPrefix = "_bitmask_"

var log = commonlog.GetLogger("codebinder.enums")

type Member struct {
	Name        string
	Value       int64
	Synthesized bool
}

// Alias is a residual member that resolves to the entry named Target.
type Alias struct {
	Name   string
	Target string
	Value  int64
}

type Result struct {
	Name       string
	Underlying metadata.Primitive
	Flags      bool
	// Members holds canonical members in declaration order followed by
	// synthesized ones in ascending value order.
	Members []Member
	Aliases []Alias
	// Ordinal is set when canonical values equal their positions.
	Ordinal bool
}

// FromValue returns the canonical or synthesized member with value v.
func (r *Result) FromValue(v int64) (Member, bool) {
	for _, m := range r.Members {
		if m.Value == v {
			return m, true
		}
	}
	return Member{}, false
}

// FromDescriptor synthesizes the members of an enum declaration.
func FromDescriptor(t *metadata.TypeDescriptor) (*Result, error) {
	flags := false
	for _, attr := range t.Attributes {
		if attr.Is(metadata.AttrFlags) {
			flags = true
		}
	}
	return Synthesize(t.QualifiedName(), t.Underlying, flags, t.Values)
}

type evaluated struct {
	name     string
	value    int64
	symbolic bool
}

// Synthesize partitions values into canonical and residual members and, for
// flag enums, adds one member per combination of two or more flag bits.
func Synthesize(name string, underlying metadata.Primitive, flags bool, values []metadata.EnumValue) (*Result, error) {
	if underlying == metadata.NotPrimitive {
		underlying = metadata.Int32
	}
	if !underlying.IsInteger() {
		return nil, diag.Newf(diag.ErrInvalidEnumValue, name, "underlying type %s is not an integer", underlying)
	}

	members, err := evaluate(name, underlying, values)
	if err != nil {
		return nil, err
	}

	result := &Result{Name: name, Underlying: underlying, Flags: flags}
	claimed := make(map[int64]string)
	var residual []evaluated
	for _, m := range members {
		if _, dup := claimed[m.value]; dup || m.symbolic {
			residual = append(residual, m)
			continue
		}
		claimed[m.value] = m.name
		result.Members = append(result.Members, Member{Name: m.name, Value: m.value})
	}

	if flags {
		synthesized, err := combine(name, underlying, result.Members, claimed)
		if err != nil {
			return nil, err
		}
		result.Members = append(result.Members, synthesized...)
	} else {
		result.Ordinal = true
		for i, m := range result.Members {
			if m.Value != int64(i) {
				result.Ordinal = false
				break
			}
		}
	}

	for _, m := range residual {
		target, ok := claimed[m.value]
		if !ok {
			return nil, diag.Newf(diag.ErrMissingAliasTarget, name+"."+m.name, "no member has value %d", m.value)
		}
		result.Aliases = append(result.Aliases, Alias{Name: m.name, Target: target, Value: m.value})
	}
	return result, nil
}

func evaluate(name string, underlying metadata.Primitive, values []metadata.EnumValue) ([]evaluated, error) {
	e := &evaluator{
		bits:    underlying.Bits(),
		signed:  underlying.Signed(),
		defined: make(map[string]constant.Value, len(values)),
	}
	var out []evaluated
	next := constant.MakeInt64(0)
	for _, raw := range values {
		subject := name + "." + raw.Name
		v, symbolic := next, false
		if raw.Expr != "" {
			expr, sym, err := parseValueExpr(raw.Expr)
			if err != nil {
				return nil, diag.Newf(diag.ErrInvalidEnumValue, subject, "cannot parse %q: %v", raw.Expr, err)
			}
			v, err = e.eval(expr)
			if err != nil {
				return nil, diag.Newf(diag.ErrInvalidEnumValue, subject, "%v", err)
			}
			symbolic = sym
		}
		stored, err := fit(v, underlying)
		if err != nil {
			return nil, diag.Newf(diag.ErrInvalidEnumValue, subject, "%v", err)
		}
		if _, dup := e.defined[raw.Name]; dup {
			return nil, diag.Newf(diag.ErrInvalidEnumValue, subject, "member declared twice")
		}
		e.defined[raw.Name] = v
		out = append(out, evaluated{name: raw.Name, value: stored, symbolic: symbolic})
		next = constant.BinaryOp(v, token.ADD, constant.MakeInt64(1))
	}
	return out, nil
}

// fit checks that v is representable in underlying and returns its storage
// form; unsigned 64-bit values above MaxInt64 keep their bit pattern.
func fit(v constant.Value, underlying metadata.Primitive) (int64, error) {
	if underlying.Signed() {
		i, exact := constant.Int64Val(v)
		lo, hi := int64(-1)<<(underlying.Bits()-1), int64(1)<<(underlying.Bits()-1)-1
		if underlying.Bits() == 64 {
			lo, hi = -1<<63, 1<<63-1
		}
		if !exact || i < lo || i > hi {
			return 0, fmt.Errorf("%s overflows %s", v, underlying)
		}
		return i, nil
	}
	u, exact := constant.Uint64Val(v)
	if !exact || underlying.Bits() < 64 && u>>underlying.Bits() != 0 {
		return 0, fmt.Errorf("%s overflows %s", v, underlying)
	}
	return int64(u), nil
}

// combine enumerates every subset of two or more flag positions with an arena
// worklist. Node i extends its subset only with positions after last, so each
// subset is produced once.
func combine(name string, underlying metadata.Primitive, canonical []Member, claimed map[int64]string) ([]Member, error) {
	mask := ^uint64(0)
	if underlying.Bits() < 64 {
		mask = uint64(1)<<underlying.Bits() - 1
	}
	var positions []uint64
	for _, m := range canonical {
		if b := uint64(m.Value) & mask; b != 0 && b&(b-1) == 0 {
			positions = append(positions, b)
		}
	}
	if len(positions) > MaxFlagBits {
		return nil, diag.Newf(diag.ErrTooManyFlagBits, name, "%d flag bits, at most %d are combined", len(positions), MaxFlagBits)
	}

	type node struct {
		value uint64
		last  int
	}
	arena := make([]node, 0, 1<<len(positions))
	for i, p := range positions {
		arena = append(arena, node{value: p, last: i})
	}

	var synthesized []Member
	for head := 0; head < len(arena); head++ {
		cur := arena[head]
		for j := cur.last + 1; j < len(positions); j++ {
			value := cur.value | positions[j]
			arena = append(arena, node{value: value, last: j})
			stored := signExtend(value, underlying)
			if _, taken := claimed[stored]; taken {
				continue
			}
			member := Member{Name: bitmaskPrefix + strconv.FormatUint(value, 10), Value: stored, Synthesized: true}
			claimed[stored] = member.Name
			synthesized = append(synthesized, member)
		}
	}
	sort.Slice(synthesized, func(i, j int) bool {
		return uint64(synthesized[i].Value)&mask < uint64(synthesized[j].Value)&mask
	})
	if len(synthesized) > 0 {
		log.Debugf("%s: synthesized %d flag combinations over %d bits", name, len(synthesized), len(positions))
	}
	return synthesized, nil
}

// signExtend maps a bit pattern of the underlying width onto the int64
// storage form used for member values.
func signExtend(value uint64, underlying metadata.Primitive) int64 {
	width := underlying.Bits()
	if underlying.Signed() && width < 64 && value&(uint64(1)<<(width-1)) != 0 {
		return int64(value | ^(uint64(1)<<width - 1))
	}
	return int64(value)
}
