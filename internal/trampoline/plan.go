// Package trampoline plans and renders the glue that carries a call across the
// native boundary: unmarshal each argument, invoke, write back by-ref boxes
// and remarshal the result.
package trampoline

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var log = commonlog.GetLogger("codebinder.trampoline")

type Conversion int

const (
	Direct Conversion = iota
	Box
	Enum
	EnumBox
	String
	Array
	Struct
	Object
	Delegate
	Binder
)

var conversionNames = []string{"direct", "box", "enum", "enumbox", "string", "array", "struct", "object", "delegate", "binder"}

func (c Conversion) String() string { return conversionNames[c] }

// conversionOf picks the conversion for a bridge-side token.
func conversionOf(token typemap.Token) Conversion {
	switch token.Kind {
	case typemap.KindBox, typemap.KindHandleBox:
		return Box
	case typemap.KindEnum:
		return Enum
	case typemap.KindEnumBox:
		return EnumBox
	case typemap.KindStruct:
		return Struct
	case typemap.KindObject:
		return Object
	case typemap.KindDelegate:
		return Delegate
	case typemap.KindArray:
		return Array
	case typemap.KindBinder:
		return Binder
	}
	if token.Prim == metadata.String {
		return String
	}
	return Direct
}

type Param struct {
	Name       string
	Type       metadata.TypeRef
	ByRef      bool
	Conversion Conversion
	// Bridge is the spelling on the calling side, Native the one the native
	// function declares.
	Bridge typemap.Token
	Native typemap.Token
	Local  string
}

type Result struct {
	Type       metadata.TypeRef
	Conversion Conversion
	Bridge     typemap.Token
	Native     typemap.Token
}

// Plan is everything a backend needs to emit one exported entry point.
type Plan struct {
	Module string
	Site   conversion.MethodSite
	// Method is the source method name.
	Method string
	// Index is the position among the method's Signature attributes.
	Index      int
	Overloaded bool
	// NativeName is the unprefixed name of the native function.
	NativeName string
	// NativeSymbol is the exported C symbol every bridge invokes.
	NativeSymbol string
	// ExportName is the bridge-side mangled name.
	ExportName string
	Params     []Param
	// Result is nil for void methods.
	Result    *Result
	Condition string
	// HeaderVerbatim and ImplVerbatim replace the synthesized declaration
	// and body when set.
	HeaderVerbatim string
	ImplVerbatim   string
}

func (p *Plan) HasVerbatim() bool { return p.HeaderVerbatim != "" || p.ImplVerbatim != "" }

// Mangler derives the bridge-side export name of a plan.
type Mangler func(namespace string, plan *Plan) string

// Synthesizer builds plans for one backend.
type Synthesizer struct {
	Namespace string
	Bridge    *typemap.Mapper
	Native    *typemap.Mapper
	Mangle    Mangler
}

// Plans returns the plans of every native method of module, in module order.
// A method with Signature attributes yields one plan per attribute. Two
// plans sharing a native symbol are an error.
func (s *Synthesizer) Plans(module *conversion.ModuleNode) ([]*Plan, error) {
	var plans []*Plan
	owners := make(map[string]string)
	for _, site := range module.Methods() {
		sitePlans, err := s.methodPlans(module.Name, site)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", site.Identity(), err)
		}
		for _, plan := range sitePlans {
			if owner, ok := owners[plan.NativeSymbol]; ok {
				return nil, diag.Newf(diag.ErrDuplicateSymbol, plan.NativeSymbol, "exported by both %s and %s", owner, site.Identity())
			}
			owners[plan.NativeSymbol] = site.Identity()
		}
		plans = append(plans, sitePlans...)
	}
	log.Debugf("module %s: %d entry points", module.Name, len(plans))
	return plans, nil
}

func (s *Synthesizer) methodPlans(module string, site conversion.MethodSite) ([]*Plan, error) {
	method := site.Method
	sigs := site.Markers.Signatures
	explicit := len(sigs) > 0
	if !explicit {
		sigs = []conversion.Signature{{}}
	}
	overloaded := len(sigs) > 1

	var plans []*Plan
	for i, sig := range sigs {
		plan := &Plan{
			Module:     module,
			Site:       site,
			Method:     method.Name,
			Index:      i,
			Overloaded: overloaded,
			NativeName: nativeName(method.Name, sig.Name, i, overloaded),
			Condition:  site.Markers.Condition,
		}
		plan.NativeSymbol = NativeSymbol(s.Namespace, module, plan.NativeName)
		plan.HeaderVerbatim, _ = site.Markers.VerbatimFor(conversion.PhaseHeader)
		plan.ImplVerbatim, _ = site.Markers.VerbatimFor(conversion.PhaseImplementation)

		params := method.Params
		returns := method.Returns
		if explicit {
			if len(sig.Params) != len(method.Params) {
				return nil, diag.Newf(diag.ErrInvalidSignature, site.Identity(),
					"signature %d has %d parameters, the method has %d", i, len(sig.Params), len(method.Params))
			}
			params = make([]metadata.Parameter, len(method.Params))
			copy(params, method.Params)
			for j := range params {
				params[j].Type = sig.Params[j]
			}
			if sig.Returns != nil {
				returns = *sig.Returns
			}
		}

		if plan.HeaderVerbatim == "" {
			if err := s.mapSignature(plan, params, returns); err != nil {
				return nil, err
			}
		}
		plan.ExportName = s.Mangle(s.Namespace, plan)
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *Synthesizer) mapSignature(plan *Plan, params []metadata.Parameter, returns metadata.TypeRef) error {
	for i, param := range params {
		markers, err := conversion.ResolveMarkers(plan.Site.Identity()+"."+param.Name, param.Attributes)
		if err != nil {
			return err
		}
		usage := typemap.Value
		if param.ByRef {
			usage = typemap.ByRef
		}
		bridge, err := s.Bridge.Map(param.Type, usage, markers.Binder)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", param.Name, err)
		}
		native, err := s.Native.Map(param.Type, usage, markers.Binder)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", param.Name, err)
		}
		plan.Params = append(plan.Params, Param{
			Name:       param.Name,
			Type:       param.Type,
			ByRef:      param.ByRef,
			Conversion: conversionOf(bridge),
			Bridge:     bridge,
			Native:     native,
			Local:      fmt.Sprintf("arg%d", i),
		})
	}

	if returns.IsVoid() {
		return nil
	}
	bridge, err := s.Bridge.Map(returns, typemap.Return, "")
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}
	native, err := s.Native.Map(returns, typemap.Return, "")
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}
	plan.Result = &Result{Type: returns, Conversion: conversionOf(bridge), Bridge: bridge, Native: native}
	return nil
}

// nativeName is the Signature name when given, the method name for a single
// plan, and method_index for unnamed overloads.
func nativeName(method, sigName string, index int, overloaded bool) string {
	switch {
	case sigName != "":
		return sigName
	case overloaded:
		return fmt.Sprintf("%s_%d", method, index)
	}
	return method
}

// Entry is one row of an export table.
type Entry struct {
	Name string
	Plan *Plan
}

// ExportTable lists the export names of plans in module order.
func ExportTable(plans []*Plan) []Entry {
	entries := make([]Entry, 0, len(plans))
	for _, plan := range plans {
		entries = append(entries, Entry{Name: plan.ExportName, Plan: plan})
	}
	return entries
}
