package conversion

import (
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/diag"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

type Import struct {
	Path      string
	Condition string
}

// Signature is an explicit exported overload of a native method.
type Signature struct {
	Name    string
	Params  []metadata.TypeRef
	Returns *metadata.TypeRef
}

type Phase int

const (
	PhaseBoth Phase = iota
	PhaseHeader
	PhaseImplementation
)

type Verbatim struct {
	Text  string
	Phase Phase
}

// Markers is the typed view of the attributes on one declaration.
type Markers struct {
	Module     string
	Binder     string
	Condition  string
	Flags      bool
	Discard    bool
	Imports    []Import
	Signatures []Signature
	Verbatim   []Verbatim
}

// In reports whether v applies to phase.
func (v Verbatim) In(phase Phase) bool {
	return v.Phase == PhaseBoth || v.Phase == phase
}

// VerbatimFor returns the verbatim text for phase, or false when synthesis applies.
func (m Markers) VerbatimFor(phase Phase) (string, bool) {
	var parts []string
	for _, v := range m.Verbatim {
		if v.In(phase) {
			parts = append(parts, v.Text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// ResolveMarkers reads attrs once into Markers. subject names the declaration
// in errors.
func ResolveMarkers(subject string, attrs []metadata.Attribute) (Markers, error) {
	var m Markers
	for _, attr := range attrs {
		switch {
		case attr.Is(metadata.AttrModule):
			m.Module, _ = attr.Arg(0, "name")
		case attr.Is(metadata.AttrNativeBinding):
			m.Binder, _ = attr.Arg(0, "name")
		case attr.Is(metadata.AttrCondition):
			m.Condition, _ = attr.Arg(0, "macro")
		case attr.Is(metadata.AttrFlags):
			m.Flags = true
		case attr.Is(metadata.AttrDiscard):
			m.Discard = true
		case attr.Is(metadata.AttrImport):
			path, _ := attr.Arg(0, "path")
			condition, _ := attr.Arg(1, "condition")
			m.Imports = append(m.Imports, Import{Path: path, Condition: condition})
		case attr.Is(metadata.AttrSignature):
			sig, err := parseSignature(subject, attr)
			if err != nil {
				return Markers{}, err
			}
			m.Signatures = append(m.Signatures, sig)
		case attr.Is(metadata.AttrVerbatim):
			text, _ := attr.Arg(0, "text")
			v := Verbatim{Text: text}
			phase, _ := attr.Arg(1, "phase")
			switch strings.ToLower(phase) {
			case "", "both":
			case "header":
				v.Phase = PhaseHeader
			case "implementation", "impl":
				v.Phase = PhaseImplementation
			default:
				return Markers{}, diag.Newf(diag.ErrInvalidSignature, subject, "unknown verbatim phase %q", phase)
			}
			m.Verbatim = append(m.Verbatim, v)
		}
	}
	return m, nil
}

func parseSignature(subject string, attr metadata.Attribute) (Signature, error) {
	var sig Signature
	params, _ := attr.Arg(0, "params")
	for _, text := range strings.Split(params, ",") {
		if strings.TrimSpace(text) == "" {
			continue
		}
		ref, err := metadata.ParseTypeRef(text)
		if err != nil {
			return Signature{}, diag.Newf(diag.ErrInvalidSignature, subject, "%v", err)
		}
		if ref.IsVoid() {
			return Signature{}, diag.Newf(diag.ErrInvalidSignature, subject, "void parameter")
		}
		sig.Params = append(sig.Params, ref)
	}
	if returns, ok := attr.Arg(1, "returns"); ok && returns != "" {
		ref, err := metadata.ParseTypeRef(returns)
		if err != nil {
			return Signature{}, diag.Newf(diag.ErrInvalidSignature, subject, "%v", err)
		}
		sig.Returns = &ref
	}
	sig.Name, _ = attr.Arg(2, "name")
	return sig, nil
}
