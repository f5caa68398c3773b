package trampoline

import (
	"strconv"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

// Patterns are the snippets a backend assembles trampoline bodies from. Each
// snippet may span several lines and uses these placeholders:
//
//	{name}   parameter name        {local}  local holding the converted value
//	{bridge} bridge-side spelling  {native} native-side spelling
//	{elem}   native element type   {enum}   enum type name
//	{index}  parameter position    {call}   native symbol
//	{args}   converted arguments   {result} the native call expression
type Patterns struct {
	// Unmarshal converts one incoming argument. Conversions without an entry
	// use the Direct entry, and without that the argument is passed as is.
	Unmarshal map[Conversion]string
	// WriteBack runs after the call for by-ref parameters.
	WriteBack map[Conversion]string
	// Invoke is the statement used for void methods.
	Invoke string
	// Remarshal returns the result, keyed by the result conversion.
	Remarshal map[Conversion]string
	// Capture stores {result} in a local named result when by-ref write
	// backs must run between the call and the return.
	Capture string
	// Finish ends void trampolines, after the write backs.
	Finish string
}

// Render returns the body lines of plan's trampoline.
func Render(plan *Plan, patterns Patterns) []string {
	if plan.ImplVerbatim != "" {
		return strings.Split(strings.TrimRight(plan.ImplVerbatim, "\n"), "\n")
	}

	var lines []string
	args := make([]string, 0, len(plan.Params))
	for i, param := range plan.Params {
		pattern, ok := patterns.Unmarshal[param.Conversion]
		if !ok {
			pattern, ok = patterns.Unmarshal[Direct]
		}
		if !ok {
			args = append(args, param.Name)
			continue
		}
		lines = appendPattern(lines, pattern, paramReplacer(plan, i, param))
		args = append(args, param.Local)
	}

	call := plan.NativeSymbol + "(" + strings.Join(args, ", ") + ")"
	common := []string{"{call}", plan.NativeSymbol, "{args}", strings.Join(args, ", "), "{result}", call}

	var writeBacks []string
	for i, param := range plan.Params {
		if !param.ByRef {
			continue
		}
		if pattern, ok := patterns.WriteBack[param.Conversion]; ok {
			writeBacks = appendPattern(writeBacks, pattern, paramReplacer(plan, i, param))
		}
	}

	if plan.Result == nil {
		replacer := strings.NewReplacer(common...)
		lines = appendPattern(lines, patterns.Invoke, replacer)
		lines = append(lines, writeBacks...)
		return appendPattern(lines, patterns.Finish, replacer)
	}

	pattern, ok := patterns.Remarshal[plan.Result.Conversion]
	if !ok {
		pattern = patterns.Remarshal[Direct]
	}
	replacer := strings.NewReplacer(append(common,
		"{bridge}", plan.Result.Bridge.Name,
		"{native}", plan.Result.Native.Name,
		"{enum}", enumName(plan.Result.Bridge),
	)...)
	if len(writeBacks) == 0 {
		return appendPattern(lines, pattern, replacer)
	}
	// The result must be captured before by-ref boxes are written back.
	capture := patterns.Capture
	if capture == "" {
		capture = "{native} result = {result};"
	}
	lines = appendPattern(lines, capture, replacer)
	lines = append(lines, writeBacks...)
	return appendPattern(lines, strings.ReplaceAll(pattern, "{result}", "result"), replacer)
}

func paramReplacer(plan *Plan, i int, param Param) *strings.Replacer {
	elem := ""
	if param.Native.Elem != nil {
		elem = param.Native.Elem.Name
	}
	return strings.NewReplacer(
		"{name}", param.Name,
		"{local}", param.Local,
		"{bridge}", param.Bridge.Name,
		"{native}", param.Native.Name,
		"{elem}", elem,
		"{enum}", enumName(param.Bridge),
		"{index}", strconv.Itoa(i),
		"{call}", plan.NativeSymbol,
	)
}

func enumName(token typemap.Token) string {
	if token.Type == nil {
		return ""
	}
	return token.Type.Name
}

func appendPattern(lines []string, pattern string, replacer *strings.Replacer) []string {
	if pattern == "" {
		return lines
	}
	return append(lines, strings.Split(replacer.Replace(pattern), "\n")...)
}
