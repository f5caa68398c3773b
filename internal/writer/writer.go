// Package writer accumulates generated source text with indentation and the
// scoped guards native headers need.
package writer

import (
	"fmt"
	"strings"
)

// Writer is a line-oriented text stream. Nested scopes indent their content.
type Writer struct {
	Indent     int
	IndentText string
	Line       string
	Lines      []string
}

func New() *Writer {
	return &Writer{IndentText: "    ", Lines: make([]string, 0, 64)}
}

func (w *Writer) BlockStart() {
	w.Indent++
}

func (w *Writer) BlockEnd() {
	w.Indent--
	if w.Indent < 0 {
		w.Indent = 0
	}
}

// Write appends s to the current line.
func (w *Writer) Write(s string) {
	if len(w.Line) == 0 {
		w.Line = strings.Repeat(w.IndentText, w.Indent) + s
	} else {
		w.Line += s
	}
}

// WriteLn terminates the current line with lines[0] and appends the remaining
// lines at the current indentation. Without arguments it ends the line, or
// emits a blank one when nothing is pending.
func (w *Writer) WriteLn(lines ...string) {
	prefix := strings.Repeat(w.IndentText, w.Indent)
	if len(w.Line) == 0 {
		if len(lines) == 0 {
			w.Lines = append(w.Lines, "")
			return
		}
		for _, line := range lines {
			w.appendLine(prefix, line)
		}
		return
	}

	if len(lines) == 0 {
		w.Lines = append(w.Lines, w.Line)
		w.Line = ""
		return
	}
	w.Lines = append(w.Lines, w.Line+lines[0])
	w.Line = ""
	for _, line := range lines[1:] {
		w.appendLine(prefix, line)
	}
}

func (w *Writer) appendLine(prefix, line string) {
	if line == "" {
		w.Lines = append(w.Lines, "")
		return
	}
	w.Lines = append(w.Lines, prefix+line)
}

func (w *Writer) WriteLnf(format string, args ...any) {
	w.WriteLn(fmt.Sprintf(format, args...))
}

// Text appends multi-line text verbatim, one stream line per input line.
func (w *Writer) Text(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	w.WriteLn(strings.Split(text, "\n")...)
}

// Block writes open, the indented body and close on their own lines.
func (w *Writer) Block(open, close string, body func()) {
	w.WriteLn(open)
	w.BlockStart()
	body()
	w.BlockEnd()
	w.WriteLn(close)
}

// HeaderGuard wraps body in an include guard derived from name.
func (w *Writer) HeaderGuard(name string, body func()) {
	guard := GuardName(name)
	w.WriteLn("#ifndef "+guard, "#define "+guard)
	w.WriteLn()
	body()
	w.WriteLn()
	w.WriteLn("#endif // " + guard)
}

// ExternC gives body C linkage when compiled as C++.
func (w *Writer) ExternC(body func()) {
	w.WriteLn("#ifdef __cplusplus", `extern "C" {`, "#endif")
	body()
	w.WriteLn("#ifdef __cplusplus", `} // extern "C"`, "#endif")
}

// Namespace opens a C++ namespace; nested names are separated by dots.
// Namespace content is not indented.
func (w *Writer) Namespace(name string, body func()) {
	if name == "" {
		body()
		return
	}
	cxx := strings.ReplaceAll(name, ".", "::")
	w.WriteLn("namespace " + cxx + " {")
	body()
	w.WriteLn("} // namespace " + cxx)
}

// Condition wraps body in a preprocessor guard. An empty macro emits body as is.
func (w *Writer) Condition(macro string, body func()) {
	if macro == "" {
		body()
		return
	}
	w.WriteLn("#ifdef " + macro)
	body()
	w.WriteLn("#endif // " + macro)
}

// Comment writes each line of text as a line comment using marker.
func (w *Writer) Comment(marker, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			w.WriteLn(marker)
			continue
		}
		w.WriteLn(marker + " " + line)
	}
}

func (w *Writer) String() string {
	lines := w.Lines
	if len(w.Line) > 0 {
		lines = append(lines[:len(lines):len(lines)], w.Line)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// GuardName turns a file or type name into an include guard identifier.
func GuardName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString("_")
	return b.String()
}
