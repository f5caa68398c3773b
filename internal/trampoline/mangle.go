package trampoline

import (
	"fmt"
	"strings"
)

// NativeSymbol is the C symbol of a native function:
// <namespace>_<module>_<name>, with dots turned into underscores.
func NativeSymbol(namespace, module, name string) string {
	return JoinSymbol(namespace, module, name)
}

// JoinSymbol joins the non-empty parts with underscores, replacing dots.
func JoinSymbol(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		kept = append(kept, strings.ReplaceAll(part, ".", "_"))
	}
	return strings.Join(kept, "_")
}

// JNIName builds the symbol a JVM resolves for a native method of class
// (a fully qualified Java class name). Overloaded methods use the long form
// with the escaped argument descriptor.
func JNIName(class, method, argDescriptor string, overloaded bool) string {
	var b strings.Builder
	b.WriteString("Java_")
	b.WriteString(jniEscape(class, true))
	b.WriteByte('_')
	b.WriteString(jniEscape(method, false))
	if overloaded {
		b.WriteString("__")
		b.WriteString(jniEscape(argDescriptor, true))
	}
	return b.String()
}

// jniEscape applies the JNI name mangling. With slashes set, '.' and '/'
// separate package components and become '_'.
func jniEscape(s string, slashes bool) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case slashes && (r == '.' || r == '/'):
			b.WriteByte('_')
		case r == '_':
			b.WriteString("_1")
		case r == ';':
			b.WriteString("_2")
		case r == '[':
			b.WriteString("_3")
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_0%04x", r)
		}
	}
	return b.String()
}
