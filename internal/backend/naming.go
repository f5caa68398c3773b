package backend

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

// Pascal upper-cases the first letter of every '_' or '.' separated word and
// drops the separators: "core_io" becomes "CoreIo". Backends render
// concurrently and a Caser keeps state, so each call gets its own.
func Pascal(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '.' || r == '-' })
	caser := cases.Title(language.Und, cases.NoLower)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, "")
}

// Camel is Pascal with a lower-case first letter.
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return p
	}
	runes := []rune(p)
	// Leading acronyms are lowered as a whole: "URLPath" becomes "urlPath".
	i := 0
	for i < len(runes) && unicode.IsUpper(runes[i]) {
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
		i++
	}
	return string(runes)
}

// FlatName joins the enclosing type chain of td with sep: Core.Stream
// becomes "Core_Stream" for sep "_".
func FlatName(td *metadata.TypeDescriptor, sep string) string {
	var parts []string
	for cur := td; cur != nil; cur = cur.Outer() {
		parts = append([]string{cur.Name}, parts...)
	}
	return strings.Join(parts, sep)
}

// CName is the C identifier of a type: namespace and type chain joined by '_'.
func CName(td *metadata.TypeDescriptor) string {
	ns := strings.ReplaceAll(td.NamespaceOf(), ".", "_")
	if ns == "" {
		return FlatName(td, "_")
	}
	return ns + "_" + FlatName(td, "_")
}

// NamespacePath turns a dotted namespace into a relative directory.
func NamespacePath(ns string) string {
	return strings.ReplaceAll(ns, ".", "/")
}

// CLiteral spells an enum value of the given underlying type as a C integer
// literal. Values are stored sign-extended, so unsigned 64-bit members are
// reinterpreted before printing.
func CLiteral(v int64, underlying metadata.Primitive) string {
	switch {
	case underlying == metadata.UInt64:
		return strconv.FormatUint(uint64(v), 10) + "ULL"
	case underlying == metadata.Int64:
		if v == math.MinInt64 {
			return "(-9223372036854775807LL - 1)"
		}
		return strconv.FormatInt(v, 10) + "LL"
	case underlying == metadata.UInt32:
		return strconv.FormatUint(uint64(uint32(v)), 10) + "U"
	case v == math.MinInt32:
		return "(-2147483647 - 1)"
	}
	return strconv.FormatInt(v, 10)
}
