package metadata

import "strings"

// Names of the attributes the generator recognizes. Adapters emit them with
// these spellings; anything else is carried along and ignored.
const (
	AttrModule        = "Module"
	AttrNativeBinding = "NativeBinding"
	AttrImport        = "Import"
	AttrCondition     = "Condition"
	AttrSignature     = "Signature"
	AttrFlags         = "Flags"
	AttrVerbatim      = "VerbatimConversion"
	AttrDiscard       = "Discard"
)

// Attribute is attribute data as found on a declaration: a name plus
// positional and named arguments.
type Attribute struct {
	Name  string            `toml:"name" cbor:"name"`
	Args  []string          `toml:"args,omitempty" cbor:"args,omitempty"`
	Named map[string]string `toml:"named,omitempty" cbor:"named,omitempty"`
}

// Arg returns the positional argument at index i, falling back to the named
// argument key.
func (a Attribute) Arg(i int, key string) (string, bool) {
	if i < len(a.Args) {
		return a.Args[i], true
	}
	if v, ok := a.Named[key]; ok {
		return v, true
	}
	return "", false
}

// Is compares attribute names the way the source languages do: the trailing
// "Attribute" suffix is optional and case is ignored.
func (a Attribute) Is(name string) bool {
	n := strings.TrimSuffix(a.Name, "Attribute")
	return strings.EqualFold(n, name)
}
