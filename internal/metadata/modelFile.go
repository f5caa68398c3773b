package metadata

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
)

// LoadModelFile reads a Source Model description. The format is chosen by
// extension: ".toml" for hand-written models, ".cbor" for binary snapshots.
func LoadModelFile(path string) (*Compilation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read model %s: %w", path, err)
	}

	var compilation Compilation
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &compilation); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case ".cbor":
		if err := cbor.Unmarshal(data, &compilation); err != nil {
			return nil, fmt.Errorf("decode error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported model format %q", filepath.Ext(path))
	}

	if compilation.Name == "" {
		compilation.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	compilation.Link()
	return &compilation, nil
}

// SaveModelFile writes the compilation in the format implied by the extension.
func SaveModelFile(path string, compilation *Compilation) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(compilation); err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		data = buf.Bytes()
	case ".cbor":
		encoded, err := cbor.Marshal(compilation)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		data = encoded
	default:
		return fmt.Errorf("unsupported model format %q", filepath.Ext(path))
	}
	return os.WriteFile(path, data, 0o644)
}
