package preset

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

// Load reads the preset catalog from path, or the embedded default
// catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return LoadFromReader(bytes.NewReader(defaultPresets))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preset: open %q: %w", path, err)
	}
	defer f.Close()

	cat, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("preset: parse %q: %w", path, err)
	}
	return cat, nil
}

// LoadFromReader decodes a YAML catalog from r and validates the result.
// Useful in tests where catalogs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	presets := map[string]Preset{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&presets); err != nil {
		return nil, fmt.Errorf("preset: decode yaml: %w", err)
	}

	if err := validate(presets); err != nil {
		return nil, err
	}

	return &Catalog{presets: presets}, nil
}

// validate checks every preset for coherent values, returning a joined
// error listing all failures found.
func validate(presets map[string]Preset) error {
	if len(presets) == 0 {
		return errors.New("preset: catalog is empty")
	}

	var errs []error
	for id, p := range presets {
		if p.Label == "" {
			errs = append(errs, fmt.Errorf("preset %q: label is required", id))
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			errs = append(errs, fmt.Errorf("preset %q: temperature %v out of range [0,2]", id, p.Temperature))
		}
		if p.MaxTokens <= 0 {
			errs = append(errs, fmt.Errorf("preset %q: max_tokens must be positive", id))
		}
		if p.Behaviour == "" {
			errs = append(errs, fmt.Errorf("preset %q: behaviour is required", id))
		}
	}
	return errors.Join(errs...)
}
