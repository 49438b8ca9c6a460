// Package preset holds the style preset catalog and the prompt
// templates built from it. Presets are declarative data (YAML), so
// tuning wording or sampling never touches code.
package preset

import (
	"sort"

	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
)

// Example is one worked input/output pair shown to the model few-shot.
type Example struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// Preset is one rewriting style: sampling knobs plus behavioural
// instructions and worked examples.
type Preset struct {
	Label       string    `yaml:"label"`
	Temperature float32   `yaml:"temperature"`
	MaxTokens   int       `yaml:"max_tokens"`
	Behaviour   string    `yaml:"behaviour"`
	Examples    []Example `yaml:"examples"`
}

// Params returns the sampling parameters for this preset.
func (p Preset) Params() llm.Params {
	return llm.Params{Temperature: p.Temperature, MaxTokens: p.MaxTokens}
}

// Catalog is the fixed, validated set of presets for this process.
type Catalog struct {
	presets map[string]Preset
}

// Get looks up a preset by identifier.
func (c *Catalog) Get(id string) (Preset, bool) {
	p, ok := c.presets[id]
	return p, ok
}

// IDs returns the known preset identifiers, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.presets))
	for id := range c.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of presets in the catalog.
func (c *Catalog) Len() int {
	return len(c.presets)
}
