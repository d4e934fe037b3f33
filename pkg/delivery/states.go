package delivery

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed states/ng.yaml
var defaultStatesYAML []byte

// StateTable resolves storefront state codes to provider labels and applies
// the provider's label aliases.
type StateTable struct {
	Country string            `yaml:"country"`
	States  map[string]string `yaml:"states"`
	Aliases []StateAlias      `yaml:"aliases"`
}

// StateAlias rewrites any label containing Match (case-insensitive) to Label.
type StateAlias struct {
	Match string `yaml:"match"`
	Label string `yaml:"label"`
}

// ParseStateTable decodes a YAML state table.
func ParseStateTable(data []byte) (*StateTable, error) {
	var t StateTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing state table: %w", err)
	}
	if len(t.States) == 0 {
		return nil, fmt.Errorf("parsing state table: no states")
	}
	return &t, nil
}

// DefaultStateTable returns the embedded Nigerian state table.
func DefaultStateTable() *StateTable {
	t, err := ParseStateTable(defaultStatesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Label returns the label for a state code. Values that are not known codes
// are assumed to already be labels and are returned trimmed.
func (t *StateTable) Label(codeOrLabel string) string {
	v := strings.TrimSpace(codeOrLabel)
	if label, ok := t.States[strings.ToUpper(v)]; ok {
		return label
	}
	return v
}

// Normalize rewrites a label according to the alias rules.
func (t *StateTable) Normalize(label string) string {
	lower := strings.ToLower(label)
	for _, a := range t.Aliases {
		if a.Match != "" && strings.Contains(lower, strings.ToLower(a.Match)) {
			return a.Label
		}
	}
	return label
}

// Resolve maps a code or label to the normalized label sent to the provider.
func (t *StateTable) Resolve(codeOrLabel string) string {
	return t.Normalize(t.Label(codeOrLabel))
}
