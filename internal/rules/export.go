package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists the export formats.
var Formats = []string{"json", "yaml", "toml"}

// ruleSet is the document shape for yaml and toml, which want a table at
// the top level.
type ruleSet struct {
	Rules []Rule `yaml:"rules" toml:"rules"`
}

// Export writes rules to w as a JSON array, or as a yaml/toml document with
// a top-level "rules" list.
func Export(w io.Writer, rules []Rule, format string) error {
	if rules == nil {
		rules = []Rule{}
	}
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rules); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ruleSet{Rules: rules}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(ruleSet{Rules: rules}); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q (use %s)", ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}
	return nil
}

// Import reads rules written by Export.
func Import(r io.Reader, format string) ([]Rule, error) {
	var set ruleSet
	switch strings.ToLower(format) {
	case "", "json":
		if err := json.NewDecoder(r).Decode(&set.Rules); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&set); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		if err := toml.NewDecoder(r).Decode(&set); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q (use %s)", ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}
	if set.Rules == nil {
		set.Rules = []Rule{}
	}
	return set.Rules, nil
}
