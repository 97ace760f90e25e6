package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one mirror behaviour test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is the mirrored table, "items" (schema tk) when empty.
	Table string `yaml:"table,omitempty"`

	// PruneTail opens the mirror with Options.PruneTail.
	PruneTail bool `yaml:"prune_tail,omitempty"`

	// Seed rows are stored before the mirror opens.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action against the mirror, its clock or its gateway.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Row is the position of the row to edit (set, delete).
	Row int `yaml:"row,omitempty"`

	// Path names the field to write or delete. Leading elements walk
	// nested objects.
	Path []string `yaml:"path,omitempty"`

	// Value is written by set.
	Value any `yaml:"value,omitempty"`

	// Start and Count drive splice; Items are inserted by splice and
	// appended one by one by push.
	Start int              `yaml:"start,omitempty"`
	Count int              `yaml:"count,omitempty"`
	Items []map[string]any `yaml:"items,omitempty"`

	// Ms is the virtual time advanced by advance.
	Ms int `yaml:"ms,omitempty"`

	// Target and Error drive fail: Target is a gateway op ("upsert",
	// "delete"), an empty Error clears the failure.
	Target string `yaml:"target,omitempty"`
	Error  string `yaml:"error,omitempty"`
}

// Step ops.
const (
	OpSet     = "set"
	OpDelete  = "delete"
	OpPush    = "push"
	OpSplice  = "splice"
	OpAdvance = "advance"
	OpFlush   = "flush"
	OpFail    = "fail"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpSet, OpDelete:
			if len(step.Path) == 0 {
				return fmt.Errorf("step %d: %s requires a path", i, step.Op)
			}
		case OpPush:
			if len(step.Items) == 0 {
				return fmt.Errorf("step %d: push requires items", i)
			}
		case OpAdvance:
			if step.Ms <= 0 {
				return fmt.Errorf("step %d: advance requires ms > 0", i)
			}
		case OpFail:
			if step.Target == "" {
				return fmt.Errorf("step %d: fail requires a target", i)
			}
		case OpSplice, OpFlush:
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if !knownAssertion(a.Type) {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
