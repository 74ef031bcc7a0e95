package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/record"
)

// Scenario is a build record together with what must be true of it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Record is the build to import.
	Record record.Record `yaml:"record"`

	// Expect lists the expectations, checked in order.
	Expect []Assertion `yaml:"expect"`
}

// Assertion is one expectation. Which fields apply depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// From is the start set for derived and inputs.
	From []string `yaml:"from,omitempty"`

	// Transitive selects the closure instead of one hop.
	Transitive bool `yaml:"transitive,omitempty"`

	// Equals is the exact expected set (derived, inputs, write_only, never_accessed).
	Equals []string `yaml:"equals,omitempty"`

	// Contains is a subset the result must include (derived, inputs).
	Contains []string `yaml:"contains,omitempty"`

	// Paths must not resolve (missing).
	Paths []string `yaml:"paths,omitempty"`

	// Action is an index into the record's actions (state).
	Action int `yaml:"action,omitempty"`

	// Path is the accessed path (state).
	Path string `yaml:"path,omitempty"`

	// Op is the expected observable op, or "none" (state).
	Op string `yaml:"op,omitempty"`
}

// Assertion type constants.
const (
	AssertDerived       = "derived"
	AssertInputs        = "inputs"
	AssertMissing       = "missing"
	AssertState         = "state"
	AssertWriteOnly     = "write_only"
	AssertNeverAccessed = "never_accessed"
)

// opNone marks a state assertion that expects no access record.
const opNone = "none"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
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

	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}

	for i := range s.Expect {
		if err := validateAssertion(i, &s.Expect[i], len(s.Record.Actions)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, actions int) error {
	if a.Type == "" {
		return fmt.Errorf("expect[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDerived, AssertInputs:
		if len(a.From) == 0 {
			return fmt.Errorf("expect[%d]: from is required for %s", index, a.Type)
		}
		if a.Equals == nil && a.Contains == nil {
			return fmt.Errorf("expect[%d]: equals or contains is required for %s", index, a.Type)
		}
	case AssertMissing:
		if len(a.Paths) == 0 {
			return fmt.Errorf("expect[%d]: paths is required for missing", index)
		}
	case AssertState:
		if a.Action < 0 || a.Action >= actions {
			return fmt.Errorf("expect[%d]: action %d is out of range (record has %d actions)", index, a.Action, actions)
		}
		if a.Path == "" {
			return fmt.Errorf("expect[%d]: path is required for state", index)
		}
		if a.Op != opNone {
			op, err := graph.ParseOpType(a.Op)
			if err != nil || !op.IsRaw() {
				return fmt.Errorf("expect[%d]: op must be read, write, modified, delete or none, got %q", index, a.Op)
			}
		}
	case AssertWriteOnly, AssertNeverAccessed:
		// equals may be empty: the report must then be empty too
	default:
		return fmt.Errorf("expect[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
