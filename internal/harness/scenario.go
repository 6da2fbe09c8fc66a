package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a sequence of steps executed
// against a fresh demo Account on an isolated runtime.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are stored as
	// testdata/golden/{Name}.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Steps is the ordered list of operations to perform.
	Steps []Step `yaml:"steps"`
}

// Step is one scenario operation. Exactly one of its fields must be set.
type Step struct {
	Subscribe   *SubscribeStep   `yaml:"subscribe,omitempty"`
	Unsubscribe *UnsubscribeStep `yaml:"unsubscribe,omitempty"`
	Set         *SetStep         `yaml:"set,omitempty"`
	Update      *UpdateStep      `yaml:"update,omitempty"`
	Notify      *NotifyStep      `yaml:"notify,omitempty"`
}

// SubscribeStep registers a built-in observer (see builtinObservers) for a
// property. Phase defaults to "after".
type SubscribeStep struct {
	Observer string `yaml:"observer"`
	Property string `yaml:"property"`
	Phase    string `yaml:"phase,omitempty"`
}

// UnsubscribeStep removes a built-in observer. An empty property is the
// wildcard. ExpectRemoved, when set, asserts the boolean result.
type UnsubscribeStep struct {
	Observer      string `yaml:"observer"`
	Property      string `yaml:"property,omitempty"`
	ExpectRemoved *bool  `yaml:"expect_removed,omitempty"`
}

// SetStep writes a property through the managed setter path.
type SetStep struct {
	Property string `yaml:"property"`
	Value    any    `yaml:"value"`

	// ExpectError, when non-empty, asserts that the write fails and that
	// the error text contains this substring. Property error codes
	// (e.g. "REENTRANT_WRITE") work as substrings.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// UpdateStep runs a scoped update for a computed property, applying the
// given backing-field values inside the scope. A non-empty Fail makes the
// enclosed mutation return that error after applying the fields, which must
// suppress the dispatch.
type UpdateStep struct {
	Property    string         `yaml:"property"`
	Fields      map[string]any `yaml:"fields,omitempty"`
	Fail        string         `yaml:"fail,omitempty"`
	ExpectError string         `yaml:"expect_error,omitempty"`
}

// NotifyStep fires an explicit notification with a caller-supplied value.
// Phase defaults to "after".
type NotifyStep struct {
	Property    string `yaml:"property"`
	Value       any    `yaml:"value"`
	Phase       string `yaml:"phase,omitempty"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Load reads and validates a scenario from a YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var scenario Scenario
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// Validate checks structural requirements before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, step := range s.Steps {
		n := 0
		if step.Subscribe != nil {
			n++
		}
		if step.Unsubscribe != nil {
			n++
		}
		if step.Set != nil {
			n++
		}
		if step.Update != nil {
			n++
		}
		if step.Notify != nil {
			n++
		}
		if n != 1 {
			return fmt.Errorf("step %d must have exactly one operation, has %d", i, n)
		}
	}
	return nil
}
