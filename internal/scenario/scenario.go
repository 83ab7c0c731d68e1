package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a what-if script: a model to load, a sequence of
// steps against its mappings, and assertions on the recorded trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Model is the path to the CUE model file declaring the mappings.
	// Relative paths resolve against the scenario file location.
	Model string `yaml:"model"`

	// Session is an optional fixed session token for deterministic
	// journal output. If empty, the CLI generates one.
	Session string `yaml:"session,omitempty"`

	// Steps is the main script - calls, override bindings, and scope
	// transitions, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the recorded trace and final scope depths.
	// Supported types: trace_count, trace_order, final_depth
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step declares exactly one operation.
type Step struct {
	// Call invokes a mapping and optionally checks its result.
	Call *CallStep `yaml:"call,omitempty"`

	// Imagine binds a named activation without entering it.
	Imagine *ImagineStep `yaml:"imagine,omitempty"`

	// Enter activates a previously bound activation.
	Enter string `yaml:"enter,omitempty"`

	// Exit releases a previously entered activation.
	Exit string `yaml:"exit,omitempty"`

	// Rebase binds a new activation carrying another one's overrides
	// on top of whatever is active now.
	Rebase *RebaseStep `yaml:"rebase,omitempty"`

	// Combine binds a new activation grouping others left to right.
	Combine *CombineStep `yaml:"combine,omitempty"`
}

// CallStep invokes a mapping at a point.
type CallStep struct {
	// Fn names the mapping to call.
	Fn string `yaml:"fn"`

	// Args are the positional arguments.
	Args []any `yaml:"args,omitempty"`

	// KW are the keyword arguments.
	KW map[string]any `yaml:"kw,omitempty"`

	// Back calls an earlier generation of the override stack instead
	// of the current one.
	Back int `yaml:"back,omitempty"`

	// Expect is the expected result. If absent, the call result is
	// recorded but not checked.
	Expect any `yaml:"expect,omitempty"`
}

// ImagineStep binds one activation built from a list of overrides.
// Overrides stack within the activation in declaration order, so a
// later override shadows an earlier one for the same point.
type ImagineStep struct {
	Name      string     `yaml:"name"`
	Fn        string     `yaml:"fn"`
	Overrides []Override `yaml:"overrides"`
}

// Override replaces the mapping's result either at one point (at/kw)
// or, when both are absent, at every point.
type Override struct {
	At    []any          `yaml:"at,omitempty"`
	KW    map[string]any `yaml:"kw,omitempty"`
	Value any            `yaml:"value"`
}

// RebaseStep binds a new activation carrying the From activation's
// overrides on top of whatever is active when the step runs.
type RebaseStep struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
}

// CombineStep groups the Of activations into one, entered left to
// right and exited in exact reverse.
type CombineStep struct {
	Name string   `yaml:"name"`
	Of   []string `yaml:"of"`
}

// Assertion validates the trace or a final scope depth.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": mapping was called exactly N times
	// - "trace_order": mappings were called in this order
	// - "final_depth": mapping ends with this many active overrides
	Type string `yaml:"type"`

	// Fn is the mapping name (trace_count, final_depth).
	Fn string `yaml:"fn,omitempty"`

	// Count is the expected number of calls (trace_count).
	Count int `yaml:"count,omitempty"`

	// Fns is the expected call order (trace_order).
	Fns []string `yaml:"fns,omitempty"`

	// Depth is the expected number of active overrides (final_depth).
	Depth int `yaml:"depth,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalDepth = "final_depth"
)

// Load reads and parses a scenario YAML file. The model path is
// resolved relative to the scenario file location.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if s.Model != "" && !filepath.IsAbs(s.Model) {
		s.Model = filepath.Join(filepath.Dir(path), s.Model)
	}

	return s, nil
}

// Parse parses and validates scenario YAML. Strict field validation
// catches typos like "assertion:" vs "assertions:".
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step declares exactly one operation with
// its required fields.
func validateStep(index int, step *Step) error {
	declared := 0
	if step.Call != nil {
		declared++
	}
	if step.Imagine != nil {
		declared++
	}
	if step.Enter != "" {
		declared++
	}
	if step.Exit != "" {
		declared++
	}
	if step.Rebase != nil {
		declared++
	}
	if step.Combine != nil {
		declared++
	}
	if declared == 0 {
		return fmt.Errorf("steps[%d]: one of call, imagine, enter, exit, rebase, combine is required", index)
	}
	if declared > 1 {
		return fmt.Errorf("steps[%d]: a step declares exactly one operation", index)
	}

	switch {
	case step.Call != nil:
		if step.Call.Fn == "" {
			return fmt.Errorf("steps[%d].call: fn is required", index)
		}
		if step.Call.Back < 0 {
			return fmt.Errorf("steps[%d].call: back must be non-negative", index)
		}
	case step.Imagine != nil:
		if step.Imagine.Name == "" {
			return fmt.Errorf("steps[%d].imagine: name is required", index)
		}
		if step.Imagine.Fn == "" {
			return fmt.Errorf("steps[%d].imagine: fn is required", index)
		}
		if len(step.Imagine.Overrides) == 0 {
			return fmt.Errorf("steps[%d].imagine: overrides list is required and must be non-empty", index)
		}
		for j := range step.Imagine.Overrides {
			if step.Imagine.Overrides[j].Value == nil {
				return fmt.Errorf("steps[%d].imagine.overrides[%d]: value is required", index, j)
			}
		}
	case step.Rebase != nil:
		if step.Rebase.Name == "" {
			return fmt.Errorf("steps[%d].rebase: name is required", index)
		}
		if step.Rebase.From == "" {
			return fmt.Errorf("steps[%d].rebase: from is required", index)
		}
	case step.Combine != nil:
		if step.Combine.Name == "" {
			return fmt.Errorf("steps[%d].combine: name is required", index)
		}
		if len(step.Combine.Of) < 2 {
			return fmt.Errorf("steps[%d].combine: of needs at least two activations", index)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceCount:
		if a.Fn == "" {
			return fmt.Errorf("assertions[%d]: fn is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Fns) == 0 {
			return fmt.Errorf("assertions[%d]: fns list is required for trace_order", index)
		}
	case AssertFinalDepth:
		if a.Fn == "" {
			return fmt.Errorf("assertions[%d]: fn is required for final_depth", index)
		}
		if a.Depth < 0 {
			return fmt.Errorf("assertions[%d]: depth must be non-negative for final_depth", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
