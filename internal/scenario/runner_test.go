package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertbuff/imagine"
	"github.com/robertbuff/imagine/internal/journal"
	"github.com/robertbuff/imagine/internal/model"
)

const priceModel = `
	mapping: price: {
		table: [{at: [1], value: 100}]
		default: 0
	}
`

// Test helper: compile a model and run a scenario script against it.
func runScript(t *testing.T, modelSource, scenarioYAML string) *Result {
	t.Helper()
	m, err := model.Compile(modelSource)
	require.NoError(t, err)
	s, err := Parse([]byte(scenarioYAML))
	require.NoError(t, err)
	result, err := NewRunner(s, m).Run(context.Background())
	require.NoError(t, err)
	return result
}

// Test helper: run a scenario expected to abort with a step error.
func runScriptErr(t *testing.T, modelSource, scenarioYAML string) error {
	t.Helper()
	m, err := model.Compile(modelSource)
	require.NoError(t, err)
	s, err := Parse([]byte(scenarioYAML))
	require.NoError(t, err)
	_, err = NewRunner(s, m).Run(context.Background())
	require.Error(t, err)
	return err
}

func TestRunner_CallAgainstModel(t *testing.T) {
	result := runScript(t, priceModel, `
name: plain-call
description: "A call with no overrides runs the mapping body"
model: unused.cue
steps:
  - call:
      fn: price
      args: [1]
      expect: 100
`)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, journal.KindCall, result.Trace[0].Kind)
	assert.Equal(t, string(imagine.SourceOriginal), result.Trace[0].Source)
	assert.Equal(t, 0, result.Depths["price"])
}

func TestRunner_OverrideScope(t *testing.T) {
	result := runScript(t, priceModel, `
name: override-scope
description: "An entered override wins, and exit restores the body"
model: unused.cue
steps:
  - imagine:
      name: w
      fn: price
      overrides:
        - at: [1]
          value: -5
  - enter: w
  - call:
      fn: price
      args: [1]
      expect: -5
  - exit: w
  - call:
      fn: price
      args: [1]
      expect: 100
assertions:
  - type: trace_count
    fn: price
    count: 2
  - type: final_depth
    fn: price
    depth: 0
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "-5", result.Trace[1].Value)
	assert.Equal(t, "100", result.Trace[3].Value)
}

func TestRunner_ExpectationFailureCollects(t *testing.T) {
	result := runScript(t, priceModel, `
name: wrong-expect
description: "A wrong expectation fails the result but keeps running"
model: unused.cue
steps:
  - call:
      fn: price
      args: [1]
      expect: 7
  - call:
      fn: price
      args: [1]
      expect: 100
`)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "want 7")
	assert.Len(t, result.Trace, 2, "the run continues after a failed expectation")
}

func TestRunner_UniversalOverride(t *testing.T) {
	result := runScript(t, priceModel, `
name: universal
description: "An override without at applies to every point"
model: unused.cue
steps:
  - imagine:
      name: all
      fn: price
      overrides:
        - value: 42
  - enter: all
  - call:
      fn: price
      args: [1]
      expect: 42
  - call:
      fn: price
      args: ["anything"]
      expect: 42
  - exit: all
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunner_OverridesStackWithinActivation(t *testing.T) {
	result := runScript(t, priceModel, `
name: stacking
description: "Later overrides in one imagine shadow earlier ones"
model: unused.cue
steps:
  - imagine:
      name: w
      fn: price
      overrides:
        - at: [1]
          value: 10
        - at: [2]
          value: 20
        - at: [1]
          value: 30
  - enter: w
  - call:
      fn: price
      args: [1]
      expect: 30
  - call:
      fn: price
      args: [2]
      expect: 20
  - exit: w
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunner_KeywordOverride(t *testing.T) {
	result := runScript(t, priceModel, `
name: keyword
description: "Keyword arguments are part of the point"
model: unused.cue
steps:
  - imagine:
      name: w
      fn: price
      overrides:
        - at: [1]
          kw:
            mode: fast
          value: 8
  - enter: w
  - call:
      fn: price
      args: [1]
      kw:
        mode: fast
      expect: 8
  - call:
      fn: price
      args: [1]
      expect: 100
  - exit: w
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunner_RebaseInheritsLiveOverrides(t *testing.T) {
	result := runScript(t, priceModel, `
name: rebase
description: "A rebased activation carries its overrides onto the live chain"
model: unused.cue
steps:
  - imagine:
      name: a
      fn: price
      overrides:
        - at: [2]
          value: 5
  - imagine:
      name: b
      fn: price
      overrides:
        - at: [1]
          value: 7
  - enter: a
  - rebase:
      name: b2
      from: b
  - enter: b2
  - call:
      fn: price
      args: [1]
      expect: 7
  - call:
      fn: price
      args: [2]
      expect: 5
  - exit: b2
  - exit: a
  - call:
      fn: price
      args: [2]
      expect: 0
assertions:
  - type: final_depth
    fn: price
    depth: 0
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunner_CombineEntersInOrder(t *testing.T) {
	result := runScript(t, `
		mapping: f: { default: 1 }
		mapping: g: { default: 2 }
	`, `
name: combined
description: "A combined activation enters left to right and exits mirrored"
model: unused.cue
steps:
  - imagine:
      name: wf
      fn: f
      overrides:
        - value: 10
  - imagine:
      name: wg
      fn: g
      overrides:
        - value: 20
  - combine:
      name: both
      of: [wf, wg]
  - enter: both
  - call:
      fn: f
      expect: 10
  - call:
      fn: g
      expect: 20
  - exit: both
  - call:
      fn: f
      expect: 1
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 7)

	assert.Equal(t, journal.KindEnter, result.Trace[0].Kind)
	assert.Equal(t, "f", result.Trace[0].Fn)
	assert.Equal(t, journal.KindEnter, result.Trace[1].Kind)
	assert.Equal(t, "g", result.Trace[1].Fn)

	// Mirrored exit: g first, then f.
	assert.Equal(t, journal.KindExit, result.Trace[4].Kind)
	assert.Equal(t, "g", result.Trace[4].Fn)
	assert.Equal(t, journal.KindExit, result.Trace[5].Kind)
	assert.Equal(t, "f", result.Trace[5].Fn)
}

func TestRunner_BackLooksBehind(t *testing.T) {
	result := runScript(t, priceModel, `
name: lookback
description: "Back skips the most recent activations"
model: unused.cue
steps:
  - imagine:
      name: w1
      fn: price
      overrides:
        - at: [1]
          value: 10
  - enter: w1
  - imagine:
      name: w2
      fn: price
      overrides:
        - at: [1]
          value: 20
  - enter: w2
  - call:
      fn: price
      args: [1]
      expect: 20
  - call:
      fn: price
      args: [1]
      back: 1
      expect: 10
  - call:
      fn: price
      args: [1]
      back: 2
      expect: 100
assertions:
  - type: final_depth
    fn: price
    depth: 2
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Depths["price"])
}

func TestRunner_CallErrorRecorded(t *testing.T) {
	result := runScript(t, `
		mapping: sparse: {
			table: [{at: [1], value: 100}]
		}
	`, `
name: undefined-point
description: "A call outside the table fails the result"
model: unused.cue
steps:
  - call:
      fn: sparse
      args: [9]
`)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "undefined")
	require.Len(t, result.Trace, 1)
	assert.NotEmpty(t, result.Trace[0].Error)
}

func TestRunner_UnknownMappingAborts(t *testing.T) {
	err := runScriptErr(t, priceModel, `
name: unknown-fn
description: "Calling an undeclared mapping aborts the run"
model: unused.cue
steps:
  - call:
      fn: nope
`)
	assert.Contains(t, err.Error(), `unknown mapping "nope"`)
}

func TestRunner_UnknownActivationAborts(t *testing.T) {
	err := runScriptErr(t, priceModel, `
name: unknown-activation
description: "Entering an unbound name aborts the run"
model: unused.cue
steps:
  - enter: w
`)
	assert.Contains(t, err.Error(), `unknown activation "w"`)
}

func TestRunner_ExitWithoutEnterIsStepError(t *testing.T) {
	err := runScriptErr(t, priceModel, `
name: exit-unbalanced
description: "Exiting an activation that was never entered aborts the run"
model: unused.cue
steps:
  - imagine:
      name: w
      fn: price
      overrides:
        - at: [1]
          value: -5
  - exit: w
`)
	assert.Contains(t, err.Error(), "steps[1]")
	assert.Contains(t, err.Error(), "never entered")
}

func TestRunner_ContextCancelled(t *testing.T) {
	m, err := model.Compile(priceModel)
	require.NoError(t, err)
	s, err := Parse([]byte(`
name: cancelled
description: "A cancelled context stops the run"
model: unused.cue
steps:
  - call:
      fn: price
      args: [1]
`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner(s, m).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
