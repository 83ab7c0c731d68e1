// Package scenario loads what-if scripts from YAML and replays them
// against mappings compiled from CUE models, recording every call,
// enter and exit for assertions and golden comparison.
package scenario

import (
	"context"
	"fmt"
	"sort"

	"github.com/robertbuff/imagine"
	"github.com/robertbuff/imagine/internal/journal"
	"github.com/robertbuff/imagine/internal/model"
)

// Runner executes one scenario against one compiled model.
type Runner struct {
	scenario *Scenario
	model    *model.Model
}

// NewRunner pairs a scenario with its compiled model.
func NewRunner(s *Scenario, m *model.Model) *Runner {
	return &Runner{scenario: s, model: m}
}

// Run executes all steps in order, then evaluates the assertions.
// Malformed steps (unknown names, unrepresentable values) abort the
// run with an error; failed expectations and assertions collect into
// the result instead.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	rec := journal.NewRecorder()
	ex := &execution{
		fns:    r.model.Fns(imagine.WithObserver(rec)),
		acts:   make(map[string]imagine.Activation),
		result: NewResult(),
	}

	for i := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ex.step(i, &r.scenario.Steps[i]); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	ex.result.Trace = rec.Events()
	for name, f := range ex.fns {
		ex.result.Depths[name] = f.Depth()
	}

	for _, msg := range EvaluateAssertions(ex.result, r.scenario.Assertions) {
		ex.result.AddError(msg)
	}

	return ex.result, nil
}

// execution carries the per-run state: wrapped mappings, named
// activations, and the result under construction.
type execution struct {
	fns    map[string]*imagine.Fn
	acts   map[string]imagine.Activation
	result *Result
}

func (ex *execution) step(index int, step *Step) error {
	switch {
	case step.Call != nil:
		return ex.call(index, step.Call)
	case step.Imagine != nil:
		f, ok := ex.fns[step.Imagine.Fn]
		if !ok {
			return fmt.Errorf("imagine: unknown mapping %q", step.Imagine.Fn)
		}
		act, err := buildActivation(f, step.Imagine.Overrides)
		if err != nil {
			return fmt.Errorf("imagine: %w", err)
		}
		ex.acts[step.Imagine.Name] = act
	case step.Enter != "":
		act, ok := ex.acts[step.Enter]
		if !ok {
			return fmt.Errorf("enter: unknown activation %q", step.Enter)
		}
		act.Enter()
	case step.Exit != "":
		act, ok := ex.acts[step.Exit]
		if !ok {
			return fmt.Errorf("exit: unknown activation %q", step.Exit)
		}
		if err := safeExit(act); err != nil {
			return fmt.Errorf("exit: %w", err)
		}
	case step.Rebase != nil:
		act, ok := ex.acts[step.Rebase.From]
		if !ok {
			return fmt.Errorf("rebase: unknown activation %q", step.Rebase.From)
		}
		ex.acts[step.Rebase.Name] = act.Rebase()
	case step.Combine != nil:
		combined, err := ex.combine(step.Combine)
		if err != nil {
			return err
		}
		ex.acts[step.Combine.Name] = combined
	}
	return nil
}

func (ex *execution) call(index int, step *CallStep) error {
	f, ok := ex.fns[step.Fn]
	if !ok {
		return fmt.Errorf("call: unknown mapping %q", step.Fn)
	}

	point, err := buildPoint(step.Args, step.KW)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}

	if step.Back > 0 {
		f = f.Back(step.Back)
	}

	got, err := f.Invoke(point)
	if err != nil {
		ex.result.AddError(fmt.Sprintf("steps[%d]: %s%s failed: %v", index, step.Fn, point, err))
		return nil
	}

	if step.Expect != nil {
		want, err := imagine.FromGo(step.Expect)
		if err != nil {
			return fmt.Errorf("call: expect: %w", err)
		}
		if !imagine.Equal(want, got) {
			ex.result.AddError(fmt.Sprintf("steps[%d]: %s%s = %s, want %s",
				index, step.Fn, point, renderValue(got), renderValue(want)))
		}
	}

	return nil
}

func (ex *execution) combine(step *CombineStep) (imagine.Activation, error) {
	var combined imagine.Activation
	for _, name := range step.Of {
		act, ok := ex.acts[name]
		if !ok {
			return nil, fmt.Errorf("combine: unknown activation %q", name)
		}
		if combined == nil {
			combined = act
			continue
		}
		combined = combined.Combine(act)
	}
	return combined, nil
}

// buildActivation stacks the overrides into one activation. A later
// override chains on the earlier one's head, so it shadows within the
// same activation.
func buildActivation(f *imagine.Fn, overrides []Override) (imagine.Activation, error) {
	var act *imagine.Imagined
	for i, ov := range overrides {
		value, err := imagine.FromGo(ov.Value)
		if err != nil {
			return nil, fmt.Errorf("overrides[%d].value: %w", i, err)
		}

		// No at and no kw: the override applies to every point.
		if ov.At == nil && len(ov.KW) == 0 {
			if act == nil {
				act = f.Imagine(value)
			} else {
				act = act.Imagine(value)
			}
			continue
		}

		pos := make([]imagine.Value, len(ov.At))
		for j, arg := range ov.At {
			v, err := imagine.FromGo(arg)
			if err != nil {
				return nil, fmt.Errorf("overrides[%d].at[%d]: %w", i, j, err)
			}
			pos[j] = v
		}

		var builder *imagine.At
		if act == nil {
			builder = f.At(pos...)
		} else {
			builder = act.At(pos...)
		}
		for _, name := range sortedKeys(ov.KW) {
			v, err := imagine.FromGo(ov.KW[name])
			if err != nil {
				return nil, fmt.Errorf("overrides[%d].kw.%s: %w", i, name, err)
			}
			builder = builder.KW(name, v)
		}
		act = builder.Imagine(value)
	}
	return act, nil
}

// buildPoint lowers YAML args into a point.
func buildPoint(args []any, kw map[string]any) (imagine.Point, error) {
	pos := make([]imagine.Value, len(args))
	for i, arg := range args {
		v, err := imagine.FromGo(arg)
		if err != nil {
			return imagine.Point{}, fmt.Errorf("args[%d]: %w", i, err)
		}
		pos[i] = v
	}

	point := imagine.P(pos...)
	for _, name := range sortedKeys(kw) {
		v, err := imagine.FromGo(kw[name])
		if err != nil {
			return imagine.Point{}, fmt.Errorf("kw.%s: %w", name, err)
		}
		point = point.With(name, v)
	}
	return point, nil
}

// safeExit releases the activation. Scenario files are user input, so
// the engine's misuse panic surfaces as a step error instead.
func safeExit(act imagine.Activation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	act.Exit()
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderValue(v imagine.Value) string {
	data, err := imagine.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
