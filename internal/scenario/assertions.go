package scenario

import (
	"fmt"
	"strings"

	"github.com/robertbuff/imagine/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []journal.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		switch ev.Kind {
		case journal.KindCall:
			outcome := ev.Value
			if ev.Error != "" {
				outcome = "error: " + ev.Error
			}
			fmt.Fprintf(&buf, "  [%d] call %s %s -> %s\n", i+1, ev.Fn, ev.Point, outcome)
		default:
			fmt.Fprintf(&buf, "  [%d] %s %s depth=%d\n", i+1, ev.Kind, ev.Fn, ev.Depth)
		}
	}

	return buf.String()
}

// assertTraceCount checks the mapping was called exactly the specified
// number of times.
func assertTraceCount(trace []journal.Event, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == journal.KindCall && ev.Fn == assertion.Fn {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls of %s", assertion.Count, assertion.Fn),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceOrder checks the mappings were called in the given order.
// Calls don't need to be consecutive, and the same mapping may be
// expected more than once.
func assertTraceOrder(trace []journal.Event, assertion Assertion) error {
	var calls []journal.Event
	for _, ev := range trace {
		if ev.Kind == journal.KindCall {
			calls = append(calls, ev)
		}
	}

	// Subsequence scan: each expected name consumes the next matching
	// call.
	pos := 0
	for i, want := range assertion.Fns {
		for pos < len(calls) && calls[pos].Fn != want {
			pos++
		}
		if pos == len(calls) {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Fns),
				Actual:   fmt.Sprintf("no call of %s found for position %d", want, i+1),
				Trace:    trace,
			}
		}
		pos++
	}

	return nil
}

// assertFinalDepth checks how many overrides remain active for the
// mapping after the last step.
func assertFinalDepth(result *Result, assertion Assertion) error {
	depth, ok := result.Depths[assertion.Fn]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalDepth,
			Expected: fmt.Sprintf("mapping %s in the model", assertion.Fn),
			Actual:   "mapping not found",
			Trace:    result.Trace,
		}
	}

	if depth != assertion.Depth {
		return &AssertionError{
			Type:     AssertFinalDepth,
			Expected: fmt.Sprintf("%d active overrides on %s", assertion.Depth, assertion.Fn),
			Actual:   fmt.Sprintf("%d active overrides", depth),
			Trace:    result.Trace,
		}
	}

	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertFinalDepth:
			err = assertFinalDepth(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
