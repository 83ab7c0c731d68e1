package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertbuff/imagine/internal/journal"
)

// Test helper: a result with a hand-built trace.
func resultWithTrace(events ...journal.Event) *Result {
	r := NewResult()
	r.Trace = events
	return r
}

func callEvent(seq int64, fn string) journal.Event {
	return journal.Event{Seq: seq, Kind: journal.KindCall, Fn: fn, Point: `{"kw":{},"pos":[]}`, Value: "1", Source: "original"}
}

func TestAssertTraceCount(t *testing.T) {
	trace := []journal.Event{
		callEvent(1, "price"),
		{Seq: 2, Kind: journal.KindEnter, Fn: "price", Depth: 1},
		callEvent(3, "price"),
		callEvent(4, "stock"),
	}

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Fn: "price", Count: 2})
	assert.NoError(t, err, "enter events do not count as calls")

	err = assertTraceCount(trace, Assertion{Type: AssertTraceCount, Fn: "price", Count: 3})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceCount, ae.Type)
	assert.Contains(t, ae.Actual, "2 calls")
}

func TestAssertTraceOrder_Subsequence(t *testing.T) {
	trace := []journal.Event{
		callEvent(1, "price"),
		callEvent(2, "stock"),
		callEvent(3, "price"),
	}

	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Fns: []string{"price", "stock"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Fns: []string{"stock", "price"}}))
}

func TestAssertTraceOrder_RepeatedNames(t *testing.T) {
	trace := []journal.Event{
		callEvent(1, "price"),
		callEvent(2, "stock"),
		callEvent(3, "price"),
	}

	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Fns: []string{"price", "price"}}))

	// Three expected calls of price, only two in the trace.
	err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Fns: []string{"price", "price", "price"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position 3")
}

func TestAssertTraceOrder_Missing(t *testing.T) {
	trace := []journal.Event{callEvent(1, "price")}

	err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Fns: []string{"stock"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "stock")
}

func TestAssertFinalDepth(t *testing.T) {
	r := NewResult()
	r.Depths["price"] = 2

	assert.NoError(t, assertFinalDepth(r, Assertion{Type: AssertFinalDepth, Fn: "price", Depth: 2}))

	err := assertFinalDepth(r, Assertion{Type: AssertFinalDepth, Fn: "price", Depth: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 active overrides")

	err = assertFinalDepth(r, Assertion{Type: AssertFinalDepth, Fn: "ghost", Depth: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	r := resultWithTrace(callEvent(1, "price"))
	msgs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceCount, Fn: "price", Count: 5},
		{Type: "bogus"},
		{Type: AssertTraceCount, Fn: "price", Count: 1},
	})

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Assertion failed: trace_count")
	assert.Contains(t, msgs[1], "unknown assertion type")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 calls of price",
		Actual:   "1 calls",
		Trace: []journal.Event{
			callEvent(1, "price"),
			{Seq: 2, Kind: journal.KindEnter, Fn: "price", Depth: 1},
			{Seq: 3, Kind: journal.KindCall, Fn: "price", Point: `{"kw":{},"pos":[]}`, Error: "boom"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 calls of price")
	assert.Contains(t, msg, "Actual: 1 calls")
	assert.Contains(t, msg, "[1] call price")
	assert.Contains(t, msg, "[2] enter price depth=1")
	assert.Contains(t, msg, "error: boom")
}
