package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/robertbuff/imagine"
	"github.com/robertbuff/imagine/internal/journal"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic
// comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []journal.Event
}

// toValue lowers the snapshot into the engine's value model so the
// canonical encoder produces byte-stable output. Point and value
// fields stay in their journal text form.
func (s *TraceSnapshot) toValue() imagine.Value {
	traceList := make(imagine.Array, len(s.Trace))
	for i, ev := range s.Trace {
		event := imagine.Object{
			"seq":   imagine.Int(ev.Seq),
			"kind":  imagine.String(ev.Kind),
			"fn":    imagine.String(ev.Fn),
			"depth": imagine.Int(int64(ev.Depth)),
		}
		if ev.Point != "" {
			event["point"] = imagine.String(ev.Point)
		}
		if ev.Value != "" {
			event["value"] = imagine.String(ev.Value)
		}
		if ev.Error != "" {
			event["error"] = imagine.String(ev.Error)
		}
		if ev.Source != "" {
			event["source"] = imagine.String(ev.Source)
		}
		traceList[i] = event
	}

	return imagine.Object{
		"scenario_name": imagine.String(s.ScenarioName),
		"trace":         traceList,
	}
}

// AssertGolden compares the given result's trace against a golden file
// in testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
	}
	traceJSON, err := imagine.MarshalCanonical(snapshot.toValue())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)

	return nil
}
