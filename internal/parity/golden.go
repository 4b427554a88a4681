package parity

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scopeq/internal/ir"
)

// Snapshot renders a result's trace as canonical JSON.
func Snapshot(name string, r *Result) ([]byte, error) {
	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		event := map[string]any{
			"seq":     ev.Seq,
			"model":   ev.Model,
			"action":  ev.Action,
			"outcome": ev.Outcome.canonicalMap(),
		}
		if ev.Step != "" {
			event["step"] = ev.Step
		}
		trace[i] = event
	}
	backends := make([]any, len(r.Backends))
	for i, b := range r.Backends {
		backends[i] = b
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario": name,
		"backends": backends,
		"trace":    trace,
	})
}

// RunWithGolden runs a scenario on the default backends, fails the test
// on any disagreement and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/parity -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", s.Name, msg)
	}

	snapshot, err := Snapshot(s.Name, result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", s.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, snapshot)
	return result
}
