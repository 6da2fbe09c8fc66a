package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Marshal renders a snapshot in the canonical golden form: two-space
// indented JSON with a trailing newline.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files are the source of truth for expected trace behavior: a
// change that alters dispatch order, token assignment or clock stamping
// shows up as a golden diff.
//
// Returns error if scenario execution fails; a trace mismatch fails t via
// goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	snapshot, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, snapshot)
}

// AssertGolden compares an already-produced snapshot against the golden
// file for scenarioName, without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, snapshot *TraceSnapshot) error {
	t.Helper()

	out, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, out)
	return nil
}
