// Package harness executes declarative scenarios against the observable
// runtime and captures dispatch traces for verification.
//
// A scenario is a YAML file describing a sequence of steps (subscribe, set,
// unsubscribe, update, notify) performed on a demo Account instance with a
// fixed set of built-in observers. Running a scenario produces a
// TraceSnapshot: the ordered dispatch telemetry plus the observer call log.
//
// Snapshots are deterministic: the runtime is built with a sequential token
// generator and event ordering is defined by the logical clock, so the same
// scenario always yields byte-identical JSON. Golden files under
// testdata/golden are the source of truth for expected traces; regenerate
// them with:
//
//	go test ./internal/harness -update
//
// The harness backs both the package's own conformance tests and the
// `vigil run` CLI command.
package harness
