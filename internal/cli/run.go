package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vigil/internal/harness"
	"github.com/roach88/vigil/internal/store"
	"github.com/roach88/vigil/observable"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// TokenGenerator overrides the run-token generator (for testing).
	// Defaults to UUIDv7Generator.
	TokenGenerator observable.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scenario and print its dispatch trace",
		Long: `Execute an observable-property scenario against the demo account.

The scenario file describes a sequence of subscribe, set, update, notify
and unsubscribe steps. The command runs them on an isolated runtime and
prints the resulting dispatch trace. With --db, the trace is also
persisted to SQLite for later inspection with 'vigil trace'.

Example:
  vigil run testdata/scenarios/basic-write.yaml
  vigil run --db ./vigil.db scenario.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (optional)")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	scenario, err := harness.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	slog.Debug("scenario loaded", "name", scenario.Name, "steps", len(scenario.Steps))

	var recording *store.RecordingHook
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.TokenGenerator
		if gen == nil {
			gen = observable.UUIDv7Generator{}
		}
		recording = store.NewRecordingHook(st, gen.Generate())
		slog.Info("persisting trace", "db", opts.Database, "run", recording.RunToken())
	}

	var hook observable.Hook
	if recording != nil {
		hook = recording
	}
	snapshot, err := harness.RunWithHook(scenario, hook)
	if err != nil {
		return WrapExitError(ExitFailure, "scenario failed", err)
	}
	if recording != nil && recording.Failures() > 0 {
		slog.Warn("some dispatch events were not persisted", "failures", recording.Failures())
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(snapshot)
	}
	return formatter.Success(formatSnapshot(snapshot, recording))
}

// formatSnapshot renders a snapshot as human-readable text.
func formatSnapshot(snap *harness.TraceSnapshot, recording *store.RecordingHook) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", snap.Scenario)
	if recording != nil {
		fmt.Fprintf(&b, "Run:      %s\n", recording.RunToken())
	}

	fmt.Fprintf(&b, "\nTrace (%d dispatches):\n", len(snap.Trace))
	for _, ev := range snap.Trace {
		fmt.Fprintf(&b, "  %4d  %-8s %-7s %s.%s = %v (observers: %d)",
			ev.Seq, ev.Cycle, ev.Phase, ev.Class, ev.Property, ev.Value, ev.Observers)
		if ev.Error != "" {
			fmt.Fprintf(&b, "  ERROR: %s", ev.Error)
		}
		b.WriteString("\n")
	}

	if len(snap.ObserverLog) > 0 {
		b.WriteString("\nObserver log:\n")
		for _, line := range snap.ObserverLog {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if len(snap.Errors) > 0 {
		b.WriteString("\nExpected errors:\n")
		for _, line := range snap.Errors {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
