package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vigil/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string // empty lists runs instead
	Property string // optional filter
}

// TraceResult holds the trace output for one run.
type TraceResult struct {
	RunToken string        `json:"run_token"`
	Events   []store.Event `json:"events"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats summarizes a run's trace.
type TraceStats struct {
	TotalEvents  int `json:"total_events"`
	BeforePhases int `json:"before_phases"`
	AfterPhases  int `json:"after_phases"`
	Errors       int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect persisted dispatch traces",
		Long: `Inspect dispatch traces recorded by 'vigil run --db'.

Without --run, lists the recorded run tokens. With --run, prints that
run's dispatch events in logical clock order.

Examples:
  vigil trace --db ./vigil.db
  vigil trace --db ./vigil.db --run 0198c8a2-...
  vigil trace --db ./vigil.db --run 0198c8a2-... --property balance --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run token to inspect")
	cmd.Flags().StringVar(&opts.Property, "property", "", "filter to one property")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Run == "" {
		return listRuns(ctx, st, formatter)
	}

	events, err := st.ReadRun(ctx, opts.Run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if len(events) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no events recorded for run %q", opts.Run))
	}
	if opts.Property != "" {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Property == opts.Property {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	result := TraceResult{RunToken: opts.Run, Events: events}
	for _, ev := range events {
		result.Stats.TotalEvents++
		switch ev.Phase {
		case "before":
			result.Stats.BeforePhases++
		case "after":
			result.Stats.AfterPhases++
		}
		if ev.Error != "" {
			result.Stats.Errors++
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(formatTrace(result))
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"runs": runs})
	}
	if len(runs) == 0 {
		return formatter.Success("No runs recorded.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recorded runs (%d):\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(&b, "  %s\n", run)
	}
	return formatter.Success(strings.TrimRight(b.String(), "\n"))
}

// formatTrace renders a run's events as human-readable text.
func formatTrace(result TraceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", result.RunToken)
	fmt.Fprintf(&b, "Events: %d (%d before, %d after, %d errors)\n\n",
		result.Stats.TotalEvents, result.Stats.BeforePhases,
		result.Stats.AfterPhases, result.Stats.Errors)
	for _, ev := range result.Events {
		fmt.Fprintf(&b, "  %4d  %-8s %-7s %s.%s = %s (observers: %d)",
			ev.Seq, ev.Cycle, ev.Phase, ev.Class, ev.Property, ev.Value, ev.Observers)
		if ev.Error != "" {
			fmt.Fprintf(&b, "  ERROR: %s", ev.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
