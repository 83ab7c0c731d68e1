package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/robertbuff/imagine/internal/journal"
	"github.com/robertbuff/imagine/internal/model"
	"github.com/robertbuff/imagine/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Label    string

	// Tokens allows overriding the session token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens journal.TokenGenerator
}

// RunReport is the run command's result payload.
type RunReport struct {
	Scenario string          `json:"scenario"`
	Pass     bool            `json:"pass"`
	Session  string          `json:"session,omitempty"`
	Trace    []journal.Event `json:"trace"`
	Errors   []string        `json:"errors,omitempty"`
	Depths   map[string]int  `json:"depths"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a what-if scenario",
		Long: `Run a what-if scenario against its CUE model.

The scenario's model is compiled, every step executes in order, and the
recorded trace is printed. Missed expectations and failed assertions are
collected without stopping the run. With --db the session journal is
persisted to SQLite for later inspection with the trace command.

Exit codes:
  0 - Scenario passed
  1 - Expectations or assertions failed
  2 - Command error (invalid paths, bad scenario, database errors)

Examples:
  imagine run ./scenarios/price-override.yaml
  imagine run ./scenarios/price-override.yaml --db ./journal.db --label nightly
  imagine run ./scenarios/price-override.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal database (optional)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "session label stored in the journal")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	s, err := scenario.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	slog.Debug("scenario loaded", "name", s.Name, "steps", len(s.Steps))

	m, err := model.Load(s.Model)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile model", err)
	}
	slog.Debug("model compiled", "mappings", len(m.Mappings))

	// Use command's context if available (for testing), otherwise create one
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := scenario.NewRunner(s, m).Run(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	report := RunReport{
		Scenario: s.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
		Depths:   result.Depths,
	}

	if opts.Database != "" {
		token, err := persistJournal(ctx, opts, s, result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to persist journal", err)
		}
		report.Session = token
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, report)
	}
	return outputRunText(cmd, report, opts.Verbose)
}

// persistJournal writes the session record and the recorded trace to the
// journal database. A fixed session token in the scenario wins over the
// generated one, so repeated runs of the same script land on the same rows.
func persistJournal(ctx context.Context, opts *RunOptions, s *scenario.Scenario, result *scenario.Result) (string, error) {
	st, err := journal.Open(opts.Database)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing journal database", "error", closeErr)
		}
	}()

	token := s.Session
	if token == "" {
		gen := opts.Tokens
		if gen == nil {
			gen = journal.UUIDv7Generator{}
		}
		token = gen.Generate()
	}

	sess := journal.NewSession(token, opts.Label)
	if err := st.WriteSession(ctx, sess); err != nil {
		return "", err
	}
	if err := st.WriteEvents(ctx, token, result.Trace); err != nil {
		return "", err
	}
	slog.Info("journal written", "db", opts.Database, "session", token, "events", len(result.Trace))
	return token, nil
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(cmd *cobra.Command, report RunReport) error {
	response := CLIResponse{
		Status:  "ok",
		Data:    report,
		Session: report.Session,
	}
	if !report.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenario,
			Message: fmt.Sprintf("%d error(s)", len(report.Errors)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.Pass {
		// Scenario failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", report.Scenario, len(report.Errors)))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(cmd *cobra.Command, report RunReport, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario: %s\n", report.Scenario)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	if len(report.Trace) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, e := range report.Trace {
			fmt.Fprintf(w, "  %s\n", formatEventLine(e))
			if verbose && e.SceneHash != "" {
				fmt.Fprintf(w, "       chain: %s\n", e.SceneHash)
			}
		}
	}
	fmt.Fprintln(w)

	if verbose && len(report.Depths) > 0 {
		fmt.Fprintln(w, "=== Final depths ===")
		names := make([]string, 0, len(report.Depths))
		for name := range report.Depths {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, report.Depths[name])
		}
		fmt.Fprintln(w)
	}

	if report.Session != "" {
		fmt.Fprintf(w, "Session: %s\n", report.Session)
	}

	if !report.Pass {
		fmt.Fprintf(w, "✗ %s\n", report.Scenario)
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		// Scenario failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", report.Scenario, len(report.Errors)))
	}

	fmt.Fprintf(w, "✓ %s (%d events)\n", report.Scenario, len(report.Trace))
	return nil
}

// formatEventLine renders one journal event for text output.
func formatEventLine(e journal.Event) string {
	if e.Kind == journal.KindCall {
		if e.Error != "" {
			return fmt.Sprintf("[%d] call %s %s -> error: %s", e.Seq, e.Fn, e.Point, e.Error)
		}
		return fmt.Sprintf("[%d] call %s %s -> %s (%s)", e.Seq, e.Fn, e.Point, e.Value, e.Source)
	}
	return fmt.Sprintf("[%d] %s %s depth=%d", e.Seq, e.Kind, e.Fn, e.Depth)
}
