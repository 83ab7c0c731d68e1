package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robertbuff/imagine/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Fn       string // optional - filter to one mapping
}

// SessionListing is the trace command's payload when no session is given.
type SessionListing struct {
	Sessions []journal.Session `json:"sessions"`
}

// SessionTrace is the trace command's payload for one session.
type SessionTrace struct {
	Session string          `json:"session"`
	Events  []journal.Event `json:"events"`
	Calls   int             `json:"calls"`
	Enters  int             `json:"enters"`
	Exits   int             `json:"exits"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded sessions",
		Long: `Inspect journal sessions recorded by run --db.

Without --session, lists all recorded sessions oldest first. With
--session, prints that session's events in seq order; --fn narrows the
dump to the calls and scope transitions of one mapping.

Examples:
  imagine trace --db ./journal.db
  imagine trace --db ./journal.db --session nightly-42
  imagine trace --db ./journal.db --session nightly-42 --fn price
  imagine trace --db ./journal.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to dump")
	cmd.Flags().StringVar(&opts.Fn, "fn", "", "filter to one mapping")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening a missing path would create an empty journal; inspect only.
	if _, err := os.Stat(opts.Database); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(ctx, st, opts, cmd)
	}
	return dumpSession(ctx, st, opts, cmd)
}

// listSessions prints every recorded session, oldest first.
func listSessions(ctx context.Context, st *journal.Store, opts *TraceOptions, cmd *cobra.Command) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, SessionListing{Sessions: sessions})
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}

	for _, sess := range sessions {
		line := fmt.Sprintf("%s  %s  engine %s", sess.Token, sess.StartedAt.Format(time.RFC3339), sess.EngineVersion)
		if sess.Label != "" {
			line += "  " + sess.Label
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// dumpSession prints one session's events in seq order.
func dumpSession(ctx context.Context, st *journal.Store, opts *TraceOptions, cmd *cobra.Command) error {
	var events []journal.Event
	var err error
	if opts.Fn != "" {
		events, err = st.ReadSessionFn(ctx, opts.Session, opts.Fn)
	} else {
		events, err = st.ReadSession(ctx, opts.Session)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	trace := SessionTrace{Session: opts.Session, Events: events}
	for _, e := range events {
		switch e.Kind {
		case journal.KindCall:
			trace.Calls++
		case journal.KindEnter:
			trace.Enters++
		case journal.KindExit:
			trace.Exits++
		}
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, trace)
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintf(w, "No events found for session: %s\n", opts.Session)
		return nil
	}

	fmt.Fprintf(w, "Session: %s\n", opts.Session)
	fmt.Fprintln(w)
	for _, e := range events {
		fmt.Fprintf(w, "  %s\n", formatEventLine(e))
		if opts.Verbose && e.SceneHash != "" {
			fmt.Fprintf(w, "       chain: %s\n", e.SceneHash)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Calls:  %d\n", trace.Calls)
	fmt.Fprintf(w, "  Enters: %d\n", trace.Enters)
	fmt.Fprintf(w, "  Exits:  %d\n", trace.Exits)
	return nil
}

// outputTraceJSON wraps the payload in the standard response envelope.
func outputTraceJSON(cmd *cobra.Command, data any) error {
	response := CLIResponse{Status: "ok", Data: data}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}
