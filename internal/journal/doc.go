// Package journal records what a session of imagined overrides actually did.
//
// The engine itself stores nothing; it reports calls and scope transitions
// through the imagine.Observer interface. Recorder implements that interface,
// stamping every event with a monotonic logical clock, and Store persists
// finished sessions to SQLite for the trace tooling.
//
// Ordering is by logical seq only, never wall-clock time: replaying a
// scenario must yield a byte-identical event stream.
package journal
