// Package logging builds slog loggers with the console and JSON handlers
// shared by the CLI and daemon.
//
// The console handler prints one line per record with the component attribute
// folded into the message prefix; the JSON handler emits lowercase level and
// RFC3339 timestamps for log shipping. Components attach themselves with
// WithComponent so every record identifies its pipeline stage.
package logging
