package types

// Logger is the structured logger every leasefeed component writes to.
//
// The method set matches zap.SugaredLogger, so a sugared zap logger can be
// passed directly; internal/logging adapts log/slog. Fields are alternating
// key-value pairs with snake_case keys such as "lease_token", "owner" and
// "group".
type Logger interface {
	// Debug logs per-batch and per-poll detail.
	Debug(msg string, keysAndValues ...any)

	// Info logs lease ownership changes and lifecycle transitions.
	Info(msg string, keysAndValues ...any)

	// Warn logs recoverable failures that are retried.
	Warn(msg string, keysAndValues ...any)

	// Error logs failures that end a partition or a host operation.
	Error(msg string, keysAndValues ...any)

	// Fatal logs and terminates the process. The library never calls it.
	Fatal(msg string, keysAndValues ...any)
}
