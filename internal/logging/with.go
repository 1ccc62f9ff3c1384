package logging

import "github.com/arloliu/leasefeed/types"

// fieldLogger prepends fixed fields to every call of the wrapped logger.
type fieldLogger struct {
	base   types.Logger
	fields []any
}

// With returns a logger that attaches keysAndValues to every message.
//
// Supervisors use it to tag all of their output with the lease token, so the
// wrapped logger does not need to support child loggers itself.
//
// Parameters:
//   - logger: Base logger (nil yields a no-op logger)
//   - keysAndValues: Fixed key-value pairs
//
// Returns:
//   - types.Logger: Logger carrying the fixed fields
func With(logger types.Logger, keysAndValues ...any) types.Logger {
	if logger == nil {
		return NewNop()
	}
	if len(keysAndValues) == 0 {
		return logger
	}
	if sl, ok := logger.(*SlogLogger); ok {
		return sl.With(keysAndValues...)
	}
	if fl, ok := logger.(*fieldLogger); ok {
		return &fieldLogger{base: fl.base, fields: append(append([]any(nil), fl.fields...), keysAndValues...)}
	}

	return &fieldLogger{base: logger, fields: keysAndValues}
}

func (l *fieldLogger) merge(keysAndValues []any) []any {
	out := make([]any, 0, len(l.fields)+len(keysAndValues))
	out = append(out, l.fields...)

	return append(out, keysAndValues...)
}

func (l *fieldLogger) Debug(msg string, keysAndValues ...any) {
	l.base.Debug(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Info(msg string, keysAndValues ...any) {
	l.base.Info(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Warn(msg string, keysAndValues ...any) {
	l.base.Warn(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Error(msg string, keysAndValues ...any) {
	l.base.Error(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Fatal(msg string, keysAndValues ...any) {
	l.base.Fatal(msg, l.merge(keysAndValues)...)
}
