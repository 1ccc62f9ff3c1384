package logging

import "github.com/arloliu/leasefeed/types"

// NopLogger discards all log messages.
type NopLogger struct{}

var _ types.Logger = (*NopLogger)(nil)

// NewNop creates a logger that discards all messages.
//
// Example:
//
//	proc, _ := leasefeed.NewProcessor(&cfg, leases, source, factory, leasefeed.WithLogger(logging.NewNop()))
func NewNop() *NopLogger {
	return &NopLogger{}
}

// Debug discards the message.
func (n *NopLogger) Debug(string, ...any) {}

// Info discards the message.
func (n *NopLogger) Info(string, ...any) {}

// Warn discards the message.
func (n *NopLogger) Warn(string, ...any) {}

// Error discards the message.
func (n *NopLogger) Error(string, ...any) {}

// Fatal discards the message. It does not exit.
func (n *NopLogger) Fatal(string, ...any) {}
