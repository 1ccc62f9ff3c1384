package testing

import (
	"testing"

	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/types"
)

// NewTestLogger returns a logger that writes through tb.Logf.
func NewTestLogger(tb testing.TB) types.Logger {
	return logging.NewTest(tb)
}
