package strategy

import "errors"

// ErrInvalidScale indicates that the maximum lease count is below the minimum.
var ErrInvalidScale = errors.New("max scale count must be zero or at least min scale count")
