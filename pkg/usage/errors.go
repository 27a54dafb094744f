package usage

import "errors"

// ErrNegativeTokens is returned when any token counter is negative.
var ErrNegativeTokens = errors.New("invalid token count: must be non-negative")
