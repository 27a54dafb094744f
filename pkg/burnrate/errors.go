package burnrate

import "errors"

// ErrInvalidWindow is returned when the measurement window is not positive.
var ErrInvalidWindow = errors.New("burn rate window must be positive")
