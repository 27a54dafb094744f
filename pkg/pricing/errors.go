package pricing

import "errors"

// Common errors returned by the pricing package.
var (
	// ErrUnsupportedFormat is returned for pricing files that are neither
	// JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported pricing file format")

	// ErrNegativeRate is returned when a rate or quota is negative.
	ErrNegativeRate = errors.New("pricing rate must not be negative")

	// ErrEmptyModelID is returned when a pricing entry has no model id.
	ErrEmptyModelID = errors.New("pricing entry has an empty model id")
)
