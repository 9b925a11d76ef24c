// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols.
const (
	// Success marks completed operations and posted nights.
	Success = "✓"

	// Error marks failed operations.
	Error = "✗"

	// Warning marks partial results.
	Warning = "!"

	// Info marks informational messages.
	Info = "i"

	// Optional marks absent or skipped values.
	Optional = "-"
)

// Plan action symbols.
const (
	Create = "+"
	Update = "~"
	Delete = "-"
)
