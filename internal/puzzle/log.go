package puzzle

import "github.com/decred/slog"

// log is the package-level logger used by the puzzle state machine and
// verifier. It is set to slog.Disabled by default and must be wired up
// with UseLogger by the caller that owns the logging backend.
var log = slog.Disabled

// UseLogger sets the package-wide logger used by this package. Calling
// it in the main package allows all packages to share a backend.
func UseLogger(logger slog.Logger) {
	log = logger
}
