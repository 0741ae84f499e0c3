package puzzle

import (
	herrors "hashpass/errors"
)

var (
	errHashLength = herrors.PuzzleError(herrors.Parse, "hash must decode to exactly 32 bytes")

	// ErrStaleSeed is returned when a submission's carried seed no
	// longer equals the current puzzle seed.
	ErrStaleSeed = herrors.PuzzleError(herrors.StaleSeed, "submitted seed no longer current")

	// ErrInvalidProof is returned when the recomputed hash does not
	// match the submission or fails to meet the difficulty target.
	ErrInvalidProof = herrors.PuzzleError(herrors.InvalidProof, "hash does not satisfy the puzzle")

	// ErrVerifierUnavailable is returned when the hash-verification
	// worker pool cannot accept new work (e.g. during shutdown).
	ErrVerifierUnavailable = herrors.PuzzleError(herrors.VerifierUnavailable, "hash verification workers unavailable")
)
