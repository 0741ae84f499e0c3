// Package timeoutwatch polls the puzzle's mining-time age and forces
// a difficulty-decreasing reset once it exceeds the configured target
// maximum, so a too-hard puzzle can never stall the system
// indefinitely.
package timeoutwatch

import (
	"context"
	"time"

	"github.com/decred/slog"

	"hashpass/internal/puzzle"
)

var log = slog.Disabled

// UseLogger sets the package-wide logger used by timeoutwatch.
func UseLogger(logger slog.Logger) {
	log = logger
}

// defaultPollInterval is how often the watcher checks the puzzle's
// mining age against the target maximum.
const defaultPollInterval = 500 * time.Millisecond

// Watcher periodically checks whether the active puzzle has been
// mining longer than its target maximum solve time.
type Watcher struct {
	puz          *puzzle.Puzzle
	pollInterval time.Duration
}

// New constructs a Watcher over puz. A zero pollInterval defaults to
// 500ms.
func New(puz *puzzle.Puzzle, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Watcher{puz: puz, pollInterval: pollInterval}
}

// Run blocks, polling until ctx is cancelled, invoking onTimeout every
// time the mining age crosses the target maximum and the watcher
// forces a reset.
func (w *Watcher) Run(ctx context.Context, onTimeout func(puzzle.TimeoutResult)) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.checkOnce(onTimeout)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) checkOnce(onTimeout func(puzzle.TimeoutResult)) {
	_, tMax := w.puz.TargetWindow()
	if w.puz.MiningAge() <= tMax {
		return
	}
	result := w.puz.ApplyTimeout()
	log.Infof("timeoutwatch: puzzle exceeded target max, decreased difficulty to %d and rotated seed", result.NewDifficulty)
	onTimeout(result)
}
