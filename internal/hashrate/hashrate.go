// Package hashrate aggregates per-connection hash rate reports into a
// network-wide total, broadcast periodically, and flags connections
// that self-report implausibly high rates.
package hashrate

import (
	"sync"
	"time"

	"github.com/decred/slog"
)

var log = slog.Disabled

// UseLogger sets the package-wide logger used by hashrate.
func UseLogger(logger slog.Logger) {
	log = logger
}

// staleAfter is how long a channel's last report is trusted before it
// is dropped from the aggregate, per spec §4.5's 10-second window.
const staleAfter = 10 * time.Second

// entry is one channel's most recent self-reported rate.
type entry struct {
	rate      float64
	updatedAt time.Time
}

// Snapshot is the periodic aggregate broadcast to every connection as
// a NETWORK_HASHRATE message.
type Snapshot struct {
	TotalHashesPerSecond float64
	ActiveChannels       int
	OverspeedChannels     []string
}

// Aggregator tracks the most recent hash-rate report from each active
// mining channel and periodically summarizes them.
type Aggregator struct {
	mu            sync.Mutex
	entries       map[string]*entry
	maxNonceSpeed float64

	tickInterval time.Duration
	done         chan struct{}
}

// New constructs an Aggregator. maxNonceSpeed is the ceiling above
// which a self-reported rate is flagged as implausible (overspeed);
// tickInterval controls how often Start's callback fires.
func New(maxNonceSpeed float64, tickInterval time.Duration) *Aggregator {
	return &Aggregator{
		entries:       make(map[string]*entry),
		maxNonceSpeed: maxNonceSpeed,
		tickInterval:  tickInterval,
		done:          make(chan struct{}),
	}
}

// Report records channelID's latest self-reported hash rate and
// returns whether it exceeds the configured ceiling.
func (a *Aggregator) Report(channelID string, rate float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[channelID] = &entry{rate: rate, updatedAt: time.Now()}
	return a.maxNonceSpeed > 0 && rate > a.maxNonceSpeed
}

// Remove drops channelID's entry immediately, e.g. on disconnect.
func (a *Aggregator) Remove(channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, channelID)
}

// snapshotLocked prunes stale entries and computes the current
// aggregate. Must be called with mu held.
func (a *Aggregator) snapshotLocked() Snapshot {
	now := time.Now()
	var total float64
	var overspeed []string
	for id, e := range a.entries {
		if now.Sub(e.updatedAt) > staleAfter {
			delete(a.entries, id)
			continue
		}
		total += e.rate
		if a.maxNonceSpeed > 0 && e.rate > a.maxNonceSpeed {
			overspeed = append(overspeed, id)
		}
	}
	return Snapshot{
		TotalHashesPerSecond: total,
		ActiveChannels:       len(a.entries),
		OverspeedChannels:    overspeed,
	}
}

// Snapshot returns the current aggregate, pruning stale entries first.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Start begins the periodic tick, invoking onTick with the latest
// snapshot every tickInterval until Stop is called.
func (a *Aggregator) Start(onTick func(Snapshot)) {
	go func() {
		ticker := time.NewTicker(a.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				onTick(a.Snapshot())
			case <-a.done:
				return
			}
		}
	}()
}

// Rates returns each active channel's most recent self-reported rate,
// pruning stale entries first, for the admin plane's miners listing.
func (a *Aggregator) Rates() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshotLocked()
	out := make(map[string]float64, len(a.entries))
	for id, e := range a.entries {
		out[id] = e.rate
	}
	return out
}

// Stop halts the periodic tick started by Start.
func (a *Aggregator) Stop() {
	close(a.done)
}
