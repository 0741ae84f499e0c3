package timeoutwatch

import (
	"context"
	"testing"
	"time"

	"hashpass/internal/puzzle"
)

func testPuzzle(t *testing.T, targetMax time.Duration) *puzzle.Puzzle {
	t.Helper()
	p := puzzle.New(puzzle.Config{
		InitialDifficulty: 10,
		MinDifficulty:     1,
		MaxDifficulty:     64,
		TargetTimeMin:     1 * time.Millisecond,
		TargetTimeMax:     targetMax,
		Argon2:            puzzle.Params{TimeCost: 1, MemoryCostKiB: 8, Parallelism: 1},
		WorkerCount:       1,
		VerifierWorkers:   1,
		MaxNonceSpeed:     1000,
		ServerSecret:      []byte("test-secret-test-secret-test123"),
	})
	t.Cleanup(p.Close)
	return p
}

func TestWatcherFiresOnceAgeExceedsTargetMax(t *testing.T) {
	p := testPuzzle(t, 20*time.Millisecond)
	p.StartMining("a")
	t.Cleanup(func() { p.StopMining("a") })

	w := New(p, 5*time.Millisecond)
	fired := make(chan puzzle.TimeoutResult, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(r puzzle.TimeoutResult) { fired <- r })

	select {
	case r := <-fired:
		if r.NewDifficulty >= 10 {
			t.Errorf("NewDifficulty = %d, want < 10", r.NewDifficulty)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher never fired")
	}
}

func TestWatcherDoesNotFireWithinTargetWindow(t *testing.T) {
	p := testPuzzle(t, 10*time.Second)
	p.StartMining("a")
	t.Cleanup(func() { p.StopMining("a") })

	w := New(p, 5*time.Millisecond)
	fired := make(chan puzzle.TimeoutResult, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx, func(r puzzle.TimeoutResult) { fired <- r })

	select {
	case <-fired:
		t.Fatal("watcher fired before the target maximum elapsed")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	p := testPuzzle(t, time.Hour)
	w := New(p, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, func(puzzle.TimeoutResult) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
