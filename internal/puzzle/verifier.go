package puzzle

import (
	"context"
	"runtime"
)

// verifyJob is a unit of dispatched hash-verification work. Sized so a
// worker can run it without referring back to live puzzle state: every
// input it needs travels with the job.
type verifyJob struct {
	nonce      uint64
	salt       []byte
	params     Params
	expected   []byte
	difficulty uint32
	result     chan<- verifyOutcome
}

type verifyOutcome struct {
	valid        bool
	leadingZeros uint32
	err          error
}

// Verifier is a fixed-size pool of goroutines performing Argon2
// verification off the caller's goroutine. It replaces the source's
// process-pool escape from a global interpreter lock with Go's native
// parallelism: each worker still only ever handles one ~64 MiB
// Argon2 pass at a time, so sizing the pool bounds peak memory exactly
// as a process pool would.
type Verifier struct {
	jobs chan verifyJob
	done chan struct{}
}

// NewVerifier starts a pool of n workers, defaulting to CPU-count−1
// (minimum 1) when n <= 0, per spec §5's resource ceiling.
func NewVerifier(n int) *Verifier {
	if n <= 0 {
		n = runtime.NumCPU() - 1
		if n < 1 {
			n = 1
		}
	}
	v := &Verifier{
		jobs: make(chan verifyJob),
		done: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go v.worker()
	}
	return v
}

func (v *Verifier) worker() {
	for {
		select {
		case job, ok := <-v.jobs:
			if !ok {
				return
			}
			valid, zeros, err := verifyHash(job.nonce, job.salt, job.params, job.expected, job.difficulty)
			job.result <- verifyOutcome{valid: valid, leadingZeros: zeros, err: err}
		case <-v.done:
			return
		}
	}
}

// Verify dispatches a verification job to the worker pool and blocks
// until it completes or ctx is cancelled. This is the only suspension
// point inside the atomic critical section (see puzzle.go's Verify);
// the caller is expected to be holding the puzzle lock while awaiting
// this call, which is precisely how single-winner serialization is
// achieved.
func (v *Verifier) Verify(ctx context.Context, nonce uint64, salt []byte, params Params, expected []byte, difficulty uint32) (bool, uint32, error) {
	result := make(chan verifyOutcome, 1)
	job := verifyJob{
		nonce:      nonce,
		salt:       salt,
		params:     params,
		expected:   expected,
		difficulty: difficulty,
		result:     result,
	}
	select {
	case v.jobs <- job:
	case <-ctx.Done():
		return false, 0, ctx.Err()
	case <-v.done:
		return false, 0, ErrVerifierUnavailable
	}
	select {
	case out := <-result:
		return out.valid, out.leadingZeros, out.err
	case <-ctx.Done():
		return false, 0, ctx.Err()
	}
}

// Close stops all workers. In-flight jobs that have already been
// dispatched are allowed to finish; no new jobs are accepted.
func (v *Verifier) Close() {
	close(v.done)
}
