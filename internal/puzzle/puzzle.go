// Package puzzle implements the global client puzzle: its seed,
// difficulty controller, mining-time accounting, hash verifier, and
// invite minter. Every mutation funnels through the single mutex on
// Puzzle, which is the atomic critical section the rest of the system
// is built around.
package puzzle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	herrors "hashpass/errors"
)

// maxSolveHistory bounds the rolling window backing AverageSolveTime.
const maxSolveHistory = 5

// Puzzle is the server-wide puzzle state machine. All fields below the
// mutex line are guarded by mu; everything must be read or written
// while holding it, except secret (guarded by secretMu) and seedFast,
// which exists precisely so callers can skip the lock for the
// common-case stale-submission rejection.
type Puzzle struct {
	mu sync.Mutex

	seed          string
	difficulty    uint32
	minDifficulty uint32
	maxDifficulty uint32
	targetMin     time.Duration
	targetMax     time.Duration
	params        Params
	workerCount   int
	maxNonceSpeed float64

	// Mining-time accounting.
	accumulated  time.Duration
	active       bool
	resumedAt    time.Time
	activeMiners map[string]struct{}

	puzzleStartTime time.Time
	solveHistory    []float64
	lastSolveTime   *float64

	// bestNearMiss tracks, for the current round, the highest
	// leading-zero-bit submission seen so far (ties keep the
	// earliest), feeding the timeout watcher's best-effort
	// consolation code per spec §4.3. Only populated when
	// consolationCodes is enabled.
	bestNearMiss *nearMiss

	secretMu sync.RWMutex
	secret   []byte

	consolationCodes bool

	verifier *Verifier

	// seedFast lets callers cheaply reject stale submissions before
	// paying for a lock acquisition or a hash computation, per spec
	// §4.7's "fast seed-equality check ... without burning a hash".
	seedFast atomic.Value // string
}

// New constructs a Puzzle from the given configuration, generating a
// fresh seed and server secret (unless one was supplied) and starting
// its verifier worker pool.
func New(cfg Config) *Puzzle {
	secret := cfg.ServerSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(err) // startup-time entropy failure; nothing sane to do
		}
	}

	p := &Puzzle{
		difficulty:       cfg.InitialDifficulty,
		minDifficulty:    cfg.MinDifficulty,
		maxDifficulty:    cfg.MaxDifficulty,
		targetMin:        cfg.TargetTimeMin,
		targetMax:        cfg.TargetTimeMax,
		params:           cfg.Argon2,
		workerCount:      cfg.WorkerCount,
		maxNonceSpeed:    cfg.MaxNonceSpeed,
		activeMiners:     make(map[string]struct{}),
		secret:           secret,
		consolationCodes: cfg.ConsolationCodes,
		verifier:         NewVerifier(cfg.VerifierWorkers),
	}
	p.seed = generateSeed()
	p.puzzleStartTime = time.Now()
	p.seedFast.Store(p.seed)
	return p
}

// Close stops the puzzle's verifier worker pool.
func (p *Puzzle) Close() {
	p.verifier.Close()
}

func generateSeed() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// CurrentSeed returns the current seed without acquiring the puzzle
// lock, for use as the cheap pre-lock staleness check described in
// spec §4.7.
func (p *Puzzle) CurrentSeed() string {
	return p.seedFast.Load().(string)
}

// Snapshot returns a read-only copy of the puzzle's current state.
func (p *Puzzle) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Puzzle) snapshotLocked() Snapshot {
	var avg *float64
	if len(p.solveHistory) > 0 {
		sum := 0.0
		for _, v := range p.solveHistory {
			sum += v
		}
		mean := sum / float64(len(p.solveHistory))
		avg = &mean
	}
	return Snapshot{
		Seed:             p.seed,
		Difficulty:       p.difficulty,
		MinDifficulty:    p.minDifficulty,
		MaxDifficulty:    p.maxDifficulty,
		Argon2:           p.params,
		WorkerCount:      p.workerCount,
		MaxNonceSpeed:    p.maxNonceSpeed,
		PuzzleStartTime:  p.puzzleStartTime,
		LastSolveTime:    p.lastSolveTime,
		AverageSolveTime: avg,
	}
}

// miningAgeLocked returns the puzzle's effective age: accumulated
// mining time plus, if mining is currently active, time since the
// clock last resumed. Must be called with mu held.
func (p *Puzzle) miningAgeLocked() time.Duration {
	if p.active {
		return p.accumulated + time.Since(p.resumedAt)
	}
	return p.accumulated
}

// MiningAge returns the puzzle's current effective age.
func (p *Puzzle) MiningAge() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.miningAgeLocked()
}

// StartMining registers id (typically a connection/channel id) as
// actively mining. The global mining clock resumes on the 0→1
// transition.
func (p *Puzzle) StartMining(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.activeMiners[id]; ok {
		return
	}
	p.activeMiners[id] = struct{}{}
	if !p.active {
		p.active = true
		p.resumedAt = time.Now()
	}
}

// StopMining unregisters id. The global mining clock pauses on the
// 1→0 transition, folding the elapsed slice into accumulated so no
// time is lost.
func (p *Puzzle) StopMining(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.activeMiners[id]; !ok {
		return
	}
	delete(p.activeMiners, id)
	if len(p.activeMiners) == 0 && p.active {
		p.accumulated += time.Since(p.resumedAt)
		p.active = false
	}
}

// ActiveMinerCount reports how many distinct ids are currently mining.
func (p *Puzzle) ActiveMinerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.activeMiners)
}

// nearMiss is the best (highest leading-zero-bit) submission observed
// against the current seed, tracked only when consolationCodes is
// enabled.
type nearMiss struct {
	fingerprint string
	nonce       uint64
	channelID   string
	zeros       uint32
}

// rotateSeedLocked generates a fresh seed, resets the mining-time
// accounting for the new round, and republishes the fast-path seed.
// Must be called with mu held.
func (p *Puzzle) rotateSeedLocked() {
	p.seed = generateSeed()
	p.accumulated = 0
	p.puzzleStartTime = time.Now()
	p.bestNearMiss = nil
	if p.active {
		p.resumedAt = time.Now()
	}
	p.seedFast.Store(p.seed)
}

// recordNearMissLocked updates the round's best-seen submission if
// zeros beats the current best. Ties keep the earlier submission
// (the one already recorded), so a strictly-greater count is
// required to replace it. Must be called with mu held.
func (p *Puzzle) recordNearMissLocked(fingerprint string, nonce uint64, channelID string, zeros uint32) {
	if !p.consolationCodes || channelID == "" {
		return
	}
	if p.bestNearMiss != nil && zeros <= p.bestNearMiss.zeros {
		return
	}
	p.bestNearMiss = &nearMiss{fingerprint: fingerprint, nonce: nonce, channelID: channelID, zeros: zeros}
}

// SetParams applies an operator-initiated parameter change. Every
// field change rotates the seed exactly once, regardless of how many
// fields were touched in the same call, per spec §3's invariant.
type SetParams struct {
	MinDifficulty *uint32
	MaxDifficulty *uint32
	Difficulty    *uint32
	TargetTimeMin *time.Duration
	TargetTimeMax *time.Duration
	Argon2        *Params
	WorkerCount   *int
	MaxNonceSpeed *float64
}

// ApplySetParams validates and applies an operator parameter change,
// returning the rotated snapshot. Returns an operator error without
// mutating state when a value is out of range.
func (p *Puzzle) ApplySetParams(sp SetParams) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	min, max := p.minDifficulty, p.maxDifficulty
	if sp.MinDifficulty != nil {
		min = *sp.MinDifficulty
	}
	if sp.MaxDifficulty != nil {
		max = *sp.MaxDifficulty
	}
	if min > max {
		min, max = max, min
	}
	if min < 1 || max > 256 {
		return Snapshot{}, herrors.AdminError(herrors.OperatorError, "difficulty bounds must be within [1, 256]")
	}
	difficulty := p.difficulty
	if sp.Difficulty != nil {
		difficulty = *sp.Difficulty
	}
	if difficulty < min || difficulty > max {
		return Snapshot{}, herrors.AdminError(herrors.OperatorError, "difficulty must be within [min, max]")
	}

	tMin, tMax := p.targetMin, p.targetMax
	if sp.TargetTimeMin != nil {
		tMin = *sp.TargetTimeMin
	}
	if sp.TargetTimeMax != nil {
		tMax = *sp.TargetTimeMax
	}
	if tMin <= 0 || tMax <= 0 {
		return Snapshot{}, herrors.AdminError(herrors.OperatorError, "target times must be positive")
	}
	if tMin > tMax {
		tMin, tMax = tMax, tMin
	}

	params := p.params
	if sp.Argon2 != nil {
		params = *sp.Argon2
	}
	workerCount := p.workerCount
	if sp.WorkerCount != nil {
		workerCount = *sp.WorkerCount
	}
	maxNonceSpeed := p.maxNonceSpeed
	if sp.MaxNonceSpeed != nil {
		maxNonceSpeed = *sp.MaxNonceSpeed
	}

	p.minDifficulty, p.maxDifficulty, p.difficulty = min, max, difficulty
	p.targetMin, p.targetMax = tMin, tMax
	p.params = params
	p.workerCount = workerCount
	p.maxNonceSpeed = maxNonceSpeed
	p.rotateSeedLocked()

	return p.snapshotLocked(), nil
}

// ForceReset rotates the seed without otherwise changing any
// parameter, for the admin plane's "force reset" action.
func (p *Puzzle) ForceReset() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateSeedLocked()
	return p.snapshotLocked()
}

// RegenerateSecret replaces the server secret, invalidating every
// previously-minted invite code. If secret is nil a fresh random
// 256-bit key is generated.
func (p *Puzzle) RegenerateSecret(secret []byte) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(err)
		}
	}
	p.secretMu.Lock()
	p.secret = secret
	p.secretMu.Unlock()
}

// Submission is the caller-supplied input to Verify.
type Submission struct {
	Fingerprint   string
	Nonce         uint64
	SubmittedSeed string
	TraceData     string
	HashHex       string

	// ChannelID identifies the realtime connection this submission
	// arrived over, if any, for the consolation-code tie-break.
	ChannelID string
}

// Result is the outcome of a successful Verify call.
type Result struct {
	InviteCode       string
	PreviousSeed     string
	SolveSeconds     float64
	DifficultyAtSolve uint32
	Reason           string
	Snapshot         Snapshot
	LeadingZeros     uint32
}

// Verify is the atomic critical section described in spec §4.7. It
// must only be called after the caller's own pre-lock preconditions
// (session validity, IP blacklist, trace-IP match, and the cheap
// CurrentSeed() staleness check) have already passed; Verify itself
// re-checks seed equality under the lock (double-checked locking) so
// the only way to win is to be the submission that observes the
// current seed at the instant the lock is acquired.
//
// The off-thread hash verification happens while the lock is held,
// which is intentional: it is what makes "at most one winner per seed"
// true without any additional coordination.
func (p *Puzzle) Verify(ctx context.Context, sub Submission) (*Result, error) {
	expected, err := decodeHashHex(sub.HashHex)
	if err != nil {
		return nil, ErrInvalidProof
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if sub.SubmittedSeed != p.seed {
		return nil, ErrStaleSeed
	}

	solveSeconds := p.miningAgeLocked().Seconds()
	if p.maxNonceSpeed > 0 && solveSeconds > 0 {
		speed := float64(sub.Nonce) / solveSeconds
		if speed > p.maxNonceSpeed {
			return nil, herrors.PuzzleError(herrors.LimitExceeded, "computation speed too high for this solve time")
		}
	}

	salt := buildSalt(p.seed, sub.Fingerprint, sub.TraceData)
	params := p.params
	difficulty := p.difficulty

	valid, zeros, verr := p.verifier.Verify(ctx, sub.Nonce, salt, params, expected, difficulty)
	if verr != nil {
		return nil, verr
	}
	p.recordNearMissLocked(sub.Fingerprint, sub.Nonce, sub.ChannelID, zeros)
	if !valid {
		return nil, ErrInvalidProof
	}

	p.secretMu.RLock()
	secret := p.secret
	p.secretMu.RUnlock()
	code := mintInviteCode(secret, sub.Fingerprint, sub.Nonce, sub.SubmittedSeed)

	previousSeed := p.seed
	newDifficulty, reason := adjustDifficulty(p.difficulty, solveSeconds, p.targetMin.Seconds(), p.targetMax.Seconds(), p.minDifficulty, p.maxDifficulty)
	p.difficulty = newDifficulty
	p.lastSolveTime = &solveSeconds
	p.solveHistory = append(p.solveHistory, solveSeconds)
	if len(p.solveHistory) > maxSolveHistory {
		p.solveHistory = p.solveHistory[len(p.solveHistory)-maxSolveHistory:]
	}
	p.rotateSeedLocked()

	return &Result{
		InviteCode:        code,
		PreviousSeed:      previousSeed,
		SolveSeconds:      solveSeconds,
		DifficultyAtSolve: difficulty,
		Reason:            reason,
		Snapshot:          p.snapshotLocked(),
		LeadingZeros:      zeros,
	}, nil
}

// buildSalt constructs the Argon2 salt per the wire contract: the
// plain concatenation of seed, fingerprint, and trace data, with no
// delimiter.
func buildSalt(seed, fingerprint, traceData string) []byte {
	buf := make([]byte, 0, len(seed)+len(fingerprint)+len(traceData))
	buf = append(buf, seed...)
	buf = append(buf, fingerprint...)
	buf = append(buf, traceData...)
	return buf
}

// TimeoutResult is the outcome of a timeout-triggered reset.
type TimeoutResult struct {
	PreviousSeed  string
	NewDifficulty uint32
	Snapshot      Snapshot

	// ConsolationCode and ConsolationChannelID are populated only when
	// consolation codes are enabled and at least one submission was
	// seen this round; ConsolationChannelID identifies which
	// connection to deliver the TIMEOUT_INVITE_CODE message to.
	ConsolationCode       string
	ConsolationChannelID  string
}

// ApplyTimeout performs the timeout rule of spec §4.3: decrease
// difficulty by at least 2 (or more, mirroring the step the controller
// would have applied), then rotate the seed. The caller is responsible
// for having already confirmed MiningAge() exceeds the target max.
func (p *Puzzle) ApplyTimeout() TimeoutResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	age := p.miningAgeLocked().Seconds()
	step := timeoutStep(age, p.targetMin.Seconds(), p.targetMax.Seconds())
	newDifficulty := clampDifficulty(int(p.difficulty)-step, p.minDifficulty, p.maxDifficulty)
	p.difficulty = newDifficulty
	previousSeed := p.seed

	result := TimeoutResult{
		PreviousSeed:  previousSeed,
		NewDifficulty: newDifficulty,
	}
	if best := p.bestNearMiss; best != nil {
		result.ConsolationCode = mintInviteCode(p.secretUnsafe(), best.fingerprint, best.nonce, previousSeed)
		result.ConsolationChannelID = best.channelID
	}

	p.rotateSeedLocked()
	result.Snapshot = p.snapshotLocked()
	return result
}

// secretUnsafe returns the current server secret. Callers must already
// hold p.mu; it additionally takes secretMu to stay consistent with
// RegenerateSecret's own locking.
func (p *Puzzle) secretUnsafe() []byte {
	p.secretMu.RLock()
	defer p.secretMu.RUnlock()
	return p.secret
}

// TargetWindow returns the configured [min, max] target solve window.
func (p *Puzzle) TargetWindow() (time.Duration, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetMin, p.targetMax
}

// ConsolationCodesEnabled reports whether the timeout watcher should
// mint a best-effort consolation invite code.
func (p *Puzzle) ConsolationCodesEnabled() bool {
	return p.consolationCodes
}
