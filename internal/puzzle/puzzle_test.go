package puzzle

import (
	"context"
	"encoding/hex"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		InitialDifficulty: 1,
		MinDifficulty:     1,
		MaxDifficulty:     64,
		TargetTimeMin:     8 * time.Second,
		TargetTimeMax:     12 * time.Second,
		Argon2:            Params{TimeCost: 1, MemoryCostKiB: 8, Parallelism: 1},
		WorkerCount:       1,
		VerifierWorkers:   1,
		MaxNonceSpeed:     1000,
		ServerSecret:      []byte("test-secret-test-secret-test123"),
	}
}

func TestNewGeneratesDistinctSeeds(t *testing.T) {
	p1 := New(testConfig())
	defer p1.Close()
	p2 := New(testConfig())
	defer p2.Close()

	if p1.CurrentSeed() == p2.CurrentSeed() {
		t.Error("two freshly constructed puzzles produced the same seed")
	}
	if len(p1.CurrentSeed()) != 32 {
		t.Errorf("seed length = %d, want 32 hex chars", len(p1.CurrentSeed()))
	}
}

func TestStartStopMiningAccountsElapsedTime(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	p.StartMining("a")
	time.Sleep(20 * time.Millisecond)
	p.StopMining("a")

	age := p.MiningAge()
	if age < 15*time.Millisecond {
		t.Errorf("MiningAge() = %v, want at least ~20ms", age)
	}

	// Clock should not advance further while no miner is active.
	frozen := p.MiningAge()
	time.Sleep(20 * time.Millisecond)
	if p.MiningAge() != frozen {
		t.Error("MiningAge() advanced while no miner was active")
	}
}

func TestStartMiningIsIdempotentPerID(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	p.StartMining("a")
	p.StartMining("a")
	if p.ActiveMinerCount() != 1 {
		t.Errorf("ActiveMinerCount() = %d, want 1 after duplicate StartMining", p.ActiveMinerCount())
	}
	p.StopMining("a")
	if p.ActiveMinerCount() != 0 {
		t.Errorf("ActiveMinerCount() = %d, want 0", p.ActiveMinerCount())
	}
}

func TestMiningClockStaysActiveAcrossOverlappingMiners(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	p.StartMining("a")
	p.StartMining("b")
	p.StopMining("a")
	time.Sleep(10 * time.Millisecond)
	// "b" still active; clock should still be running.
	if !p.active {
		t.Error("mining clock paused while a miner was still active")
	}
	p.StopMining("b")
}

func TestRotateSeedResetsMiningAge(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	p.StartMining("a")
	time.Sleep(10 * time.Millisecond)
	p.ForceReset()

	if p.MiningAge() > 5*time.Millisecond {
		t.Errorf("MiningAge() = %v after rotate, want ~0", p.MiningAge())
	}
	p.StopMining("a")
}

func TestApplySetParamsRejectsZeroDifficultyBound(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	bad := uint32(0)
	_, err := p.ApplySetParams(SetParams{MinDifficulty: &bad})
	if err == nil {
		t.Error("expected an error for a difficulty bound of 0")
	}
}

func TestApplySetParamsRotatesSeedAndAppliesWorkerCount(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	before := p.CurrentSeed()
	wc := 4
	snap, err := p.ApplySetParams(SetParams{WorkerCount: &wc})
	if err != nil {
		t.Fatalf("ApplySetParams: %v", err)
	}
	if snap.Seed == before {
		t.Error("ApplySetParams did not rotate the seed")
	}
	if snap.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want 4", snap.WorkerCount)
	}
}

// solveSubmission mines a real, passing submission against p's current
// seed at difficulty 1 (an almost-certain single-digit-nonce search),
// for use by tests that exercise the full Verify path.
func solveSubmission(t *testing.T, p *Puzzle, fingerprint, traceData string) Submission {
	t.Helper()
	snap := p.Snapshot()
	salt := buildSalt(snap.Seed, fingerprint, traceData)
	for nonce := uint64(0); nonce < 100000; nonce++ {
		h := computeHash(nonce, salt, snap.Argon2)
		if leadingZeroBits(h) >= snap.Difficulty {
			return Submission{
				Fingerprint:   fingerprint,
				Nonce:         nonce,
				SubmittedSeed: snap.Seed,
				TraceData:     traceData,
				HashHex:       hex.EncodeToString(h),
			}
		}
	}
	t.Fatal("failed to find a passing nonce within search budget")
	return Submission{}
}

func TestVerifyAcceptsWinningSubmissionAndRotatesSeed(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	p.StartMining("a")
	sub := solveSubmission(t, p, "fp-1", "trace-1")

	res, err := p.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.InviteCode == "" {
		t.Error("expected a non-empty invite code")
	}
	if res.Snapshot.Seed == sub.SubmittedSeed {
		t.Error("Verify did not rotate the seed on success")
	}
	p.StopMining("a")
}

func TestVerifyRejectsStaleSeed(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	sub := solveSubmission(t, p, "fp-1", "trace-1")
	sub.SubmittedSeed = "0000000000000000stale00000000"

	_, err := p.Verify(context.Background(), sub)
	if err != ErrStaleSeed {
		t.Errorf("Verify() err = %v, want ErrStaleSeed", err)
	}
}

func TestVerifyRejectsSecondSubmissionAgainstSameSeed(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	first := solveSubmission(t, p, "fp-1", "trace-1")
	second := first
	second.Nonce++

	if _, err := p.Verify(context.Background(), first); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	// Second submission now carries a seed that no longer matches,
	// since the winning Verify call already rotated it.
	if _, err := p.Verify(context.Background(), second); err != ErrStaleSeed {
		t.Errorf("second Verify() err = %v, want ErrStaleSeed", err)
	}
}

func TestVerifyRejectsBadHashHex(t *testing.T) {
	p := New(testConfig())
	defer p.Close()

	sub := solveSubmission(t, p, "fp-1", "trace-1")
	sub.HashHex = "not-hex"

	if _, err := p.Verify(context.Background(), sub); err != ErrInvalidProof {
		t.Errorf("Verify() err = %v, want ErrInvalidProof", err)
	}
}

func TestApplyTimeoutDecreasesDifficultyAndRotates(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDifficulty = 10
	p := New(cfg)
	defer p.Close()

	p.StartMining("a")
	before := p.CurrentSeed()
	res := p.ApplyTimeout()

	if res.NewDifficulty >= 10 {
		t.Errorf("ApplyTimeout NewDifficulty = %d, want < 10", res.NewDifficulty)
	}
	if res.PreviousSeed != before {
		t.Errorf("ApplyTimeout PreviousSeed = %q, want %q", res.PreviousSeed, before)
	}
	if p.CurrentSeed() == before {
		t.Error("ApplyTimeout did not rotate the seed")
	}
	p.StopMining("a")
}

func TestApplyTimeoutAwardsConsolationCodeToBestNearMiss(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDifficulty = 200 // far beyond what the fixed nonce below reaches
	cfg.ConsolationCodes = true
	p := New(cfg)
	defer p.Close()

	snap := p.Snapshot()
	// The submission cannot satisfy a difficulty this high, so it
	// reaches the critical section as a losing near-miss candidate and
	// becomes the round's best near-miss.
	weak := Submission{
		Fingerprint:   "fp-weak",
		Nonce:         1,
		SubmittedSeed: snap.Seed,
		TraceData:     "trace-weak",
		ChannelID:     "chan-weak",
	}
	weak.HashHex = hex.EncodeToString(computeHash(weak.Nonce, buildSalt(weak.SubmittedSeed, weak.Fingerprint, weak.TraceData), snap.Argon2))
	if _, err := p.Verify(context.Background(), weak); err != ErrInvalidProof {
		t.Fatalf("weak Verify() err = %v, want ErrInvalidProof", err)
	}

	res := p.ApplyTimeout()
	if res.ConsolationCode == "" {
		t.Error("expected ApplyTimeout to mint a consolation code")
	}
	if res.ConsolationChannelID != "chan-weak" {
		t.Errorf("ConsolationChannelID = %q, want %q", res.ConsolationChannelID, "chan-weak")
	}
}

func TestApplyTimeoutOmitsConsolationCodeWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDifficulty = 200
	cfg.ConsolationCodes = false
	p := New(cfg)
	defer p.Close()

	snap := p.Snapshot()
	sub := Submission{
		Fingerprint:   "fp-weak",
		Nonce:         1,
		SubmittedSeed: snap.Seed,
		TraceData:     "trace-weak",
		ChannelID:     "chan-weak",
	}
	sub.HashHex = hex.EncodeToString(computeHash(sub.Nonce, buildSalt(sub.SubmittedSeed, sub.Fingerprint, sub.TraceData), snap.Argon2))
	if _, err := p.Verify(context.Background(), sub); err != ErrInvalidProof {
		t.Fatalf("Verify() err = %v, want ErrInvalidProof", err)
	}

	res := p.ApplyTimeout()
	if res.ConsolationCode != "" {
		t.Error("expected no consolation code when the feature is disabled")
	}
}

func TestInviteCodeHasExpectedPrefixAndIsDeterministic(t *testing.T) {
	secret := []byte("test-secret-test-secret-test123")
	a := mintInviteCode(secret, "fp", 42, "seed")
	b := mintInviteCode(secret, "fp", 42, "seed")
	if a != b {
		t.Error("mintInviteCode is not deterministic for identical inputs")
	}
	if len(a) <= len(inviteCodePrefix) {
		t.Error("invite code missing its encoded suffix")
	}
	if !inviteCodesEqual(a, b) {
		t.Error("inviteCodesEqual reported equal codes as unequal")
	}
}
