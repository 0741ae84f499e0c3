package puzzle

import "time"

// Params bundles the Argon2d cost parameters advertised to clients and
// used to both mint and verify hashes. time and memory follow the
// Argon2 low-level naming (time cost in passes, memory cost in KiB);
// parallelism is the lane count.
type Params struct {
	TimeCost    uint32
	MemoryCostKiB uint32
	Parallelism uint8
}

// Config bundles the puzzle's startup configuration. Every field here
// has a corresponding entry in the root config struct (see config.go)
// and spec §6's configuration key list.
type Config struct {
	InitialDifficulty uint32
	MinDifficulty     uint32
	MaxDifficulty     uint32
	TargetTimeMin     time.Duration
	TargetTimeMax     time.Duration
	Argon2            Params
	WorkerCount       int
	VerifierWorkers   int
	MaxNonceSpeed     float64
	ServerSecret      []byte // 32 bytes; generated if nil
	ConsolationCodes  bool
}

// Snapshot is a read-only view of the puzzle state, safe to hand out to
// callers without risk of them mutating live state. It is also the
// source of the POST /api/puzzle response (see httpapi) and of the
// PUZZLE_RESET payload (see hub.NewPuzzleResetPayload), each of which
// copies it into its own wire struct.
type Snapshot struct {
	Seed              string
	Difficulty        uint32
	MinDifficulty     uint32
	MaxDifficulty     uint32
	Argon2            Params
	WorkerCount       int
	MaxNonceSpeed     float64
	PuzzleStartTime   time.Time
	LastSolveTime     *float64
	AverageSolveTime  *float64
	IsTimeout         bool
	AdjustmentReason  string
}
