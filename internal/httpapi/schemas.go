package httpapi

import "time"

// puzzleResponse is the wire shape of POST /api/puzzle.
type puzzleResponse struct {
	Seed             string   `json:"seed"`
	Difficulty       uint32   `json:"difficulty"`
	MemoryCost       uint32   `json:"memory_cost"`
	TimeCost         uint32   `json:"time_cost"`
	Parallelism      uint8    `json:"parallelism"`
	WorkerCount      int      `json:"worker_count"`
	PuzzleStartTime  time.Time `json:"puzzle_start_time"`
	LastSolveTime    *float64 `json:"last_solve_time"`
	AverageSolveTime *float64 `json:"average_solve_time"`
}

// submission is the wire shape of POST /api/verify's body.
type submission struct {
	VisitorID     string `json:"visitorId"`
	Nonce         uint64 `json:"nonce"`
	SubmittedSeed string `json:"submittedSeed"`
	TraceData     string `json:"traceData"`
	Hash          string `json:"hash"`
}

// verifyResponse is the wire shape of POST /api/verify's success body.
type verifyResponse struct {
	InviteCode string `json:"invite_code"`
}

// turnstileConfigResponse is the wire shape of GET /api/turnstile/config.
type turnstileConfigResponse struct {
	SiteKey  string `json:"siteKey"`
	TestMode bool   `json:"testMode"`
}
