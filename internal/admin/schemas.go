package admin

import "hashpass/internal/audit"

// difficultyUpdate is the body of POST /api/admin/difficulty.
type difficultyUpdate struct {
	MinDifficulty *uint32 `json:"min_difficulty"`
	MaxDifficulty *uint32 `json:"max_difficulty"`
	Difficulty    *uint32 `json:"difficulty"`
}

// targetTimeUpdate is the body of POST /api/admin/target-time, in
// whole seconds.
type targetTimeUpdate struct {
	TargetTimeMin *int `json:"target_time_min"`
	TargetTimeMax *int `json:"target_time_max"`
}

// argon2Update is the body of POST /api/admin/argon2.
type argon2Update struct {
	TimeCost    *uint32 `json:"time_cost"`
	MemoryCost  *uint32 `json:"memory_cost"`
	Parallelism *uint8  `json:"parallelism"`
}

// workerCountUpdate is the body of POST /api/admin/worker-count.
type workerCountUpdate struct {
	WorkerCount int `json:"worker_count"`
}

// maxNonceSpeedUpdate is the body of POST /api/admin/max-nonce-speed.
type maxNonceSpeedUpdate struct {
	MaxNonceSpeed float64 `json:"max_nonce_speed"`
}

// kickRequest is the body of POST /api/admin/kick.
type kickRequest struct {
	IP string `json:"ip"`
}

// unbanRequest is the body of POST /api/admin/unban.
type unbanRequest struct {
	IP string `json:"ip"`
}

// hmacUpdate is the optional body of POST /api/admin/regenerate-hmac.
// An empty or absent HmacSecret means "generate a random one".
type hmacUpdate struct {
	HmacSecret string `json:"hmac_secret"`
}

// minerInfo is one entry of GET /api/admin/miners.
type minerInfo struct {
	ChannelID       string  `json:"channel_id"`
	IP              string  `json:"ip"`
	HashesPerSecond float64 `json:"hashes_per_second"`
	HashrateHuman   string  `json:"hashrate_human"`
}

// sessionInfo is one entry of GET /api/admin/sessions.
type sessionInfo struct {
	IP             string  `json:"ip"`
	ChannelID      string  `json:"channel_id"`
	Connected      bool    `json:"connected"`
	IssuedAt       string  `json:"issued_at"`
	LastSeenAt     string  `json:"last_seen_at"`
	DisconnectedAt *string `json:"disconnected_at"`
}

// logsResponse is the body of GET /api/admin/logs.
type logsResponse struct {
	Records []audit.Record `json:"records"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Pages   int            `json:"pages"`
	Files   []string       `json:"files"`
}

// logStatsResponse is the body of GET /api/admin/logs/stats.
type logStatsResponse struct {
	TotalCodes             int             `json:"total_codes"`
	UniqueVisitors         int             `json:"unique_visitors"`
	AvgSolveTime           float64         `json:"avg_solve_time"`
	MedianSolveTime        float64         `json:"median_solve_time"`
	DifficultyDistribution map[string]int  `json:"difficulty_distribution"`
}
