package admin

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	herrors "hashpass/errors"
	"hashpass/internal/hub"
	"hashpass/internal/puzzle"
	"hashpass/util"
)

// handleStatus serves GET /api/admin/status: a full snapshot of the
// puzzle, connection, and hashrate state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Puzzle.Snapshot()

	resp := map[string]interface{}{
		"seed":               snap.Seed,
		"difficulty":         snap.Difficulty,
		"min_difficulty":     snap.MinDifficulty,
		"max_difficulty":     snap.MaxDifficulty,
		"time_cost":          snap.Argon2.TimeCost,
		"memory_cost":        snap.Argon2.MemoryCostKiB,
		"parallelism":        snap.Argon2.Parallelism,
		"worker_count":       snap.WorkerCount,
		"max_nonce_speed":    snap.MaxNonceSpeed,
		"puzzle_start_time":  snap.PuzzleStartTime,
		"last_solve_time":    snap.LastSolveTime,
		"average_solve_time": snap.AverageSolveTime,
		"active_miners":      s.cfg.Puzzle.ActiveMinerCount(),
		"uptime_seconds":     time.Since(s.cfg.StartedAt).Seconds(),
	}
	if s.cfg.Hub != nil {
		resp["connected_clients"] = s.cfg.Hub.Count()
	}
	if s.cfg.Sessions != nil {
		resp["sessions"] = s.cfg.Sessions.Count()
	}
	if s.cfg.Hashrate != nil {
		hrSnap := s.cfg.Hashrate.Snapshot()
		resp["total_hashrate"] = hrSnap.TotalHashesPerSecond
		resp["total_hashrate_human"] = util.HashString(hrSnap.TotalHashesPerSecond)
		resp["active_channels"] = hrSnap.ActiveChannels
		resp["overspeed_channels"] = hrSnap.OverspeedChannels
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// handleMiners serves GET /api/admin/miners: every live connection
// joined with its most recent self-reported hash rate.
func (s *Server) handleMiners(w http.ResponseWriter, r *http.Request) {
	var rates map[string]float64
	if s.cfg.Hashrate != nil {
		rates = s.cfg.Hashrate.Rates()
	}

	miners := []minerInfo{}
	if s.cfg.Hub != nil {
		for _, c := range s.cfg.Hub.Clients() {
			miners = append(miners, minerInfo{
				ChannelID:       c.ChannelID,
				IP:              c.IP,
				HashesPerSecond: rates[c.ChannelID],
				HashrateHuman:   util.HashString(rates[c.ChannelID]),
			})
		}
	}
	sort.Slice(miners, func(i, j int) bool { return miners[i].ChannelID < miners[j].ChannelID })

	respondWithJSON(w, http.StatusOK, miners)
}

// handleSessions serves GET /api/admin/sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	entries := s.cfg.Sessions.List()
	out := make([]sessionInfo, 0, len(entries))
	for _, e := range entries {
		info := sessionInfo{
			IP:         e.IP,
			ChannelID:  e.ChannelID,
			Connected:  e.Connected,
			IssuedAt:   e.IssuedAt.Format(time.RFC3339),
			LastSeenAt: e.LastSeenAt.Format(time.RFC3339),
		}
		if e.DisconnectedAt != nil {
			ts := e.DisconnectedAt.Format(time.RFC3339)
			info.DisconnectedAt = &ts
		}
		out = append(out, info)
	}
	respondWithJSON(w, http.StatusOK, out)
}

// handleLogs serves GET /api/admin/logs: paginated, searchable,
// multi-file verify-log viewing.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	search := strings.ToLower(q.Get("search"))
	file := q.Get("file")
	if file == "" {
		file = "verify.json"
	}

	files := s.cfg.Audit.ListFiles()
	records, err := s.cfg.Audit.ReadFile(file)
	if err != nil {
		respondWithJSON(w, http.StatusOK, logsResponse{Records: nil, Total: 0, Page: page, Pages: 0, Files: files})
		return
	}

	if search != "" {
		filtered := records[:0:0]
		for _, rec := range records {
			blob, _ := json.Marshal(rec)
			if strings.Contains(strings.ToLower(string(blob)), search) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	// Reverse into newest-first order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	total := len(records)
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	respondWithJSON(w, http.StatusOK, logsResponse{
		Records: records[start:end],
		Total:   total,
		Page:    page,
		Pages:   pages,
		Files:   files,
	})
}

// handleLogStats serves GET /api/admin/logs/stats: summary statistics
// across every verify-log file (main plus archives).
func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	var all []float64
	difficultyDist := map[string]int{}
	visitors := map[string]struct{}{}
	total := 0

	for _, f := range s.cfg.Audit.ListFiles() {
		records, err := s.cfg.Audit.ReadFile(f)
		if err != nil {
			continue
		}
		for _, rec := range records {
			total++
			if rec.SolveTime > 0 {
				all = append(all, rec.SolveTime)
			}
			if rec.Difficulty > 0 {
				difficultyDist[strconv.FormatUint(uint64(rec.Difficulty), 10)]++
			}
			if rec.VisitorID != "" {
				visitors[rec.VisitorID] = struct{}{}
			}
		}
	}

	var avg, median float64
	if len(all) > 0 {
		sum := 0.0
		for _, v := range all {
			sum += v
		}
		avg = sum / float64(len(all))
		sorted := append([]float64(nil), all...)
		sort.Float64s(sorted)
		median = sorted[len(sorted)/2]
	}

	respondWithJSON(w, http.StatusOK, logStatsResponse{
		TotalCodes:             total,
		UniqueVisitors:         len(visitors),
		AvgSolveTime:           round2(avg),
		MedianSolveTime:        round2(median),
		DifficultyDistribution: difficultyDist,
	})
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func (s *Server) resetAndBroadcast() {
	if s.cfg.Hub != nil {
		snap := s.cfg.Puzzle.Snapshot()
		s.cfg.Hub.Broadcast(hub.OutPuzzleReset, hub.NewPuzzleResetPayload(snap, false))
	}
}

// handleUpdateDifficulty serves POST /api/admin/difficulty.
func (s *Server) handleUpdateDifficulty(w http.ResponseWriter, r *http.Request) {
	var body difficultyUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "malformed request body"))
		return
	}

	snap, err := s.cfg.Puzzle.ApplySetParams(puzzle.SetParams{
		MinDifficulty: body.MinDifficulty,
		MaxDifficulty: body.MaxDifficulty,
		Difficulty:    body.Difficulty,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.resetAndBroadcast()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"difficulty":     snap.Difficulty,
		"min_difficulty": snap.MinDifficulty,
		"max_difficulty": snap.MaxDifficulty,
		"new_seed":       snap.Seed,
	})
}

// handleUpdateTargetTime serves POST /api/admin/target-time.
func (s *Server) handleUpdateTargetTime(w http.ResponseWriter, r *http.Request) {
	var body targetTimeUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "malformed request body"))
		return
	}

	sp := puzzle.SetParams{}
	if body.TargetTimeMin != nil {
		d := time.Duration(*body.TargetTimeMin) * time.Second
		sp.TargetTimeMin = &d
	}
	if body.TargetTimeMax != nil {
		d := time.Duration(*body.TargetTimeMax) * time.Second
		sp.TargetTimeMax = &d
	}

	snap, err := s.cfg.Puzzle.ApplySetParams(sp)
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.resetAndBroadcast()

	tMin, tMax := s.cfg.Puzzle.TargetWindow()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"target_time_min": int(tMin.Seconds()),
		"target_time_max": int(tMax.Seconds()),
		"new_seed":        snap.Seed,
	})
}

// handleUpdateArgon2 serves POST /api/admin/argon2.
func (s *Server) handleUpdateArgon2(w http.ResponseWriter, r *http.Request) {
	var body argon2Update
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "malformed request body"))
		return
	}

	snap := s.cfg.Puzzle.Snapshot()
	params := snap.Argon2
	if body.TimeCost != nil {
		params.TimeCost = *body.TimeCost
	}
	if body.MemoryCost != nil {
		params.MemoryCostKiB = *body.MemoryCost
	}
	if body.Parallelism != nil {
		params.Parallelism = *body.Parallelism
	}

	newSnap, err := s.cfg.Puzzle.ApplySetParams(puzzle.SetParams{Argon2: &params})
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.resetAndBroadcast()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"time_cost":   newSnap.Argon2.TimeCost,
		"memory_cost": newSnap.Argon2.MemoryCostKiB,
		"parallelism": newSnap.Argon2.Parallelism,
		"new_seed":    newSnap.Seed,
	})
}

// handleUpdateWorkerCount serves POST /api/admin/worker-count.
func (s *Server) handleUpdateWorkerCount(w http.ResponseWriter, r *http.Request) {
	var body workerCountUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "malformed request body"))
		return
	}
	if body.WorkerCount < 1 || body.WorkerCount > 32 {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "worker_count must be between 1 and 32"))
		return
	}

	snap, err := s.cfg.Puzzle.ApplySetParams(puzzle.SetParams{WorkerCount: &body.WorkerCount})
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.resetAndBroadcast()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"worker_count": snap.WorkerCount,
		"new_seed":     snap.Seed,
	})
}

// handleUpdateMaxNonceSpeed serves POST /api/admin/max-nonce-speed.
func (s *Server) handleUpdateMaxNonceSpeed(w http.ResponseWriter, r *http.Request) {
	var body maxNonceSpeedUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "malformed request body"))
		return
	}
	if body.MaxNonceSpeed < 0 {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "max_nonce_speed cannot be negative"))
		return
	}

	snap, err := s.cfg.Puzzle.ApplySetParams(puzzle.SetParams{MaxNonceSpeed: &body.MaxNonceSpeed})
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.resetAndBroadcast()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"max_nonce_speed": snap.MaxNonceSpeed,
		"new_seed":        snap.Seed,
	})
}

// handleResetPuzzle serves POST /api/admin/reset-puzzle.
func (s *Server) handleResetPuzzle(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Puzzle.ForceReset()
	s.resetAndBroadcast()
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":  "Puzzle reset",
		"new_seed": snap.Seed,
	})
}

// handleKickAll serves POST /api/admin/kick-all: revokes every
// session before closing every connection, so a racing reconnect
// cannot slip past session validation.
func (s *Server) handleKickAll(w http.ResponseWriter, r *http.Request) {
	revoked := s.cfg.Sessions.ClearAll()
	kicked := 0
	if s.cfg.Hub != nil {
		kicked = s.cfg.Hub.KickAll()
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Kicked " + strconv.Itoa(kicked) + " connections, revoked " + strconv.Itoa(revoked) + " sessions",
	})
}

// handleKickIP serves POST /api/admin/kick: bans, revokes, and
// disconnects a single IP.
func (s *Server) handleKickIP(w http.ResponseWriter, r *http.Request) {
	var body kickRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IP == "" {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "missing ip"))
		return
	}

	if s.cfg.Blacklist != nil {
		if _, err := s.cfg.Blacklist.Ban(body.IP); err != nil {
			respondWithError(w, err)
			return
		}
	}
	revoked := s.cfg.Sessions.RevokeByIP(body.IP)
	kicked := 0
	if s.cfg.Hub != nil {
		kicked = s.cfg.Hub.KickIP(body.IP)
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Banned and kicked " + strconv.Itoa(kicked) + " connections, revoked " +
			strconv.Itoa(revoked) + " sessions for IP " + body.IP,
	})
}

// handleUnban serves POST /api/admin/unban.
func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	var body unbanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IP == "" {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "missing ip"))
		return
	}

	removed, err := s.cfg.Blacklist.Unban(body.IP)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if removed {
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "Unbanned IP " + body.IP})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "IP " + body.IP + " was not in blacklist"})
}

// handleGetBlacklist serves GET /api/admin/blacklist.
func (s *Server) handleGetBlacklist(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.cfg.Blacklist.Snapshot())
}

// handleClearSessions serves POST /api/admin/clear-sessions.
func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	revoked := s.cfg.Sessions.ClearAll()
	closed := 0
	if s.cfg.Hub != nil {
		closed = s.cfg.Hub.KickAll()
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Cleared " + strconv.Itoa(revoked) + " session tokens, closed " + strconv.Itoa(closed) + " connections",
	})
}

// handleRegenerateHmac serves POST /api/admin/regenerate-hmac. A
// missing or empty body regenerates a random 256-bit secret; a
// provided hex string must decode to at least 16 bytes (128 bits).
func (s *Server) handleRegenerateHmac(w http.ResponseWriter, r *http.Request) {
	var body hmacUpdate
	_ = json.NewDecoder(r.Body).Decode(&body)

	secretHex := strings.TrimSpace(body.HmacSecret)
	if secretHex == "" {
		s.cfg.Puzzle.RegenerateSecret(nil)
		respondWithJSON(w, http.StatusOK, map[string]string{
			"message": "HMAC secret regenerated (256-bit random). All old invite codes are now invalid.",
		})
		return
	}

	key, err := hex.DecodeString(secretHex)
	if err != nil {
		respondWithError(w, herrors.AdminError(herrors.OperatorError, "invalid hex string"))
		return
	}
	if len(key) < 16 {
		respondWithError(w, herrors.AdminError(herrors.OperatorError,
			"HMAC secret must be at least 128-bit (32 hex chars)"))
		return
	}
	s.cfg.Puzzle.RegenerateSecret(key)
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "HMAC secret updated (" + strconv.Itoa(len(key)*8) + "-bit). All old invite codes are now invalid.",
	})
}
