package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	herrors "hashpass/errors"
	"hashpass/internal/audit"
	"hashpass/internal/hub"
	"hashpass/internal/puzzle"
)

func errUserAgentRejected(reason string) error {
	return herrors.IdentityError(herrors.UserAgentRejected, reason)
}

// requireSession validates the Authorization header against the
// session registry and the request's IP, returning the bearer token
// on success.
func (s *Server) requireSession(r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		return "", herrors.IdentityError(herrors.SessionMissing, "missing Authorization header")
	}
	ip := clientIP(r)
	if err := s.cfg.Sessions.Validate(token, ip); err != nil {
		return "", err
	}
	return token, nil
}

// checkNotBanned rejects requests from a blacklisted IP.
func (s *Server) checkNotBanned(ip string) error {
	if s.cfg.Blacklist != nil && s.cfg.Blacklist.Contains(ip) {
		return herrors.IdentityError(herrors.IPBanned, "access denied")
	}
	return nil
}

// handleGetPuzzle serves POST /api/puzzle: a session-gated snapshot of
// the current puzzle state.
func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireSession(r); err != nil {
		respondWithError(w, err)
		return
	}
	ip := clientIP(r)
	if err := s.checkNotBanned(ip); err != nil {
		respondWithError(w, err)
		return
	}

	snap := s.cfg.Puzzle.Snapshot()
	respondWithJSON(w, http.StatusOK, puzzleResponse{
		Seed:             snap.Seed,
		Difficulty:       snap.Difficulty,
		MemoryCost:       snap.Argon2.MemoryCostKiB,
		TimeCost:         snap.Argon2.TimeCost,
		Parallelism:      snap.Argon2.Parallelism,
		WorkerCount:      snap.WorkerCount,
		PuzzleStartTime:  snap.PuzzleStartTime,
		LastSolveTime:    snap.LastSolveTime,
		AverageSolveTime: snap.AverageSolveTime,
	})
}

// handleVerify serves POST /api/verify: the winning-submission path.
// Preconditions are checked in the order the original service applies
// them (blacklist, trace-IP match, cheap seed check) before the single
// atomic Puzzle.Verify call (which mints the invite code under the
// puzzle lock), followed by the remaining win side effects (webhook,
// audit log, broadcast) outside any lock.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token, err := s.requireSession(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var sub submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondWithError(w, herrors.PuzzleError(herrors.InvalidProof, "malformed submission body"))
		return
	}

	ip := clientIP(r)
	if err := s.checkNotBanned(ip); err != nil {
		respondWithError(w, err)
		return
	}

	if !strings.Contains(sub.TraceData, fmt.Sprintf("ip=%s", ip)) {
		respondWithError(w, herrors.IdentityError(herrors.IdentityMismatch,
			"trace data IP does not match request IP"))
		return
	}

	if sub.SubmittedSeed != s.cfg.Puzzle.CurrentSeed() {
		respondWithError(w, puzzle.ErrStaleSeed)
		return
	}

	result, err := s.cfg.Puzzle.Verify(r.Context(), puzzle.Submission{
		Fingerprint:   sub.VisitorID,
		Nonce:         sub.Nonce,
		SubmittedSeed: sub.SubmittedSeed,
		TraceData:     sub.TraceData,
		HashHex:       sub.Hash,
		ChannelID:     s.cfg.Sessions.ChannelIDFor(token),
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	if s.cfg.Webhook != nil && s.cfg.Webhook.Enabled() {
		go s.cfg.Webhook.Send(context.Background(), sub.VisitorID, result.InviteCode)
	}

	if s.cfg.Audit != nil {
		go func() {
			if err := s.cfg.Audit.Append(audit.Record{
				Timestamp:     time.Now(),
				InviteCode:    result.InviteCode,
				VisitorID:     sub.VisitorID,
				Nonce:         sub.Nonce,
				Hash:          sub.Hash,
				Seed:          sub.SubmittedSeed,
				IP:            ip,
				TraceData:     sub.TraceData,
				Difficulty:    result.DifficultyAtSolve,
				SolveTime:     result.SolveSeconds,
				NewDifficulty: result.Snapshot.Difficulty,
				Reason:        result.Reason,
			}); err != nil {
				log.Errorf("httpapi: failed to append audit record: %v", err)
			}
		}()
	}

	if s.cfg.Hub != nil {
		s.cfg.Hub.Broadcast(hub.OutPuzzleReset, hub.NewPuzzleResetPayload(result.Snapshot, false))
	}

	respondWithJSON(w, http.StatusOK, verifyResponse{InviteCode: result.InviteCode})
}

// handleHealth serves GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	seed := s.cfg.Puzzle.CurrentSeed()
	if len(seed) > 8 {
		seed = seed[:8] + "..."
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":       "ok",
		"current_seed": seed,
	})
}

// handleDevTrace serves GET /api/dev/trace: a mock Cloudflare trace
// blob for local development, shaped like the real edge response.
func (s *Server) handleDevTrace(w http.ResponseWriter, r *http.Request) {
	nonce := make([]byte, 8)
	rand.Read(nonce)

	body := fmt.Sprintf(
		"fl=0f0\nh=localhost\nip=%s\nts=%s\nvisit_scheme=http\nuag=Mozilla/5.0\n"+
			"colo=DEV\nsliver=none\nhttp=http/1.1\nloc=CN\ntls=off\nsni=off\nwarp=off\ngateway=off\nrbi=off\nkex=none",
		clientIP(r), hex.EncodeToString(nonce))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// handleTurnstileConfig serves GET /api/turnstile/config.
func (s *Server) handleTurnstileConfig(w http.ResponseWriter, r *http.Request) {
	siteKey := ""
	if s.cfg.Turnstile != nil {
		siteKey = s.cfg.Turnstile.SiteKey()
	}
	respondWithJSON(w, http.StatusOK, turnstileConfigResponse{
		SiteKey:  siteKey,
		TestMode: s.cfg.TestMode,
	})
}

// handleWebsocket upgrades GET /api/ws, delegating the upgrade and
// identity checks to the hub.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if err := s.checkNotBanned(ip); err != nil {
		respondWithError(w, err)
		return
	}
	token := r.URL.Query().Get("token")
	if err := s.cfg.Hub.Upgrade(w, r, ip, token); err != nil {
		respondWithError(w, err)
		return
	}
}
