package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"hashpass/internal/admin"
	"hashpass/internal/audit"
	"hashpass/internal/blacklist"
	"hashpass/internal/hashrate"
	"hashpass/internal/httpapi"
	"hashpass/internal/hub"
	"hashpass/internal/puzzle"
	"hashpass/internal/ratelimit"
	"hashpass/internal/session"
	"hashpass/internal/timeoutwatch"
	"hashpass/internal/turnstile"
	"hashpass/internal/webhook"
)

var cfg *config

// server bundles every long-lived component started by run, so that
// shutdown can stop them in a defined order.
type server struct {
	cfg *config

	puz       *puzzle.Puzzle
	sessions  *session.Registry
	blacklist *blacklist.List
	aud       *audit.Log
	notifier  *webhook.Notifier
	challenge turnstile.Verifier
	hashagg   *hashrate.Aggregator
	connHub   *hub.Hub
	watcher   *timeoutwatch.Watcher

	httpSrv *http.Server
}

// newServer constructs and wires every component from cfg, following
// the dependency-injected shape used throughout internal/ in place of
// package-level singletons.
func newServer(cfg *config) *server {
	s := &server{cfg: cfg}

	s.puz = puzzle.New(puzzle.Config{
		InitialDifficulty: cfg.InitialDifficulty,
		MinDifficulty:     cfg.MinDifficulty,
		MaxDifficulty:     cfg.MaxDifficulty,
		TargetTimeMin:     cfg.targetTimeMin(),
		TargetTimeMax:     cfg.targetTimeMax(),
		Argon2: puzzle.Params{
			TimeCost:      cfg.Argon2TimeCost,
			MemoryCostKiB: cfg.Argon2MemoryKiB,
			Parallelism:   cfg.Argon2Parallelism,
		},
		WorkerCount:      cfg.WorkerCount,
		VerifierWorkers:  cfg.VerifierWorkers,
		MaxNonceSpeed:    cfg.MaxNonceSpeed,
		ServerSecret:     cfg.serverSecret,
		ConsolationCodes: cfg.ConsolationCodes,
	})

	s.sessions = session.New(mustSecret())
	s.blacklist = blacklist.Load(cfg.DataDir + "/blacklist.json")
	s.aud = audit.New(cfg.DataDir)
	s.notifier = webhook.New(cfg.WebhookURL, cfg.WebhookToken)

	if cfg.TurnstileTestMode {
		s.challenge = turnstile.NewTestMode()
	} else {
		s.challenge = turnstile.New(turnstile.Config{
			SiteKey:   cfg.TurnstileSiteKey,
			SecretKey: cfg.TurnstileSecretKey,
		})
	}

	s.hashagg = hashrate.New(cfg.MaxNonceSpeed, 3*time.Second)

	s.connHub = hub.New(hub.Config{
		Sessions:      s.sessions,
		Hashrate:      s.hashagg,
		Challenge:     turnstile.ForHub(s.challenge),
		OnMiningStart: s.puz.StartMining,
		OnMiningStop:  s.puz.StopMining,
	})

	s.watcher = timeoutwatch.New(s.puz, 0)

	s.hashagg.Start(func(snap hashrate.Snapshot) {
		s.connHub.Broadcast("NETWORK_HASHRATE", struct {
			TotalHashrate float64   `json:"total_hashrate"`
			ActiveMiners  int       `json:"active_miners"`
			Timestamp     time.Time `json:"timestamp"`
		}{
			TotalHashrate: snap.TotalHashesPerSecond,
			ActiveMiners:  snap.ActiveChannels,
			Timestamp:     time.Now(),
		})
	})

	visitorAPI := httpapi.New(httpapi.Config{
		Puzzle:    s.puz,
		Sessions:  s.sessions,
		Blacklist: s.blacklist,
		Webhook:   s.notifier,
		Audit:     s.aud,
		Hub:       s.connHub,
		Turnstile: s.challenge,
		TestMode:  cfg.TurnstileTestMode,
		Limiter:   ratelimit.New(ratelimit.Client),
	})

	adminAPI := admin.New(admin.Config{
		Puzzle:     s.puz,
		Sessions:   s.sessions,
		Blacklist:  s.blacklist,
		Hub:        s.connHub,
		Hashrate:   s.hashagg,
		Audit:      s.aud,
		AdminToken: cfg.AdminToken,
		StartedAt:  time.Now(),
	})

	root := mux.NewRouter()
	root.PathPrefix("/api/admin").Handler(adminAPI.Router)
	root.PathPrefix("/").Handler(visitorAPI.Router)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	s.httpSrv = &http.Server{
		Addr:    cfg.Port,
		Handler: cors(root),
	}

	return s
}

// mustSecret returns an independent random secret for the session
// registry's HMAC lookup index. It intentionally does not reuse the
// puzzle's invite-minting secret, per spec §3's server-secret note.
func mustSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// run starts the timeout watcher and HTTP server, and blocks until
// ctx is cancelled, at which point it shuts everything down in turn.
func (s *server) run(ctx context.Context) error {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	go s.watcher.Run(watchCtx, func(result puzzle.TimeoutResult) {
		s.connHub.Broadcast(hub.OutPuzzleReset, hub.NewPuzzleResetPayload(result.Snapshot, true))
		if result.ConsolationCode != "" && result.ConsolationChannelID != "" {
			s.connHub.Send(result.ConsolationChannelID, hub.OutTimeoutInviteCode,
				hub.TimeoutInviteCodePayload{InviteCode: result.ConsolationCode})
		}
	})

	errCh := make(chan error, 1)
	go func() {
		mpLog.Infof("listening on %s", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.stop(shutdownCtx)
		return nil
	}
}

// stop shuts every component down in the reverse order they were
// started, giving in-flight requests up to shutdownCtx's deadline to
// finish.
func (s *server) stop(shutdownCtx context.Context) {
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		mpLog.Errorf("error shutting down http server: %v", err)
	}
	s.hashagg.Stop()
	s.sessions.Close()
	s.puz.Close()
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	tcfg, _, err := loadConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	mpLog.Infof("Version %s (Go version %s)", version(), runtime.Version())
	mpLog.Infof("Home dir: %s", cfg.HomeDir)

	srv := newServer(cfg)

	ctx, cancel := shutdownListener()
	defer cancel()

	if err := srv.run(ctx); err != nil {
		mpLog.Error(err)
	}
}
