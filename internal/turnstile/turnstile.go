// Package turnstile validates Cloudflare Turnstile challenge tokens
// against the human-challenge collaborator boundary described in
// spec §1, with a test-mode fake for development and CI.
package turnstile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	herrors "hashpass/errors"
)

// siteverifyURL is Cloudflare's Turnstile verification endpoint.
// Variable rather than const so tests can point it at a local stub.
var siteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// TestSecretKey and TestSiteKey are Cloudflare's published always-pass
// keys, used when the server is started in test mode.
const (
	TestSecretKey = "1x0000000000000000000000000000000AA"
	TestSiteKey   = "1x00000000000000000000AA"
)

// Verifier checks a client-submitted Turnstile response token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
	SiteKey() string
}

// Config configures a real Cloudflare-backed Verifier.
type Config struct {
	SiteKey   string
	SecretKey string
	Timeout   time.Duration
}

type liveVerifier struct {
	siteKey   string
	secretKey string
	client    *http.Client
}

// New constructs a Verifier that calls Cloudflare's siteverify API.
func New(cfg Config) Verifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &liveVerifier{
		siteKey:   cfg.SiteKey,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *liveVerifier) SiteKey() string { return v.siteKey }

func (v *liveVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return herrors.IdentityError(herrors.ChallengeUnavailable, "missing Turnstile token")
	}

	payload := map[string]string{
		"secret":   v.secretKey,
		"response": token,
	}
	if remoteIP != "" {
		payload["remoteip"] = remoteIP
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteverifyURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return herrors.IdentityError(herrors.ChallengeUnavailable, fmt.Sprintf("turnstile request failed: %v", err))
	}
	defer resp.Body.Close()

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return herrors.IdentityError(herrors.ChallengeUnavailable, "turnstile returned an unparsable response")
	}
	if !result.Success {
		return herrors.IdentityError(herrors.ChallengeUnavailable,
			"turnstile verification failed: "+strings.Join(result.ErrorCodes, ", "))
	}
	return nil
}

// testVerifier is the always-pass fake used when the server runs with
// test_mode enabled, mirroring Cloudflare's published test keys.
type testVerifier struct{}

// NewTestMode returns a Verifier that accepts any non-empty token,
// for local development and CI where no live Cloudflare credentials
// are available.
func NewTestMode() Verifier {
	return testVerifier{}
}

func (testVerifier) SiteKey() string { return TestSiteKey }

func (testVerifier) Verify(_ context.Context, token, _ string) error {
	if token == "" {
		return herrors.IdentityError(herrors.ChallengeUnavailable, "missing Turnstile token")
	}
	return nil
}

// hubAdapter narrows a Verifier down to the single-method shape the
// realtime hub expects, since connection upgrades have no caller
// context to thread through.
type hubAdapter struct {
	v Verifier
}

// ForHub adapts a Verifier to hub.ChallengeVerifier.
func ForHub(v Verifier) hubAdapter {
	return hubAdapter{v: v}
}

func (a hubAdapter) VerifyToken(token, ip string) error {
	return a.v.Verify(context.Background(), token, ip)
}
