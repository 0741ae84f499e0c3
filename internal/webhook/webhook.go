// Package webhook fires a best-effort outbound notification whenever
// a puzzle is solved. Failure never affects invite-code issuance: the
// caller enqueues and moves on.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/decred/slog"
)

var log = slog.Disabled

// UseLogger sets the package-wide logger used by webhook.
func UseLogger(logger slog.Logger) {
	log = logger
}

const (
	maxAttempts   = 3
	perAttemptTimeout = 5 * time.Second
)

// backoff holds the delay before each retry, mirroring the source's
// 2**attempt schedule (1s after the first failure, 2s after the
// second; there is no third retry).
var backoff = []time.Duration{1 * time.Second, 2 * time.Second}

// Payload is the fixed JSON body sent on every winning solve.
type Payload struct {
	VisitorID  string `json:"visitor_id"`
	InviteCode string `json:"invite_code"`
}

// Notifier posts Payload to a configured URL on a fire-and-forget
// basis.
type Notifier struct {
	url    string
	token  string
	client *http.Client
}

// New constructs a Notifier. url may be empty, in which case Send is
// a no-op — this mirrors the source's "no WEBHOOK_URL configured"
// early return.
func New(url, bearerToken string) *Notifier {
	return &Notifier{
		url:    url,
		token:  bearerToken,
		client: &http.Client{Timeout: perAttemptTimeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Send attempts delivery up to maxAttempts times with exponential
// backoff between attempts, logging but never returning an error —
// callers should invoke this in its own goroutine.
func (n *Notifier) Send(ctx context.Context, visitorID, inviteCode string) {
	if n.url == "" {
		return
	}

	body, err := json.Marshal(Payload{VisitorID: visitorID, InviteCode: inviteCode})
	if err != nil {
		log.Errorf("webhook: failed to encode payload: %v", err)
		return
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if n.attempt(ctx, body) {
			log.Infof("webhook: delivered to %s", n.url)
			return
		}
		log.Warnf("webhook: attempt %d/%d failed", attempt+1, maxAttempts)

		if attempt < maxAttempts-1 {
			delay := backoff[attempt]
			log.Infof("webhook: retrying in %s", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				log.Errorf("webhook: context cancelled before retry")
				return
			}
		}
	}
	log.Errorf("webhook: giving up after %d attempts -> %s", maxAttempts, n.url)
}

func (n *Notifier) attempt(ctx context.Context, body []byte) bool {
	reqCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Errorf("webhook: request construction failed: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		log.Errorf("webhook: network request failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
