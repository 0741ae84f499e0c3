package session

import (
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New([]byte("test-session-secret"))
	t.Cleanup(r.Close)
	return r
}

func TestIssueAndValidate(t *testing.T) {
	r := newTestRegistry(t)

	token, err := r.Issue("1.2.3.4")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := r.Validate(token, "1.2.3.4"); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Validate("bogus", "1.2.3.4"); err == nil {
		t.Error("expected an error for an unknown token")
	}
}

func TestValidateRejectsMismatchedIP(t *testing.T) {
	r := newTestRegistry(t)
	token, _ := r.Issue("1.2.3.4")
	if err := r.Validate(token, "9.9.9.9"); err == nil {
		t.Error("expected an error for a mismatched IP")
	}
}

func TestMarkDisconnectedStartsGraceWindowNotImmediateExpiry(t *testing.T) {
	r := newTestRegistry(t)
	token, _ := r.Issue("1.2.3.4")
	r.MarkDisconnected(token)

	if err := r.Validate(token, "1.2.3.4"); err != nil {
		t.Errorf("Validate immediately after disconnect: %v, want nil (still within grace)", err)
	}
}

func TestValidateExpiresAfterGraceWindow(t *testing.T) {
	r := newTestRegistry(t)
	token, _ := r.Issue("1.2.3.4")

	r.mu.Lock()
	rec := r.entries[r.index(token)]
	past := time.Now().Add(-DisconnectGrace - time.Second)
	rec.disconnectedAt = &past
	r.mu.Unlock()

	if err := r.Validate(token, "1.2.3.4"); err == nil {
		t.Error("expected an expiry error past the grace window")
	}
}

func TestRevokeByIPRemovesAllSessionsForThatIP(t *testing.T) {
	r := newTestRegistry(t)
	r.Issue("1.2.3.4")
	r.Issue("1.2.3.4")
	r.Issue("5.6.7.8")

	removed := r.RevokeByIP("1.2.3.4")
	if removed != 2 {
		t.Errorf("RevokeByIP removed %d, want 2", removed)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestClearAllRemovesEverySession(t *testing.T) {
	r := newTestRegistry(t)
	r.Issue("1.2.3.4")
	r.Issue("5.6.7.8")

	n := r.ClearAll()
	if n != 2 {
		t.Errorf("ClearAll() = %d, want 2", n)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestMarkConnectedClearsDisconnectedAt(t *testing.T) {
	r := newTestRegistry(t)
	token, _ := r.Issue("1.2.3.4")
	r.MarkDisconnected(token)
	if err := r.MarkConnected(token, "chan-1"); err != nil {
		t.Fatalf("MarkConnected: %v", err)
	}

	r.mu.Lock()
	rec := r.entries[r.index(token)]
	disconnected := rec.disconnectedAt
	r.mu.Unlock()

	if disconnected != nil {
		t.Error("MarkConnected did not clear disconnectedAt")
	}
}

func TestChannelIDForReturnsBoundChannel(t *testing.T) {
	r := newTestRegistry(t)
	token, _ := r.Issue("1.2.3.4")

	if got := r.ChannelIDFor(token); got != "" {
		t.Errorf("ChannelIDFor() = %q before MarkConnected, want empty", got)
	}

	if err := r.MarkConnected(token, "chan-1"); err != nil {
		t.Fatalf("MarkConnected: %v", err)
	}
	if got := r.ChannelIDFor(token); got != "chan-1" {
		t.Errorf("ChannelIDFor() = %q, want %q", got, "chan-1")
	}
	if got := r.ChannelIDFor("bogus"); got != "" {
		t.Errorf("ChannelIDFor() for unknown token = %q, want empty", got)
	}
}

func TestSweepOnceRemovesExpiredSessions(t *testing.T) {
	r := newTestRegistry(t)
	token, _ := r.Issue("1.2.3.4")
	r.mu.Lock()
	rec := r.entries[r.index(token)]
	past := time.Now().Add(-DisconnectGrace - time.Second)
	rec.disconnectedAt = &past
	r.mu.Unlock()

	r.sweepOnce()

	if r.Count() != 0 {
		t.Errorf("Count() = %d after sweep, want 0", r.Count())
	}
}
