package turnstile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTestModeAcceptsAnyNonEmptyToken(t *testing.T) {
	v := NewTestMode()
	if err := v.Verify(context.Background(), "whatever", "1.2.3.4"); err != nil {
		t.Errorf("test-mode Verify: %v", err)
	}
}

func TestTestModeRejectsEmptyToken(t *testing.T) {
	v := NewTestMode()
	if err := v.Verify(context.Background(), "", "1.2.3.4"); err == nil {
		t.Error("expected an error for an empty token")
	}
}

func TestTestModeSiteKeyMatchesCloudflarePublishedTestKey(t *testing.T) {
	if NewTestMode().SiteKey() != TestSiteKey {
		t.Errorf("SiteKey() = %q, want %q", NewTestMode().SiteKey(), TestSiteKey)
	}
}

func TestLiveVerifierRejectsEmptyToken(t *testing.T) {
	v := New(Config{SiteKey: "sk", SecretKey: "secret"})
	if err := v.Verify(context.Background(), "", "1.2.3.4"); err == nil {
		t.Error("expected an error for an empty token")
	}
}

func TestLiveVerifierHandlesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(siteverifyResponse{Success: true})
	}))
	defer srv.Close()

	old := siteverifyURL
	siteverifyURL = srv.URL
	defer func() { siteverifyURL = old }()

	v := New(Config{SiteKey: "sk", SecretKey: "secret"})
	if err := v.Verify(context.Background(), "token", "1.2.3.4"); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestLiveVerifierHandlesFailureResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(siteverifyResponse{Success: false, ErrorCodes: []string{"invalid-input-response"}})
	}))
	defer srv.Close()

	old := siteverifyURL
	siteverifyURL = srv.URL
	defer func() { siteverifyURL = old }()

	v := New(Config{SiteKey: "sk", SecretKey: "secret"})
	if err := v.Verify(context.Background(), "token", "1.2.3.4"); err == nil {
		t.Error("expected an error for a failed siteverify response")
	}
}

func TestLiveVerifierSiteKeyRoundTrips(t *testing.T) {
	v := New(Config{SiteKey: "my-site-key", SecretKey: "secret"})
	if v.SiteKey() != "my-site-key" {
		t.Errorf("SiteKey() = %q, want %q", v.SiteKey(), "my-site-key")
	}
}

func TestForHubAdaptsVerifierToSingleMethodShape(t *testing.T) {
	adapted := ForHub(NewTestMode())
	if err := adapted.VerifyToken("whatever", "1.2.3.4"); err != nil {
		t.Errorf("VerifyToken: %v", err)
	}
	if err := adapted.VerifyToken("", "1.2.3.4"); err == nil {
		t.Error("expected an error for an empty token")
	}
}
