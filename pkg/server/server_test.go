package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nimbus-hq/sendgate/pkg/config"
	"nimbus-hq/sendgate/pkg/quota"
	"nimbus-hq/sendgate/pkg/quota/store"
)

func newTestServer(t *testing.T, st store.Store) (*Server, http.Handler) {
	t.Helper()

	plans := quota.NewPlanTable()
	plans.Replace(map[string]quota.Policy{
		"test": {
			EmailsPerDayPerMailbox: 2,
			EmailsPerMonth:         100,
			LinkedInPerDay:         1,
			LinkedInPerMonth:       10,
		},
	})

	engine, err := quota.New(quota.Config{
		Store:            st,
		Plans:            plans,
		IncrementBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("quota.New failed: %v", err)
	}

	srv := NewServer(
		&config.ServerConfig{
			ListenAddress:   "127.0.0.1:0",
			ShutdownTimeout: time.Second,
		},
		&config.MetricsConfig{Enabled: false},
		engine,
	)
	return srv, srv.setupRoutes()
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeCheck(t *testing.T, rec *httptest.ResponseRecorder) checkResponse {
	t.Helper()

	var resp checkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func TestServer_EmailCheckAllowed(t *testing.T) {
	_, handler := newTestServer(t, store.NewMemoryStore())

	rec := postJSON(t, handler, "/v1/email/check", checkRequest{
		WorkspaceID: "ws-1", MailboxID: "mb-1", Plan: "test",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeCheck(t, rec)
	if !resp.Allowed {
		t.Errorf("Expected allowed, got %+v", resp)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected X-Request-ID response header")
	}
}

func TestServer_EmailCheckDenied(t *testing.T) {
	st := store.NewMemoryStore()
	_, handler := newTestServer(t, st)

	// Fill the daily ceiling (2) for the mailbox
	for i := 0; i < 2; i++ {
		rec := postJSON(t, handler, "/v1/email/usage", usageRequest{
			WorkspaceID: "ws-1", MailboxID: "mb-1",
		})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204 recording usage, got %d", rec.Code)
		}
	}

	rec := postJSON(t, handler, "/v1/email/check", checkRequest{
		WorkspaceID: "ws-1", MailboxID: "mb-1", Plan: "test",
	})

	// A denial is a successful response
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for denial, got %d", rec.Code)
	}
	resp := decodeCheck(t, rec)
	if resp.Allowed {
		t.Fatal("Expected denied")
	}
	if resp.Reason != string(quota.DenyDailyEmail) {
		t.Errorf("Expected reason %q, got %q", quota.DenyDailyEmail, resp.Reason)
	}
	if resp.Current != 2 || resp.Limit != 2 {
		t.Errorf("Expected current=2 limit=2, got %+v", resp)
	}
}

func TestServer_LinkedInCheckAndUsage(t *testing.T) {
	_, handler := newTestServer(t, store.NewMemoryStore())

	rec := postJSON(t, handler, "/v1/linkedin/usage", usageRequest{WorkspaceID: "ws-1"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/v1/linkedin/check", checkRequest{
		WorkspaceID: "ws-1", Plan: "test",
	})
	resp := decodeCheck(t, rec)
	if resp.Allowed {
		t.Errorf("Expected denied at daily LinkedIn ceiling 1, got %+v", resp)
	}
}

func TestServer_CheckFailsClosedOnStoreError(t *testing.T) {
	_, handler := newTestServer(t, &failingStore{})

	rec := postJSON(t, handler, "/v1/email/check", checkRequest{
		WorkspaceID: "ws-1", MailboxID: "mb-1", Plan: "test",
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	resp := decodeCheck(t, rec)
	if resp.Allowed {
		t.Error("Expected allowed=false when store is down")
	}
	if resp.Error == "" {
		t.Error("Expected error message in response")
	}
}

func TestServer_UsageLostIncrementStillNoContent(t *testing.T) {
	_, handler := newTestServer(t, &failingStore{})

	rec := postJSON(t, handler, "/v1/email/usage", usageRequest{
		WorkspaceID: "ws-1", MailboxID: "mb-1",
	})

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for lost increment, got %d", rec.Code)
	}
}

func TestServer_BadRequests(t *testing.T) {
	_, handler := newTestServer(t, store.NewMemoryStore())

	tests := []struct {
		name string
		path string
		body any
	}{
		{"email check without workspace", "/v1/email/check", checkRequest{MailboxID: "mb-1", Plan: "test"}},
		{"email check without mailbox", "/v1/email/check", checkRequest{WorkspaceID: "ws-1", Plan: "test"}},
		{"linkedin check without workspace", "/v1/linkedin/check", checkRequest{Plan: "test"}},
		{"email usage without mailbox", "/v1/email/usage", usageRequest{WorkspaceID: "ws-1"}},
		{"linkedin usage without workspace", "/v1/linkedin/usage", usageRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}

	// Malformed JSON
	req := httptest.NewRequest(http.MethodPost, "/v1/email/check", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestServer_Thresholds(t *testing.T) {
	_, handler := newTestServer(t, store.NewMemoryStore())

	// 2/2 daily on mb-1 puts the mailbox window at 100%
	for i := 0; i < 2; i++ {
		postJSON(t, handler, "/v1/email/usage", usageRequest{WorkspaceID: "ws-1", MailboxID: "mb-1"})
	}

	req := httptest.NewRequest(http.MethodGet,
		"/v1/thresholds?workspace_id=ws-1&plan=test&mailbox_id=mb-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp thresholdsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	var found bool
	for _, alert := range resp.Alerts {
		if alert.MailboxID == "mb-1" && alert.Channel == "email" && alert.Period == "daily" {
			found = true
			if alert.Percent != 100 {
				t.Errorf("Expected 100%%, got %v", alert.Percent)
			}
		}
	}
	if !found {
		t.Errorf("Expected mailbox daily alert, got %+v", resp.Alerts)
	}
}

func TestServer_ThresholdsRequiresParams(t *testing.T) {
	_, handler := newTestServer(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/thresholds?workspace_id=ws-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without plan, got %d", rec.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	_, handler := newTestServer(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, store.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for shutdown")
	}
}

// failingStore fails every operation.
type failingStore struct{}

func (f *failingStore) Read(ctx context.Context, key store.Key) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (f *failingStore) IncrementAndGet(ctx context.Context, key store.Key) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (f *failingStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (f *failingStore) Close() error { return nil }
