// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/models"
	"github.com/hangarbay/fleetindex/internal/store"
)

// stubSync satisfies SyncControl without running anything.
type stubSync struct {
	running   bool
	triggered chan struct{}
}

func (s *stubSync) RunSync(ctx context.Context) (*models.SyncAudit, error) {
	if s.triggered != nil {
		close(s.triggered)
	}
	return &models.SyncAudit{SyncVersion: 1, Status: models.SyncStatusSuccess}, nil
}

func (s *stubSync) IsRunning() bool { return s.running }

func testAPIConfig() *config.APIConfig {
	return &config.APIConfig{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		MaxBatchIDs:     50,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
}

func newTestServer(t *testing.T, sync *stubSync) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(&config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	handler := NewHandler(st, sync, testAPIConfig())
	server := httptest.NewServer(NewRouter(handler, testAPIConfig()))
	t.Cleanup(server.Close)

	return server, st
}

func seedShips(t *testing.T, st *store.Store, n int) {
	t.Helper()
	ships := make([]models.Ship, 0, n)
	for i := 0; i < n; i++ {
		ships = append(ships, models.Ship{
			ExternalID: fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			Slug:       fmt.Sprintf("ship-%d", i),
			Name:       fmt.Sprintf("Ship %d", i),
			Manufacturer: models.Manufacturer{
				Name: "Roberts Space Industries",
				Code: "RSI",
				Slug: "roberts-space-industries",
			},
			ExternalUpdatedAt: "2026-01-01T00:00:00Z",
		})
	}
	if _, err := st.UpsertShips(context.Background(), ships); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s decode error = %v", url, err)
	}
	return body
}

func TestShipsEndpoint(t *testing.T) {
	server, st := newTestServer(t, &stubSync{})
	seedShips(t, st, 25)

	body := getJSON(t, server.URL+"/api/v1/ships?per_page=10", http.StatusOK)
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}

	data := body["data"].(map[string]any)
	if total := data["total"].(float64); total != 25 {
		t.Errorf("total = %v, want 25", total)
	}
	if items := data["items"].([]any); len(items) != 10 {
		t.Errorf("items = %d, want 10", len(items))
	}
}

func TestShipsEndpointCapsPageSize(t *testing.T) {
	server, st := newTestServer(t, &stubSync{})
	seedShips(t, st, 5)

	body := getJSON(t, server.URL+"/api/v1/ships?per_page=5000", http.StatusOK)
	data := body["data"].(map[string]any)
	if ps := data["page_size"].(float64); ps != 100 {
		t.Errorf("page_size = %v, want capped at 100", ps)
	}
}

func TestShipEndpointByIDAndSlug(t *testing.T) {
	server, st := newTestServer(t, &stubSync{})
	seedShips(t, st, 3)

	for _, path := range []string{
		"/api/v1/ships/00000000-0000-0000-0000-000000000001",
		"/api/v1/ships/ship-1",
	} {
		body := getJSON(t, server.URL+path, http.StatusOK)
		data := body["data"].(map[string]any)
		if data["slug"] != "ship-1" {
			t.Errorf("GET %s slug = %v, want ship-1", path, data["slug"])
		}
	}
}

func TestShipEndpointNotFound(t *testing.T) {
	server, _ := newTestServer(t, &stubSync{})

	resp, err := http.Get(server.URL + "/api/v1/ships/no-such-ship")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestShipsBatchEndpoint(t *testing.T) {
	server, st := newTestServer(t, &stubSync{})
	seedShips(t, st, 5)

	payload := `{"ids": ["00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002", "99999999-9999-9999-9999-999999999999"]}`
	resp, err := http.Post(server.URL+"/api/v1/ships/batch", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	meta := body["meta"].(map[string]any)
	if meta["found"].(float64) != 2 {
		t.Errorf("found = %v, want 2", meta["found"])
	}
}

func TestShipsBatchRejectsInvalid(t *testing.T) {
	server, _ := newTestServer(t, &stubSync{})

	tests := []struct {
		name    string
		payload string
	}{
		{"empty ids", `{"ids": []}`},
		{"non-uuid id", `{"ids": ["not-a-uuid"]}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/v1/ships/batch", "application/json", strings.NewReader(tt.payload))
			if err != nil {
				t.Fatalf("POST error = %v", err)
			}
			defer resp.Body.Close() //nolint:errcheck
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestManufacturersEndpoint(t *testing.T) {
	server, st := newTestServer(t, &stubSync{})
	seedShips(t, st, 4)

	body := getJSON(t, server.URL+"/api/v1/manufacturers", http.StatusOK)
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("manufacturers = %d, want 1", len(data))
	}
	first := data[0].(map[string]any)
	if first["code"] != "RSI" || first["count"].(float64) != 4 {
		t.Errorf("manufacturer = %v, want RSI with 4 ships", first)
	}
}

func TestSyncStatusEndpoint(t *testing.T) {
	server, st := newTestServer(t, &stubSync{running: true})

	// No audit yet.
	body := getJSON(t, server.URL+"/api/v1/sync/status", http.StatusOK)
	data := body["data"].(map[string]any)
	if data["running"] != true {
		t.Errorf("running = %v, want true", data["running"])
	}
	if data["last_run"] != nil {
		t.Errorf("last_run = %v, want null", data["last_run"])
	}

	// With an audit record.
	audit := &models.SyncAudit{ID: "a", SyncVersion: 4, Status: models.SyncStatusSuccess, StartedAt: time.Now()}
	if err := st.AppendAudit(context.Background(), audit); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}
	body = getJSON(t, server.URL+"/api/v1/sync/status", http.StatusOK)
	data = body["data"].(map[string]any)
	lastRun := data["last_run"].(map[string]any)
	if lastRun["sync_version"].(float64) != 4 {
		t.Errorf("last_run.sync_version = %v, want 4", lastRun["sync_version"])
	}
}

func TestSyncTriggerEndpoint(t *testing.T) {
	sync := &stubSync{triggered: make(chan struct{})}
	server, _ := newTestServer(t, sync)

	resp, err := http.Post(server.URL+"/api/v1/sync/trigger", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	select {
	case <-sync.triggered:
	case <-time.After(2 * time.Second):
		t.Error("trigger endpoint never started a sync run")
	}
}

func TestSyncTriggerConflictWhileRunning(t *testing.T) {
	server, _ := newTestServer(t, &stubSync{running: true})

	resp, err := http.Post(server.URL+"/api/v1/sync/trigger", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, st := newTestServer(t, &stubSync{})
	seedShips(t, st, 2)

	body := getJSON(t, server.URL+"/api/v1/health", http.StatusOK)
	data := body["data"].(map[string]any)
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["ships"].(float64) != 2 {
		t.Errorf("ships = %v, want 2", data["ships"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &stubSync{})

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
