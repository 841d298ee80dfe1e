package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clawdash/config"
	"clawdash/logger"
	"clawdash/models"
)

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                               "0.0.0.0:8080",
		"  :9090  ":                      "0.0.0.0:9090",
		"localhost":                      "localhost:8080",
		"0.0.0.0:80":                     "0.0.0.0:80",
		"[::1]:443":                      "[::1]:443",
		"::1":                            "[::1]:8080",
		"*:8080":                         "0.0.0.0:8080",
		"http://10.0.0.5:8080":           "10.0.0.5:8080",
		"https://10.0.0.5":               "10.0.0.5:8080",
		"http://:7070":                   "0.0.0.0:7070",
		"tcp://localhost:5050":           "localhost:5050",
		"https://dashboard.example.com/": "dashboard.example.com:8080",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

type stubSampler struct {
	health models.MachineHealth
	err    error
}

func (s stubSampler) Collect(context.Context) (models.MachineHealth, error) {
	return s.health, s.err
}

func writeSnapshot(t *testing.T, dir string, snap models.DashboardSnapshot) string {
	t.Helper()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func sampleSnapshot() models.DashboardSnapshot {
	pos := models.NewPosition("BTC", models.Long)
	pos.Size = 0.5
	pos.EntryPrice = 60000
	return models.NewSnapshot(
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		[]models.BotStatus{{Name: "Scanner", Status: models.BotOK, Interval: "Hourly", LastRun: "Just now", NextRun: "in 59 min"}},
		[]models.PositionRecord{pos},
		[]models.SessionInfo{{DisplayName: "Main session", Channel: models.ChannelUnknown, SessionKey: "agent:main:main"}},
		models.MachineHealth{CPUPercent: 10, MemPercent: 20},
		models.StatsBundle{PositionCount: 1},
	)
}

func newTestServer(t *testing.T, path string, live MachineSampler) *Server {
	t.Helper()
	log := logger.New()
	srv := NewServer(config.ServerConfig{Addr: ":0", LogBuffer: 10}, path, log, live)
	t.Cleanup(srv.logStore.close)
	return srv
}

// get serves target and fails the test unless the response has status want.
func get(t *testing.T, h http.Handler, target string, want int) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != want {
		t.Fatalf("GET %s: status %d, want %d (body %s)", target, rec.Code, want, rec.Body.String())
	}
	return rec.Body.String()
}

func TestSnapshotEndpointsServePublishedFile(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), sampleSnapshot())
	h := newTestServer(t, path, nil).Handler()

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := get(t, h, "/api/snapshot", http.StatusOK); got != string(want) {
		t.Fatalf("snapshot body differs from published file:\n%s", got)
	}

	var positions []models.PositionRecord
	if err := json.Unmarshal([]byte(get(t, h, "/api/positions", http.StatusOK)), &positions); err != nil {
		t.Fatalf("decode positions: %v", err)
	}
	if len(positions) != 1 || positions[0].Coin != "BTC" {
		t.Fatalf("unexpected positions: %+v", positions)
	}

	checks := map[string]string{
		"/api/bots":     `"Scanner"`,
		"/api/sessions": `"sessionKey":"agent:main:main"`,
		"/api/system":   `"cpuPercent":10`,
		"/healthz":      `"status":"ok"`,
	}
	for target, fragment := range checks {
		if body := get(t, h, target, http.StatusOK); !strings.Contains(body, fragment) {
			t.Errorf("GET %s: body %s missing %s", target, body, fragment)
		}
	}
}

func TestMissingSnapshotIsUnavailable(t *testing.T) {
	h := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"), nil).Handler()

	for _, target := range []string{"/api/snapshot", "/api/positions", "/api/system", "/healthz"} {
		if body := get(t, h, target, http.StatusServiceUnavailable); !strings.Contains(body, "snapshot not available") {
			t.Errorf("GET %s: unexpected body %s", target, body)
		}
	}
}

func TestCorruptSnapshotIsServerError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, path, nil).Handler()

	get(t, h, "/api/bots", http.StatusInternalServerError)
}

func TestLiveSystemSample(t *testing.T) {
	live := stubSampler{health: models.MachineHealth{CPUPercent: 55.5}}
	h := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"), live).Handler()

	if body := get(t, h, "/api/system?live=true", http.StatusOK); !strings.Contains(body, `"cpuPercent":55.5`) {
		t.Fatalf("live sample missing from %s", body)
	}

	h = newTestServer(t, "unused", stubSampler{err: errors.New("no host")}).Handler()
	get(t, h, "/api/system?live=true", http.StatusServiceUnavailable)
}

func TestLogsEndpointFiltersByLevel(t *testing.T) {
	srv := newTestServer(t, "unused", nil)
	h := srv.Handler()

	log := srv.log.WithComponent("dashboard_test")
	log.Warn("collector fell back")
	log.Debug("noise")

	var body struct {
		Logs []logRecord `json:"logs"`
	}
	if err := json.Unmarshal([]byte(get(t, h, "/api/logs?level=warn", http.StatusOK)), &body); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(body.Logs) == 0 {
		t.Fatalf("expected captured warning")
	}
	allowed := map[string]bool{"warning": true, "error": true, "fatal": true, "panic": true}
	for _, l := range body.Logs {
		if !allowed[l.Level] {
			t.Errorf("record below warn level returned: %+v", l)
		}
	}

	get(t, h, "/api/logs?level=loud", http.StatusBadRequest)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, "unused", nil).Handler()
	get(t, h, "/healthz", http.StatusServiceUnavailable)

	if body := get(t, h, "/metrics", http.StatusOK); !strings.Contains(body, "clawdash_http_requests_total") {
		t.Fatalf("request counter missing from /metrics")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := newTestServer(t, "unused", nil)
	srv.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
