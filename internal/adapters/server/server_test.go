package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/critpath/internal/adapters/server/common"
	"github.com/evanschultz/critpath/internal/adapters/storage/sqlite"
	"github.com/evanschultz/critpath/internal/app"
)

// newTestDependencies wires server dependencies over a file-backed sqlite service.
func newTestDependencies(t *testing.T) (Dependencies, *app.Service, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "critpath.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})
	return Dependencies{
		Schedules: common.NewAppServiceAdapter(svc),
		Ready:     repo.Ping,
	}, svc, repo
}

// getBody issues one GET request and returns the status and body.
func getBody(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return resp.StatusCode, string(body)
}

// TestNewHandlerServesHealthScheduleAndMetrics verifies the composed mux end to end.
func TestNewHandlerServesHealthScheduleAndMetrics(t *testing.T) {
	deps, svc, _ := newTestDependencies(t)
	project, err := svc.CreateSampleProject(context.Background())
	if err != nil {
		t.Fatalf("CreateSampleProject() error = %v", err)
	}

	handler, cfg, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.ServerName != "critpath" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		status, body := getBody(t, server.Client(), server.URL+path)
		if status != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
			t.Fatalf("%s = %d %q, want ok", path, status, body)
		}
	}

	status, body := getBody(t, server.Client(), server.URL+"/api/v1/projects/"+project.ID+"/schedule")
	if status != http.StatusOK {
		t.Fatalf("schedule status = %d, body %q", status, body)
	}
	var state common.ScheduleState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if state.Summary.CurrentDuration != 17 {
		t.Fatalf("current duration = %v, want 17", state.Summary.CurrentDuration)
	}

	status, body = getBody(t, server.Client(), server.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if !strings.Contains(body, "critpath_schedule_computations_total") {
		t.Fatalf("metrics output missing schedule computations counter")
	}
}

// TestReadyzReportsProbeFailure verifies readiness fails closed when storage is down.
func TestReadyzReportsProbeFailure(t *testing.T) {
	deps, _, _ := newTestDependencies(t)
	deps.Ready = func(context.Context) error {
		return errors.New("database is closed")
	}
	handler, _, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "database is closed") {
		t.Fatalf("body = %q, want probe error", rec.Body.String())
	}
}

// TestNewHandlerValidation verifies dependency and endpoint checks.
func TestNewHandlerValidation(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected error without schedule service")
	}
	deps, _, _ := newTestDependencies(t)
	if _, _, err := NewHandler(Config{APIEndpoint: "/same", MCPEndpoint: "same/"}, deps); err == nil {
		t.Fatal("expected error for colliding endpoints")
	}
}

// TestNormalizeEndpoint verifies endpoint path normalization.
func TestNormalizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: "/api/v1"},
		{in: "/", want: "/api/v1"},
		{in: "api/v2/", want: "/api/v2"},
		{in: " //custom// ", want: "/custom"},
	}
	for _, tc := range cases {
		if got := normalizeEndpoint(tc.in, "/api/v1"); got != tc.want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestRunStopsOnContextCancel verifies graceful shutdown when the context ends.
func TestRunStopsOnContextCancel(t *testing.T) {
	deps, _, _ := newTestDependencies(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, deps)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

// TestServeHandlesRequestsUntilCancel verifies a live listener answers probes and closes on cancel.
func TestServeHandlesRequestsUntilCancel(t *testing.T) {
	deps, _, _ := newTestDependencies(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, Config{ShutdownTimeout: time.Second}, deps)
	}()

	status, body := getBody(t, http.DefaultClient, "http://"+ln.Addr().String()+"/readyz")
	if status != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("/readyz = %d %q, want ok", status, body)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if _, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second); err == nil {
		t.Fatal("expected listener closed after shutdown")
	}
}

// TestRunReportsBindFailure verifies an occupied address fails before serving.
func TestRunReportsBindFailure(t *testing.T) {
	deps, _, _ := newTestDependencies(t)
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer taken.Close()

	err = Run(context.Background(), Config{HTTPBind: taken.Addr().String()}, deps)
	if err == nil || !strings.Contains(err.Error(), "listen on") {
		t.Fatalf("Run() error = %v, want listen failure", err)
	}
}

// TestServeRejectsMissingDependencies verifies handler errors close the listener.
func TestServeRejectsMissingDependencies(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	if err := Serve(context.Background(), ln, Config{}, Dependencies{}); err == nil {
		t.Fatal("expected Serve() error without schedule service")
	}
	if _, err := ln.Accept(); err == nil {
		t.Fatal("expected closed listener")
	}
}

// TestNormalizeConfigDefaults verifies serve defaults.
func TestNormalizeConfigDefaults(t *testing.T) {
	cfg, err := normalizeConfig(Config{ServerName: "  ", ShutdownTimeout: -time.Second})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.ServerName != "critpath" || cfg.ServerVersion != "dev" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.ShutdownTimeout != defaultShutdownTimeout {
		t.Fatalf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, defaultShutdownTimeout)
	}
}
