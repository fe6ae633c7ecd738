// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func startTestServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()

	server := NewServer("127.0.0.1:0", ready)
	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // test URL built from loopback listener
	if err != nil {
		t.Fatalf("failed to GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startTestServer(t, func() bool { return true })

	status, body := httpGet(t, "http://"+server.Addr()+"/metrics")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}

	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("expected Prometheus exposition format")
	}
	if !strings.Contains(body, "go_") {
		t.Error("expected go_* metrics")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process_* metrics")
	}
}

func TestServer_MetricsIncrement(t *testing.T) {
	server := startTestServer(t, func() bool { return true })

	metrics := server.Metrics()
	metrics.RecordLogin(true)
	metrics.RecordLogin(true)
	metrics.RecordLogin(false)
	metrics.RecordLogout(true)
	metrics.RecordTokenCheck(true)
	metrics.RecordTokenCheck(false)
	metrics.RecordForcedLogoutRun()

	_, body := httpGet(t, "http://"+server.Addr()+"/metrics")

	if !strings.Contains(body, `emberfall_logins_total{status="success"} 2`) {
		t.Error("expected successful logins counter to be 2")
	}
	if !strings.Contains(body, `emberfall_logins_total{status="denied"} 1`) {
		t.Error("expected denied logins counter to be 1")
	}
	if !strings.Contains(body, `emberfall_logouts_total{status="success"} 1`) {
		t.Error("expected successful logouts counter to be 1")
	}
	if !strings.Contains(body, `emberfall_token_checks_total{status="valid"} 1`) {
		t.Error("expected valid token checks counter to be 1")
	}
	if !strings.Contains(body, `emberfall_token_checks_total{status="invalid"} 1`) {
		t.Error("expected invalid token checks counter to be 1")
	}
	if !strings.Contains(body, "emberfall_forced_logout_runs_total 1") {
		t.Error("expected forced logout runs counter to be 1")
	}
}

func TestServer_Gauges(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	online := 3.0
	sessions := 5.0
	server.RegisterOnlineGauge(func() float64 { return online })
	server.RegisterSessionGauge(func() float64 { return sessions })

	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	_, body := httpGet(t, "http://"+server.Addr()+"/metrics")
	if !strings.Contains(body, "emberfall_players_online 3") {
		t.Error("expected online gauge to read 3")
	}
	if !strings.Contains(body, "emberfall_sessions_active 5") {
		t.Error("expected session gauge to read 5")
	}

	// Gauges sample at scrape time.
	online = 0
	_, body = httpGet(t, "http://"+server.Addr()+"/metrics")
	if !strings.Contains(body, "emberfall_players_online 0") {
		t.Error("expected online gauge to read 0 after update")
	}
}

func TestServer_LivenessReturns200(t *testing.T) {
	server := startTestServer(t, nil)

	status, body := httpGet(t, "http://"+server.Addr()+"/healthz/liveness")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if strings.TrimSpace(body) != "ok" {
		t.Errorf("expected body 'ok', got %q", body)
	}
}

func TestServer_Readiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := startTestServer(t, func() bool { return true })

		status, body := httpGet(t, "http://"+server.Addr()+"/healthz/readiness")
		if status != http.StatusOK {
			t.Errorf("expected status 200, got %d", status)
		}
		if strings.TrimSpace(body) != "ok" {
			t.Errorf("expected body 'ok', got %q", body)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		server := startTestServer(t, func() bool { return false })

		status, body := httpGet(t, "http://"+server.Addr()+"/healthz/readiness")
		if status != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", status)
		}
		if strings.TrimSpace(body) != "not ready" {
			t.Errorf("expected body 'not ready', got %q", body)
		}
	})

	t.Run("nil checker defaults to ready", func(t *testing.T) {
		server := startTestServer(t, nil)

		status, _ := httpGet(t, "http://"+server.Addr()+"/healthz/readiness")
		if status != http.StatusOK {
			t.Errorf("expected status 200 with nil checker, got %d", status)
		}
	})
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startTestServer(t, nil)

	if _, err := server.Start(); err == nil {
		t.Error("expected error on double start, got nil")
	}
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Errorf("stop without start should not error: %v", err)
	}
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// Force close the listener to make Serve fail.
	if server.listener != nil {
		_ = server.listener.Close()
	}

	select {
	case serveErr := <-errCh:
		if serveErr == nil {
			t.Error("expected an error from the error channel after closing listener")
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}

	select {
	case serveErr, ok := <-errCh:
		if ok && serveErr != nil {
			t.Errorf("unexpected error on normal shutdown: %v", serveErr)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
