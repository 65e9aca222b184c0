package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/lborres/gatekeep/config"
)

func testConfig(t *testing.T, extra map[string]string) config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	environ := map[string]string{
		"GATEKEEP_ACCESS_TOKEN_SECRET":  strings.Repeat("a", 32),
		"GATEKEEP_REFRESH_TOKEN_SECRET": strings.Repeat("r", 32),
		"GATEKEEP_REDIS_ADDR":           mr.Addr(),
		"GATEKEEP_PASSWORD_HASHER":      "bcrypt",
		"GATEKEEP_BCRYPT_COST":          "4",
		"GATEKEEP_LOG_REQUESTS":         "false",
	}
	for k, v := range extra {
		environ[k] = v
	}
	cfg, err := config.LoadFrom(environ)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *server {
	t.Helper()
	srv, err := newServer(context.Background(), cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// Requirement: the server mounts the auth routes, health and metrics
func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, testConfig(t, map[string]string{"GATEKEEP_ID_FORMAT": "nanoid"}))

	health, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil || health.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %v, %v", health, err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@x.com","password":"hunter22"}`))
	req.Header.Set("Content-Type", "application/json")
	register, err := srv.app.Test(req)
	if err != nil || register.StatusCode != http.StatusCreated {
		t.Fatalf("register = %v, %v", register, err)
	}

	metrics, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(metrics.Body)
	for _, want := range []string{
		`gatekeep_auth_events_total{event="register",outcome="ok"} 1`,
		`gatekeep_ratelimit_decisions_total{outcome="ok",route="/api/auth/register"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNewServer_RedisDown(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.RedisAddr = "127.0.0.1:1"

	if _, err := newServer(context.Background(), cfg, log.New(io.Discard, "", 0)); err == nil {
		t.Error("newServer() should fail when redis is unreachable")
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
