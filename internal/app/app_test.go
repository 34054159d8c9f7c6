package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORTAL_JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("PORTAL_DATABASE_URL", "")
	t.Setenv("PORTAL_REDIS_URL", "")
	t.Setenv("PORTAL_GOOGLE_CLIENT_ID", "")
	t.Setenv("PORTAL_GOOGLE_CLIENT_SECRET", "")
	t.Setenv("PORTAL_GOOGLE_REDIRECT_URL", "")
}

func TestNew_InMemory(t *testing.T) {
	setRequiredEnv(t)

	cfg := LoadConfig()
	a, err := New(cfg, NewLogger("error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.dbEnabled {
		t.Fatalf("expected in-memory store without database URL")
	}
	if a.sessions == nil || a.auth == nil {
		t.Fatalf("service wiring incomplete")
	}
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_JWT_SECRET", "")

	if _, err := New(LoadConfig(), NewLogger("error")); err == nil {
		t.Fatalf("expected config error without JWT secret")
	}
}

func TestEndToEnd_RegisterLoginRefresh(t *testing.T) {
	setRequiredEnv(t)

	a, err := New(LoadConfig(), NewLogger("error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)
	srv := httptest.NewServer(WithRequestLogging(mux, a.log))
	defer srv.Close()

	post := func(path, body string) (*http.Response, map[string]any) {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		defer resp.Body.Close()
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, _ := post("/auth/register", `{"email":"a@x.com","password":"secret1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}

	resp, body := post("/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	refreshToken, _ := body["refreshToken"].(string)
	if refreshToken == "" {
		t.Fatalf("login: missing refreshToken in %v", body)
	}

	resp, body = post("/auth/refresh", `{"refreshToken":"`+refreshToken+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d body %v", resp.StatusCode, body)
	}
	if tok, _ := body["accessToken"].(string); tok == "" {
		t.Fatalf("refresh: missing accessToken in %v", body)
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestAppRun_ShutsDownOnCancel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_HTTP_ADDR", "127.0.0.1:0")

	a, err := New(LoadConfig(), NewLogger("error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}
