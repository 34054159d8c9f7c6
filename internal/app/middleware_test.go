package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging_PreservesStatusAndBody(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
	WithRequestLogging(next, log).ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PORTAL_TEST_STR", "  value  ")
	if got := EnvString("PORTAL_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvString("PORTAL_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default = %q", got)
	}

	t.Setenv("PORTAL_TEST_INT", "42")
	if got := EnvInt("PORTAL_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
	t.Setenv("PORTAL_TEST_INT", "-3")
	if got := EnvInt("PORTAL_TEST_INT", 1); got != 1 {
		t.Fatalf("EnvInt negative = %d", got)
	}

	t.Setenv("PORTAL_TEST_BOOL", "true")
	if !EnvBool("PORTAL_TEST_BOOL", false) {
		t.Fatalf("EnvBool = false")
	}

	t.Setenv("PORTAL_TEST_DUR", "90s")
	if got := EnvDuration("PORTAL_TEST_DUR", 0); got.Seconds() != 90 {
		t.Fatalf("EnvDuration = %v", got)
	}
}
