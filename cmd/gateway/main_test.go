package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type mockAuditDB struct{ execs int }

func (m *mockAuditDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs++
	return pgconn.CommandTag{}, nil
}

func (m *mockAuditDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockAuditDB) Close() {}

func noopTelemetry(ctx context.Context, service string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func noRedis(ctx context.Context) (*redis.Client, error) {
	return nil, errors.New("no redis in test")
}

func quietLogger(t *testing.T) {
	t.Helper()
	orig := newLoggerFnG
	newLoggerFnG = func(opts ...zap.Option) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() { newLoggerFnG = orig })
}

func TestRunGatewayTelemetryError(t *testing.T) {
	err := runGateway(
		func(ctx context.Context, service string) (func(context.Context) error, error) {
			return nil, errors.New("telemetry failed")
		},
		nil, nil, nil,
	)
	if err == nil || !strings.Contains(err.Error(), "otel") {
		t.Fatalf("expected telemetry error, got %v", err)
	}
}

func TestRunGatewayConfigFileError(t *testing.T) {
	quietLogger(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	err := runGateway(noopTelemetry, nil, noRedis, nil)
	if err == nil {
		t.Fatal("expected config error")
	}
}

func TestRunGatewayBadScoreOverrides(t *testing.T) {
	quietLogger(t)
	t.Setenv("CII_SCORE_OVERRIDES", "{broken")
	err := runGateway(noopTelemetry, nil, noRedis, nil)
	if err == nil || !strings.Contains(err.Error(), "CII_SCORE_OVERRIDES") {
		t.Fatalf("expected override parse error, got %v", err)
	}
}

func TestRunGatewayHardeningBlocksProduction(t *testing.T) {
	quietLogger(t)
	t.Setenv("ENVIRONMENT", "production")
	err := runGateway(noopTelemetry, nil, noRedis, nil)
	if err == nil || !strings.Contains(err.Error(), "hardening") {
		t.Fatalf("expected hardening error, got %v", err)
	}
}

func TestRunGatewayDBError(t *testing.T) {
	quietLogger(t)
	t.Setenv("DATABASE_URL", "postgres://audit")
	err := runGateway(
		noopTelemetry,
		func(ctx context.Context) (auditDB, error) { return nil, errors.New("db down") },
		noRedis,
		nil,
	)
	if err == nil || !strings.Contains(err.Error(), "db") {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestRunGatewayFullLifecycle(t *testing.T) {
	quietLogger(t)
	t.Setenv("ADDR", "127.0.0.1:0")
	t.Setenv("DATABASE_URL", "postgres://audit")
	t.Setenv("API_KEYS", "k-test:scanner-test")

	db := &mockAuditDB{}
	var captured *http.Server
	err := runGateway(
		noopTelemetry,
		func(ctx context.Context) (auditDB, error) { return db, nil },
		noRedis,
		func(server *http.Server) error {
			captured = server

			rr := httptest.NewRecorder()
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rr.Code != 200 {
				return errors.New("healthz failed")
			}
			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				return errors.New("security headers missing")
			}

			rr = httptest.NewRecorder()
			body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","parts":[{"kind":"text","text":"status check"}]}}}`)
			req := httptest.NewRequest(http.MethodPost, "/a2a", body)
			server.Handler.ServeHTTP(rr, req)
			if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"result"`) {
				return errors.New("a2a send failed: " + rr.Body.String())
			}

			rr = httptest.NewRecorder()
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
			if rr.Code != 200 || !strings.Contains(rr.Body.String(), "a2a_") {
				return errors.New("prometheus metrics missing")
			}

			rr = httptest.NewRecorder()
			update := strings.NewReader(`{"country":"RU","score":0}`)
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/cii/scores", update))
			if rr.Code != http.StatusUnauthorized {
				return errors.New("uncredentialed score update must be refused")
			}

			rr = httptest.NewRecorder()
			update = strings.NewReader(`{"country":"RU","score":70}`)
			req = httptest.NewRequest(http.MethodPut, "/v1/cii/scores", update)
			req.Header.Set("x-api-key", "k-test")
			server.Handler.ServeHTTP(rr, req)
			if rr.Code != 200 {
				return errors.New("credentialed score update failed: " + rr.Body.String())
			}

			rr = httptest.NewRecorder()
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/cii/scores", nil))
			if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"RU":70`) {
				return errors.New("score listing should stay open and reflect the update")
			}
			return errors.New("test-stop")
		},
	)
	if err == nil || err.Error() != "test-stop" {
		t.Fatalf("expected test-stop, got %v", err)
	}
	if captured == nil || captured.Addr != "127.0.0.1:0" {
		t.Fatalf("server not configured: %+v", captured)
	}
	if db.execs == 0 {
		t.Fatal("audit schema was not ensured")
	}
}

func TestMainErrorPathCallsFatal(t *testing.T) {
	origFatal := logFatalf
	origTelemetry := initTelemetryG
	defer func() {
		logFatalf = origFatal
		initTelemetryG = origTelemetry
	}()

	fatalCalled := false
	logFatalf = func(format string, args ...any) { fatalCalled = true }
	initTelemetryG = func(ctx context.Context, service string) (func(context.Context) error, error) {
		return nil, errors.New("boom")
	}
	main()
	if !fatalCalled {
		t.Fatal("logFatalf should be called on error")
	}
}

func TestParseScoreOverrides(t *testing.T) {
	got, err := parseScoreOverrides(`{"UA": 61.5, "br": 12}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["UA"] != 61.5 || got["br"] != 12 {
		t.Fatalf("unexpected overrides %v", got)
	}
	if got, err := parseScoreOverrides("  "); err != nil || got != nil {
		t.Fatalf("blank input must be nil, got %v %v", got, err)
	}
	if _, err := parseScoreOverrides("nope"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseAPIKeys(t *testing.T) {
	creds := parseAPIKeys("k1:agent-a, k2:agent-b ,bare,")
	if len(creds) != 3 {
		t.Fatalf("expected 3 credentials, got %d", len(creds))
	}
	if creds[0].Key != "k1" || creds[0].Agent != "agent-a" {
		t.Fatalf("unexpected credential %+v", creds[0])
	}
	if creds[2].Key != "bare" || creds[2].Agent != "" {
		t.Fatalf("bare key must parse, got %+v", creds[2])
	}
	if got := parseAPIKeys(""); got != nil {
		t.Fatalf("empty env must yield nil, got %v", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GATEWAY_TEST_STR", "value")
	if got := env("GATEWAY_TEST_STR", "def"); got != "value" {
		t.Fatalf("env: %q", got)
	}
	os.Unsetenv("GATEWAY_TEST_STR")
	if got := env("GATEWAY_TEST_STR", "def"); got != "def" {
		t.Fatalf("env default: %q", got)
	}
	t.Setenv("GATEWAY_TEST_INT", "9")
	if got := envInt("GATEWAY_TEST_INT", 1); got != 9 {
		t.Fatalf("envInt: %d", got)
	}
	t.Setenv("GATEWAY_TEST_INT", "bad")
	if got := envInt("GATEWAY_TEST_INT", 7); got != 7 {
		t.Fatalf("envInt default: %d", got)
	}
}
