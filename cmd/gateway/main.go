package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ghifiardi/gatra-world-monitor/pkg/audit"
	"github.com/ghifiardi/gatra-world-monitor/pkg/auth"
	"github.com/ghifiardi/gatra-world-monitor/pkg/cii"
	"github.com/ghifiardi/gatra-world-monitor/pkg/config"
	"github.com/ghifiardi/gatra-world-monitor/pkg/eventbus"
	"github.com/ghifiardi/gatra-world-monitor/pkg/gates"
	"github.com/ghifiardi/gatra-world-monitor/pkg/hardening"
	"github.com/ghifiardi/gatra-world-monitor/pkg/httpx"
	"github.com/ghifiardi/gatra-world-monitor/pkg/metrics"
	"github.com/ghifiardi/gatra-world-monitor/pkg/ratelimit"
	"github.com/ghifiardi/gatra-world-monitor/pkg/store"
	"github.com/ghifiardi/gatra-world-monitor/pkg/stream"
	"github.com/ghifiardi/gatra-world-monitor/pkg/task"
	"github.com/ghifiardi/gatra-world-monitor/pkg/telemetry"
	"github.com/ghifiardi/gatra-world-monitor/pkg/trust"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server holds the boot-time wiring for the admission gateway. Every
// field is set once in runGateway and read-only afterwards; per-request
// mutable state lives inside the individual stores.
type Server struct {
	Pipeline            *gates.Pipeline
	Tasks               *task.Engine
	Scores              *cii.Store
	Events              *stream.Hub
	Metrics             *metrics.Registry
	MaxRequestBodyBytes int64
}

// auditDB is what the gateway needs from a Postgres pool.
type auditDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type gatewayInitTelemetryFunc func(ctx context.Context, service string) (func(context.Context) error, error)
type gatewayOpenDBFunc func(ctx context.Context) (auditDB, error)
type gatewayOpenRedisFunc func(ctx context.Context) (*redis.Client, error)
type gatewayListenFunc func(server *http.Server) error

var (
	logFatalf      = log.Fatalf
	initTelemetryG = telemetry.Init
	openDBFnG      = func(ctx context.Context) (auditDB, error) { return store.NewPostgresPool(ctx) }
	openRedisFnG   = store.NewRedis
	listenFnG      = func(server *http.Server) error { return server.ListenAndServe() }
	newLoggerFnG   = zap.NewProduction
)

func main() {
	if err := runGateway(initTelemetryG, openDBFnG, openRedisFnG, listenFnG); err != nil {
		logFatalf("gateway: %v", err)
	}
}

func runGateway(
	initTelemetry gatewayInitTelemetryFunc,
	openDB gatewayOpenDBFunc,
	openRedis gatewayOpenRedisFunc,
	listen gatewayListenFunc,
) error {
	ctx := context.Background()
	shutdown, err := initTelemetry(ctx, "gateway")
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	cfg, err := config.Load(env("CONFIG_FILE", ""))
	if err != nil {
		return err
	}

	overrides, err := parseScoreOverrides(env("CII_SCORE_OVERRIDES", ""))
	if err != nil {
		return err
	}
	// Env overrides win over file overrides.
	for code, score := range cfg.ScoreOverrides {
		if overrides == nil {
			overrides = map[string]float64{}
		}
		if _, ok := overrides[code]; !ok {
			overrides[code] = score
		}
	}
	scores := cii.NewStore(overrides)

	creds := append([]auth.Credential{}, cfg.Credentials...)
	creds = append(creds, parseAPIKeys(env("API_KEYS", ""))...)
	keys := auth.NewKeyStore(creds)
	authMode := strings.ToLower(env("AUTH_MODE", auth.ModeOptional))

	allowlist := config.MergeAllowlist(cfg.Allowlist, env("AGENT_ALLOWLIST", ""))
	auditSalt := env("AUDIT_HASH_SALT", "")

	if err := hardening.ValidateProduction(hardening.Options{
		Service:            "gateway",
		Environment:        env("ENVIRONMENT", env("APP_ENV", "")),
		StrictProdSecurity: env("STRICT_PROD_SECURITY", "true"),
		AuthMode:           authMode,
		APIKeyCount:        keys.Len(),
		RedisAddr:          env("REDIS_ADDR", ""),
		RedisRequireTLS:    env("REDIS_REQUIRE_TLS", ""),
		RedisTLSInsecure:   env("REDIS_TLS_INSECURE", ""),
		CORSAllowedOrigins: env("CORS_ALLOWED_ORIGINS", ""),
		AuditHashSalt:      auditSalt,
	}); err != nil {
		return err
	}

	redisConn, err := openRedis(ctx)
	if err != nil {
		log.Printf("redis unavailable, falling back to in-memory cache/limits: %v", err)
		redisConn = nil
	}
	if redisConn != nil {
		defer redisConn.Close()
	}
	cache := store.NewCache(ctx, redisConn)
	rateLimitWindow := time.Second * time.Duration(envInt("RATE_LIMIT_WINDOW_SEC", 3600))
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Hour
	}
	var limiter ratelimit.Limiter
	if redisConn != nil {
		limiter = ratelimit.NewRedis(redisConn, rateLimitWindow)
	} else {
		limiter = ratelimit.NewInMemory(rateLimitWindow)
	}

	zlog, err := newLoggerFnG()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()
	sinks := []audit.Sink{&audit.LogSink{Logger: zlog}}

	// Durable audit is optional; without DATABASE_URL records go to the
	// structured log only.
	if strings.TrimSpace(env("DATABASE_URL", "")) != "" {
		pool, err := openDB(ctx)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		pgSink := &audit.PostgresSink{DB: pool}
		if err := pgSink.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
		sinks = append(sinks, pgSink)
	}
	auditWriter := &audit.Writer{Sinks: sinks, HashSalt: []byte(auditSalt)}

	var events *eventbus.Publisher
	if brokers := strings.TrimSpace(env("KAFKA_BROKERS", "")); brokers != "" {
		events, err = eventbus.NewPublisher(eventbus.Config{
			Brokers: strings.Split(brokers, ","),
			Topic:   env("KAFKA_ADMISSION_TOPIC", "a2a.admissions"),
		})
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer func() { _ = events.Close() }()
	}

	hub := stream.NewHub()
	maxRequestBodyBytes := int64(envInt("MAX_REQUEST_BODY_BYTES", gates.DefaultMaxBodyBytes))
	if maxRequestBodyBytes <= 0 {
		maxRequestBodyBytes = gates.DefaultMaxBodyBytes
	}

	s := &Server{
		Pipeline: &gates.Pipeline{
			Limiter:      limiter,
			AuthMode:     authMode,
			Keys:         keys,
			Trust:        &trust.Engine{Scores: scores, Allowlist: trust.NewAllowlist(allowlist)},
			MaxBodyBytes: maxRequestBodyBytes,
			Nonces:       cache,
			NonceTTL:     time.Second * time.Duration(envInt("NONCE_TTL_SEC", 300)),
			Audit:        auditWriter,
			Metrics:      metrics.NewRegistry(),
			Events:       events,
			Stream:       hub,
		},
		Tasks:               task.NewEngine(envInt("TASK_CAPACITY", task.DefaultCapacity)),
		Scores:              scores,
		Events:              hub,
		MaxRequestBodyBytes: maxRequestBodyBytes,
	}
	s.Metrics = s.Pipeline.Metrics

	r := chi.NewRouter()
	r.Use(httpx.CORSMiddleware(env("CORS_ALLOWED_ORIGINS", "")))
	r.Use(httpx.SecurityHeadersMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(telemetry.HTTPMiddleware("gateway"))
	r.Use(s.limitRequestBodyMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, 200, map[string]string{"status": "ok", "service": "gateway"})
	})
	r.Post("/a2a", s.handleA2A)
	r.Get("/metrics", s.Metrics.Handler())
	r.Get("/metrics/prometheus", s.Metrics.PrometheusHandler())
	r.Get("/v1/cii/scores", s.listScores)
	r.Group(func(admin chi.Router) {
		// Score updates reconfigure the trust gate itself, so the
		// admin surface never runs in optional mode.
		admin.Use(auth.Middleware(authMode, keys))
		admin.Put("/v1/cii/scores", s.updateScore)
		admin.Get("/v1/tasks", s.listTasks)
	})
	r.Get("/v1/stream", s.streamEvents)

	addr := env("ADDR", ":8080")
	log.Printf("gateway listening on %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: envDurationSec("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		ReadTimeout:       envDurationSec("HTTP_READ_TIMEOUT_SEC", 15),
		WriteTimeout:      envDurationSec("HTTP_WRITE_TIMEOUT_SEC", 30),
		IdleTimeout:       envDurationSec("HTTP_IDLE_TIMEOUT_SEC", 120),
	}
	if listen == nil {
		return errors.New("listen function required")
	}
	return listen(server)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: 200}
		next.ServeHTTP(rec, r)
		s.Metrics.Observe(r.Method+" "+r.URL.Path, rec.code, time.Since(start))
		s.Metrics.SetGauge("tasks_stored", float64(s.Tasks.Store.Len()))
	})
}

// limitRequestBodyMiddleware is a transport backstop at twice the gate
// ceiling. The payload gate returns the protocol-level error; this cap
// only stops a caller from streaming unbounded bytes at the parser.
func (s *Server) limitRequestBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, 2*s.MaxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func readRequestBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}
	if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		httpx.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	httpx.Error(w, http.StatusBadRequest, "invalid request body")
	return nil, false
}

// parseScoreOverrides decodes the CII_SCORE_OVERRIDES JSON object, e.g.
// {"UA": 61.5, "BR": 12.0}.
func parseScoreOverrides(raw string) (map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := map[string]float64{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("CII_SCORE_OVERRIDES: %w", err)
	}
	return out, nil
}

// parseAPIKeys decodes the API_KEYS env form "key:agent,key2:agent2".
// A bare key without an agent name is accepted.
func parseAPIKeys(raw string) []auth.Credential {
	var out []auth.Credential
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, agent, _ := strings.Cut(part, ":")
		out = append(out, auth.Credential{Key: strings.TrimSpace(key), Agent: strings.TrimSpace(agent)})
	}
	return out
}

func envDurationSec(k string, def int) time.Duration {
	return time.Second * time.Duration(envInt(k, def))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
