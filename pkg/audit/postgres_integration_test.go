//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Run with: go test -tags=integration -timeout 120s ./pkg/audit/...
func TestPostgresSinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("audit"),
		postgres.WithUsername("audit"),
		postgres.WithPassword("audit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = pgContainer.Terminate(ctx) }()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	sink := &PostgresSink{DB: pool}
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	rec := Record{
		RequestID:   "req-1",
		AgentIDHash: "abc123",
		Tier:        "ELEVATED",
		Country:     "PK",
		Source:      "edge-geo-primary",
		Score:       56.3,
		Method:      "message/send",
		Outcome:     OutcomeAllowed,
		AuditLevel:  "enhanced",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := sink.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	// duplicate request id is a silent no-op
	if err := sink.Append(ctx, rec); err != nil {
		t.Fatalf("duplicate append: %v", err)
	}

	got, err := sink.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tier != rec.Tier || got.Country != rec.Country || got.Outcome != rec.Outcome {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
