package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type auditDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSink persists records for retention beyond the process
// lifetime. Schema is created by EnsureSchema at boot.
type PostgresSink struct {
	DB auditDB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS admission_audit (
	request_id     text PRIMARY KEY,
	agent_id_hash  text NOT NULL,
	tier           text NOT NULL,
	country        text NOT NULL,
	country_source text NOT NULL,
	score          double precision NOT NULL,
	method         text NOT NULL,
	outcome        text NOT NULL,
	reason         text NOT NULL DEFAULT '',
	audit_level    text NOT NULL,
	created_at     timestamptz NOT NULL
)`

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schemaSQL)
	return err
}

func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO admission_audit
		(request_id, agent_id_hash, tier, country, country_source, score, method, outcome, reason, audit_level, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (request_id) DO NOTHING
	`, rec.RequestID, rec.AgentIDHash, rec.Tier, rec.Country, rec.Source, rec.Score,
		rec.Method, rec.Outcome, rec.Reason, rec.AuditLevel, rec.CreatedAt)
	return err
}

// Get reads one record back, for the admin surface and tests.
func (s *PostgresSink) Get(ctx context.Context, requestID string) (Record, error) {
	var rec Record
	row := s.DB.QueryRow(ctx, `
		SELECT request_id, agent_id_hash, tier, country, country_source, score, method, outcome, reason, audit_level, created_at
		FROM admission_audit WHERE request_id=$1
	`, requestID)
	err := row.Scan(&rec.RequestID, &rec.AgentIDHash, &rec.Tier, &rec.Country, &rec.Source,
		&rec.Score, &rec.Method, &rec.Outcome, &rec.Reason, &rec.AuditLevel, &rec.CreatedAt)
	return rec, err
}
