// Package audit appends one structured record per admitted or rejected
// request. Records fan out to whichever sinks are configured: the
// structured log always, Postgres when a pool is wired in. Audit is
// best-effort; a failing sink never fails the request.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// Record is the audit row for one request.
type Record struct {
	RequestID   string    `json:"requestId"`
	AgentIDHash string    `json:"agentIdHash"`
	Tier        string    `json:"tier"`
	Country     string    `json:"country"`
	Source      string    `json:"countrySource"`
	Score       float64   `json:"score"`
	Method      string    `json:"method"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	AuditLevel  string    `json:"auditLevel"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Outcomes.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
)

// Sink receives one record; implementations decide durability.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Writer fans records out to every sink, hashing the agent identity
// first so raw identifiers never land in audit storage.
type Writer struct {
	Sinks    []Sink
	HashSalt []byte
}

// Append delivers the record to all sinks and returns the first error
// for the caller to log. Later sinks still run.
func (w *Writer) Append(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var first error
	for _, s := range w.Sinks {
		if err := s.Append(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// HashIdentity produces the salted identity hash stored in records.
func (w *Writer) HashIdentity(agentID string) string {
	h := sha256.New()
	h.Write(w.HashSalt)
	h.Write([]byte(agentID))
	return hex.EncodeToString(h.Sum(nil))
}

// LogSink writes records to the structured log.
type LogSink struct {
	Logger *zap.Logger
}

func (s *LogSink) Append(ctx context.Context, rec Record) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("admission",
		zap.String("request_id", rec.RequestID),
		zap.String("agent_id_hash", rec.AgentIDHash),
		zap.String("tier", rec.Tier),
		zap.String("country", rec.Country),
		zap.String("country_source", rec.Source),
		zap.Float64("score", rec.Score),
		zap.String("method", rec.Method),
		zap.String("outcome", rec.Outcome),
		zap.String("reason", rec.Reason),
		zap.String("audit_level", rec.AuditLevel),
		zap.Time("created_at", rec.CreatedAt),
	)
	return nil
}
