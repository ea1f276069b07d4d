// Package gates runs the ordered admission pipeline against one inbound
// request. Gate order is fixed and significant: the first rejecting gate
// short-circuits with its specific error, while the trailing gates
// (sanitize, audit, response headers) are best-effort and never fail the
// request.
package gates

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
	"github.com/ghifiardi/gatra-world-monitor/pkg/audit"
	"github.com/ghifiardi/gatra-world-monitor/pkg/auth"
	"github.com/ghifiardi/gatra-world-monitor/pkg/eventbus"
	"github.com/ghifiardi/gatra-world-monitor/pkg/geo"
	"github.com/ghifiardi/gatra-world-monitor/pkg/inject"
	"github.com/ghifiardi/gatra-world-monitor/pkg/metrics"
	"github.com/ghifiardi/gatra-world-monitor/pkg/ratelimit"
	"github.com/ghifiardi/gatra-world-monitor/pkg/sanitize"
	"github.com/ghifiardi/gatra-world-monitor/pkg/store"
	"github.com/ghifiardi/gatra-world-monitor/pkg/stream"
	"github.com/ghifiardi/gatra-world-monitor/pkg/trust"
)

// Gate names used in metrics, audit reasons, and rejection data.
const (
	GateRateLimit = "rate_limit"
	GateAuth      = "auth"
	GateTrust     = "trust_policy"
	GatePayload   = "payload_size"
	GateReplay    = "replay"
	GateInjection = "injection"
)

// Request headers consumed by the pipeline beyond what pkg/geo and
// pkg/auth read themselves.
const (
	HeaderNonce        = "x-a2a-nonce"
	HeaderAgentID      = "x-a2a-agent-id"
	HeaderAgentCardURL = "x-agent-card-url"
)

// DefaultMaxBodyBytes is the payload ceiling when none is configured.
const DefaultMaxBodyBytes = 262144

// DefaultNonceTTL is the replay-suppression window.
const DefaultNonceTTL = 5 * time.Minute

// Admission is the per-request context threaded through the gates and
// handed to the task engine once every rejecting gate has passed.
type Admission struct {
	RequestID  string
	Method     string
	Principal  auth.Principal
	Resolution geo.Resolution
	Decision   trust.Decision
	RateLimit  ratelimit.Result
	Sanitize   sanitize.Report
	Injection  inject.ScanResult
	Message    *a2a.Message
}

// Pipeline wires the collaborating stores. All fields are set once at
// boot; the pipeline itself is stateless per request.
type Pipeline struct {
	Limiter      ratelimit.Limiter
	AuthMode     string
	Keys         *auth.KeyStore
	Trust        *trust.Engine
	MaxBodyBytes int64
	Nonces       store.Cache
	NonceTTL     time.Duration
	Audit        *audit.Writer
	Metrics      *metrics.Registry
	Events       *eventbus.Publisher
	Stream       *stream.Hub
}

// Admit runs gates 1-8 in order. On rejection it returns the gate's
// JSON-RPC error and a nil admission; the audit record and counters are
// written on both paths. Gate 9 (response hardening) is applied by the
// HTTP layer via httpx.SetSecurityHeaders on every response.
func (p *Pipeline) Admit(ctx context.Context, r *http.Request, requestID, method string, bodyLen int64, msg *a2a.Message) (*Admission, *a2a.Error) {
	adm := &Admission{
		RequestID:  requestID,
		Method:     method,
		Resolution: geo.Resolve(r.Header, r.Header.Get(HeaderAgentCardURL)),
		Message:    msg,
	}
	identity := strings.TrimSpace(r.Header.Get(HeaderAgentID))
	if identity == "" {
		identity = "anonymous"
	}
	adm.Principal = auth.Principal{AgentID: identity}
	adm.Decision = p.Trust.Evaluate(adm.Resolution, identity)

	// Gate 1: rate limit, keyed by claimed identity with the tier's
	// hourly budget. Runs before auth so abusive traffic is shed
	// without touching the credential store.
	adm.RateLimit = p.Limiter.Allow(identity, adm.Decision.Policy.MaxRequestsPerHour)
	if !adm.RateLimit.Allowed {
		err := a2a.NewError(a2a.CodeRateLimitExceeded)
		err.Data = map[string]interface{}{
			"limit":             adm.RateLimit.Limit,
			"retryAfterSeconds": int(adm.RateLimit.RetryAfter(time.Now().UTC()).Seconds()),
		}
		return nil, p.reject(ctx, adm, GateRateLimit, err)
	}

	// Gate 2: authentication.
	principal, authErr := auth.Authenticate(p.AuthMode, p.Keys, r)
	if authErr != nil {
		return nil, p.reject(ctx, adm, GateAuth, a2a.NewError(a2a.CodeAuthRequired))
	}
	adm.Principal = principal
	if principal.AgentID != identity {
		// A credential can resolve an identity the header did not
		// claim; allowlist membership follows the resolved identity.
		adm.Decision = p.Trust.Evaluate(adm.Resolution, principal.AgentID)
	}
	p.Metrics.IncTier(adm.Decision.Policy.TierName)

	// Gate 3: trust policy.
	if !adm.Decision.Allowed {
		return nil, p.reject(ctx, adm, GateTrust,
			a2a.NewErrorf(adm.Decision.Policy.ErrorCode, adm.Decision.Policy.ErrorMessage))
	}

	// Gate 4: payload ceiling.
	limit := p.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	if bodyLen > limit {
		err := a2a.NewError(a2a.CodePayloadTooLarge)
		err.Data = map[string]interface{}{"maxBytes": limit}
		return nil, p.reject(ctx, adm, GatePayload, err)
	}

	// Gate 5: replay suppression. A nonce already recorded inside the
	// window rejects as a duplicate; the store's TTL handles expiry
	// lazily. A broken cache degrades open.
	if nonce := strings.TrimSpace(r.Header.Get(HeaderNonce)); nonce != "" && p.Nonces != nil {
		ttl := p.NonceTTL
		if ttl <= 0 {
			ttl = DefaultNonceTTL
		}
		fresh, err := p.Nonces.SetNX(ctx, nonceKey(adm.Principal.AgentID, nonce), requestID, ttl)
		if err != nil {
			log.Printf("gates: nonce store unavailable, replay check skipped: %v", err)
		} else if !fresh {
			return nil, p.reject(ctx, adm, GateReplay, a2a.NewError(a2a.CodeDuplicateRequest))
		}
	}

	// Gate 6: injection scan over the concatenated text content.
	if msg != nil {
		adm.Injection = inject.Scan(msg.TextContent(), adm.Decision.Policy.RequireDeepScan)
		if adm.Injection.Blocked() {
			err := a2a.NewError(a2a.CodeInjectionDetected)
			err.Data = map[string]interface{}{
				"critical": adm.Injection.Critical,
				"high":     adm.Injection.High,
			}
			return nil, p.reject(ctx, adm, GateInjection, err)
		}
	}

	// Gate 7: sanitization. Mutates the in-flight message, never rejects.
	if msg != nil {
		adm.Sanitize = sanitize.Normalize(msg)
	}

	// Gate 8: audit, best-effort.
	p.record(ctx, adm, audit.OutcomeAllowed, "")
	p.Metrics.IncOutcome(audit.OutcomeAllowed)
	return adm, nil
}

// reject finalizes a gate rejection: audit, counters, events, then the
// error back to the caller.
func (p *Pipeline) reject(ctx context.Context, adm *Admission, gate string, err *a2a.Error) *a2a.Error {
	if err == nil {
		err = a2a.NewError(a2a.CodeInternalError)
	}
	p.record(ctx, adm, audit.OutcomeRejected, gate)
	p.Metrics.IncGateReject(gate)
	p.Metrics.IncOutcome(audit.OutcomeRejected)
	return err
}

func (p *Pipeline) record(ctx context.Context, adm *Admission, outcome, reason string) {
	rec := audit.Record{
		RequestID:   adm.RequestID,
		AgentIDHash: p.Audit.HashIdentity(adm.Principal.AgentID),
		Tier:        adm.Decision.Policy.TierName,
		Country:     adm.Decision.CountryCode,
		Source:      adm.Decision.Source,
		Score:       adm.Decision.Policy.Score,
		Method:      adm.Method,
		Outcome:     outcome,
		Reason:      reason,
		AuditLevel:  adm.Decision.Policy.AuditLevel,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.Audit.Append(ctx, rec); err != nil {
		log.Printf("gates: audit sink error: %v", err)
	}
	if p.Stream != nil {
		p.Stream.Publish(stream.NewEvent(stream.KindAdmission, rec))
	}
	if p.Events != nil {
		if err := p.Events.Publish(ctx, adm.Principal.AgentID, rec); err != nil {
			log.Printf("gates: event publish error: %v", err)
		}
	}
}

func nonceKey(agentID, nonce string) string {
	return fmt.Sprintf("a2a:nonce:%s:%s", agentID, nonce)
}
