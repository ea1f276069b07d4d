package trust

import (
	"strings"
	"time"

	"github.com/ghifiardi/gatra-world-monitor/pkg/cii"
	"github.com/ghifiardi/gatra-world-monitor/pkg/geo"
)

// Allowlist is the set of agent identifiers exempt from CRITICAL-tier
// blocking. A "*" member allowlists every agent. Loaded once per
// instance; read-only at request time.
type Allowlist struct {
	members  map[string]struct{}
	wildcard bool
}

func NewAllowlist(ids []string) *Allowlist {
	al := &Allowlist{members: map[string]struct{}{}}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if id == "*" {
			al.wildcard = true
			continue
		}
		al.members[id] = struct{}{}
	}
	return al
}

func (al *Allowlist) Contains(agentID string) bool {
	if al == nil {
		return false
	}
	if al.wildcard {
		return true
	}
	_, ok := al.members[strings.TrimSpace(agentID)]
	return ok
}

// Decision is the per-request admission verdict. Created once by
// Evaluate, consumed by the gate pipeline, embedded in audit and
// response metadata, never persisted.
type Decision struct {
	Allowed     bool      `json:"allowed"`
	Policy      Policy    `json:"policy"`
	CountryCode string    `json:"countryCode"`
	Source      string    `json:"countrySource"`
	Allowlisted bool      `json:"isAllowlisted"`
	DecidedAt   time.Time `json:"decidedAt"`
}

// Meta returns the decision fields embedded into task metadata for
// downstream audit consumers.
func (d Decision) Meta() map[string]interface{} {
	return map[string]interface{}{
		"tier":          d.Policy.TierName,
		"country":       d.CountryCode,
		"score":         d.Policy.Score,
		"countrySource": d.Source,
	}
}

// Engine composes the score store, tier model, and allowlist.
type Engine struct {
	Scores    *cii.Store
	Allowlist *Allowlist
}

// Evaluate produces the admission decision for one request. STANDARD
// and ELEVATED always admit; ELEVATED raises scrutiny flags without
// blocking. CRITICAL blocks unless the agent is allowlisted.
func (e *Engine) Evaluate(res geo.Resolution, agentID string) Decision {
	score := e.Scores.Score(res.CountryCode)
	policy := BuildPolicy(res.CountryCode, score)
	allowlisted := e.Allowlist.Contains(agentID)
	return Decision{
		Allowed:     policy.Tier != TierCritical || allowlisted,
		Policy:      policy,
		CountryCode: res.CountryCode,
		Source:      res.Source,
		Allowlisted: allowlisted,
		DecidedAt:   time.Now().UTC(),
	}
}
