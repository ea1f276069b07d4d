package trust

import (
	"fmt"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

// Audit levels per tier.
const (
	AuditStandard = "standard"
	AuditEnhanced = "enhanced"
	AuditForensic = "forensic"
)

// Policy is the immutable-per-evaluation record the gate pipeline
// consumes. Tier-static fields come from the table below; Country and
// Score are substituted per request.
type Policy struct {
	Tier                 Tier    `json:"-"`
	TierName             string  `json:"tier"`
	Score                float64 `json:"score"`
	Country              string  `json:"country"`
	RequireSignedRequest bool    `json:"requireSignedRequest"`
	RequireAllowlist     bool    `json:"requireAllowlist"`
	RequireDeepScan      bool    `json:"requireDeepScan"`
	MaxRequestsPerHour   int     `json:"maxRequestsPerHour"`
	ErrorCode            int     `json:"errorCode,omitempty"`
	ErrorMessage         string  `json:"errorMessage,omitempty"`
	AuditLevel           string  `json:"auditLevel"`
}

type policyTemplate struct {
	requireSignedRequest bool
	requireAllowlist     bool
	requireDeepScan      bool
	maxRequestsPerHour   int
	errorCode            int
	auditLevel           string
}

// policyTable is the authoritative tier → policy mapping. Adding a
// tier is a data change here, not a new code path.
var policyTable = map[Tier]policyTemplate{
	TierStandard: {
		maxRequestsPerHour: 100,
		auditLevel:         AuditStandard,
	},
	TierElevated: {
		requireSignedRequest: true,
		requireDeepScan:      true,
		maxRequestsPerHour:   30,
		auditLevel:           AuditEnhanced,
	},
	TierCritical: {
		requireSignedRequest: true,
		requireAllowlist:     true,
		requireDeepScan:      true,
		maxRequestsPerHour:   10,
		errorCode:            a2a.CodeCriticalRegion,
		auditLevel:           AuditForensic,
	},
}

// BuildPolicy is a pure function of (country, score).
func BuildPolicy(country string, score float64) Policy {
	tier := TierForScore(score)
	tpl := policyTable[tier]
	p := Policy{
		Tier:                 tier,
		TierName:             tier.String(),
		Score:                score,
		Country:              country,
		RequireSignedRequest: tpl.requireSignedRequest,
		RequireAllowlist:     tpl.requireAllowlist,
		RequireDeepScan:      tpl.requireDeepScan,
		MaxRequestsPerHour:   tpl.maxRequestsPerHour,
		ErrorCode:            tpl.errorCode,
		AuditLevel:           tpl.auditLevel,
	}
	if tier == TierCritical {
		p.ErrorMessage = fmt.Sprintf(
			"request origin %s is in a critical instability region (CII %.1f); allowlist approval required",
			country, score,
		)
	}
	return p
}
