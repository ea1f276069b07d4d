// Package trust maps instability scores to trust tiers and produces
// the per-request admission decision the gate pipeline enforces.
package trust

// Tier is the closed set of trust tiers, ordered by ascending risk.
type Tier int

const (
	TierStandard Tier = iota
	TierElevated
	TierCritical
)

// Tier thresholds. Inclusive below, exclusive above: a score of exactly
// 34 is STANDARD, exactly 60 is ELEVATED.
const (
	standardMax = 34.0
	elevatedMax = 60.0
)

func (t Tier) String() string {
	switch t {
	case TierElevated:
		return "ELEVATED"
	case TierCritical:
		return "CRITICAL"
	default:
		return "STANDARD"
	}
}

// TierForScore derives the tier from an instability score.
func TierForScore(score float64) Tier {
	switch {
	case score > elevatedMax:
		return TierCritical
	case score > standardMax:
		return TierElevated
	default:
		return TierStandard
	}
}
