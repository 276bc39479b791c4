/**
 * @description
 * This file is the single home for membership tier math. Every place that
 * needs to turn a point balance into a tier, or a tier into its minimum
 * balance, goes through TierThresholds — display code included. The source
 * web app duplicated these boundaries across screens and they drifted; here
 * they exist exactly once.
 *
 * @notes
 * - TierThresholds is a plain value passed into each operation. There is no
 *   package-level threshold state.
 * - Malformed or absent persisted configuration degrades to the defaults
 *   instead of failing the read path.
 */

package domain

// Tier is a membership classification derived from a point balance.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Default tier boundaries, used whenever no valid configuration is persisted.
const (
	DefaultSilverThreshold int64 = 200
	DefaultGoldThreshold   int64 = 550
)

// ParseTier validates a tier name from an external caller.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierBronze, TierSilver, TierGold:
		return Tier(s), true
	}
	return "", false
}

// rank orders tiers for comparisons; higher is better.
func (t Tier) rank() int {
	switch t {
	case TierGold:
		return 2
	case TierSilver:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether t is a strictly higher tier than other.
func (t Tier) Outranks(other Tier) bool {
	return t.rank() > other.rank()
}

// TierThresholds holds the configured tier boundaries. Invariant: 0 < Silver < Gold.
type TierThresholds struct {
	Silver int64 `json:"silver"`
	Gold   int64 `json:"gold"`
}

// DefaultTierThresholds returns the built-in boundaries.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{Silver: DefaultSilverThreshold, Gold: DefaultGoldThreshold}
}

// Valid reports whether the thresholds satisfy 0 < Silver < Gold.
func (t TierThresholds) Valid() bool {
	return t.Silver > 0 && t.Gold > t.Silver
}

// OrDefault returns t when valid, otherwise the defaults. This is the fallback
// used on every read of the persisted configuration record.
func (t TierThresholds) OrDefault() TierThresholds {
	if t.Valid() {
		return t
	}
	return DefaultTierThresholds()
}

// Classify maps a point balance to its tier.
func (t TierThresholds) Classify(points int64) Tier {
	switch {
	case points >= t.Gold:
		return TierGold
	case points >= t.Silver:
		return TierSilver
	default:
		return TierBronze
	}
}

// FloorFor returns the minimum balance of a tier. The administrative tier-set
// operation resets a user's balance to this value.
func (t TierThresholds) FloorFor(tier Tier) int64 {
	switch tier {
	case TierGold:
		return t.Gold
	case TierSilver:
		return t.Silver
	default:
		return 0
	}
}

// NextTierAt returns the balance at which the tier above the given one starts,
// or zero when there is none.
func (t TierThresholds) NextTierAt(tier Tier) int64 {
	switch tier {
	case TierBronze:
		return t.Silver
	case TierSilver:
		return t.Gold
	default:
		return 0
	}
}
