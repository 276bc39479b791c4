/**
 * @description
 * This file defines the core domain models for the loyalty-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Point amounts are `int64` everywhere. A LedgerEntry's Points field is always
 *   positive; the Direction field encodes the sign. Signed deltas appear only in
 *   the admin adjustment DTO, where the sign selects the direction.
 * - Using distinct types for API requests, database rows, and event payloads
 *   keeps the layers separable and type safe.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction classifies a ledger entry as adding to or spending from a balance.
type Direction string

const (
	DirectionEarn   Direction = "earn"
	DirectionRedeem Direction = "redeem"
)

// EarnAction identifies a low-value action that can be rewarded with points.
type EarnAction string

const (
	EarnActionChat      EarnAction = "chat"
	EarnActionChillTime EarnAction = "chill_timer"
)

// LedgerEntry is the append-only record of one point-affecting event.
// Rows are never updated or deleted by normal flows; corrections are made
// with a new offsetting entry.
type LedgerEntry struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Direction Direction  `json:"direction"`
	Points    int64      `json:"points"` // always > 0; Direction carries the sign
	Notes     string     `json:"notes"`
	GoalID    *uuid.UUID `json:"goal_id,omitempty"` // set when the entry fed a community goal
	CreatedAt time.Time  `json:"created_at"`
}

// Profile is the loyalty view of a user: the live point balance and the
// cached membership tier.
//
// Points is the single source of truth for spend/earn decisions and is only
// mutated through the repository's atomic increment/decrement, except for the
// administrative tier-set which overwrites it together with Tier. Tier is a
// cached classification: reads may upgrade it when the classified tier
// outranks it, but it never moves down outside an explicit tier-set.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Points    int64     `json:"points"`
	Tier      Tier      `json:"tier"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommunityGoal is a shared aggregate target that multiple users contribute
// points toward. CurrentPoints only grows through successful contributions;
// it returns to zero only via an explicit administrative reset.
type CommunityGoal struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	TargetPoints  int64      `json:"target_points"`
	CurrentPoints int64      `json:"current_points"`
	Active        bool       `json:"active"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AcceptsContributionsAt reports whether the goal can receive points at the
// given instant.
func (g *CommunityGoal) AcceptsContributionsAt(now time.Time) bool {
	if g == nil || !g.Active {
		return false
	}
	if g.ExpiresAt != nil && !now.Before(*g.ExpiresAt) {
		return false
	}
	return true
}

// BalanceSummary is returned to clients reading their balance. Thresholds are
// included so display code renders tier progress without re-deriving tier math.
type BalanceSummary struct {
	UserID     uuid.UUID      `json:"user_id"`
	Points     int64          `json:"points"`
	Tier       Tier           `json:"tier"`
	Thresholds TierThresholds `json:"thresholds"`
	// NextTierAt is the balance at which the next tier starts; zero when the
	// user already holds the top tier.
	NextTierAt int64 `json:"next_tier_at,omitempty"`
}

// EarnResult reports the outcome of a successful rate-limited earn action.
type EarnResult struct {
	PointsAwarded int64 `json:"points_awarded"`
	NewTotal      int64 `json:"new_total"`
	Tier          Tier  `json:"tier"`
}

// ContributionResult reports the outcome of a successful goal contribution.
type ContributionResult struct {
	GoalID         uuid.UUID `json:"goal_id"`
	Points         int64     `json:"points"`
	NewBalance     int64     `json:"new_balance"`
	GoalTotal      int64     `json:"goal_total"`
	Tier           Tier      `json:"tier"`
	LedgerRecorded bool      `json:"ledger_recorded"`
}

// ContributeRequest is the DTO for goal contribution API requests.
type ContributeRequest struct {
	Points int64  `json:"points"`
	Notes  string `json:"notes"`
}

// EarnRequest is the DTO for the trusted earn entry point.
type EarnRequest struct {
	UserID uuid.UUID  `json:"user_id"`
	Action EarnAction `json:"action"`
}

// AdjustmentRequest is the DTO for the administrative point adjustment entry
// point. Delta may be negative; zero is rejected.
type AdjustmentRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Delta  int64     `json:"delta"`
	Notes  string    `json:"notes"`
}

// SetTierRequest is the DTO for the administrative tier-set operation.
type SetTierRequest struct {
	Tier Tier `json:"tier"`
}

// CreateGoalRequest is the DTO for creating a community goal.
type CreateGoalRequest struct {
	Name         string     `json:"name"`
	TargetPoints int64      `json:"target_points"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// LedgerListOptions controls cursor pagination and filtering of ledger reads.
type LedgerListOptions struct {
	// Filter is "", "earn" or "redeem".
	Filter string
	// Cursor is the id-ordered position to resume from; zero value means start.
	Cursor uuid.UUID
	// CursorTime pairs with Cursor for the keyset predicate.
	CursorTime time.Time
	Limit      int
}

// LedgerPage is one page of ledger history. NextCursor and NextCursorTime are
// echoed back by clients to fetch the following page.
type LedgerPage struct {
	Entries        []LedgerEntry `json:"entries"`
	NextCursor     *uuid.UUID    `json:"next_cursor,omitempty"`
	NextCursorTime *time.Time    `json:"next_cursor_ts,omitempty"`
	HasMore        bool          `json:"has_more"`
}
