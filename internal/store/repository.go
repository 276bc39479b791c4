/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the loyalty-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @notes
 * - IncrementBalance and DecrementBalance are the only writers of a profile's
 *   point balance apart from SetTierAndBalance. Implementations must execute
 *   them as a single atomic conditional update: two concurrent decrements must
 *   never both succeed when their sum exceeds the balance.
 * - Neither balance mutator writes a ledger entry; callers pair the ledger
 *   write with the mutation themselves.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Profile and balance methods
	CreateProfile(ctx context.Context, userID uuid.UUID) error
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	// IncrementBalance atomically adds amount (> 0) to the user's balance and
	// returns the resulting balance.
	IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	// DecrementBalance atomically subtracts amount (> 0) from the user's
	// balance and returns the resulting balance. The insufficient-balance check
	// is part of the same atomic statement; ErrInsufficientBalance is returned
	// without any mutation when the balance cannot cover the amount.
	DecrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	// SetTierAndBalance writes the cached tier and the balance in one update.
	// This is the privileged administrative override; it is never combined
	// with the increment/decrement path.
	SetTierAndBalance(ctx context.Context, userID uuid.UUID, tier domain.Tier, points int64) error
	// UpgradeCachedTier moves the cached tier up to the given tier if and only
	// if it currently ranks below it. Downgrades are silently skipped.
	UpgradeCachedTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) error

	// Ledger methods
	CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) (*domain.LedgerPage, error)

	// Community goal methods
	CreateGoal(ctx context.Context, goal *domain.CommunityGoal) error
	FindGoalByID(ctx context.Context, goalID uuid.UUID) (*domain.CommunityGoal, error)
	ListActiveGoals(ctx context.Context) ([]domain.CommunityGoal, error)
	// AddGoalPoints atomically adds points (> 0) to the goal's accumulated
	// total and returns the resulting total.
	AddGoalPoints(ctx context.Context, goalID uuid.UUID, points int64) (int64, error)
	ArchiveGoal(ctx context.Context, goalID uuid.UUID) error
	// ResetGoal zeroes the goal's accumulated total and detaches the ledger
	// linkage of past contributions, in one transaction.
	ResetGoal(ctx context.Context, goalID uuid.UUID) error

	// Tier threshold configuration
	GetTierThresholds(ctx context.Context) (domain.TierThresholds, error)
	UpsertTierThresholds(ctx context.Context, thresholds domain.TierThresholds) error

	// TryConsumeEarnCooldown is the earn rate-limit gate: it advances the
	// (user, action) last-granted timestamp only when the previous grant is
	// outside the cooldown window, as one conditional statement. It returns
	// true when the grant was consumed.
	TryConsumeEarnCooldown(ctx context.Context, userID uuid.UUID, action domain.EarnAction, cooldown time.Duration) (bool, error)
}
