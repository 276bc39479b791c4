/**
 * @description
 * This file contains the core business logic for the loyalty-service. The
 * `Service` struct orchestrates every point-affecting operation: rate-limited
 * earn grants, administrative adjustments, the tier-set override, community
 * goal management and balance/ledger reads. Goal contributions live in
 * contribution.go.
 *
 * Key invariants enforced here:
 * - Every balance mutation goes through the repository's atomic
 *   increment/decrement and is paired with a ledger entry in the same logical
 *   operation, so ledger and balance do not drift.
 * - Tier math happens only through domain.TierThresholds; thresholds are
 *   loaded per operation with a pure fallback to defaults.
 * - The cached tier only moves up on reads and earns; it moves down solely
 *   via the administrative tier-set.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For loyalty event publication.
 */

package app

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/domain"
	"github.com/auralounge/loyalty-service/internal/store"
	"github.com/auralounge/loyalty-service/pkg/rabbitmq"
)

// loyaltyEventsExchange receives informational loyalty events; the
// reconciliation alert path shares the exchange under its own routing key.
const loyaltyEventsExchange = "loyalty_events"

// EarnRule defines the grant size and cooldown window of one earn action.
type EarnRule struct {
	Points   int64
	Cooldown time.Duration
}

// DefaultEarnRules returns the built-in earn policy: small grants for chat
// activity and for completing an idle "chill" timer.
func DefaultEarnRules() map[domain.EarnAction]EarnRule {
	return map[domain.EarnAction]EarnRule{
		domain.EarnActionChat:      {Points: 1, Cooldown: time.Minute},
		domain.EarnActionChillTime: {Points: 5, Cooldown: 10 * time.Minute},
	}
}

// Service provides the core business logic for the points ledger and tier
// progression engine.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	cooldowns     CooldownGate
	earnRules     map[domain.EarnAction]EarnRule

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates a new loyalty service instance. A nil cooldown gate
// falls back to the repository-backed gate.
func NewService(repo store.Repository, producer rabbitmq.Publisher, cooldowns CooldownGate, earnRules map[domain.EarnAction]EarnRule) *Service {
	if cooldowns == nil {
		cooldowns = NewStoreCooldownGate(repo)
	}
	if len(earnRules) == 0 {
		earnRules = DefaultEarnRules()
	}
	return &Service{
		repo:          repo,
		eventProducer: producer,
		cooldowns:     cooldowns,
		earnRules:     earnRules,
		now:           time.Now,
	}
}

// loadThresholds reads the persisted tier configuration and degrades to the
// defaults on absence or malformed values. Configuration problems never fail
// a read or write path.
func (s *Service) loadThresholds(ctx context.Context) domain.TierThresholds {
	thresholds, err := s.repo.GetTierThresholds(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrThresholdsNotFound) {
			log.Printf("level=warn component=tier msg=\"threshold read failed; using defaults\" err=%v", err)
		}
		return domain.DefaultTierThresholds()
	}
	return thresholds.OrDefault()
}

// refreshCachedTier lazily raises the stored tier when the classified tier
// outranks it. Failures only cost staleness of the cache, so they are logged
// and dropped.
func (s *Service) refreshCachedTier(ctx context.Context, userID uuid.UUID, cached, classified domain.Tier) domain.Tier {
	if !classified.Outranks(cached) {
		// Tier never silently downgrades from spending; keep the cache.
		return cached
	}
	if err := s.repo.UpgradeCachedTier(ctx, userID, classified); err != nil {
		log.Printf("level=warn component=tier msg=\"cached tier upgrade failed\" user_id=%s tier=%s err=%v", userID, classified, err)
	}
	return classified
}

// displayTier resolves the tier to report after a balance mutation: the
// classified tier of the new balance, raised to the cached tier when that
// still outranks it (gold, once reached, is held through spending).
func (s *Service) displayTier(ctx context.Context, userID uuid.UUID, balance int64, thresholds domain.TierThresholds) domain.Tier {
	classified := thresholds.Classify(balance)
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		log.Printf("level=warn component=tier msg=\"profile read for tier refresh failed\" user_id=%s err=%v", userID, err)
		return classified
	}
	return s.refreshCachedTier(ctx, userID, profile.Tier, classified)
}

// BalanceSummary returns a user's live balance, display tier and the
// thresholds the client needs to render tier progress.
func (s *Service) BalanceSummary(ctx context.Context, userID uuid.UUID) (*domain.BalanceSummary, error) {
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	thresholds := s.loadThresholds(ctx)
	tier := s.refreshCachedTier(ctx, userID, profile.Tier, thresholds.Classify(profile.Points))

	return &domain.BalanceSummary{
		UserID:     userID,
		Points:     profile.Points,
		Tier:       tier,
		Thresholds: thresholds,
		NextTierAt: thresholds.NextTierAt(tier),
	}, nil
}

// LedgerHistory returns one page of a user's point history.
func (s *Service) LedgerHistory(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) (*domain.LedgerPage, error) {
	return s.repo.ListLedgerEntries(ctx, userID, opts)
}

// Earn performs the rate-limited earn action for a qualifying low-value
// activity. It must only be called from a trusted execution context; the HTTP
// entry point authenticates with the internal API key before reaching here.
func (s *Service) Earn(ctx context.Context, userID uuid.UUID, action domain.EarnAction) (*domain.EarnResult, error) {
	rule, ok := s.earnRules[action]
	if !ok {
		return nil, ErrUnknownEarnAction
	}

	// The gate consumes the grant and performs the cooldown check in one
	// conditional write, so concurrent duplicate calls collapse to one grant.
	granted, err := s.cooldowns.TryConsume(ctx, userID, action, rule.Cooldown)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, &RateLimitedError{Action: string(action), Cooldown: rule.Cooldown}
	}

	newTotal, err := s.repo.IncrementBalance(ctx, userID, rule.Points)
	if err != nil {
		// The cooldown slot is already spent; the user retries after the
		// window. Acceptable for grants this small.
		return nil, err
	}

	s.recordLedgerEntry(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Direction: domain.DirectionEarn,
		Points:    rule.Points,
		Notes:     defaultNotes("", "reward: "+string(action)),
	})

	tier := s.displayTier(ctx, userID, newTotal, s.loadThresholds(ctx))

	s.publishPointsAdjusted(ctx, userID, rule.Points, newTotal, "earn:"+string(action))

	return &domain.EarnResult{
		PointsAwarded: rule.Points,
		NewTotal:      newTotal,
		Tier:          tier,
	}, nil
}

// AdjustPoints applies a signed administrative point adjustment and records
// the paired ledger entry. Positive deltas credit, negative deltas debit; a
// debit that exceeds the balance fails atomically with ErrInsufficientBalance.
func (s *Service) AdjustPoints(ctx context.Context, userID uuid.UUID, delta int64, notes string) (*domain.EarnResult, error) {
	// math.MinInt64 has no positive counterpart; negating it overflows back to
	// itself and would hand the store a negative amount.
	if delta == 0 || delta == math.MinInt64 {
		return nil, ErrInvalidPoints
	}

	var (
		newTotal  int64
		err       error
		direction domain.Direction
		points    int64
	)
	if delta > 0 {
		points = delta
		direction = domain.DirectionEarn
		newTotal, err = s.repo.IncrementBalance(ctx, userID, points)
	} else {
		points = -delta
		direction = domain.DirectionRedeem
		newTotal, err = s.repo.DecrementBalance(ctx, userID, points)
	}
	if err != nil {
		return nil, err
	}

	s.recordLedgerEntry(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Direction: direction,
		Points:    points,
		Notes:     defaultNotes(notes, "manual adjustment"),
	})

	tier := s.displayTier(ctx, userID, newTotal, s.loadThresholds(ctx))

	s.publishPointsAdjusted(ctx, userID, delta, newTotal, "adjustment")

	return &domain.EarnResult{PointsAwarded: delta, NewTotal: newTotal, Tier: tier}, nil
}

// SetTier is the administrative override that writes the membership tier and
// resets the balance to that tier's floor in one atomic write. It is
// intentionally destructive to the existing balance.
func (s *Service) SetTier(ctx context.Context, adminID, userID uuid.UUID, tier domain.Tier) error {
	if _, ok := domain.ParseTier(string(tier)); !ok {
		return ErrInvalidTier
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	thresholds := s.loadThresholds(ctx)
	floor := thresholds.FloorFor(tier)

	if err := s.repo.SetTierAndBalance(ctx, userID, tier, floor); err != nil {
		return err
	}

	log.Printf("level=info component=tier msg=\"tier set\" admin_id=%s user_id=%s tier=%s floor=%d", adminID, userID, tier, floor)
	return nil
}

// Thresholds returns the effective tier thresholds (persisted or defaults).
func (s *Service) Thresholds(ctx context.Context) domain.TierThresholds {
	return s.loadThresholds(ctx)
}

// UpdateThresholds persists new tier boundaries after validating the
// monotonicity invariant. Invalid shapes are rejected before persistence.
func (s *Service) UpdateThresholds(ctx context.Context, adminID uuid.UUID, thresholds domain.TierThresholds) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if !thresholds.Valid() {
		return ErrInvalidThresholds
	}
	return s.repo.UpsertTierThresholds(ctx, thresholds)
}

// ActiveGoals lists the community goals currently open for contributions.
func (s *Service) ActiveGoals(ctx context.Context) ([]domain.CommunityGoal, error) {
	return s.repo.ListActiveGoals(ctx)
}

// Goal returns one community goal.
func (s *Service) Goal(ctx context.Context, goalID uuid.UUID) (*domain.CommunityGoal, error) {
	return s.repo.FindGoalByID(ctx, goalID)
}

// CreateGoal creates a new community goal.
func (s *Service) CreateGoal(ctx context.Context, adminID uuid.UUID, req domain.CreateGoalRequest) (*domain.CommunityGoal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if req.TargetPoints <= 0 || strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidGoal
	}

	goal := &domain.CommunityGoal{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		TargetPoints: req.TargetPoints,
		Active:       true,
		ExpiresAt:    req.ExpiresAt,
	}
	if err := s.repo.CreateGoal(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// ArchiveGoal closes a goal to further contributions; history is kept.
func (s *Service) ArchiveGoal(ctx context.Context, adminID, goalID uuid.UUID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.repo.ArchiveGoal(ctx, goalID)
}

// ResetGoal zeroes a goal's accumulated total and detaches the ledger linkage
// of its past contributions.
func (s *Service) ResetGoal(ctx context.Context, adminID, goalID uuid.UUID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.repo.ResetGoal(ctx, goalID)
}

// ProvisionProfile creates the zero-balance bronze profile for a new user.
// Redelivered events make this idempotent: an existing profile is not an error.
func (s *Service) ProvisionProfile(ctx context.Context, userID uuid.UUID) error {
	err := s.repo.CreateProfile(ctx, userID)
	if errors.Is(err, store.ErrDuplicateProfile) {
		return nil
	}
	return err
}

// requireAdmin verifies the caller holds the admin capability. Authorization
// of the transport is the entry point's job; this check exists so the
// operation itself never silently proceeds for a non-administrative caller.
func (s *Service) requireAdmin(ctx context.Context, adminID uuid.UUID) error {
	admin, err := s.repo.FindProfileByUserID(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return ErrNotAuthorized
		}
		return err
	}
	if !admin.IsAdmin {
		return ErrNotAuthorized
	}
	return nil
}

// recordLedgerEntry appends the paired ledger entry for a committed balance
// mutation. A failure here is an audit gap: the transfer of points stands and
// the gap is logged, never compensated.
func (s *Service) recordLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) bool {
	if err := s.repo.CreateLedgerEntry(ctx, entry); err != nil {
		log.Printf("level=error component=ledger msg=\"audit gap: ledger entry write failed after committed mutation\" user_id=%s direction=%s points=%d err=%v",
			entry.UserID, entry.Direction, entry.Points, err)
		return false
	}
	return true
}

// publishPointsAdjusted emits the informational loyalty event; delivery is
// best effort.
func (s *Service) publishPointsAdjusted(ctx context.Context, userID uuid.UUID, delta, newBalance int64, reason string) {
	if s.eventProducer == nil {
		return
	}
	err := s.eventProducer.Publish(ctx, loyaltyEventsExchange, "loyalty.points.adjusted", rabbitmq.PointsAdjustedEvent{
		UserID:     userID,
		Delta:      delta,
		NewBalance: newBalance,
		Reason:     reason,
		Timestamp:  s.now(),
	})
	if err != nil {
		log.Printf("level=warn component=events msg=\"points adjusted event publish failed\" user_id=%s err=%v", userID, err)
	}
}

// defaultNotes substitutes a context-derived note when the caller supplied none.
func defaultNotes(notes, fallback string) string {
	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
