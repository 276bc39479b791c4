package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/domain"
	"github.com/auralounge/loyalty-service/internal/store"
	"github.com/auralounge/loyalty-service/pkg/rabbitmq"
)

// fakeRepo is an in-memory Repository with the same atomicity semantics as
// the PostgreSQL implementation, plus per-method failure injection.
type fakeRepo struct {
	mu sync.Mutex

	profiles   map[uuid.UUID]*domain.Profile
	goals      map[uuid.UUID]*domain.CommunityGoal
	entries    []domain.LedgerEntry
	thresholds *domain.TierThresholds
	lastGrant  map[string]time.Time

	failIncrement    error
	failDecrement    error
	failAddGoal      error
	failCreateLedger error
	failSetTier      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles:  make(map[uuid.UUID]*domain.Profile),
		goals:     make(map[uuid.UUID]*domain.CommunityGoal),
		lastGrant: make(map[string]time.Time),
	}
}

func (r *fakeRepo) addProfile(userID uuid.UUID, points int64, tier domain.Tier, isAdmin bool) {
	r.profiles[userID] = &domain.Profile{UserID: userID, Points: points, Tier: tier, IsAdmin: isAdmin}
}

func (r *fakeRepo) addGoal(goal domain.CommunityGoal) {
	g := goal
	r.goals[goal.ID] = &g
}

func (r *fakeRepo) CreateProfile(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[userID]; ok {
		return store.ErrDuplicateProfile
	}
	r.profiles[userID] = &domain.Profile{UserID: userID, Points: 0, Tier: domain.TierBronze}
	return nil
}

func (r *fakeRepo) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepo) IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIncrement != nil {
		return 0, r.failIncrement
	}
	p, ok := r.profiles[userID]
	if !ok {
		return 0, store.ErrProfileNotFound
	}
	p.Points += amount
	return p.Points, nil
}

func (r *fakeRepo) DecrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDecrement != nil {
		return 0, r.failDecrement
	}
	p, ok := r.profiles[userID]
	if !ok {
		return 0, store.ErrProfileNotFound
	}
	if p.Points < amount {
		return 0, store.ErrInsufficientBalance
	}
	p.Points -= amount
	return p.Points, nil
}

func (r *fakeRepo) SetTierAndBalance(ctx context.Context, userID uuid.UUID, tier domain.Tier, points int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSetTier != nil {
		return r.failSetTier
	}
	p, ok := r.profiles[userID]
	if !ok {
		return store.ErrProfileNotFound
	}
	p.Tier = tier
	p.Points = points
	return nil
}

func (r *fakeRepo) UpgradeCachedTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil
	}
	if tier.Outranks(p.Tier) {
		p.Tier = tier
	}
	return nil
}

func (r *fakeRepo) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateLedger != nil {
		return r.failCreateLedger
	}
	e := *entry
	e.CreatedAt = time.Now()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRepo) ListLedgerEntries(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) (*domain.LedgerPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := &domain.LedgerPage{}
	for _, e := range r.entries {
		if e.UserID == userID {
			page.Entries = append(page.Entries, e)
		}
	}
	return page, nil
}

func (r *fakeRepo) CreateGoal(ctx context.Context, goal *domain.CommunityGoal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := *goal
	r.goals[goal.ID] = &g
	return nil
}

func (r *fakeRepo) FindGoalByID(ctx context.Context, goalID uuid.UUID) (*domain.CommunityGoal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[goalID]
	if !ok {
		return nil, store.ErrGoalNotFound
	}
	copied := *g
	return &copied, nil
}

func (r *fakeRepo) ListActiveGoals(ctx context.Context) ([]domain.CommunityGoal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	goals := make([]domain.CommunityGoal, 0)
	for _, g := range r.goals {
		if g.Active {
			goals = append(goals, *g)
		}
	}
	return goals, nil
}

func (r *fakeRepo) AddGoalPoints(ctx context.Context, goalID uuid.UUID, points int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAddGoal != nil {
		return 0, r.failAddGoal
	}
	g, ok := r.goals[goalID]
	if !ok {
		return 0, store.ErrGoalNotFound
	}
	g.CurrentPoints += points
	return g.CurrentPoints, nil
}

func (r *fakeRepo) ArchiveGoal(ctx context.Context, goalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[goalID]
	if !ok {
		return store.ErrGoalNotFound
	}
	g.Active = false
	return nil
}

func (r *fakeRepo) ResetGoal(ctx context.Context, goalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[goalID]
	if !ok {
		return store.ErrGoalNotFound
	}
	g.CurrentPoints = 0
	for i := range r.entries {
		if r.entries[i].GoalID != nil && *r.entries[i].GoalID == goalID {
			r.entries[i].GoalID = nil
		}
	}
	return nil
}

func (r *fakeRepo) GetTierThresholds(ctx context.Context) (domain.TierThresholds, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.thresholds == nil {
		return domain.TierThresholds{}, store.ErrThresholdsNotFound
	}
	return *r.thresholds, nil
}

func (r *fakeRepo) UpsertTierThresholds(ctx context.Context, thresholds domain.TierThresholds) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := thresholds
	r.thresholds = &t
	return nil
}

func (r *fakeRepo) TryConsumeEarnCooldown(ctx context.Context, userID uuid.UUID, action domain.EarnAction, cooldown time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID.String() + ":" + string(action)
	if last, ok := r.lastGrant[key]; ok && time.Since(last) < cooldown {
		return false, nil
	}
	r.lastGrant[key] = time.Now()
	return true, nil
}

func (r *fakeRepo) ledgerEntriesFor(userID uuid.UUID) []domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]domain.LedgerEntry, 0)
	for _, e := range r.entries {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return entries
}

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu              sync.Mutex
	published       []string
	reconciliations []rabbitmq.ReconciliationEvent
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, routingKey)
	return nil
}

func (p *fakePublisher) PublishReconciliationEvent(ctx context.Context, event rabbitmq.ReconciliationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconciliations = append(p.reconciliations, event)
	return nil
}

func (p *fakePublisher) Close() {}
