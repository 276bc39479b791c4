/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL for profiles, the points ledger, community goals,
 * tier threshold configuration and the earn cooldown gate.
 *
 * @notes
 * - Balance mutations are single conditional UPDATE statements with RETURNING,
 *   never a read followed by a write. The decrement guard (`points >= amount`)
 *   lives inside the same statement, so concurrent decrements serialize on the
 *   row and lost updates are impossible.
 * - The earn cooldown gate is an upsert whose UPDATE arm only fires when the
 *   previous grant is older than the cooldown window.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auralounge/loyalty-service/internal/domain"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrGoalNotFound        = errors.New("goal not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrThresholdsNotFound  = errors.New("tier thresholds not configured")
	ErrDuplicateProfile    = errors.New("profile already exists")
)

// thresholdsRecordName is the fixed key of the single persisted configuration row.
const thresholdsRecordName = "default"

const (
	defaultLedgerPageLimit = 20
	maxLedgerPageLimit     = 100
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateProfile inserts a zero-balance bronze profile for a new user.
func (r *PostgresRepository) CreateProfile(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO loyalty_profiles (user_id, points, tier)
		VALUES ($1, 0, 'bronze')
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProfile
	}
	return nil
}

// FindProfileByUserID retrieves a user's loyalty profile.
func (r *PostgresRepository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	query := `SELECT user_id, points, tier, is_admin, created_at, updated_at FROM loyalty_profiles WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Points, &p.Tier, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// IncrementBalance atomically adds amount to the user's balance.
func (r *PostgresRepository) IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	query := `
		UPDATE loyalty_profiles
		SET points = points + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING points
	`
	err := r.db.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrProfileNotFound
		}
		return 0, err
	}
	return balance, nil
}

// DecrementBalance atomically subtracts amount from the user's balance. The
// sufficiency check is part of the UPDATE's WHERE clause, so there is no
// check-then-act window for concurrent callers to exploit.
func (r *PostgresRepository) DecrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	query := `
		UPDATE loyalty_profiles
		SET points = points - $2, updated_at = NOW()
		WHERE user_id = $1 AND points >= $2
		RETURNING points
	`
	err := r.db.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}

	// The guarded update missed: distinguish a missing profile from a balance
	// that cannot cover the amount.
	var exists bool
	probeErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loyalty_profiles WHERE user_id = $1)`, userID).Scan(&exists)
	if probeErr != nil {
		return 0, probeErr
	}
	if !exists {
		return 0, ErrProfileNotFound
	}
	return 0, ErrInsufficientBalance
}

// SetTierAndBalance writes the cached tier and the floored balance in a single
// update so neither field can persist without the other.
func (r *PostgresRepository) SetTierAndBalance(ctx context.Context, userID uuid.UUID, tier domain.Tier, points int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE loyalty_profiles
		SET tier = $2, points = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, tier, points)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpgradeCachedTier raises the cached tier when the given tier outranks the
// stored one. The rank comparison happens inside the statement, so a
// concurrent tier-set is never overwritten by a stale upgrade.
func (r *PostgresRepository) UpgradeCachedTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) error {
	_, err := r.db.Exec(ctx, `
		UPDATE loyalty_profiles
		SET tier = $2, updated_at = NOW()
		WHERE user_id = $1
		  AND (CASE tier WHEN 'gold' THEN 2 WHEN 'silver' THEN 1 ELSE 0 END)
		    < (CASE $2::text WHEN 'gold' THEN 2 WHEN 'silver' THEN 1 ELSE 0 END)
	`, userID, tier)
	return err
}

// CreateLedgerEntry appends one immutable ledger row.
func (r *PostgresRepository) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, user_id, direction, points, notes, goal_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Direction,
		entry.Points,
		entry.Notes,
		entry.GoalID,
	)
	return err
}

// ListLedgerEntries returns one keyset-paginated page of a user's ledger
// history, newest first.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, userID uuid.UUID, opts domain.LedgerListOptions) (*domain.LedgerPage, error) {
	limit := clampLedgerLimit(opts.Limit)

	query := `
		SELECT id, user_id, direction, points, notes, goal_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if direction, ok := ledgerDirectionFilter(opts.Filter); ok {
		args = append(args, direction)
		query += ` AND direction = $2`
	}
	if opts.Cursor != uuid.Nil {
		args = append(args, opts.CursorTime, opts.Cursor)
		query += ` AND (created_at, id) < ($` + strconv.Itoa(len(args)-1) + `, $` + strconv.Itoa(len(args)) + `)`
	}
	args = append(args, limit+1)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, limit)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Direction, &e.Points, &e.Notes, &e.GoalID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &domain.LedgerPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.HasMore = true
		last := page.Entries[limit-1]
		cursor := last.ID
		cursorTime := last.CreatedAt
		page.NextCursor = &cursor
		page.NextCursorTime = &cursorTime
	}
	return page, nil
}

// CreateGoal inserts a new community goal.
func (r *PostgresRepository) CreateGoal(ctx context.Context, goal *domain.CommunityGoal) error {
	query := `
		INSERT INTO community_goals (id, name, target_points, current_points, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		goal.ID,
		goal.Name,
		goal.TargetPoints,
		goal.CurrentPoints,
		goal.Active,
		goal.ExpiresAt,
	)
	return err
}

// FindGoalByID retrieves a community goal.
func (r *PostgresRepository) FindGoalByID(ctx context.Context, goalID uuid.UUID) (*domain.CommunityGoal, error) {
	var g domain.CommunityGoal
	query := `
		SELECT id, name, target_points, current_points, active, expires_at, created_at, updated_at
		FROM community_goals
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, goalID).Scan(
		&g.ID, &g.Name, &g.TargetPoints, &g.CurrentPoints, &g.Active, &g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return &g, nil
}

// ListActiveGoals returns all goals currently open for contributions.
func (r *PostgresRepository) ListActiveGoals(ctx context.Context) ([]domain.CommunityGoal, error) {
	query := `
		SELECT id, name, target_points, current_points, active, expires_at, created_at, updated_at
		FROM community_goals
		WHERE active = TRUE AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := make([]domain.CommunityGoal, 0)
	for rows.Next() {
		var g domain.CommunityGoal
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetPoints, &g.CurrentPoints, &g.Active, &g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// AddGoalPoints atomically adds points to the goal's accumulated total.
func (r *PostgresRepository) AddGoalPoints(ctx context.Context, goalID uuid.UUID, points int64) (int64, error) {
	var total int64
	query := `
		UPDATE community_goals
		SET current_points = current_points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING current_points
	`
	err := r.db.QueryRow(ctx, query, goalID, points).Scan(&total)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrGoalNotFound
		}
		return 0, err
	}
	return total, nil
}

// ArchiveGoal deactivates a goal; the row is kept for history.
func (r *PostgresRepository) ArchiveGoal(ctx context.Context, goalID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE community_goals SET active = FALSE, updated_at = NOW() WHERE id = $1
	`, goalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// ResetGoal zeroes the goal's accumulated total and detaches the ledger
// linkage of its past contributions. Both writes commit together.
func (r *PostgresRepository) ResetGoal(ctx context.Context, goalID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE community_goals SET current_points = 0, updated_at = NOW() WHERE id = $1
	`, goalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE ledger_entries SET goal_id = NULL WHERE goal_id = $1`, goalID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetTierThresholds reads the persisted tier configuration record. Absence is
// a supported state reported as ErrThresholdsNotFound; callers fall back to
// the defaults.
func (r *PostgresRepository) GetTierThresholds(ctx context.Context) (domain.TierThresholds, error) {
	var t domain.TierThresholds
	query := `SELECT silver_points, gold_points FROM tier_thresholds WHERE name = $1`
	err := r.db.QueryRow(ctx, query, thresholdsRecordName).Scan(&t.Silver, &t.Gold)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TierThresholds{}, ErrThresholdsNotFound
		}
		return domain.TierThresholds{}, err
	}
	return t, nil
}

// UpsertTierThresholds persists the tier configuration record. Validation
// happens before this call; the store writes what it is given.
func (r *PostgresRepository) UpsertTierThresholds(ctx context.Context, thresholds domain.TierThresholds) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tier_thresholds (name, silver_points, gold_points)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET silver_points = EXCLUDED.silver_points,
		    gold_points = EXCLUDED.gold_points,
		    updated_at = NOW()
	`, thresholdsRecordName, thresholds.Silver, thresholds.Gold)
	return err
}

// TryConsumeEarnCooldown advances the (user, action) last-granted timestamp
// only when the previous grant is outside the cooldown window. The check and
// the write are one statement, so concurrent duplicate earns race safely: at
// most one caller sees a consumed grant.
func (r *PostgresRepository) TryConsumeEarnCooldown(ctx context.Context, userID uuid.UUID, action domain.EarnAction, cooldown time.Duration) (bool, error) {
	seconds := int64(cooldown / time.Second)
	tag, err := r.db.Exec(ctx, `
		INSERT INTO earn_cooldowns (user_id, action, last_granted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, action) DO UPDATE
		SET last_granted_at = NOW()
		WHERE earn_cooldowns.last_granted_at <= NOW() - ($3 * INTERVAL '1 second')
	`, userID, action, seconds)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// clampLedgerLimit normalizes a caller-supplied page size.
func clampLedgerLimit(limit int) int {
	if limit <= 0 {
		return defaultLedgerPageLimit
	}
	if limit > maxLedgerPageLimit {
		return maxLedgerPageLimit
	}
	return limit
}

// ledgerDirectionFilter maps the API-level filter values onto a ledger
// direction. Unknown filters are ignored rather than rejected.
func ledgerDirectionFilter(filter string) (domain.Direction, bool) {
	switch filter {
	case "earn", "income":
		return domain.DirectionEarn, true
	case "redeem", "expense":
		return domain.DirectionRedeem, true
	default:
		return "", false
	}
}
