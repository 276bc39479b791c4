/**
 * @description
 * This file defines the cooldown gate used by the rate-limited earn action,
 * plus the database-backed implementation that serves as the default when no
 * Redis instance is configured. A gate answers one question — "may this
 * (user, action) pair be granted points right now?" — and consuming a grant
 * must be a single conditional write, never a read followed by a write.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For user identifiers.
 * - internal/domain, internal/store: Domain models and the conditional-update primitive.
 */

package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/domain"
	"github.com/auralounge/loyalty-service/internal/store"
)

// CooldownGate gates earn grants per (user, action). TryConsume returns true
// when the grant was consumed, false when the caller is still inside the
// cooldown window. Implementations must make the check-and-consume atomic.
type CooldownGate interface {
	TryConsume(ctx context.Context, userID uuid.UUID, action domain.EarnAction, cooldown time.Duration) (bool, error)
}

// StoreCooldownGate gates earn grants with the repository's conditional
// upsert. It is the fallback when Redis is unavailable; the database then
// carries both the grant timestamps and the atomicity.
type StoreCooldownGate struct {
	repo store.Repository
}

func NewStoreCooldownGate(repo store.Repository) *StoreCooldownGate {
	return &StoreCooldownGate{repo: repo}
}

func (g *StoreCooldownGate) TryConsume(ctx context.Context, userID uuid.UUID, action domain.EarnAction, cooldown time.Duration) (bool, error) {
	return g.repo.TryConsumeEarnCooldown(ctx, userID, action, cooldown)
}
