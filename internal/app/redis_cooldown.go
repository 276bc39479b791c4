package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/auralounge/loyalty-service/internal/domain"
)

// The gate key is claimed with NX and expires after the cooldown window, so
// concurrent duplicate earns for the same (user, action) collapse to exactly
// one grant. The script returns 1 when the grant was consumed.
var earnCooldownScript = redis.NewScript(`
local ok = redis.call("SET", KEYS[1], "1", "NX", "PX", ARGV[1])
if ok then
  return 1
end
return 0
`)

// RedisCooldownGate implements the earn cooldown gate on Redis, keeping the
// hot rate-limit path off the database when a Redis instance is configured.
type RedisCooldownGate struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCooldownGate(client redis.UniversalClient, prefix string) *RedisCooldownGate {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "loyalty:earn_cooldown"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisCooldownGate{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (g *RedisCooldownGate) TryConsume(ctx context.Context, userID uuid.UUID, action domain.EarnAction, cooldown time.Duration) (bool, error) {
	if g == nil || g.client == nil {
		return true, nil
	}
	if cooldown <= 0 {
		return true, nil
	}

	cooldownMs := cooldown.Milliseconds()
	if cooldownMs < 1000 {
		cooldownMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", g.prefix, userID, action)
	rawResult, err := earnCooldownScript.Run(ctx, g.client, []string{key}, cooldownMs).Result()
	if err != nil {
		return false, err
	}

	granted, ok := rawResult.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected redis cooldown response type: %T", rawResult)
	}
	return granted == 1, nil
}
