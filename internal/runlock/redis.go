package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/domain"
)

const redisKeyPrefix = "runlock"

// releaseScript deletes the lock only if the caller still owns it, so a
// lock that expired and was re-acquired by another replica is never released
// by the stale owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a distributed run locker for multi-replica deployments. The TTL
// bounds how long a crashed holder can keep a run locked.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis creates a Redis-backed run locker.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Acquire(ctx context.Context, runID string) (func(), error) {
	key := fmt.Sprintf("%s:%s", redisKeyPrefix, runID)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunConflict)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			zap.L().Warn("run lock release failed", zap.String("run_id", runID), zap.Error(err))
		}
	}, nil
}
