package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	orgLockPrefix     = "helpdesk:orglock:"
	orgLockTTL        = 10 * time.Second
	orgLockRetryDelay = 25 * time.Millisecond
)

// releaseScript deletes the lease only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// OrgLocker serializes admin-count-sensitive membership writes per
// organization. With redis it takes a SetNX lease so the guarantee holds
// across instances; without redis it degrades to an in-process mutex so the
// invariant never depends on the cache being reachable.
type OrgLocker struct {
	client *redis.Client
	logger *zap.Logger

	mu    sync.Mutex
	local map[string]*sync.Mutex
}

// NewOrgLocker builds a locker. client may be nil.
func NewOrgLocker(client *redis.Client, logger *zap.Logger) *OrgLocker {
	return &OrgLocker{
		client: client,
		logger: logger,
		local:  make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-organization lease, blocking until acquired or ctx
// is done. The returned function releases the lease.
func (l *OrgLocker) Lock(ctx context.Context, orgID string) (func(), error) {
	localMu := l.localMutex(orgID)
	localMu.Lock()

	if l.client == nil {
		return localMu.Unlock, nil
	}

	key := orgLockPrefix + orgID
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, orgLockTTL).Result()
		if err != nil {
			// Redis down: the local mutex still serializes this instance.
			l.logger.Warn("org lock lease unavailable, falling back to local mutex",
				zap.String("organization_id", orgID), zap.Error(err))
			return localMu.Unlock, nil
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			localMu.Unlock()
			return nil, ctx.Err()
		case <-time.After(orgLockRetryDelay):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("org lock release failed; lease will expire",
				zap.String("organization_id", orgID), zap.Error(err))
		}
		localMu.Unlock()
	}, nil
}

func (l *OrgLocker) localMutex(orgID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.local[orgID]
	if !ok {
		mu = &sync.Mutex{}
		l.local[orgID] = mu
	}
	return mu
}
