package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the marker only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionGuard marks a chat's running session in Redis. The marker outlives
// a process restart, so a redeployed bot does not start a second session in
// a chat whose quiz is still being sent. The TTL bounds how long a crashed
// process can keep a chat locked.
type SessionGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSessionGuard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGuard{client: client, ttl: ttl, logger: logger}
}

func (g *SessionGuard) Acquire(ctx context.Context, chatID int64) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key(chatID), token, g.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (g *SessionGuard) Release(ctx context.Context, chatID int64, token string) {
	// best-effort; the TTL cleans up if this fails
	n, err := releaseScript.Run(ctx, g.client, []string{g.key(chatID)}, token).Int()
	if err != nil {
		g.logger.Warn("release session marker", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if n == 0 {
		g.logger.Warn("session marker expired or taken over", zap.Int64("chat_id", chatID))
	}
}

func (g *SessionGuard) key(chatID int64) string {
	return "quiz:session:" + strconv.FormatInt(chatID, 10)
}
