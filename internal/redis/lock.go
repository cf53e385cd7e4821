package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func lockKey(matchID string) string {
	return fmt.Sprintf("povia:evaluation:%s:lock", matchID)
}

// AcquireEvaluation takes the evaluation lock for a match. ok is false when
// another holder has it.
func (c *Cache) AcquireEvaluation(ctx context.Context, matchID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, lockKey(matchID), token, c.lockTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquiring lock: %w", err)
	}
	return token, ok, nil
}

// ReleaseEvaluation frees the lock if token still owns it.
func (c *Cache) ReleaseEvaluation(ctx context.Context, matchID, token string) error {
	if err := releaseScript.Run(ctx, c.client, []string{lockKey(matchID)}, token).Err(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}
