package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our token, so
// a worker whose lock already expired cannot release a lock another worker
// has since acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLocker provides per-session mutual exclusion across processes using
// Redis SET NX with a TTL. The TTL bounds how long a crashed holder can keep
// a session locked.
type SessionLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionLocker(client *redis.Client, ttl time.Duration) *SessionLocker {
	return &SessionLocker{client: client, ttl: ttl}
}

// Acquire attempts to take the finalization lock for one session. It returns
// the release token and true on success, and "" and false when another
// worker holds the lock. Acquisition is a single atomic SET NX; there is no
// separate exists-then-set window.
func (l *SessionLocker) Acquire(ctx context.Context, sessionID string) (string, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key(sessionID), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if it is still held with the given token.
// Best-effort: a failed release is logged and the TTL cleans up behind us.
func (l *SessionLocker) Release(ctx context.Context, sessionID, token string) {
	released, err := releaseScript.Run(ctx, l.client, []string{l.key(sessionID)}, token).Int()
	if err != nil {
		slog.Error("Failed to release session lock", "error", err, "session_id", sessionID)
		return
	}
	if released == 0 {
		slog.Warn("Session lock was no longer held at release", "session_id", sessionID)
	}
}

func (l *SessionLocker) key(sessionID string) string {
	return "interview:session-lock:" + sessionID
}
