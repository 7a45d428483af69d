package helpers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient initializes a redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func sessionMetaKey(userID string) string { return "user:session:" + userID }

// SessionMeta is informational login metadata kept in redis for operability
// (who logged in, from where, when). It is never consulted for authentication
// decisions; the stored refresh token in Postgres is the only source of truth.
type SessionMeta struct {
	UserID    string
	Username  string
	IP        string
	UserAgent string
	LoginAt   time.Time
}

func RecordSessionMeta(ctx context.Context, rdb *redis.Client, meta SessionMeta, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	key := sessionMetaKey(meta.UserID)
	pipe := rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    meta.UserID,
		"username":   meta.Username,
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
		"login_at":   meta.LoginAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func TouchSessionMeta(ctx context.Context, rdb *redis.Client, userID string, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	key := sessionMetaKey(userID)
	pipe := rdb.Pipeline()
	pipe.HSet(ctx, key, "refreshed_at", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func DropSessionMeta(ctx context.Context, rdb *redis.Client, userID string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, sessionMetaKey(userID)).Err()
}
