package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/GoCodeAlone/sahara/escalation"
	"github.com/GoCodeAlone/sahara/risk"
)

// RedisConfig holds connection settings for the Redis history store.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"` //nolint:gosec // G117: config field
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RedisHistory stores each session's history in a sorted set scored by
// unix milliseconds, so several instances share one view of a session.
// Nanosecond scores would exceed float64 precision; members carry the exact
// timestamp and Recent filters on it.
type RedisHistory struct {
	client    redis.Cmdable
	prefix    string
	retention time.Duration
	now       func() time.Time
}

type redisEntry struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"ts"`
}

// NewRedisClient opens a client from cfg and verifies it with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: ExpandEnvString(cfg.Password),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return client, nil
}

// NewRedisHistory wraps an existing client.
func NewRedisHistory(client redis.Cmdable, prefix string, cfg HistoryConfig) *RedisHistory {
	cfg = cfg.withDefaults()
	if prefix == "" {
		prefix = "sahara:"
	}
	return &RedisHistory{client: client, prefix: prefix, retention: cfg.Retention, now: cfg.Now}
}

func (r *RedisHistory) key(sessionID string) string {
	return r.prefix + "history:" + sessionID
}

// Append implements HistoryStore. Entries older than the retention period are
// trimmed and the key expires once the session goes quiet.
func (r *RedisHistory) Append(ctx context.Context, sessionID string, e escalation.Entry) error {
	member, err := json.Marshal(redisEntry{ID: uuid.NewString(), Level: string(e.Level), Timestamp: e.Timestamp.UTC()})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	key := r.key(sessionID)
	cutoff := r.now().Add(-r.retention).UnixMilli()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(e.Timestamp.UnixMilli()), Member: string(member)})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.Expire(ctx, key, r.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append history: %w", err)
	}
	return nil
}

// Recent implements HistoryStore.
func (r *RedisHistory) Recent(ctx context.Context, sessionID string, since time.Time) ([]escalation.Entry, error) {
	members, err := r.client.ZRangeByScore(ctx, r.key(sessionID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read history: %w", err)
	}

	out := make([]escalation.Entry, 0, len(members))
	for _, m := range members {
		var re redisEntry
		if err := json.Unmarshal([]byte(m), &re); err != nil {
			return nil, fmt.Errorf("unmarshal history entry: %w", err)
		}
		if re.Timestamp.Before(since) {
			continue
		}
		out = append(out, escalation.Entry{Level: risk.Level(re.Level), Timestamp: re.Timestamp})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// ExpandEnvString resolves ${VAR} and $VAR references in s.
func ExpandEnvString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}
