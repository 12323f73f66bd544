package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/sipeed/picotd/pkg/bot"
	"github.com/sipeed/picotd/pkg/logger"
)

// RedisStore keeps one hash per bot: user id -> JSON field list.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ bot.PersistStore = (*RedisStore)(nil)

func NewRedisStore(addr, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "picotd:persists"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (s *RedisStore) key(botID int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, botID)
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SavePersists replaces the bot's hash in one transaction.
func (s *RedisStore) SavePersists(ctx context.Context, botID int64, records [][]string) error {
	values := make(map[string]any, len(records))
	for _, fields := range records {
		rec, err := bot.ParsePersist(fields)
		if err != nil {
			return err
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		values[strconv.FormatInt(rec.UserID, 10)] = string(data)
	}

	key := s.key(botID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving persists to redis: %w", err)
	}

	logger.DebugCF("store", "Persists saved to redis", map[string]any{
		"key":   key,
		"count": len(records),
	})
	return nil
}

func (s *RedisStore) LoadPersists(ctx context.Context, botID int64) ([][]string, error) {
	entries, err := s.client.HGetAll(ctx, s.key(botID)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading persists from redis: %w", err)
	}

	users := make([]int64, 0, len(entries))
	byUser := make(map[int64]string, len(entries))
	for k, v := range entries {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			logger.WarnCF("store", "Skipping malformed persist key", map[string]any{"field": k})
			continue
		}
		users = append(users, id)
		byUser[id] = v
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	out := make([][]string, 0, len(users))
	for _, id := range users {
		var fields []string
		if err := json.Unmarshal([]byte(byUser[id]), &fields); err != nil {
			return nil, fmt.Errorf("decoding persist for user %d: %w", id, err)
		}
		out = append(out, fields)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
