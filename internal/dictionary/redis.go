package dictionary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that holds dictionary entries when no key is
// configured.
const DefaultRedisKey = "metavoices:dictionary"

// RedisClient is the subset of the go-redis API used by [RedisSource].
// *redis.Client, *redis.ClusterClient and *redis.Ring all satisfy it.
type RedisClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisSource is a [Source] backed by a Redis hash. Each field is a
// lowercase word and each value the JSON encoding of its [Entry]. The Word
// stored inside the JSON is ignored in favour of the field name.
type RedisSource struct {
	client RedisClient
	key    string
}

var _ WritableSource = (*RedisSource)(nil)

// NewRedisSource creates a [RedisSource] reading the hash at key. An empty
// key selects [DefaultRedisKey].
func NewRedisSource(client RedisClient, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Name implements [Source].
func (s *RedisSource) Name() string { return "redis" }

// Load implements [Source].
func (s *RedisSource) Load(ctx context.Context) ([]Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("dictionary: redis hgetall %q: %w", s.key, err)
	}

	entries := make([]Entry, 0, len(fields))
	for word, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("dictionary: redis field %q: %w", word, err)
		}
		e.Word = word
		entries = append(entries, e)
	}
	return entries, nil
}

// Upsert validates e and stores it in the hash under its lowercase key,
// replacing any previous value.
func (s *RedisSource) Upsert(ctx context.Context, e Entry) error {
	e = e.clone()
	e.Word = Key(e.Word)
	if err := Validate(e); err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("dictionary: marshal %q: %w", e.Word, err)
	}
	if err := s.client.HSet(ctx, s.key, e.Word, string(raw)).Err(); err != nil {
		return fmt.Errorf("dictionary: redis hset %q: %w", e.Word, err)
	}
	return nil
}

// Delete removes word from the hash. Deleting an unknown word is not an
// error.
func (s *RedisSource) Delete(ctx context.Context, word string) error {
	if err := s.client.HDel(ctx, s.key, Key(word)).Err(); err != nil {
		return fmt.Errorf("dictionary: redis hdel %q: %w", word, err)
	}
	return nil
}

// Ping checks connectivity to the Redis server.
func (s *RedisSource) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("dictionary: redis ping: %w", err)
	}
	return nil
}
