package reference

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scriba-app/transcribe-backend/internal/shared"
)

// Text is a curated reference transcript that readers record against.
type Text struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Language  string    `json:"language,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func redisKey(key string) string { return "reference:" + key }

type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) Get(ctx context.Context, key string) (*Text, error) {
	data, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var text Text
	if err := json.Unmarshal(data, &text); err != nil {
		return nil, err
	}
	return &text, nil
}

func (s *Store) Put(ctx context.Context, text *Text) error {
	text.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(text)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, redisKey(text.Key), data, 0)
	pipe.SAdd(ctx, "reference_keys", text.Key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.redis.Del(ctx, redisKey(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return shared.ErrNotFound
	}
	return s.redis.SRem(ctx, "reference_keys", key).Err()
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.redis.SMembers(ctx, "reference_keys").Result()
}
