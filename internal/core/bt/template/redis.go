package template

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Index scores for entries that never expire (2100-01-01).
const neverExpires = 4102444800

// RedisStore keeps templates as JSON strings and tracks names in a sorted set
// scored by expiry, which lets List drop names whose key has expired.
type RedisStore struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL expires saved templates. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

func NewRedisStore(client backend.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "btcore:template:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(name string) string { return s.prefix + name }

func (s *RedisStore) indexKey() string { return s.prefix + "index" }

func (s *RedisStore) Save(ctx context.Context, t *Template) error {
	data, err := encode(t)
	if err != nil {
		return err
	}

	score := float64(neverExpires)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}
	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.key(t.Name), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: t.Name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save template %s: %w", t.Name, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, name string) (*Template, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	return decodeStored(name, data)
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	var del *backend.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		del = pipe.Del(ctx, s.key(name))
		pipe.ZRem(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete template %s: %w", name, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("prune template index: %w", err)
	}
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	slices.Sort(names)
	return names, nil
}
