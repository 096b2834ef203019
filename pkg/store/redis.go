package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/observability"
)

const (
	backendRedis       = "redis"
	defaultRedisPrefix = "shapeserial:doc:"
)

// RedisOptions configures a [RedisStore].
type RedisOptions struct {
	Addr     string
	DB       int
	Password string
	// Prefix namespaces keys. Defaults to "shapeserial:doc:".
	Prefix string
	// TTL is the expiry set on every Put. Zero keeps documents.
	TTL time.Duration
	// Compress stores payloads zstd-compressed.
	Compress bool
}

// RedisStore keeps each document as one JSON string value.
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})
	ping := func() error { return markRetryable(client.Ping(ctx).Err()) }
	if err := retryWithBackoff(ctx, ping); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect to redis at %s", opts.Addr)
	}
	return &RedisStore{client: client, opts: opts}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := errors.ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.opts.Prefix+key).Bytes()
	if err == redis.Nil {
		observability.Store().OnStoreMiss(ctx, backendRedis)
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "redis get %q", key)
	}
	doc, _, err := decodeEntry(data)
	if err != nil {
		return nil, err
	}
	observability.Store().OnStoreHit(ctx, backendRedis)
	return doc, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, doc *Document) error {
	if err := checkDocument(doc); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	// Redis expires the key itself.
	data, err := encodeEntry(doc, s.opts.Compress, 0)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.opts.Prefix+doc.Key, data, s.opts.TTL).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "redis set %q", doc.Key)
	}
	observability.Store().OnStorePut(ctx, backendRedis, len(data))
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := errors.ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.opts.Prefix+key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "redis del %q", key)
	}
	return nil
}

// List implements Store using SCAN, so it never blocks the server.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.opts.Prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.opts.Prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "redis scan")
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
