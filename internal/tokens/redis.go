package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "fieldalert:token:"

// RedisConfig captures connection parameters for the Redis token store.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	Timeout  time.Duration
	TTL      time.Duration
}

// RedisStore implements Store using Redis. Tokens are written with an optional
// TTL so registrations from retired accounts age out on their own.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, errors.New("tokens: redis address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tokens: redis ping: %w", err)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// Lookup returns the token stored for the supplied user.
func (s *RedisStore) Lookup(ctx context.Context, userID string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, errors.New("tokens: redis store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	value, err := s.client.Get(ctx, tokenKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tokens: redis get: %w", err)
	}
	return value, value != "", nil
}

// Save registers or replaces the token for the supplied user.
func (s *RedisStore) Save(ctx context.Context, userID, token, platform string) error {
	if s == nil || s.client == nil {
		return errors.New("tokens: redis store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("tokens: token is required")
	}

	if err := s.client.Set(ctx, tokenKey(userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("tokens: redis set: %w", err)
	}
	return nil
}

// Delete removes the registration for the supplied user.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if s == nil || s.client == nil {
		return errors.New("tokens: redis store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.client.Del(ctx, tokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("tokens: redis del: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func tokenKey(userID string) string {
	return tokenKeyPrefix + strings.TrimSpace(userID)
}
