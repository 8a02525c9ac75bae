package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBindingNotFound indicates no CSRF binding exists for (user, token).
var ErrBindingNotFound = errors.New("auth: csrf binding not found")

// BindingStore persists the server side of the CSRF double-submit defense:
// a revocable secret keyed by (user id, csrf token). Multiple concurrent
// bindings per user are valid (one per device or tab).
type BindingStore interface {
	Put(ctx context.Context, userID int64, token, secret string, ttl time.Duration) error
	Get(ctx context.Context, userID int64, token string) (string, error)
	Delete(ctx context.Context, userID int64, token string) error
}

// RedisBindingStore implements BindingStore on Redis. Bindings carry a TTL
// equal to the access token lifetime, so a binding can never outlive the
// token that references it.
type RedisBindingStore struct {
	client *redis.Client
}

// NewRedisBindingStore constructs a RedisBindingStore.
func NewRedisBindingStore(client *redis.Client) *RedisBindingStore {
	return &RedisBindingStore{client: client}
}

func (s *RedisBindingStore) Put(ctx context.Context, userID int64, token, secret string, ttl time.Duration) error {
	return s.client.Set(ctx, bindingKey(userID, token), secret, ttl).Err()
}

func (s *RedisBindingStore) Get(ctx context.Context, userID int64, token string) (string, error) {
	secret, err := s.client.Get(ctx, bindingKey(userID, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrBindingNotFound
		}
		return "", err
	}
	return secret, nil
}

func (s *RedisBindingStore) Delete(ctx context.Context, userID int64, token string) error {
	err := s.client.Del(ctx, bindingKey(userID, token)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func bindingKey(userID int64, token string) string {
	return "csrf:" + strconv.FormatInt(userID, 10) + ":" + token
}

var _ BindingStore = (*RedisBindingStore)(nil)
