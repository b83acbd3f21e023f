package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// OAuth state tokens are short-lived. A connect flow abandoned for longer
// than this has to start over.
const stateTTL = 10 * time.Minute

// ErrStateNotFound is returned when a callback presents a state token that
// was never issued, already used, or expired.
var ErrStateNotFound = errors.New("oauth state not found or expired")

// StateStore persists single-use OAuth state tokens between the authorize
// redirect and the provider callback.
type StateStore interface {
	// Put stores the state token mapped to its payload (the user and
	// provider the flow was started for).
	Put(ctx context.Context, state, payload string) error

	// Take retrieves and deletes the payload for a state token. A second
	// call with the same token returns ErrStateNotFound.
	Take(ctx context.Context, state string) (string, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// redisStateStore implements StateStore on Redis, using key TTLs for
// expiry and GETDEL for single use.
type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a StateStore backed by the given Redis server.
func NewRedisStateStore(addr, password string, db int) StateStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisStateStore{client: client}
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}

func (s *redisStateStore) Put(ctx context.Context, state, payload string) error {
	return s.client.Set(ctx, stateKey(state), payload, stateTTL).Err()
}

func (s *redisStateStore) Take(ctx context.Context, state string) (string, error) {
	payload, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", err
	}
	return payload, nil
}

func (s *redisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
