package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// ErrConflict is returned when concurrent writers keep invalidating an update.
var ErrConflict = errors.New("cart: concurrent update conflict")

// Store persists one cart per user in Redis as JSON.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func key(userID string) string { return "cart:" + userID }

// Load returns the user's cart, or an empty cart when none is stored.
func (s *Store) Load(ctx context.Context, userID string) (State, error) {
	if s == nil || s.R == nil {
		return State{}, errors.New("cart store not configured")
	}
	return load(ctx, s.R, userID)
}

// Update applies fn to the stored cart with optimistic locking and saves the
// result. fn may run more than once when another writer races it.
func (s *Store) Update(ctx context.Context, userID string, fn func(State) State) (State, error) {
	if s == nil || s.R == nil {
		return State{}, errors.New("cart store not configured")
	}
	k := key(userID)
	var next State
	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx, userID)
		if err != nil {
			return err
		}
		next = fn(current)
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(next.Items) == 0 {
				pipe.Del(ctx, k)
				return nil
			}
			pipe.Set(ctx, k, data, s.ttl())
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.R.Watch(ctx, txf, k)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return State{}, err
	}
	return State{}, ErrConflict
}

// Clear removes the user's cart.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if s == nil || s.R == nil {
		return errors.New("cart store not configured")
	}
	return s.R.Del(ctx, key(userID)).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, r getter, userID string) (State, error) {
	data, err := r.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{Items: []LineItem{}}, nil
		}
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode cart: %w", err)
	}
	if st.Items == nil {
		st.Items = []LineItem{}
	}
	return st, nil
}
