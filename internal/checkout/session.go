package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/food-checkout/internal/billing"
)

const maxSessionRetries = 5

// ErrSessionConflict is returned when concurrent writers keep invalidating a
// session update.
var ErrSessionConflict = errors.New("checkout: concurrent session update")

// Session is the caller's in-progress checkout.
type Session struct {
	State        State                  `json:"state"`
	RestaurantID string                 `json:"restaurantId,omitempty"`
	Experience   billing.ExperienceType `json:"experienceType,omitempty"`
	AddressID    string                 `json:"addressId,omitempty"`
	CouponCode   string                 `json:"couponCode,omitempty"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// Apply fires ev against the session state.
func (s *Session) Apply(ev Event) error {
	next, err := Transition(s.State, ev)
	if err != nil {
		return err
	}
	s.State = next
	return nil
}

// SessionStore keeps one session per user in Redis.
type SessionStore struct {
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (s *SessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func sessionKey(userID string) string { return "checkout:session:" + userID }

func (s *SessionStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return time.Hour
	}
	return s.TTL
}

func (s *SessionStore) ready() error {
	if s == nil || s.R == nil {
		return errors.New("checkout session store not configured")
	}
	return nil
}

// Load returns the stored session, or an idle one.
func (s *SessionStore) Load(ctx context.Context, userID string) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	return loadSession(ctx, s.R, userID)
}

// Update applies fn to the session with optimistic locking. When fn fails
// nothing is written.
func (s *SessionStore) Update(ctx context.Context, userID string, fn func(*Session) error) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	k := sessionKey(userID)
	var next Session
	txf := func(tx *redis.Tx) error {
		current, err := loadSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(&current); err != nil {
			return err
		}
		current.UpdatedAt = s.now()
		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl())
			return nil
		})
		if err == nil {
			next = current
		}
		return err
	}
	for i := 0; i < maxSessionRetries; i++ {
		err := s.R.Watch(ctx, txf, k)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Session{}, err
	}
	return Session{}, ErrSessionConflict
}

// Delete drops the user's session.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.R.Del(ctx, sessionKey(userID)).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadSession(ctx context.Context, r getter, userID string) (Session, error) {
	data, err := r.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{State: StateIdle}, nil
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.State == "" {
		sess.State = StateIdle
	}
	return sess, nil
}
