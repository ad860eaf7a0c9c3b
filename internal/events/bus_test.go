package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/food-checkout/internal/events"
)

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

func newStore(t *testing.T) (events.RedisStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return events.RedisStore{R: rdb}, rdb
}

func TestEmitAppendsToStream(t *testing.T) {
	store, rdb := newStore(t)
	notifier := &captureNotifier{}
	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}, Now: func() time.Time { return fixed }}

	ev, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "user-1", map[string]any{"orderId": "o-1"})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.NotEmpty(t, ev.StreamID)
	require.Equal(t, fixed, ev.OccurredAt)
	require.Len(t, notifier.events, 1)

	msgs, err := rdb.XRange(context.Background(), events.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, events.TopicOrderPlaced, msgs[0].Values["topic"])
	require.Equal(t, "user-1", msgs[0].Values["aggregate_id"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &payload))
	require.Equal(t, "o-1", payload["orderId"])
}

func TestEmitValidatesInput(t *testing.T) {
	store, _ := newStore(t)
	bus := &events.Bus{Store: store}

	_, err := bus.Emit(context.Background(), " ", "user-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderFailed, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderFailed, "user-1", json.RawMessage(`{bad`))
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicOrderFailed, "user-1", nil)
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	store, _ := newStore(t)
	boom := errors.New("boom")
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{&captureNotifier{err: boom}, events.LogNotifier{}}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderFailed, "user-1", nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, json.RawMessage("{}"), ev.Payload)
}
