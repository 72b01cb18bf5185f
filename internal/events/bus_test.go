package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/funroad-api/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, payload []byte) error {
	s.lastTopic = topic
	s.lastPayload = payload
	return nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
	}

	payload := map[string]any{"sessionId": "cs_123"}
	event, err := bus.Emit(context.Background(), events.TopicCheckoutCompleted, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicCheckoutCompleted, store.lastTopic)
	require.JSONEq(t, `{"sessionId":"cs_123"}`, string(store.lastPayload))
	require.Len(t, notifier.events, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "cs_123", decoded["sessionId"])
}

func TestEmitNotifierFailureDoesNotStopFanout(t *testing.T) {
	store := &stubStore{}
	failing := &captureNotifier{err: errors.New("cache down")}
	second := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{failing, second},
	}

	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, nil)
	require.Error(t, err)
	require.Len(t, failing.events, 1)
	require.Len(t, second.events, 1, "remaining notifiers still run")
	require.Equal(t, "{}", string(store.lastPayload))
}

func TestEmitRejectsEmptyTopic(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), "  ", nil)
	require.Error(t, err)
}
