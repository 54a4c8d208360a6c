package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pasarhq/backend-pasar/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastAggID   uuid.UUID
	lastPayload []byte
	err         error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.lastTopic = topic
	s.lastAggID = aggregateID
	s.lastPayload = payload
	return events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
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
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	cartID := uuid.New()
	payload := map[string]any{"grandTotal": 12345}

	ev, err := bus.Emit(context.Background(), events.TopicCartUpdated, cartID, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicCartUpdated, ev.Topic)
	require.Equal(t, cartID, ev.AggregateID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(store.lastPayload, &decoded))
	require.EqualValues(t, 12345, decoded["grandTotal"])

	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, notifier.events[0].ID)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicCartUpdated, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicCartUpdated, uuid.New(), "{not json")
	require.Error(t, err)
}

func TestEmitNilPayloadBecomesEmptyObject(t *testing.T) {
	store := &stubStore{}
	bus := &events.Bus{Store: store}

	_, err := bus.Emit(context.Background(), events.TopicCartAbandoned, uuid.New(), nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(store.lastPayload))
}

func TestEmitNotifierFailureDoesNotDropEvent(t *testing.T) {
	store := &stubStore{}
	failing := &captureNotifier{err: errors.New("boom")}
	ok := &captureNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{failing, ok}}

	ev, err := bus.Emit(context.Background(), events.TopicCartChangesDetected, uuid.New(), nil)
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.Len(t, ok.events, 1)
}
