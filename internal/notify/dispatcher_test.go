package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pasarhq/backend-pasar/internal/events"
	"github.com/pasarhq/backend-pasar/internal/inspect"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func changesEvent(t *testing.T, cartID uuid.UUID, changes []inspect.DetectedChange) events.Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"detectedChanges": changes})
	require.NoError(t, err)
	return events.Event{
		ID:          uuid.New(),
		Topic:       events.TopicCartChangesDetected,
		AggregateID: cartID,
		Payload:     payload,
	}
}

func TestDispatcherEnqueuesFreshChangesOnly(t *testing.T) {
	enq := &stubEnqueuer{}
	d := Dispatcher{Tasks: enq}
	cartID := uuid.New()

	ev := changesEvent(t, cartID, []inspect.DetectedChange{
		{Type: inspect.ChangeLimitedStock, Message: "clamped", NotifiedUser: false},
		{Type: inspect.ChangeNoStock, Message: "sold out", NotifiedUser: true},
	})
	require.NoError(t, d.Notify(context.Background(), ev))
	require.Len(t, enq.tasks, 1)

	var payload ChangesPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, cartID, payload.CartID)
	require.Len(t, payload.DetectedChanges, 1)
	require.Equal(t, inspect.ChangeLimitedStock, payload.DetectedChanges[0].Type)
}

func TestDispatcherSkipsFullyNotifiedEvents(t *testing.T) {
	enq := &stubEnqueuer{}
	d := Dispatcher{Tasks: enq}

	ev := changesEvent(t, uuid.New(), []inspect.DetectedChange{
		{Type: inspect.ChangeNoStock, NotifiedUser: true},
	})
	require.NoError(t, d.Notify(context.Background(), ev))
	require.Empty(t, enq.tasks)
}

func TestDispatcherIgnoresOtherTopics(t *testing.T) {
	enq := &stubEnqueuer{}
	d := Dispatcher{Tasks: enq}

	err := d.Notify(context.Background(), events.Event{
		Topic:       events.TopicCartUpdated,
		AggregateID: uuid.New(),
	})
	require.NoError(t, err)
	require.Empty(t, enq.tasks)
}

type stubMarker struct {
	cutoff time.Time
	ids    []uuid.UUID
}

func (s *stubMarker) MarkAbandonedBefore(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.cutoff = cutoff
	return s.ids, nil
}

type stubEmitter struct {
	emitted []uuid.UUID
}

func (s *stubEmitter) Emit(_ context.Context, topic string, aggregateID uuid.UUID, _ any) (events.Event, error) {
	s.emitted = append(s.emitted, aggregateID)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func TestAbandonedScanFlagsAndEmits(t *testing.T) {
	marker := &stubMarker{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	bus := &stubEmitter{}
	now := time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)
	w := &Worker{
		Log:       zerolog.Nop(),
		Store:     marker,
		Bus:       bus,
		IdleAfter: 48 * time.Hour,
		Now:       func() time.Time { return now },
	}

	task, err := NewAbandonedScanTask(0)
	require.NoError(t, err)
	require.NoError(t, w.HandleAbandonedScan(context.Background(), task))

	require.Equal(t, now.Add(-48*time.Hour), marker.cutoff)
	require.Equal(t, marker.ids, bus.emitted)
}

func TestCartChangesHandlerDecodesPayload(t *testing.T) {
	w := &Worker{Log: zerolog.Nop()}
	task, err := NewCartChangesTask(uuid.New(), []inspect.DetectedChange{
		{Type: inspect.ChangePriceReduced, Message: "cheaper now"},
	})
	require.NoError(t, err)
	require.NoError(t, w.HandleCartChanges(context.Background(), task))

	require.Error(t, w.HandleCartChanges(context.Background(),
		asynq.NewTask(TaskCartChanges, []byte("{broken"))))
}
