package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/pasarhq/backend-pasar/internal/events"
	"github.com/pasarhq/backend-pasar/internal/obs"
)

// AbandonMarker is the store slice the abandoned-cart sweep uses.
type AbandonMarker interface {
	MarkAbandonedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// Emitter publishes follow-up domain events from the worker.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Worker hosts the asynq task handlers.
type Worker struct {
	Log       zerolog.Logger
	Store     AbandonMarker
	Bus       Emitter
	IdleAfter time.Duration
	Now       func() time.Time
}

func (w *Worker) now() time.Time {
	if w != nil && w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Register attaches the handlers to an asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskCartChanges, w.HandleCartChanges)
	mux.HandleFunc(TaskAbandonedScan, w.HandleAbandonedScan)
}

// HandleCartChanges delivers one change notification. Delivery here is a log
// record; transport integrations hang off this handler.
func (w *Worker) HandleCartChanges(ctx context.Context, task *asynq.Task) error {
	var payload ChangesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("notify: decode changes task: %w", err)
	}
	for _, c := range payload.DetectedChanges {
		w.Log.Info().
			Str("cart_id", payload.CartID.String()).
			Str("change_type", string(c.Type)).
			Str("message", c.Message).
			Msg("cart change notification")
	}
	return nil
}

// HandleAbandonedScan flags carts idle beyond the window and emits an
// abandonment event per flagged cart.
func (w *Worker) HandleAbandonedScan(ctx context.Context, task *asynq.Task) error {
	if w.Store == nil {
		return fmt.Errorf("notify: store not configured")
	}
	idle := w.IdleAfter
	var payload AbandonedScanPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("notify: decode scan task: %w", err)
		}
		if payload.IdleAfter > 0 {
			idle = payload.IdleAfter
		}
	}
	if idle <= 0 {
		idle = 72 * time.Hour
	}

	cutoff := w.now().Add(-idle)
	ids, err := w.Store.MarkAbandonedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if w.Bus != nil {
			if _, err := w.Bus.Emit(ctx, events.TopicCartAbandoned, id, nil); err != nil {
				w.Log.Warn().Err(err).Str("cart_id", id.String()).Msg("abandoned event emit failed")
			}
		}
	}
	if len(ids) > 0 {
		if obs.CartsAbandonedTotal != nil {
			obs.CartsAbandonedTotal.Add(float64(len(ids)))
		}
		w.Log.Info().Int("count", len(ids)).Time("cutoff", cutoff).Msg("carts flagged abandoned")
	}
	return nil
}
