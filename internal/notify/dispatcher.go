package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/pasarhq/backend-pasar/internal/events"
	"github.com/pasarhq/backend-pasar/internal/inspect"
)

// TaskEnqueuer is the slice of asynq.Client the dispatcher needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns domain events into background notification tasks. It
// implements events.Notifier, so the bus fans out to it after every emit.
type Dispatcher struct {
	Tasks TaskEnqueuer
}

// Notify enqueues a change notification for cart change events. Changes the
// customer has already been notified about are filtered out, so repeat
// inspections of an unchanged condition stay silent.
func (d Dispatcher) Notify(ctx context.Context, event events.Event) error {
	if d.Tasks == nil || event.Topic != events.TopicCartChangesDetected {
		return nil
	}
	var body struct {
		DetectedChanges []inspect.DetectedChange `json:"detectedChanges"`
	}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &body); err != nil {
			return fmt.Errorf("notify: decode event payload: %w", err)
		}
	}
	fresh := make([]inspect.DetectedChange, 0, len(body.DetectedChanges))
	for _, c := range body.DetectedChanges {
		if !c.NotifiedUser {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	task, err := NewCartChangesTask(event.AggregateID, fresh)
	if err != nil {
		return err
	}
	if _, err := d.Tasks.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify: enqueue changes task: %w", err)
	}
	return nil
}
