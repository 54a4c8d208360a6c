package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/pasarhq/backend-pasar/internal/inspect"
)

// Task type names consumed by the worker.
const (
	TaskCartChanges   = "cart:changes_notify"
	TaskAbandonedScan = "cart:abandoned_scan"
)

// ChangesPayload is the body of a change notification task.
type ChangesPayload struct {
	CartID          uuid.UUID                `json:"cartId"`
	DetectedChanges []inspect.DetectedChange `json:"detectedChanges"`
}

// NewCartChangesTask builds the task notifying a customer about freshly
// detected changes on their cart.
func NewCartChangesTask(cartID uuid.UUID, changes []inspect.DetectedChange) (*asynq.Task, error) {
	payload, err := json.Marshal(ChangesPayload{CartID: cartID, DetectedChanges: changes})
	if err != nil {
		return nil, fmt.Errorf("notify: encode changes payload: %w", err)
	}
	return asynq.NewTask(TaskCartChanges, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// AbandonedScanPayload carries the idle window for one abandoned-cart sweep.
type AbandonedScanPayload struct {
	IdleAfter time.Duration `json:"idleAfter"`
}

// NewAbandonedScanTask builds the periodic task flagging carts idle longer
// than the window.
func NewAbandonedScanTask(idleAfter time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(AbandonedScanPayload{IdleAfter: idleAfter})
	if err != nil {
		return nil, fmt.Errorf("notify: encode scan payload: %w", err)
	}
	return asynq.NewTask(TaskAbandonedScan, payload, asynq.MaxRetry(3)), nil
}
