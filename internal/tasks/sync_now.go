package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/highlightsync/internal/entities"
)

// SyncTrigger runs one sync cycle synchronously.
type SyncTrigger interface {
	TriggerNow(ctx context.Context, trigger entities.SyncTrigger) (entities.SyncResult, error)
}

// SyncNowTask is a manual trigger that arrived while another cycle was in
// flight. It keeps failing, and backlite keeps retrying it, until the cycle
// lock frees up.
type SyncNowTask struct {
	RequestedAt time.Time `json:"requested_at"`
}

// Config returns the queue configuration for queued sync triggers.
func (t SyncNowTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_now",
		MaxAttempts: 20,
		Backoff:     30 * time.Second,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SyncNowProcessor creates a processor function for SyncNowTask.
func SyncNowProcessor(trigger SyncTrigger) backlite.QueueProcessor[SyncNowTask] {
	return func(ctx context.Context, task SyncNowTask) error {
		if trigger == nil {
			return fmt.Errorf("sync trigger not configured")
		}

		result, err := trigger.TriggerNow(ctx, entities.SyncTriggerQueued)
		if err != nil {
			// Returning the error makes backlite retry after the backoff.
			return fmt.Errorf("queued sync requested at %s: %w", task.RequestedAt.Format(time.RFC3339), err)
		}

		// The cycle outcome is recorded in the audit trail; a failed cycle is
		// retried by the schedule, not by the queue.
		log.Printf("[TASK] Queued sync cycle %s finished: %s", result.CycleID, result.Status)
		return nil
	}
}

// NewSyncNowQueue creates a backlite queue for queued sync triggers.
func NewSyncNowQueue(trigger SyncTrigger) backlite.Queue {
	return backlite.NewQueue(SyncNowProcessor(trigger))
}
