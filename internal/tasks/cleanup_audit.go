package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// AuditEventCleaner provides the ability to delete old audit events.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// LedgerCleaner prunes old entries from the delivered-item ledger.
type LedgerCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupAuditEventsTask removes audit events older than the configured
// retention period. When LedgerRetentionDays is set, delivered-item ledger
// entries older than that are pruned too.
type CleanupAuditEventsTask struct {
	RetentionDays       int `json:"retention_days"`
	LedgerRetentionDays int `json:"ledger_retention_days,omitempty"`
}

// Config returns the queue configuration for audit cleanup tasks.
func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditEventsProcessor creates a processor function for CleanupAuditEventsTask.
// ledger may be nil.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner, ledger LedgerCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		retention := days(retentionDays)

		deleted, err := cleaner.DeleteOldEvents(retention)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}
		log.Printf("[TASK] Cleaned up %d audit events older than %d days", deleted, retentionDays)

		if ledger == nil || task.LedgerRetentionDays <= 0 {
			return nil
		}

		cutoff := time.Now().Add(-days(task.LedgerRetentionDays))
		pruned, err := ledger.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune delivered items: %w", err)
		}
		log.Printf("[TASK] Pruned %d delivered items older than %d days", pruned, task.LedgerRetentionDays)
		return nil
	}
}

// NewCleanupAuditEventsQueue creates a backlite queue for audit cleanup tasks.
func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner, ledger LedgerCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner, ledger))
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
