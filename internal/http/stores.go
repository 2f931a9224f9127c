package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/database"
	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/scheduler"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
)

// Each controller depends on the narrow interface it needs; the concrete
// implementations live in scheduler, settingsstore, audit, tasks and cursor.

// SyncScheduler is the scheduler surface used by the API.
type SyncScheduler interface {
	Status() scheduler.Status
	RunNow(trigger entities.SyncTrigger) error
	Reschedule() error
	IsRunning() bool
}

// SyncQueue accepts manual triggers that arrive while a cycle runs.
type SyncQueue interface {
	EnqueueSync(ctx context.Context) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// SyncSettingsStore reads and writes runtime sync settings.
type SyncSettingsStore interface {
	GetSyncConfigInfo() settingsstore.SyncConfigInfo
	GetLookbackDays() int
	SetSyncEnabled(enabled bool) error
	SetSyncSchedule(schedule string) error
	SetLookbackDays(days int) error
	ClearSyncSettings() error
}

// SettingsAuditor records settings and cursor changes.
type SettingsAuditor interface {
	LogSettings(action, description string)
}

// AuditReader provides paginated access to audit events.
type AuditReader interface {
	GetEvents(limit, offset int) ([]entities.AuditEvent, int64, error)
	GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// HealthStore checks database connectivity and reports row counts.
type HealthStore interface {
	Ping(ctx context.Context) error
	GetStats() (database.Stats, error)
}

// CursorReader reads the stored cursor.
type CursorReader = cursor.Reader
