package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/gofrs/flock"

	"github.com/mrlokans/highlightsync/internal/audit"
	"github.com/mrlokans/highlightsync/internal/capacities"
	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/database"
	auditrepo "github.com/mrlokans/highlightsync/internal/database/audit"
	"github.com/mrlokans/highlightsync/internal/database/ledger"
	"github.com/mrlokans/highlightsync/internal/database/settings"
	"github.com/mrlokans/highlightsync/internal/delivery"
	"github.com/mrlokans/highlightsync/internal/engine"
	"github.com/mrlokans/highlightsync/internal/http"
	"github.com/mrlokans/highlightsync/internal/readwise"
	"github.com/mrlokans/highlightsync/internal/scheduler"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
	"github.com/mrlokans/highlightsync/internal/tasks"
	"github.com/mrlokans/highlightsync/internal/twos"
)

// =============================================================================
// Sync Pipeline
// =============================================================================

// Source implementations
var _ engine.Source = (*readwise.Source)(nil)

// Destination implementations
var _ delivery.Client = (*twos.Client)(nil)
var _ delivery.Client = (*capacities.Client)(nil)

// Delivered-item ledger
var _ engine.Ledger = (*ledger.Repository)(nil)

// Cursor stores
var _ cursor.Store = (*cursor.FileStore)(nil)
var _ cursor.Store = (*cursor.DatabaseStore)(nil)
var _ cursor.Resetter = (*cursor.FileStore)(nil)
var _ cursor.Resetter = (*cursor.DatabaseStore)(nil)
var _ cursor.SettingsRepository = (*settings.Repository)(nil)

// =============================================================================
// Scheduling
// =============================================================================

var _ scheduler.Runner = (*engine.Engine)(nil)
var _ scheduler.SyncSettings = (*settingsstore.SettingsStore)(nil)
var _ scheduler.CycleRecorder = (*audit.Service)(nil)
var _ scheduler.ReportWriter = (*audit.Auditor)(nil)
var _ scheduler.ProcessLock = (*flock.Flock)(nil)
var _ settingsstore.SettingsRepository = (*settings.Repository)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ tasks.SyncTrigger = (*scheduler.Scheduler)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.LedgerCleaner = (*ledger.Repository)(nil)
var _ audit.Repository = (*auditrepo.Repository)(nil)

// =============================================================================
// HTTP
// =============================================================================

var _ http.HealthStore = (*database.Database)(nil)
var _ http.SyncScheduler = (*scheduler.Scheduler)(nil)
var _ http.SyncQueue = (*tasks.Client)(nil)
var _ http.SyncSettingsStore = (*settingsstore.SettingsStore)(nil)
var _ http.SettingsAuditor = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
