package http

// RouterConfig contains all dependencies needed to create the HTTP router.
// Optional dependencies may be nil; their routes then answer 503 or are
// left out.
type RouterConfig struct {
	Database  HealthStore
	Scheduler SyncScheduler
	Settings  SyncSettingsStore
	Cursors   CursorReader
	Audit     AuditReader
	Auditor   SettingsAuditor

	// TaskQueue queues manual triggers while a cycle is running. When nil a
	// busy trigger is answered with 409.
	TaskQueue SyncQueue

	// CursorBackend is reported by the cursor endpoint ("file" or "database").
	CursorBackend string

	// Destination is the configured destination name.
	Destination string

	Version string
}
