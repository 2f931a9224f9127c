// Package database provides the data access layer for the sync service.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── settings/        # Runtime settings and the database cursor rows
//	├── audit/           # Sync cycle audit trail
//	└── ledger/          # Delivered-item ledger used for deduplication
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./highlightsync.db")
//
//	settingsRepo := settings.NewRepository(db.DB)
//	auditRepo := audit.NewRepository(db.DB)
//	ledgerRepo := ledger.NewRepository(db.DB)
//
// # Interface Implementations
//
//   - settings.Repository: backs settingsstore.SettingsRepository and cursor.DatabaseStore
//   - audit.Repository: implements audit.Repository (service side) and http.AuditReader
//   - ledger.Repository: implements engine.Ledger
package database
