package config

const (
	// DefaultDatabasePath is the default path for the application database
	DefaultDatabasePath = "./highlightsync.db"

	// DefaultCursorFile is the default path of the file cursor backend.
	// It keeps the name the original command-line tool used.
	DefaultCursorFile = "last_sync.json"

	// DefaultEnvFile is loaded when present and ENV_FILE is unset.
	DefaultEnvFile = ".env"
)

// Destinations
const (
	DestinationTwos       = "twos"
	DestinationCapacities = "capacities"
)

// Cursor backends
const (
	CursorBackendFile     = "file"
	CursorBackendDatabase = "database"
)
