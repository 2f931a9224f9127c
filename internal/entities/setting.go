package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Cursor store
	SettingKeySyncCursor       = "sync_cursor"
	SettingKeySyncCursorSchema = "sync_cursor_schema"

	// Sync schedule settings
	SettingKeySyncEnabled      = "sync_enabled"
	SettingKeySyncSchedule     = "sync_schedule"
	SettingKeySyncLookbackDays = "sync_lookback_days"
)
