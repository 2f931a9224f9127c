package settingsstore

import (
	"fmt"
	"strconv"

	"github.com/mrlokans/highlightsync/internal/entities"
)

const (
	EnvSyncEnabled  = "SYNC_ENABLED"
	EnvSyncSchedule = "SYNC_SCHEDULE"
	EnvSyncDaysBack = "SYNC_DAYS_BACK"

	DefaultSyncEnabled  = true
	DefaultSyncSchedule = "@every 1h"
	DefaultLookbackDays = 7

	MaxLookbackDays = 3650
)

// SyncConfig is the effective runtime configuration of the scheduler.
type SyncConfig struct {
	Enabled      bool   `json:"enabled"`
	Schedule     string `json:"schedule"`
	LookbackDays int    `json:"lookback_days"`
}

// SyncConfigInfo includes source information for each field
type SyncConfigInfo struct {
	Enabled       bool   `json:"enabled"`
	EnabledSource string `json:"enabled_source"` // "database", "environment", "default"

	Schedule            string `json:"schedule"`
	ScheduleSource      string `json:"schedule_source"`
	ScheduleDescription string `json:"schedule_description"`

	LookbackDays       int    `json:"lookback_days"`
	LookbackDaysSource string `json:"lookback_days_source"`
}

// GetSyncEnabled returns whether scheduled sync is enabled (database > env > default)
func (s *SettingsStore) GetSyncEnabled() bool {
	value, source := s.lookup(entities.SettingKeySyncEnabled, EnvSyncEnabled)
	if source == SourceDefault {
		return DefaultSyncEnabled
	}
	return parseBool(value)
}

func (s *SettingsStore) GetSyncEnabledSource() string {
	_, source := s.lookup(entities.SettingKeySyncEnabled, EnvSyncEnabled)
	return source
}

func (s *SettingsStore) SetSyncEnabled(enabled bool) error {
	return s.db.SetSetting(entities.SettingKeySyncEnabled, strconv.FormatBool(enabled))
}

// GetSyncSchedule returns the cron schedule (database > env > default)
func (s *SettingsStore) GetSyncSchedule() string {
	value, source := s.lookup(entities.SettingKeySyncSchedule, EnvSyncSchedule)
	if source == SourceDefault {
		return DefaultSyncSchedule
	}
	return value
}

func (s *SettingsStore) GetSyncScheduleSource() string {
	_, source := s.lookup(entities.SettingKeySyncSchedule, EnvSyncSchedule)
	return source
}

// SetSyncSchedule validates and saves the schedule.
func (s *SettingsStore) SetSyncSchedule(schedule string) error {
	if err := ValidateCronSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s.db.SetSetting(entities.SettingKeySyncSchedule, schedule)
}

// GetLookbackDays returns how far back a first run looks (database > env >
// default). Unparsable values fall back to the default.
func (s *SettingsStore) GetLookbackDays() int {
	value, source := s.lookup(entities.SettingKeySyncLookbackDays, EnvSyncDaysBack)
	if source == SourceDefault {
		return DefaultLookbackDays
	}
	days, err := strconv.Atoi(value)
	if err != nil || days < 0 {
		return DefaultLookbackDays
	}
	return days
}

func (s *SettingsStore) GetLookbackDaysSource() string {
	_, source := s.lookup(entities.SettingKeySyncLookbackDays, EnvSyncDaysBack)
	return source
}

func (s *SettingsStore) SetLookbackDays(days int) error {
	if err := ValidateLookbackDays(days); err != nil {
		return err
	}
	return s.db.SetSetting(entities.SettingKeySyncLookbackDays, strconv.Itoa(days))
}

// GetSyncConfig returns the effective configuration
func (s *SettingsStore) GetSyncConfig() SyncConfig {
	return SyncConfig{
		Enabled:      s.GetSyncEnabled(),
		Schedule:     s.GetSyncSchedule(),
		LookbackDays: s.GetLookbackDays(),
	}
}

// GetSyncConfigInfo returns the configuration with source information
func (s *SettingsStore) GetSyncConfigInfo() SyncConfigInfo {
	schedule := s.GetSyncSchedule()
	return SyncConfigInfo{
		Enabled:             s.GetSyncEnabled(),
		EnabledSource:       s.GetSyncEnabledSource(),
		Schedule:            schedule,
		ScheduleSource:      s.GetSyncScheduleSource(),
		ScheduleDescription: GetCronDescription(schedule),
		LookbackDays:        s.GetLookbackDays(),
		LookbackDaysSource:  s.GetLookbackDaysSource(),
	}
}

// ClearSyncSettings clears all database overrides, reverting to env/default
func (s *SettingsStore) ClearSyncSettings() error {
	return s.clear(
		entities.SettingKeySyncEnabled,
		entities.SettingKeySyncSchedule,
		entities.SettingKeySyncLookbackDays,
	)
}

// ValidateLookbackDays checks days against [0, MaxLookbackDays].
func ValidateLookbackDays(days int) error {
	if days < 0 || days > MaxLookbackDays {
		return fmt.Errorf("lookback days must be between 0 and %d", MaxLookbackDays)
	}
	return nil
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}
