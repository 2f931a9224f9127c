package cursor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/highlightsync/internal/entities"
)

// SettingsRepository is the subset of the settings repository the database
// store needs.
type SettingsRepository interface {
	GetSetting(key string) (*entities.Setting, error)
	SetSettings(values map[string]string) error
	DeleteSettings(keys ...string) error
}

// DatabaseStore keeps the cursor in the settings table.
type DatabaseStore struct {
	repo SettingsRepository
}

var _ Store = (*DatabaseStore)(nil)

func NewDatabaseStore(repo SettingsRepository) *DatabaseStore {
	return &DatabaseStore{repo: repo}
}

func (s *DatabaseStore) Read(_ context.Context) (time.Time, error) {
	setting, err := s.repo.GetSetting(entities.SettingKeySyncCursor)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNoCursor
	}
	if err != nil {
		return time.Time{}, &StoreError{Op: "read", Err: err}
	}

	if schema, err := s.repo.GetSetting(entities.SettingKeySyncCursorSchema); err == nil {
		version, convErr := strconv.Atoi(schema.Value)
		if convErr != nil {
			return time.Time{}, &StoreError{Op: "decode", Err: fmt.Errorf("invalid schema version %q", schema.Value)}
		}
		if version > SchemaVersion {
			return time.Time{}, &StoreError{Op: "decode", Err: fmt.Errorf("%w %d", ErrUnsupportedSchema, version)}
		}
	}

	cursor, err := parseTimestamp(setting.Value)
	if err != nil {
		return time.Time{}, &StoreError{Op: "decode", Err: err}
	}
	return cursor, nil
}

// Write stores the cursor and its schema marker in one transaction.
func (s *DatabaseStore) Write(_ context.Context, cursor time.Time) error {
	err := s.repo.SetSettings(map[string]string{
		entities.SettingKeySyncCursor:       cursor.UTC().Format(time.RFC3339Nano),
		entities.SettingKeySyncCursorSchema: strconv.Itoa(SchemaVersion),
	})
	if err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	return nil
}

// Reset removes the stored cursor so the next cycle starts from the lookback
// window.
func (s *DatabaseStore) Reset(_ context.Context) error {
	if err := s.repo.DeleteSettings(entities.SettingKeySyncCursor, entities.SettingKeySyncCursorSchema); err != nil {
		return &StoreError{Op: "reset", Err: err}
	}
	return nil
}
