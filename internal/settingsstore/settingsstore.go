package settingsstore

import (
	"errors"
	"os"

	"gorm.io/gorm"

	"github.com/mrlokans/highlightsync/internal/entities"
)

const (
	SourceDatabase    = "database"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// SettingsRepository is implemented by database/settings.Repository.
type SettingsRepository interface {
	GetSetting(key string) (*entities.Setting, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// Priority: database > environment > default
type SettingsStore struct {
	db SettingsRepository
}

func New(db SettingsRepository) *SettingsStore {
	return &SettingsStore{db: db}
}

// lookup resolves key through the database and then the environment
// variable envKey. It returns the raw value and where it came from; an empty
// value means the default applies.
func (s *SettingsStore) lookup(key, envKey string) (string, string) {
	setting, err := s.db.GetSetting(key)
	if err == nil && setting.Value != "" {
		return setting.Value, SourceDatabase
	}

	if envVal := os.Getenv(envKey); envVal != "" {
		return envVal, SourceEnvironment
	}

	return "", SourceDefault
}

func (s *SettingsStore) clear(keys ...string) error {
	for _, key := range keys {
		err := s.db.DeleteSetting(key)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return nil
}
