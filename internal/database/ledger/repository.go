// Package ledger records highlights that already reached a destination so a
// re-fetched highlight is not posted twice.
package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/highlightsync/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Has reports whether key was recorded as delivered.
func (r *Repository) Has(ctx context.Context, key string) (bool, error) {
	var item entities.DeliveredItem
	err := r.db.WithContext(ctx).Select("id").Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record stores a delivered item. Recording the same key twice is a no-op.
func (r *Repository) Record(ctx context.Context, item *entities.DeliveredItem) error {
	if item.DeliveredAt.IsZero() {
		item.DeliveredAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(item).Error
}

// Count returns the number of recorded deliveries.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entities.DeliveredItem{}).Count(&total).Error
	return total, err
}

// DeleteOlderThan prunes ledger rows delivered before cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("delivered_at < ?", cutoff).Delete(&entities.DeliveredItem{})
	return result.RowsAffected, result.Error
}
