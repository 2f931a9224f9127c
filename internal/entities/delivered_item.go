package entities

import "time"

// DeliveredItem records a highlight text that already reached the destination.
// Key is a content hash so an edited highlight is delivered again.
type DeliveredItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"uniqueIndex;size:64" json:"key"`
	Destination string    `gorm:"index;size:50" json:"destination"`
	ContainerID int64     `gorm:"index" json:"container_id"`
	HighlightID int64     `gorm:"index" json:"highlight_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

func (DeliveredItem) TableName() string {
	return "delivered_items"
}
