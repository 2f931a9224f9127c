package entities

import (
	"time"
)

// Container is a source-side grouping of highlights (a Readwise "book").
type Container struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"` // empty when the source has no attribution
	Category  string    `json:"category,omitempty"`
	UpdatedAt time.Time `json:"updated_at"` // zero when unknown; the container is then always fetched
}

// HasAuthor reports whether the container carries an attribution.
func (c Container) HasAuthor() bool {
	return c.Author != ""
}

// Highlight is owned by exactly one Container.
type Highlight struct {
	ID          int64     `json:"id"`
	ContainerID int64     `json:"container_id"`
	Text        string    `json:"text"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EligibleSince reports whether the highlight was updated strictly after the cursor.
func (h Highlight) EligibleSince(cursor time.Time) bool {
	return h.UpdatedAt.After(cursor)
}
