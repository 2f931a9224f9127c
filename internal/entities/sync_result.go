package entities

import (
	"time"
)

type SyncStatus string

const (
	SyncStatusSucceeded       SyncStatus = "succeeded"
	SyncStatusPartiallyFailed SyncStatus = "partially_failed"
	SyncStatusFailed          SyncStatus = "failed"
)

type SyncTrigger string

const (
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerQueued    SyncTrigger = "queued"
	SyncTriggerCLI       SyncTrigger = "cli"
)

// SyncResult summarises one cycle. It lives in memory until the next cycle replaces it.
type SyncResult struct {
	CycleID string      `json:"cycle_id"`
	Trigger SyncTrigger `json:"trigger"`
	Status  SyncStatus  `json:"status"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	CursorBefore   time.Time `json:"cursor_before"`
	CursorAfter    time.Time `json:"cursor_after"`
	CursorAdvanced bool      `json:"cursor_advanced"`

	ContainersExamined int `json:"containers_examined"`
	ContainersSkipped  int `json:"containers_skipped"`
	ContainersFailed   int `json:"containers_failed"`

	HighlightsFound     int `json:"highlights_found"`
	HighlightsDelivered int `json:"highlights_delivered"` // includes duplicates already present at the destination
	HighlightsDuplicate int `json:"highlights_duplicate"`
	HighlightsFailed    int `json:"highlights_failed"`    // every failure, whatever the cause
	HighlightsRejected  int `json:"highlights_rejected"`  // subset of failed: non-retryable destination errors
	HighlightsMalformed int `json:"highlights_malformed"` // subset of failed: format errors and malformed records, never retried

	MaxDeliveredAt *time.Time `json:"max_delivered_at,omitempty"`
	Interrupted    bool       `json:"interrupted"`
	Errors         []string   `json:"errors,omitempty"`
}

// Succeeded reports whether the cycle finished without any failure.
func (r SyncResult) Succeeded() bool {
	return r.Status == SyncStatusSucceeded
}

// Duration returns how long the cycle took.
func (r SyncResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
