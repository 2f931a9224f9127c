package engine

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/entities"
)

const maxRecordedErrors = 50

// cycle accumulates the outcome of one run. Fetch and delivery workers
// update it concurrently, so every field is guarded by mu.
type cycle struct {
	mu     sync.Mutex
	result entities.SyncResult

	seen             map[int64]struct{}
	attempted        int
	deliveryFailures int
	sourceFailed     bool
	failedMin        time.Time
	droppedErrors    int
}

func newCycle(id string, trigger entities.SyncTrigger, start, before time.Time) *cycle {
	return &cycle{
		result: entities.SyncResult{
			CycleID:      id,
			Trigger:      trigger,
			StartedAt:    start,
			CursorBefore: before,
			CursorAfter:  before,
		},
		seen: make(map[int64]struct{}),
	}
}

// examine counts the container and reports whether its highlights need to be
// fetched. Containers not updated since the cursor are skipped.
func (c *cycle) examine(container entities.Container) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.ContainersExamined++
	if !container.UpdatedAt.IsZero() && !container.UpdatedAt.After(c.result.CursorBefore) {
		c.result.ContainersSkipped++
		return false
	}
	return true
}

// claim registers a fetched highlight. It returns false for highlights that
// were already claimed in this cycle or are not newer than the cursor.
func (c *cycle) claim(highlight entities.Highlight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !highlight.EligibleSince(c.result.CursorBefore) {
		return false
	}
	if _, ok := c.seen[highlight.ID]; ok {
		return false
	}
	c.seen[highlight.ID] = struct{}{}
	c.result.HighlightsFound++
	return true
}

func (c *cycle) attempt() {
	c.mu.Lock()
	c.attempted++
	c.mu.Unlock()
}

func (c *cycle) delivered(highlight entities.Highlight, duplicate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.HighlightsDelivered++
	if duplicate {
		c.result.HighlightsDuplicate++
	}
	if c.result.MaxDeliveredAt == nil || highlight.UpdatedAt.After(*c.result.MaxDeliveredAt) {
		at := highlight.UpdatedAt
		c.result.MaxDeliveredAt = &at
	}
}

// deliveryFailed records a highlight that will be fetched again next cycle.
func (c *cycle) deliveryFailed(highlight entities.Highlight, err error, rejected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.HighlightsFailed++
	if rejected {
		c.result.HighlightsRejected++
	}
	c.deliveryFailures++
	if c.failedMin.IsZero() || highlight.UpdatedAt.Before(c.failedMin) {
		c.failedMin = highlight.UpdatedAt
	}
	c.appendError(err)
}

// malformed records a highlight that can never be delivered.
func (c *cycle) malformed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.HighlightsFailed++
	c.result.HighlightsMalformed++
	c.appendError(err)
}

// malformedRecord records a source record that could not be decoded. Like a
// format failure it is permanent and does not hold the cursor back.
func (c *cycle) malformedRecord(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.HighlightsFound++
	c.result.HighlightsFailed++
	c.result.HighlightsMalformed++
	c.appendError(err)
}

func (c *cycle) containerFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.ContainersFailed++
	c.appendError(err)
}

func (c *cycle) sourceUnavailable(err error, interrupted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sourceFailed = true
	c.result.Interrupted = interrupted
	c.appendError(err)
}

func (c *cycle) setInterrupted(interrupted bool) {
	c.mu.Lock()
	c.result.Interrupted = interrupted
	c.mu.Unlock()
}

func (c *cycle) appendError(err error) {
	if len(c.result.Errors) >= maxRecordedErrors {
		c.droppedErrors++
		return
	}
	c.result.Errors = append(c.result.Errors, err.Error())
}

func (c *cycle) snapshot() entities.SyncResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := c.result
	result.Errors = slices.Clone(c.result.Errors)
	if c.droppedErrors > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d more errors not shown", c.droppedErrors))
	}
	return result
}

// decide returns the cycle status and, when the cursor may move, the
// candidate value to move it to.
func (c *cycle) decide() (entities.SyncStatus, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.result
	switch {
	case c.sourceFailed:
		return entities.SyncStatusFailed, time.Time{}, false
	case r.Interrupted:
		if r.HighlightsDelivered == 0 {
			return entities.SyncStatusFailed, time.Time{}, false
		}
		return entities.SyncStatusPartiallyFailed, time.Time{}, false
	case c.attempted > 0 && r.HighlightsDelivered == 0 && c.deliveryFailures > 0:
		return entities.SyncStatusFailed, time.Time{}, false
	case r.ContainersFailed > 0:
		// Highlights of the failed containers were never seen.
		return entities.SyncStatusPartiallyFailed, time.Time{}, false
	case c.deliveryFailures > 0:
		return entities.SyncStatusPartiallyFailed, c.failedMin.Add(-cursor.Resolution), true
	case r.HighlightsMalformed > 0:
		return entities.SyncStatusPartiallyFailed, r.StartedAt, true
	default:
		return entities.SyncStatusSucceeded, r.StartedAt, true
	}
}

func (c *cycle) cursorBefore() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.CursorBefore
}
