package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/highlightsync/internal/entities"
)

const maxErrorLength = 500

// Repository is the persistence the service writes to.
type Repository interface {
	LogEvent(event *entities.AuditEvent) error
	GetEvents(limit, offset int) ([]entities.AuditEvent, int64, error)
	GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
	GetLatestEvent(eventType entities.AuditEventType) (*entities.AuditEvent, error)
	DeleteOldEvents(olderThan time.Time) (int64, error)
}

// Service provides high-level audit logging functionality.
type Service struct {
	repo    Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until every event handed to LogAsync was written.
func (s *Service) Wait() {
	s.pending.Wait()
}

// cycleMetadata is stored as JSON next to every sync cycle event.
type cycleMetadata struct {
	Trigger             entities.SyncTrigger `json:"trigger"`
	Destination         string               `json:"destination"`
	DurationMs          int64                `json:"duration_ms"`
	CursorBefore        time.Time            `json:"cursor_before"`
	CursorAfter         time.Time            `json:"cursor_after"`
	ContainersExamined  int                  `json:"containers_examined"`
	ContainersSkipped   int                  `json:"containers_skipped"`
	ContainersFailed    int                  `json:"containers_failed"`
	HighlightsFound     int                  `json:"highlights_found"`
	HighlightsDelivered int                  `json:"highlights_delivered"`
	HighlightsDuplicate int                  `json:"highlights_duplicate"`
	HighlightsFailed    int                  `json:"highlights_failed"`
	Interrupted         bool                 `json:"interrupted,omitempty"`
}

// LogCycle records the outcome of a sync cycle.
func (s *Service) LogCycle(result entities.SyncResult, destination string) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSync,
		Action:      "sync_cycle",
		Description: DescribeCycle(result),
		CycleID:     result.CycleID,
		Status:      statusFor(result.Status),
	}

	metadata := cycleMetadata{
		Trigger:             result.Trigger,
		Destination:         destination,
		DurationMs:          result.Duration().Milliseconds(),
		CursorBefore:        result.CursorBefore,
		CursorAfter:         result.CursorAfter,
		ContainersExamined:  result.ContainersExamined,
		ContainersSkipped:   result.ContainersSkipped,
		ContainersFailed:    result.ContainersFailed,
		HighlightsFound:     result.HighlightsFound,
		HighlightsDelivered: result.HighlightsDelivered,
		HighlightsDuplicate: result.HighlightsDuplicate,
		HighlightsFailed:    result.HighlightsFailed,
		Interrupted:         result.Interrupted,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	if len(result.Errors) > 0 {
		event.ErrorMsg = truncate(strings.Join(result.Errors, "; "), maxErrorLength)
	}

	s.LogAsync(event)
}

// LogSettings records a settings change event.
func (s *Service) LogSettings(action, description string) {
	s.LogAsync(&entities.AuditEvent{
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogCursor records a manual cursor change.
func (s *Service) LogCursor(action, description string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventCursor,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxErrorLength)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(eventType, limit, offset)
}

// LatestCycle returns the most recently recorded sync cycle event.
func (s *Service) LatestCycle() (*entities.AuditEvent, error) {
	return s.repo.GetLatestEvent(entities.AuditEventSync)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// DescribeCycle returns a one-line human readable summary of a cycle.
func DescribeCycle(result entities.SyncResult) string {
	switch {
	case result.Status == entities.SyncStatusFailed && result.HighlightsFound == 0 && len(result.Errors) > 0:
		return "Sync failed: " + truncate(result.Errors[0], 200)
	case result.HighlightsFound == 0:
		return fmt.Sprintf("No new highlights in %d books", result.ContainersExamined)
	default:
		return fmt.Sprintf("Delivered %d of %d highlights from %d books (%d failed)",
			result.HighlightsDelivered, result.HighlightsFound, result.ContainersExamined, result.HighlightsFailed)
	}
}

func statusFor(status entities.SyncStatus) entities.AuditStatus {
	switch status {
	case entities.SyncStatusSucceeded:
		return entities.AuditStatusSuccess
	case entities.SyncStatusPartiallyFailed:
		return entities.AuditStatusPartial
	default:
		return entities.AuditStatusFailed
	}
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
