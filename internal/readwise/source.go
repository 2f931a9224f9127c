package readwise

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"
	"time"

	"github.com/mrlokans/highlightsync/internal/entities"
)

const (
	tutorialBookTitle = "how to use readwise"
	untitled          = "Untitled"
)

// Source adapts the Readwise client to the sync engine: it validates the raw
// API records and turns them into containers and highlights.
type Source struct {
	client       *Client
	skipTutorial bool
}

// NewSource creates a Source. When skipTutorial is set the "How to use
// Readwise" book every account starts with is never synced.
func NewSource(client *Client, skipTutorial bool) *Source {
	return &Source{client: client, skipTutorial: skipTutorial}
}

// ListContainers returns every book of the account.
func (s *Source) ListContainers(ctx context.Context) ([]entities.Container, error) {
	books, err := s.client.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	containers := make([]entities.Container, 0, len(books))
	for _, book := range books {
		if book.ID == 0 {
			log.Printf("Readwise: dropping book record without id (title %q)", book.Title)
			continue
		}
		if s.skipTutorial && strings.EqualFold(strings.TrimSpace(book.Title), tutorialBookTitle) {
			continue
		}
		containers = append(containers, toContainer(book))
	}

	return containers, nil
}

// HighlightsSince returns a lazy sequence of the container's highlights
// updated strictly after cursor. Pages are fetched as the sequence is
// consumed. A transport failure ends the sequence with a
// *ContainerFetchError; a malformed record is reported the same way but the
// sequence carries on with the next record.
func (s *Source) HighlightsSince(ctx context.Context, container entities.Container, cursor time.Time) iter.Seq2[entities.Highlight, error] {
	return func(yield func(entities.Highlight, error) bool) {
		pages := newPager(s.client.HighlightsURL(container.ID, cursor))

		for next := pages.first(); next != ""; {
			page, err := s.client.HighlightsPage(ctx, next)
			if err != nil {
				yield(entities.Highlight{}, &ContainerFetchError{ContainerID: container.ID, Err: err})
				return
			}

			for _, record := range page.Results {
				highlight, err := toHighlight(container.ID, record)
				if err != nil {
					if !yield(entities.Highlight{}, &ContainerFetchError{ContainerID: container.ID, Err: err}) {
						return
					}
					continue
				}
				if !highlight.EligibleSince(cursor) {
					continue
				}
				if !yield(highlight, nil) {
					return
				}
			}

			if next, err = pages.advance(page.Next); err != nil {
				yield(entities.Highlight{}, &ContainerFetchError{ContainerID: container.ID, Err: err})
				return
			}
		}
	}
}

func toContainer(book BookData) entities.Container {
	title := strings.TrimSpace(book.Title)
	if title == "" {
		title = untitled
	}

	updated := parseOptionalTime(book.Updated)
	if last := parseOptionalTime(book.LastHighlightAt); last.After(updated) {
		updated = last
	}

	return entities.Container{
		ID:        book.ID,
		Title:     title,
		Author:    strings.TrimSpace(book.Author),
		Category:  book.Category,
		UpdatedAt: updated,
	}
}

func toHighlight(containerID int64, record HighlightData) (entities.Highlight, error) {
	if record.ID == 0 {
		return entities.Highlight{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if record.BookID != containerID {
		return entities.Highlight{}, fmt.Errorf("%w: highlight %d belongs to book %d", ErrMalformedRecord, record.ID, record.BookID)
	}
	if record.Updated == "" {
		return entities.Highlight{}, fmt.Errorf("%w: highlight %d has no updated timestamp", ErrMalformedRecord, record.ID)
	}
	updated, err := time.Parse(time.RFC3339Nano, record.Updated)
	if err != nil {
		return entities.Highlight{}, fmt.Errorf("%w: highlight %d: %v", ErrMalformedRecord, record.ID, err)
	}

	return entities.Highlight{
		ID:          record.ID,
		ContainerID: containerID,
		Text:        record.Text,
		UpdatedAt:   updated.UTC(),
	}, nil
}

// parseOptionalTime returns the zero time for empty or unparsable values.
func parseOptionalTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
