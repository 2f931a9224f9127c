// Package formatter turns a highlight and its container into the single line
// of text posted to the destination.
package formatter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrlokans/highlightsync/internal/entities"
)

// UnknownAuthor is used when the container has no attribution.
const UnknownAuthor = "Unknown"

// ErrEmptyHighlight indicates a highlight with no text to sync.
var ErrEmptyHighlight = errors.New("highlight text is empty")

// FormatError is a data problem with a single highlight. It is never retried.
type FormatError struct {
	ContainerID int64
	HighlightID int64
	Err         error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format highlight %d (container %d): %v", e.HighlightID, e.ContainerID, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Format renders "{title}, {author}: {text}".
func Format(container entities.Container, highlight entities.Highlight) (string, error) {
	if strings.TrimSpace(highlight.Text) == "" {
		return "", &FormatError{
			ContainerID: container.ID,
			HighlightID: highlight.ID,
			Err:         ErrEmptyHighlight,
		}
	}

	author := container.Author
	if !container.HasAuthor() {
		author = UnknownAuthor
	}

	text := fmt.Sprintf("%s, %s: %s", container.Title, author, highlight.Text)
	return strings.TrimSpace(text), nil
}
