package readwise

import (
	"errors"
	"fmt"

	"github.com/mrlokans/highlightsync/internal/entities"
)

// ErrInvalidToken indicates the provided API token is invalid
var ErrInvalidToken = errors.New("invalid or expired Readwise token")

// ErrRateLimited indicates the API rate limit was exceeded
var ErrRateLimited = errors.New("readwise API rate limit exceeded")

// ErrPaginationLoop indicates a next link pointing back at a page already
// read, or a listing longer than any real account.
var ErrPaginationLoop = errors.New("readwise pagination does not terminate")

// ErrMalformedRecord marks a highlight record missing required fields.
var ErrMalformedRecord = entities.ErrMalformedRecord

// ServerError represents a 5xx error from the Readwise API
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Readwise server error: HTTP %d", e.StatusCode)
}

// ContainerFetchError reports a problem reading the highlights of a single
// book. A transport failure ends that book's sequence; a malformed record
// (errors.Is ErrMalformedRecord) only rejects that record. The rest of the
// cycle is unaffected either way.
type ContainerFetchError struct {
	ContainerID int64
	Err         error
}

func (e *ContainerFetchError) Error() string {
	return fmt.Sprintf("fetching highlights of book %d: %v", e.ContainerID, e.Err)
}

func (e *ContainerFetchError) Unwrap() error {
	return e.Err
}

func (e *ContainerFetchError) Is(target error) bool {
	return target == entities.ErrContainerFetch
}
