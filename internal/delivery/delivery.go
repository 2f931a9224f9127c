// Package delivery defines the destination boundary: one formatted item in,
// success or a classified failure out.
package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"
)

// Client posts a single formatted item to a destination.
type Client interface {
	// Name identifies the destination, e.g. "twos".
	Name() string
	// Post returns nil, a *TransientError or a *RejectedError.
	Post(ctx context.Context, text string) error
}

// TransientError is a retryable failure: network/timeout, 5xx or rate limiting.
type TransientError struct {
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transient delivery failure: %v", e.Err)
	}
	return fmt.Sprintf("transient delivery failure: HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RejectedError is a non-retryable failure: any 4xx other than 429.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("delivery rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// ErrRateLimited is wrapped by TransientError for HTTP 429.
var ErrRateLimited = errors.New("destination rate limit exceeded")

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsRejected reports whether the destination refused the item outright.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// ClassifyStatus maps an HTTP response to the delivery taxonomy. 2xx is nil.
func ClassifyStatus(statusCode int, body string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		return &TransientError{StatusCode: statusCode, Err: ErrRateLimited}
	case statusCode == http.StatusRequestTimeout:
		return &TransientError{StatusCode: statusCode, Err: errors.New("request timeout")}
	case statusCode >= 500:
		return &TransientError{StatusCode: statusCode, Err: errors.New(http.StatusText(statusCode))}
	default:
		return &RejectedError{StatusCode: statusCode, Body: truncate(body, 200)}
	}
}

// ClassifyTransport wraps a failure that happened before any response was
// read (dial, TLS, timeout). Those are always transient.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Key identifies a delivered highlight text for deduplication.
func Key(containerID, highlightID int64, text string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(containerID, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(highlightID, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
