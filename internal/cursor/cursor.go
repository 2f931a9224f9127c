// Package cursor persists the sync watermark: the timestamp after which
// highlights are still considered new.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// SchemaVersion is written next to every stored cursor.
const SchemaVersion = 1

// Resolution is the cursor unit used when holding the cursor back before a
// failed item.
const Resolution = time.Second

// ErrNoCursor is returned by Store.Read when nothing was ever written.
var ErrNoCursor = errors.New("no cursor stored")

// ErrUnsupportedSchema means the stored cursor was written by a newer
// version and must not be overwritten.
var ErrUnsupportedSchema = errors.New("unsupported cursor schema version")

// Outcome describes what Resolve found in the store.
type Outcome int

const (
	// Stored means the store held a readable cursor.
	Stored Outcome = iota
	// Absent means nothing was ever written.
	Absent
	// Unreadable means the store failed or held a record that did not decode.
	Unreadable
	// Incompatible means the record has a newer schema version.
	Incompatible
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Absent:
		return "absent"
	case Unreadable:
		return "unreadable"
	case Incompatible:
		return "incompatible"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StoreError reports a cursor store that could not be read or written.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cursor store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Reader reads the persisted cursor.
type Reader interface {
	Read(ctx context.Context) (time.Time, error)
}

// Store reads and writes the single persisted cursor.
type Store interface {
	Reader
	Write(ctx context.Context, cursor time.Time) error
}

// Resetter is implemented by stores that can forget the stored cursor.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Resolve returns the cursor the next cycle should start from and what the
// store held. When the store is empty or unreadable it falls back to now
// minus lookback, so an unreadable store never causes a full re-sync. Only
// an Absent outcome makes the fallback safe to persist.
func Resolve(ctx context.Context, store Reader, lookback time.Duration, now time.Time) (time.Time, Outcome) {
	fallback := now.Add(-lookback).UTC()

	cursor, err := store.Read(ctx)
	switch {
	case err == nil:
		return cursor.UTC(), Stored
	case errors.Is(err, ErrNoCursor):
		log.Printf("Cursor: no stored cursor, starting %s back at %s", lookback, fallback.Format(time.RFC3339))
		return fallback, Absent
	default:
		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			storeErr = &StoreError{Op: "read", Err: err}
		}
		log.Printf("Cursor: %v, falling back to %s", storeErr, fallback.Format(time.RFC3339))
		if errors.Is(err, ErrUnsupportedSchema) {
			return fallback, Incompatible
		}
		return fallback, Unreadable
	}
}

// LookbackDays converts a day count to a duration.
func LookbackDays(days int) time.Duration {
	if days < 0 {
		days = 0
	}
	return time.Duration(days) * 24 * time.Hour
}
