// Package engine runs one incremental sync cycle: it lists containers from
// the source, streams the highlights updated after the cursor, formats and
// delivers them, and decides how far the cursor may move.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/delivery"
	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/formatter"
)

var (
	ErrSourceUnavailable = entities.ErrSourceUnavailable
	ErrContainerFetch    = entities.ErrContainerFetch
	ErrMalformedRecord   = entities.ErrMalformedRecord
)

type State string

const (
	StateIdle               State = "idle"
	StateFetchingContainers State = "fetching_containers"
	StateFetchingHighlights State = "fetching_highlights"
	StateDelivering         State = "delivering"
	StateFinalizing         State = "finalizing"
	StateSucceeded          State = "succeeded"
	StatePartiallyFailed    State = "partially_failed"
	StateFailed             State = "failed"
)

// Source lists containers and their highlights.
type Source interface {
	ListContainers(ctx context.Context) ([]entities.Container, error)
	HighlightsSince(ctx context.Context, container entities.Container, cursor time.Time) iter.Seq2[entities.Highlight, error]
}

// Ledger remembers which formatted highlights reached the destination.
type Ledger interface {
	Has(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, item *entities.DeliveredItem) error
}

type Config struct {
	Lookback            time.Duration
	DeliveryAttempts    int
	RetryInitialDelay   time.Duration
	RetryMaxDelay       time.Duration
	FetchWorkers        int
	DeliveryConcurrency int
	DeliveryTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Lookback:            cursor.LookbackDays(7),
		DeliveryAttempts:    3,
		RetryInitialDelay:   time.Second,
		RetryMaxDelay:       30 * time.Second,
		FetchWorkers:        4,
		DeliveryConcurrency: 2,
		DeliveryTimeout:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Lookback < 0 {
		c.Lookback = 0
	}
	if c.DeliveryAttempts <= 0 {
		c.DeliveryAttempts = defaults.DeliveryAttempts
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = defaults.RetryInitialDelay
	}
	if c.RetryMaxDelay < c.RetryInitialDelay {
		c.RetryMaxDelay = c.RetryInitialDelay
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = defaults.FetchWorkers
	}
	if c.DeliveryConcurrency <= 0 {
		c.DeliveryConcurrency = defaults.DeliveryConcurrency
	}
	return c
}

type Engine struct {
	source  Source
	dest    delivery.Client
	cursors cursor.Store
	ledger  Ledger
	cfg     Config
	now     func() time.Time

	lookback func() time.Duration

	mu    sync.RWMutex
	state State
}

func New(source Source, dest delivery.Client, cursors cursor.Store, cfg Config) *Engine {
	return &Engine{
		source:  source,
		dest:    dest,
		cursors: cursors,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		state:   StateIdle,
	}
}

// SetLedger enables delivery deduplication.
func (e *Engine) SetLedger(ledger Ledger) {
	e.ledger = ledger
}

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetLookbackFunc makes the first-run lookback window follow a runtime
// setting instead of the static config.
func (e *Engine) SetLookbackFunc(fn func() time.Duration) {
	e.lookback = fn
}

func (e *Engine) Destination() string {
	return e.dest.Name()
}

func (e *Engine) CursorStore() cursor.Store {
	return e.cursors
}

func (e *Engine) Lookback() time.Duration {
	if e.lookback != nil {
		return e.lookback()
	}
	return e.cfg.Lookback
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// Run executes one cycle. Cancelling ctx stops new fetches and deliveries;
// deliveries already in flight are completed and the cursor is left alone.
// Callers must not run two cycles at once.
func (e *Engine) Run(ctx context.Context, trigger entities.SyncTrigger) entities.SyncResult {
	start := e.now().UTC()
	before, outcome := cursor.Resolve(ctx, e.cursors, e.Lookback(), start)

	c := newCycle(uuid.NewString(), trigger, start, before)
	log.Printf("Sync engine: cycle %s (%s) starting from cursor %s", c.result.CycleID, trigger, before.Format(time.RFC3339))

	e.setState(StateFetchingContainers)
	containers, err := e.source.ListContainers(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		log.Printf("Sync engine: %v", err)
		c.sourceUnavailable(err, ctx.Err() != nil)
		return e.finish(ctx, c, outcome)
	}

	e.setState(StateFetchingHighlights)
	deliveries := pool.New().WithMaxGoroutines(e.cfg.DeliveryConcurrency)
	fetchers := pool.New().WithMaxGoroutines(e.cfg.FetchWorkers)

	for _, container := range containers {
		if ctx.Err() != nil {
			break
		}
		if !c.examine(container) {
			continue
		}
		fetchers.Go(func() {
			e.fetchContainer(ctx, c, deliveries, container)
		})
	}

	fetchers.Wait()
	e.setState(StateDelivering)
	deliveries.Wait()

	c.setInterrupted(ctx.Err() != nil)
	return e.finish(ctx, c, outcome)
}

func (e *Engine) fetchContainer(ctx context.Context, c *cycle, deliveries *pool.Pool, container entities.Container) {
	for highlight, err := range e.source.HighlightsSince(ctx, container, c.cursorBefore()) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrMalformedRecord) {
				c.malformedRecord(err)
				log.Printf("Sync engine: skipping record: %v", err)
				continue
			}
			c.containerFailed(err)
			log.Printf("Sync engine: %v", err)
			return
		}
		if !c.claim(highlight) {
			continue
		}
		if ctx.Err() != nil {
			c.deliveryFailed(highlight, ctx.Err(), false)
			continue
		}

		text, err := formatter.Format(container, highlight)
		if err != nil {
			c.malformed(err)
			log.Printf("Sync engine: skipping highlight %d: %v", highlight.ID, err)
			continue
		}

		deliveries.Go(func() {
			e.deliver(ctx, c, container, highlight, text)
		})
	}
}

func (e *Engine) deliver(ctx context.Context, c *cycle, container entities.Container, highlight entities.Highlight, text string) {
	c.attempt()
	if ctx.Err() != nil {
		c.deliveryFailed(highlight, ctx.Err(), false)
		return
	}

	key := delivery.Key(container.ID, highlight.ID, text)
	if e.ledger != nil {
		found, err := e.ledger.Has(ctx, key)
		if err != nil {
			log.Printf("Sync engine: ledger lookup failed for highlight %d: %v", highlight.ID, err)
		} else if found {
			c.delivered(highlight, true)
			return
		}
	}

	if err := e.post(ctx, text); err != nil {
		c.deliveryFailed(highlight, err, delivery.IsRejected(err))
		log.Printf("Sync engine: delivery of highlight %d failed: %v", highlight.ID, err)
		return
	}

	if e.ledger != nil {
		item := &entities.DeliveredItem{
			Key:         key,
			Destination: e.dest.Name(),
			ContainerID: container.ID,
			HighlightID: highlight.ID,
			DeliveredAt: e.now().UTC(),
		}
		if err := e.ledger.Record(context.WithoutCancel(ctx), item); err != nil {
			log.Printf("Sync engine: failed to record delivery of highlight %d: %v", highlight.ID, err)
		}
	}
	c.delivered(highlight, false)
}

// post sends text, retrying transient failures with exponential backoff. A
// started request is never cancelled by ctx; only the waits between attempts
// are.
func (e *Engine) post(ctx context.Context, text string) error {
	postCtx := context.WithoutCancel(ctx)
	var lastErr error

	for attempt := 0; attempt < e.cfg.DeliveryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, e.retryDelay(attempt)); err != nil {
				return fmt.Errorf("retry interrupted: %w", lastErr)
			}
		}

		lastErr = e.postOnce(postCtx, text)
		if lastErr == nil {
			return nil
		}
		if !delivery.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", e.cfg.DeliveryAttempts, lastErr)
}

func (e *Engine) postOnce(ctx context.Context, text string) error {
	if e.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
		defer cancel()
	}
	return e.dest.Post(ctx, text)
}

func (e *Engine) retryDelay(attempt int) time.Duration {
	delay := e.cfg.RetryInitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.cfg.RetryMaxDelay {
			return e.cfg.RetryMaxDelay
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish applies the cursor rules and persists the cursor. It runs after
// every delivery of the cycle has been accounted for. A store that could not
// be read is only overwritten with the start snapshot, and a record with a
// newer schema is never overwritten.
func (e *Engine) finish(ctx context.Context, c *cycle, outcome cursor.Outcome) entities.SyncResult {
	e.setState(StateFinalizing)

	status, candidate, advance := c.decide()
	result := c.snapshot()
	result.Status = status

	before := result.CursorBefore
	result.CursorAfter = before

	advance = advance && candidate.After(before)
	switch outcome {
	case cursor.Unreadable:
		// Only the start snapshot is known to be past whatever the store
		// held; a hold-back candidate could move it backward.
		if advance && !candidate.Equal(result.StartedAt) {
			advance = false
			result.Errors = append(result.Errors, "cursor store unreadable; cursor left unchanged")
		}
	case cursor.Incompatible:
		if advance {
			advance = false
			result.Errors = append(result.Errors, "cursor store has a newer schema version; cursor left unchanged")
			if result.Status == entities.SyncStatusSucceeded {
				result.Status = entities.SyncStatusPartiallyFailed
			}
		}
	}

	// The cursor write must survive a cancelled cycle context.
	writeCtx := context.WithoutCancel(ctx)
	switch {
	case advance:
		if err := e.cursors.Write(writeCtx, candidate); err != nil {
			result.Errors = append(result.Errors, err.Error())
			if result.Status == entities.SyncStatusSucceeded {
				result.Status = entities.SyncStatusPartiallyFailed
			}
			log.Printf("Sync engine: %v", err)
		} else {
			result.CursorAfter = candidate
			result.CursorAdvanced = true
		}
	case outcome == cursor.Absent:
		// Pin the lookback window so later cycles do not slide past items
		// this cycle failed to deliver.
		if err := e.cursors.Write(writeCtx, before); err != nil {
			log.Printf("Sync engine: failed to persist initial cursor: %v", err)
		}
	case outcome != cursor.Stored:
		log.Printf("Sync engine: cursor store %s, leaving it unchanged", outcome)
	}

	result.FinishedAt = e.now().UTC()
	e.setState(stateFor(result.Status))

	log.Printf("Sync engine: cycle %s %s in %s: containers=%d skipped=%d failed=%d highlights=%d delivered=%d duplicate=%d failed=%d cursor=%s",
		result.CycleID, result.Status, result.Duration().Round(time.Millisecond),
		result.ContainersExamined, result.ContainersSkipped, result.ContainersFailed,
		result.HighlightsFound, result.HighlightsDelivered, result.HighlightsDuplicate, result.HighlightsFailed,
		result.CursorAfter.Format(time.RFC3339))

	return result
}

func stateFor(status entities.SyncStatus) State {
	switch status {
	case entities.SyncStatusSucceeded:
		return StateSucceeded
	case entities.SyncStatusPartiallyFailed:
		return StatePartiallyFailed
	default:
		return StateFailed
	}
}
