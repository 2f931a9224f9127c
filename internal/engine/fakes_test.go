package engine

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/entities"
)

type fakeSource struct {
	mu         sync.Mutex
	containers []entities.Container
	highlights map[int64][]entities.Highlight
	fetchErr   map[int64]error
	recordErr  map[int64]error // yielded before the highlights; the sequence continues
	listErr    error
	fetched    []int64
}

func (f *fakeSource) ListContainers(context.Context) ([]entities.Container, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

func (f *fakeSource) HighlightsSince(_ context.Context, container entities.Container, since time.Time) iter.Seq2[entities.Highlight, error] {
	return func(yield func(entities.Highlight, error) bool) {
		f.mu.Lock()
		f.fetched = append(f.fetched, container.ID)
		f.mu.Unlock()

		if err := f.fetchErr[container.ID]; err != nil {
			yield(entities.Highlight{}, err)
			return
		}
		if err := f.recordErr[container.ID]; err != nil {
			if !yield(entities.Highlight{}, err) {
				return
			}
		}
		for _, h := range f.highlights[container.ID] {
			if !h.EligibleSince(since) {
				continue
			}
			if !yield(h, nil) {
				return
			}
		}
	}
}

func (f *fakeSource) fetchedContainers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.fetched...)
}

type fakeDestination struct {
	mu      sync.Mutex
	posts   []string
	calls   map[string]int
	respond func(text string, call int) error
}

func newFakeDestination(respond func(text string, call int) error) *fakeDestination {
	return &fakeDestination{calls: make(map[string]int), respond: respond}
}

func (d *fakeDestination) Name() string { return "fake" }

func (d *fakeDestination) Post(_ context.Context, text string) error {
	d.mu.Lock()
	d.calls[text]++
	call := d.calls[text]
	d.mu.Unlock()

	var err error
	if d.respond != nil {
		err = d.respond(text, call)
	}
	if err == nil {
		d.mu.Lock()
		d.posts = append(d.posts, text)
		d.mu.Unlock()
	}
	return err
}

func (d *fakeDestination) posted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.posts...)
}

func (d *fakeDestination) callsFor(text string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[text]
}

type memStore struct {
	mu       sync.Mutex
	cursor   time.Time
	has      bool
	writes   int
	writeErr error
	readErr  error
}

func storeAt(t time.Time) *memStore {
	return &memStore{cursor: t, has: true}
}

func (s *memStore) Read(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return time.Time{}, &cursor.StoreError{Op: "read", Err: s.readErr}
	}
	if !s.has {
		return time.Time{}, cursor.ErrNoCursor
	}
	return s.cursor, nil
}

func (s *memStore) Write(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return &cursor.StoreError{Op: "write", Err: s.writeErr}
	}
	s.cursor = t
	s.has = true
	s.writes++
	return nil
}

func (s *memStore) value() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

type memLedger struct {
	mu    sync.Mutex
	items map[string]entities.DeliveredItem
}

func newMemLedger() *memLedger {
	return &memLedger{items: make(map[string]entities.DeliveredItem)}
}

func (l *memLedger) Has(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[key]
	return ok, nil
}

func (l *memLedger) Record(_ context.Context, item *entities.DeliveredItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[item.Key] = *item
	return nil
}
