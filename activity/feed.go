package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryFeed is a thread-safe in-process change feed.
type InMemoryFeed struct {
	mu       sync.RWMutex
	handlers []handlerEntry
	history  []*Event
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryFeed creates an InMemoryFeed with a 1000-event history cap.
func NewInMemoryFeed() *InMemoryFeed {
	return &InMemoryFeed{maxHist: 1000}
}

// Publish appends the event to the history and delivers it to all
// subscribers. Missing id/timestamp fields are filled in.
func (f *InMemoryFeed) Publish(ev *Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	f.mu.Lock()
	f.history = append(f.history, ev)
	if len(f.history) > f.maxHist {
		f.history = f.history[len(f.history)-f.maxHist:]
	}
	// Collect handlers to invoke outside the lock
	targets := make([]Handler, 0, len(f.handlers))
	for _, e := range f.handlers {
		targets = append(targets, e.handler)
	}
	f.mu.Unlock()

	for _, h := range targets {
		h(ev)
	}
}

// Subscribe registers a handler for all published events.
// The returned function unsubscribes the handler.
func (f *InMemoryFeed) Subscribe(handler Handler) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, handlerEntry{id: id, handler: handler})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		filtered := f.handlers[:0]
		for _, e := range f.handlers {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		f.handlers = filtered
	}
}

// Recent returns the most recent limit events in chronological order.
// A non-empty taskID restricts the result to that task's events.
func (f *InMemoryFeed) Recent(taskID string, limit int) []*Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var result []*Event
	for i := len(f.history) - 1; i >= 0; i-- {
		ev := f.history[i]
		if taskID != "" && ev.TaskID != taskID {
			continue
		}
		result = append(result, ev)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result
}
