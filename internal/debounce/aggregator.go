// Package debounce coalesces rapid-fire client messages into one logical turn.
//
// The first Submit for a conversation becomes the owner: it creates the buffer
// entry, arms the timer and blocks until the timer fires. Every later Submit
// while the entry exists appends its text, pushes the deadline forward and
// returns immediately as deferred. Only the owner receives the merged text.
//
// The map is process-local by design: it cannot coordinate across instances,
// so deployments must pin a conversation to one instance (see DESIGN.md).
package debounce

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/salonflow/alexis-engine/pkg/logging"
)

const (
	// DefaultWindow is the quiet period that closes a message burst.
	DefaultWindow = 2500 * time.Millisecond
	// DefaultMaxWait caps how far consecutive messages can push the deadline,
	// so a chatty client cannot delay the reply indefinitely.
	DefaultMaxWait = 15 * time.Second
)

// Result is the outcome of a Submit call.
type Result struct {
	// Deferred means another in-flight call owns this burst; the caller must
	// short-circuit to a no-reply outcome.
	Deferred bool
	// MergedText carries the full burst, in arrival order, for the owner.
	MergedText string
}

type entry struct {
	texts  []string
	timer  *time.Timer
	capAt  time.Time
	merged chan string // receives exactly one value when the timer fires
}

// Aggregator owns the per-conversation buffers.
type Aggregator struct {
	mu      sync.Mutex
	entries map[string]*entry

	window  time.Duration
	maxWait time.Duration
	logger  *logging.Logger
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithWindow overrides the quiet period.
func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithMaxWait overrides the aggregation cap.
func WithMaxWait(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.maxWait = d
		}
	}
}

// NewAggregator builds an aggregator with the default window and cap.
func NewAggregator(logger *logging.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Aggregator{
		entries: make(map[string]*entry),
		window:  DefaultWindow,
		maxWait: DefaultMaxWait,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxWait < a.window {
		a.maxWait = a.window
	}
	return a
}

// Submit buffers text for the conversation and either defers to the in-flight
// owner or, as the owner, blocks until the burst closes and returns the merged
// text. Context cancellation abandons ownership and drops the buffer.
func (a *Aggregator) Submit(ctx context.Context, conversationID, text string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	if e, ok := a.entries[conversationID]; ok {
		e.texts = append(e.texts, text)
		a.reschedule(e)
		a.mu.Unlock()
		return Result{Deferred: true}, nil
	}

	e := &entry{
		texts:  []string{text},
		capAt:  time.Now().Add(a.maxWait),
		merged: make(chan string, 1),
	}
	e.timer = time.AfterFunc(a.window, func() { a.fire(conversationID, e) })
	a.entries[conversationID] = e
	a.mu.Unlock()

	select {
	case merged := <-e.merged:
		return Result{MergedText: merged}, nil
	case <-ctx.Done():
		a.abandon(conversationID, e)
		return Result{}, ctx.Err()
	}
}

// reschedule pushes the deadline forward by one window, clamped to the cap.
// Reset may race a timer that already fired; that is fine — the fire callback
// serializes on the mutex and will merge the text appended above.
func (a *Aggregator) reschedule(e *entry) {
	delay := a.window
	if remaining := time.Until(e.capAt); remaining < delay {
		delay = remaining
		if delay < 0 {
			delay = 0
		}
	}
	e.timer.Reset(delay)
}

// fire closes the burst: it removes the entry so the next message starts a
// fresh one, then hands the merged text to the waiting owner.
func (a *Aggregator) fire(conversationID string, e *entry) {
	a.mu.Lock()
	if current, ok := a.entries[conversationID]; !ok || current != e {
		// Entry already abandoned or replaced.
		a.mu.Unlock()
		return
	}
	delete(a.entries, conversationID)
	merged := strings.Join(e.texts, "\n")
	a.mu.Unlock()

	e.merged <- merged
}

func (a *Aggregator) abandon(conversationID string, e *entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if current, ok := a.entries[conversationID]; ok && current == e {
		e.timer.Stop()
		delete(a.entries, conversationID)
		a.logger.Warn("debounce buffer abandoned before firing",
			"conversation_id", conversationID,
			"buffered_messages", len(e.texts),
		)
	}
}

// Pending reports whether a burst is currently buffering for the conversation.
func (a *Aggregator) Pending(conversationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.entries[conversationID]
	return ok
}
