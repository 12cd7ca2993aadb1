package statemachine

import (
	"iter"
	"sync"
	"time"
)

// HistoryItem records one executed transition. A nil Reason marks a forced
// override rather than a stimulus-driven transition.
type HistoryItem[S, E comparable] struct {
	From   S
	To     S
	Reason *E
	When   time.Time
}

// Forced reports whether the item was produced by OverrideState.
func (h HistoryItem[S, E]) Forced() bool {
	return h.Reason == nil
}

// History is an append log of executed transitions, optionally bounded.
// It is disabled by default: Add is a no-op until Enable is called.
type History[S, E comparable] struct {
	mu       sync.RWMutex
	enabled  bool
	capacity int // 0 means unbounded
	items    []HistoryItem[S, E]
	now      func() time.Time
}

// NewHistory creates a disabled, unbounded history.
func NewHistory[S, E comparable]() *History[S, E] {
	return &History[S, E]{
		now: time.Now,
	}
}

// Enable turns recording on.
func (h *History[S, E]) Enable() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.enabled = true
}

// Disable turns recording off. Existing items are kept.
func (h *History[S, E]) Disable() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.enabled = false
}

// Enabled reports whether Add records anything.
func (h *History[S, E]) Enabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.enabled
}

// Add appends a timestamped item. reason is nil for forced overrides.
func (h *History[S, E]) Add(from, to S, reason *E) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled {
		return
	}

	h.appendLocked(HistoryItem[S, E]{
		From:   from,
		To:     to,
		Reason: reason,
		When:   h.now(),
	})
}

// AddItem appends a pre-built item, keeping its timestamp. Used when
// replaying a saved log.
func (h *History[S, E]) AddItem(item HistoryItem[S, E]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled {
		return
	}

	if item.When.IsZero() {
		item.When = h.now()
	}

	h.appendLocked(item)
}

// appendLocked evicts from the front until there is room, then appends.
func (h *History[S, E]) appendLocked(item HistoryItem[S, E]) {
	if h.capacity > 0 {
		for len(h.items) >= h.capacity {
			h.items[0] = HistoryItem[S, E]{}
			h.items = h.items[1:]
		}
	}

	h.items = append(h.items, item)
}

// MakeBounded caps the history at size items and trims the oldest entries immediately.
func (h *History[S, E]) MakeBounded(size int) error {
	if size <= 0 {
		return ErrInvalidHistoryCapacity
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.capacity = size

	if excess := len(h.items) - size; excess > 0 {
		h.items = append([]HistoryItem[S, E](nil), h.items[excess:]...)
	}

	return nil
}

// MakeUnbounded removes the cap. Nothing is trimmed.
func (h *History[S, E]) MakeUnbounded() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.capacity = 0
}

// Capacity returns the cap and whether the history is bounded.
func (h *History[S, E]) Capacity() (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.capacity, h.capacity > 0
}

// Clear removes every item.
func (h *History[S, E]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = nil
}

// Len returns the number of recorded items.
func (h *History[S, E]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.items)
}

// Items returns a copy of the recorded items, oldest first.
func (h *History[S, E]) Items() []HistoryItem[S, E] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryItem[S, E], len(h.items))
	copy(out, h.items)

	return out
}

// All iterates over a snapshot of the recorded items, oldest first.
func (h *History[S, E]) All() iter.Seq[HistoryItem[S, E]] {
	items := h.Items()

	return func(yield func(HistoryItem[S, E]) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}
