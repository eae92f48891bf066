package events

import "sync"

// Buffer is an append-only, mutex-guarded list of events with watermark
// query semantics. It is the only structure shared across signal handlers
// and the run loop inside a workflow activation; because the workflow body
// is single-threaded from the engine's perspective, the mutex here exists
// to make that invariant explicit and to let the in-memory engine, which
// answers queries on the caller's goroutine, read a Buffer safely while the
// run loop appends to it.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds an event to the end of the buffer.
func (b *Buffer) Append(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// Len returns the total number of events ever appended.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Since returns every event at index >= fromIndex, along with the current
// watermark (the buffer's total length at the time of the call). If
// fromIndex is at or past the current length, it returns an empty slice and
// a watermark equal to the current length. The returned slice is a copy so
// callers may not observe later appends.
func (b *Buffer) Since(fromIndex int) (out []Event, watermark int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	watermark = len(b.events)
	if fromIndex < 0 {
		fromIndex = 0
	}
	if fromIndex >= watermark {
		return nil, watermark
	}
	out = make([]Event, watermark-fromIndex)
	copy(out, b.events[fromIndex:])
	return out, watermark
}

// Drain removes and returns every event currently in the buffer, leaving it
// empty. The engine adapters in this repository do not call it; the
// get_events_since query reads through Since.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}
