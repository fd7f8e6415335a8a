package events

import (
	"sync"
	"time"
)

// Type discriminates event payloads on the wire.
type Type string

const (
	TypeToolStatus  Type = "tool_status"
	TypeJobStarted  Type = "job_started"
	TypeJobProgress Type = "job_progress"
	TypeJobFinished Type = "job_finished"
)

// Tool provisioning status values.
const (
	StatusVerifying   = "verifying"
	StatusDownloading = "downloading"
	StatusComplete    = "complete"
	StatusError       = "error"
)

// Event is a single push notification. Fields are populated per Type:
// tool_status uses Tool/Status/Percent/Detail, job_* use JobID plus
// Percent/Title/Detail as available.
type Event struct {
	Type    Type      `json:"type"`
	JobID   string    `json:"job_id,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Status  string    `json:"status,omitempty"`
	Percent float64   `json:"percent,omitempty"`
	Title   string    `json:"title,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Time    time.Time `json:"ts"`
}

// Bus fans events out to any number of subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers an observer. The returned cancel func must be called
// when the observer goes away; it closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber without blocking. Subscribers with
// full buffers miss the event.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
