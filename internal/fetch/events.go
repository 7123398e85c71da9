package fetch

import (
	"sort"
	"sync"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// EventKind names a notification published by the coordinator.
type EventKind string

const (
	EventProgress                 EventKind = "progress"
	EventProviderSelected         EventKind = "provider_selected"
	EventProviderFallback         EventKind = "provider_fallback"
	EventProviderValidationFailed EventKind = "provider_validation_failed"
	EventUsageWarning             EventKind = "usage_warning"
	EventResult                   EventKind = "result"
)

// Progress milestones.
const (
	ProgressDispatched = 20
	ProgressResponded  = 60
	ProgressNormalized = 90
	ProgressDone       = 100
)

// Event is one notification about a task. Only the fields relevant to Kind
// are set.
type Event struct {
	TaskID string    `json:"task_id"`
	Kind   EventKind `json:"kind"`
	At     time.Time `json:"at"`

	Percent  int                 `json:"percent,omitempty"`
	Stage    string              `json:"stage,omitempty"`
	Provider models.ProviderID   `json:"provider,omitempty"`
	From     models.ProviderID   `json:"from,omitempty"`
	Chain    []models.ProviderID `json:"chain,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	Level    models.WarningLevel `json:"level,omitempty"`
	Outcome  *Outcome            `json:"outcome,omitempty"`
}

// Bus delivers events to subscribers on its own goroutine, in publish
// order. The queue is unbounded so Publish never blocks a task; a slow
// subscriber only delays later deliveries.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	subs   map[int]func(Event)
	nextID int
	closed bool
	done   chan struct{}
}

func NewBus() *Bus {
	b := &Bus{subs: make(map[int]func(Event)), done: make(chan struct{})}
	b.cond = sync.NewCond(&b.mu)
	go b.loop()
	return b
}

// Publish queues e. Events published after Close are dropped.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, e)
	b.cond.Signal()
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Close stops accepting events, delivers what is queued and waits for the
// delivery goroutine to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.cond.Broadcast()
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) loop() {
	defer close(b.done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		e := b.queue[0]
		b.queue[0] = Event{}
		b.queue = b.queue[1:]
		subs := b.snapshotSubs()
		b.mu.Unlock()

		for _, fn := range subs {
			fn(e)
		}
	}
}

// snapshotSubs returns subscribers in registration order. Caller holds mu.
func (b *Bus) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = b.subs[id]
	}
	return out
}
