package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Handle tracks one submitted request.
type Handle struct {
	id        string
	req       models.FetchRequest
	submitted time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// gate serializes cancellation with usage recording: once Cancel
	// returns, the task records no further usage.
	gate      sync.Mutex
	cancelled bool

	mu       sync.Mutex
	state    State
	provider models.ProviderID
	outcome  *Outcome
}

func newHandle(parent context.Context, id string, req models.FetchRequest) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		id:        id,
		req:       req,
		submitted: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StatePending,
	}
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Request() models.FetchRequest { return h.req }

func (h *Handle) Submitted() time.Time { return h.submitted }

// State returns the task's current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Provider returns the provider currently or last attempted.
func (h *Handle) Provider() models.ProviderID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider
}

// Done is closed once the outcome is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome returns the terminal outcome, if the task has finished.
func (h *Handle) Outcome() (Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == nil {
		return Outcome{}, false
	}
	return *h.outcome, true
}

// Wait blocks until the task finishes or ctx is done. Giving up on the wait
// does not cancel the task.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		o, _ := h.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel requests cooperative cancellation and returns immediately. It
// reports false when the task had already finished or been cancelled.
func (h *Handle) Cancel() bool {
	select {
	case <-h.done:
		return false
	default:
	}
	h.gate.Lock()
	defer h.gate.Unlock()
	if h.cancelled {
		return false
	}
	h.cancelled = true
	h.cancel()
	return true
}

func (h *Handle) setState(s State, id models.ProviderID) {
	h.mu.Lock()
	h.state = s
	if id != "" {
		h.provider = id
	}
	h.mu.Unlock()
}

func (h *Handle) finish(o Outcome, s State) {
	h.mu.Lock()
	h.state = s
	h.outcome = &o
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}

// whileActive runs fn under the cancellation gate unless the task has been
// cancelled, and reports whether fn ran.
func (h *Handle) whileActive(fn func()) bool {
	h.gate.Lock()
	defer h.gate.Unlock()
	if h.cancelled || h.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}
