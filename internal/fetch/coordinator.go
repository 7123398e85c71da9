package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/metrics"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/ratelimit"
	"github.com/joshuadavidthomas/meteofetch/internal/routing"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

// Config holds the coordinator's tuning parameters. Zero values take the
// defaults below.
type Config struct {
	MaxConcurrent  int
	RequestTimeout time.Duration
	// BreakerFailures consecutive failures open a provider's circuit for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	// Retain bounds how many finished handles stay queryable by id.
	Retain int
}

const (
	defaultMaxConcurrent   = 4
	defaultRequestTimeout  = 30 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 2 * time.Minute
	defaultRetain          = 256
)

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = defaultBreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = defaultBreakerCooldown
	}
	if c.Retain <= 0 {
		c.Retain = defaultRetain
	}
	return c
}

// KeySource supplies provider API keys at dispatch time.
type KeySource interface {
	APIKey(id models.ProviderID) string
}

// Deps are the collaborators a coordinator drives. Catalog, Ledger and
// Providers are required; the rest default from them.
type Deps struct {
	Catalog   *catalog.Catalog
	Ledger    *usage.Ledger
	Providers *provider.Registry

	Router     *routing.Router
	Limiter    *ratelimit.Limiter
	Keys       KeySource
	Client     *httpclient.Client
	Aggregator *aggregate.Aggregator
	Logger     *log.Logger
	Metrics    *metrics.Recorder
}

// Coordinator runs fetch tasks concurrently, bounded by MaxConcurrent, and
// publishes their progress on an event bus.
type Coordinator struct {
	cfg       Config
	catalog   *catalog.Catalog
	ledger    *usage.Ledger
	providers *provider.Registry
	router    *routing.Router
	limiter   *ratelimit.Limiter
	keys      KeySource
	client    *httpclient.Client
	agg       *aggregate.Aggregator
	log       *log.Logger
	metrics   *metrics.Recorder

	breakers map[models.ProviderID]*gobreaker.CircuitBreaker
	sem      *semaphore.Weighted
	bus      *Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	tasks    map[string]*Handle
	finished []string
}

func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Catalog == nil || deps.Ledger == nil || deps.Providers == nil {
		return nil, errors.New("fetch: catalog, ledger and providers are required")
	}
	cfg = cfg.withDefaults()

	c := &Coordinator{
		cfg:       cfg,
		catalog:   deps.Catalog,
		ledger:    deps.Ledger,
		providers: deps.Providers,
		router:    deps.Router,
		limiter:   deps.Limiter,
		keys:      deps.Keys,
		client:    deps.Client,
		agg:       deps.Aggregator,
		log:       logging.Component(deps.Logger, "fetch"),
		metrics:   deps.Metrics,
		breakers:  make(map[models.ProviderID]*gobreaker.CircuitBreaker),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		bus:       NewBus(),
		tasks:     make(map[string]*Handle),
	}
	if c.router == nil {
		c.router = routing.NewRouter(c.catalog, c.ledger)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.FromCatalog(c.catalog)
	}
	if c.client == nil {
		// Each call carries its own deadline.
		c.client = httpclient.NewWithTimeout(0)
	}
	if c.agg == nil {
		c.agg = aggregate.New(c.providers.Decoders())
	}
	for _, id := range c.catalog.IDs() {
		c.breakers[id] = c.newBreaker(id)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

func (c *Coordinator) newBreaker(id models.ProviderID) *gobreaker.CircuitBreaker {
	threshold := c.cfg.BreakerFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(id),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     c.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A rejected request says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return !provider.Transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
}

// Submit validates req and starts a task for it without waiting for a
// concurrency slot.
func (c *Coordinator) Submit(req models.FetchRequest) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	h := newHandle(c.ctx, uuid.NewString(), req)
	c.tasks[h.id] = h
	c.wg.Add(1)
	go c.run(h)

	c.log.Debug("task submitted", "task", h.id, "use_case", req.UseCase, "provider", req.Provider.String(), "days", req.Days())
	return h, nil
}

// Lookup returns a submitted task by id.
func (c *Coordinator) Lookup(id string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.tasks[id]
	return h, ok
}

// Handles returns known tasks, oldest first.
func (c *Coordinator) Handles() []*Handle {
	c.mu.Lock()
	out := make([]*Handle, 0, len(c.tasks))
	for _, h := range c.tasks {
		out = append(out, h)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].submitted.Equal(out[j].submitted) {
			return out[i].submitted.Before(out[j].submitted)
		}
		return out[i].id < out[j].id
	})
	return out
}

// Cancel requests cancellation of the task with the given id.
func (c *Coordinator) Cancel(id string) bool {
	h, ok := c.Lookup(id)
	if !ok {
		return false
	}
	return h.Cancel()
}

// CancelAll cancels every outstanding task and returns how many were
// cancelled.
func (c *Coordinator) CancelAll() int {
	n := 0
	for _, h := range c.Handles() {
		if h.Cancel() {
			n++
		}
	}
	if n > 0 {
		c.log.Info("cancelled outstanding tasks", "count", n)
	}
	return n
}

// Subscribe registers fn for every event. Events are delivered on the bus
// goroutine; fn must not block for long.
func (c *Coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.bus.Subscribe(fn)
}

// Ledger exposes the usage ledger the coordinator records against.
func (c *Coordinator) Ledger() *usage.Ledger { return c.ledger }

func (c *Coordinator) Catalog() *catalog.Catalog { return c.catalog }

func (c *Coordinator) Router() *routing.Router { return c.router }

// Close cancels outstanding tasks, waits for them until ctx is done,
// persists the ledger and stops event delivery.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.CancelAll()
	c.cancel()

	waited := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waited)
	}()

	var err error
	select {
	case <-waited:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}

	if saveErr := c.ledger.Save(); saveErr != nil {
		err = errors.Join(err, saveErr)
	}
	c.bus.Close()
	return err
}

func (c *Coordinator) publish(e Event) {
	c.bus.Publish(e)
}

// retire marks h finished and evicts the oldest finished handles beyond
// the retention limit.
func (c *Coordinator) retire(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, h.id)
	for len(c.finished) > c.cfg.Retain {
		delete(c.tasks, c.finished[0])
		c.finished = c.finished[1:]
	}
}
