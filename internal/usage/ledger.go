package usage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// ErrUnknownProvider is returned for ids that are not in the ledger's catalog.
var ErrUnknownProvider = errors.New("unknown provider")

const monthLayout = "2006-01"

// Thresholds on the used fraction of a monthly quota.
const (
	InfoThreshold     = 0.60
	WarningThreshold  = 0.80
	CriticalThreshold = 0.95
)

// CredentialChecker reports whether a provider's credential is usable.
type CredentialChecker interface {
	Check(id models.ProviderID) error
}

// Record is a point-in-time copy of one provider's monthly usage.
type Record struct {
	Provider          models.ProviderID `json:"provider"`
	Month             string            `json:"month"`
	RequestsThisMonth int               `json:"requests_this_month"`
	EstimatedCostUSD  float64           `json:"estimated_cost_usd"`
	LastRequest       *time.Time        `json:"last_request,omitempty"`
	DailyBreakdown    map[string]int    `json:"daily_breakdown"`
}

func (r Record) clone() Record {
	out := r
	out.DailyBreakdown = make(map[string]int, len(r.DailyBreakdown))
	for k, v := range r.DailyBreakdown {
		out.DailyBreakdown[k] = v
	}
	if r.LastRequest != nil {
		t := *r.LastRequest
		out.LastRequest = &t
	}
	return out
}

// Availability explains whether a provider may be routed to.
type Availability struct {
	Available bool
	Reason    string
}

// Summary is a human-oriented view of a provider's month.
type Summary struct {
	Record
	Quota          int                 `json:"quota"`
	Unlimited      bool                `json:"unlimited"`
	PercentUsed    float64             `json:"percent_used"`
	Remaining      int                 `json:"remaining"`
	DaysLeft       int                 `json:"days_left_in_month"`
	Level          models.WarningLevel `json:"level"`
	CredentialNote string              `json:"credential,omitempty"`
}

type entry struct {
	mu     sync.Mutex
	desc   catalog.Descriptor
	record Record
}

// Ledger tracks per-provider request counts for the current calendar month.
// Each provider has its own lock so traffic on one provider never waits on
// another. The entry map is fixed at construction.
type Ledger struct {
	entries map[models.ProviderID]*entry
	order   []models.ProviderID
	creds   CredentialChecker
	now     func() time.Time
	log     *log.Logger
	store   Store

	saveMu sync.Mutex
}

type Option func(*Ledger)

// WithClock injects the time source used for month and day keys.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithStore attaches persistence. Without one the ledger is memory-only.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

func WithLogger(lg *log.Logger) Option {
	return func(l *Ledger) { l.log = logging.Component(lg, "usage") }
}

// NewLedger creates a ledger with one zeroed record per catalog provider.
// A nil creds treats every credential as valid.
func NewLedger(cat *catalog.Catalog, creds CredentialChecker, opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[models.ProviderID]*entry),
		creds:   creds,
		now:     time.Now,
		log:     logging.Component(nil, "usage"),
	}
	for _, opt := range opts {
		opt(l)
	}
	month := l.now().Format(monthLayout)
	for _, d := range cat.All() {
		l.entries[d.ID] = &entry{desc: d, record: emptyRecord(d.ID, month)}
		l.order = append(l.order, d.ID)
	}
	return l
}

func emptyRecord(id models.ProviderID, month string) Record {
	return Record{Provider: id, Month: month, DailyBreakdown: make(map[string]int)}
}

// Load replaces in-memory records with the store's contents. Records from a
// past month are kept as-is and roll over on first access.
func (l *Ledger) Load() error {
	if l.store == nil {
		return nil
	}
	doc, err := l.store.Load()
	if err != nil {
		return err
	}
	for id, rec := range doc.Providers {
		e, ok := l.entries[id]
		if !ok {
			l.log.Debug("ignoring usage for unknown provider", "provider", id)
			continue
		}
		rec.Provider = id
		if rec.DailyBreakdown == nil {
			rec.DailyBreakdown = make(map[string]int)
		}
		e.mu.Lock()
		e.record = rec
		e.mu.Unlock()
	}
	return nil
}

// Save writes a snapshot of every record to the store.
func (l *Ledger) Save() error {
	if l.store == nil {
		return nil
	}
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	doc := Document{Version: documentVersion, Providers: make(map[models.ProviderID]Record), UpdatedAt: l.now().UTC()}
	for _, id := range l.order {
		rec, _ := l.Snapshot(id)
		doc.Providers[id] = rec
	}
	if err := l.store.Save(doc); err != nil {
		return fmt.Errorf("saving usage: %w", err)
	}
	return nil
}

// rollover resets e if the calendar month changed. Caller holds e.mu.
func (l *Ledger) rollover(e *entry, now time.Time) {
	month := now.Format(monthLayout)
	if e.record.Month == month {
		return
	}
	l.log.Info("new month, resetting usage", "provider", e.desc.ID, "previous", e.record.Month, "requests", e.record.RequestsThisMonth)
	e.record = emptyRecord(e.desc.ID, month)
}

// RecordUsage counts one successful request against the provider.
func (l *Ledger) RecordUsage(id models.ProviderID) (Record, error) {
	e, ok := l.entries[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	now := l.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	l.rollover(e, now)
	e.record.RequestsThisMonth++
	e.record.EstimatedCostUSD = float64(e.record.RequestsThisMonth) * e.desc.CostPerRequest
	ts := now.UTC()
	e.record.LastRequest = &ts
	e.record.DailyBreakdown[now.Format("2006-01-02")]++
	return e.record.clone(), nil
}

// WarningLevel classifies the provider's quota consumption this month.
// Unlimited and unknown providers are always normal.
func (l *Ledger) WarningLevel(id models.ProviderID) models.WarningLevel {
	e, ok := l.entries[id]
	if !ok {
		return models.LevelNormal
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.rollover(e, l.now())
	return levelFor(e.record.RequestsThisMonth, e.desc.MonthlyQuota)
}

func levelFor(requests, quota int) models.WarningLevel {
	if quota <= 0 {
		return models.LevelNormal
	}
	used := float64(requests) / float64(quota)
	switch {
	case used >= CriticalThreshold:
		return models.LevelCritical
	case used >= WarningThreshold:
		return models.LevelWarning
	case used >= InfoThreshold:
		return models.LevelInfo
	default:
		return models.LevelNormal
	}
}

// Check reports whether the provider may be used: it must be known, have a
// usable credential and be below the critical quota threshold.
func (l *Ledger) Check(id models.ProviderID) Availability {
	if _, ok := l.entries[id]; !ok {
		return Availability{Reason: "not in catalog"}
	}
	if l.creds != nil {
		if err := l.creds.Check(id); err != nil {
			return Availability{Reason: "credential: " + err.Error()}
		}
	}
	if l.WarningLevel(id) == models.LevelCritical {
		return Availability{Reason: "monthly quota critical"}
	}
	return Availability{Available: true}
}

func (l *Ledger) IsAvailable(id models.ProviderID) bool {
	return l.Check(id).Available
}

// Snapshot returns a copy of the provider's record after any month rollover.
func (l *Ledger) Snapshot(id models.ProviderID) (Record, bool) {
	e, ok := l.entries[id]
	if !ok {
		return Record{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.rollover(e, l.now())
	return e.record.clone(), true
}

// Snapshots returns copies of every record in catalog order.
func (l *Ledger) Snapshots() []Record {
	out := make([]Record, 0, len(l.order))
	for _, id := range l.order {
		rec, _ := l.Snapshot(id)
		out = append(out, rec)
	}
	return out
}

// Summary computes quota headroom for the provider.
func (l *Ledger) Summary(id models.ProviderID) (Summary, bool) {
	e, ok := l.entries[id]
	if !ok {
		return Summary{}, false
	}
	now := l.now()
	e.mu.Lock()
	l.rollover(e, now)
	rec := e.record.clone()
	quota := e.desc.MonthlyQuota
	e.mu.Unlock()

	s := Summary{
		Record:    rec,
		Quota:     quota,
		Unlimited: quota <= 0,
		DaysLeft:  daysLeftInMonth(now),
		Level:     levelFor(rec.RequestsThisMonth, quota),
	}
	if !s.Unlimited {
		s.PercentUsed = models.ClampPct(float64(rec.RequestsThisMonth) / float64(quota) * 100)
		s.Remaining = max(quota-rec.RequestsThisMonth, 0)
	}
	if l.creds != nil {
		if err := l.creds.Check(id); err != nil {
			s.CredentialNote = err.Error()
		}
	}
	return s, true
}

// Reset zeroes the provider's counters for the current month.
func (l *Ledger) Reset(id models.ProviderID) error {
	e, ok := l.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	e.mu.Lock()
	e.record = emptyRecord(id, l.now().Format(monthLayout))
	e.mu.Unlock()
	return nil
}

// daysLeftInMonth counts calendar days after today, so DST changes do not
// shorten the month.
func daysLeftInMonth(now time.Time) int {
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location())
	return last.Day() - now.Day()
}
