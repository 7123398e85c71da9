package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/meteostat"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/openmeteo"
	"github.com/joshuadavidthomas/meteofetch/internal/ratelimit"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

var validKey = strings.Repeat("k", 32)

// upstream is a fake provider endpoint that counts hits.
type upstream struct {
	srv     *httptest.Server
	hits    atomic.Int32
	handler http.HandlerFunc
}

func newUpstream(t *testing.T, h http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{handler: h}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.handler(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func fixed(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func queryWindow(r *http.Request, startKey, endKey string) models.Window {
	q := r.URL.Query()
	return models.Window{Start: models.MustDate(q.Get(startKey)), End: models.MustDate(q.Get(endKey))}
}

// openMeteoOK answers with one day per requested date and two hourly gust
// samples per day.
func openMeteoOK(w http.ResponseWriter, r *http.Request) {
	win := queryWindow(r, "start_date", "end_date")
	var days, hours []string
	var tmax, tmin, gusts []float64
	for d, i := win.Start, 0; !d.After(win.End); d, i = d.AddDays(1), i+1 {
		days = append(days, d.String())
		tmax = append(tmax, float64(10+i))
		tmin = append(tmin, float64(i))
		hours = append(hours, d.String()+"T05:00", d.String()+"T18:00")
		gusts = append(gusts, 40, 65)
	}
	writeJSON(w, map[string]any{
		"timezone":           "UTC",
		"utc_offset_seconds": 0,
		"daily_units":        map[string]string{"temperature_2m_max": "°C", "temperature_2m_min": "°C"},
		"daily":              map[string]any{"time": days, "temperature_2m_max": tmax, "temperature_2m_min": tmin},
		"hourly_units":       map[string]string{"wind_gusts_10m": "km/h"},
		"hourly":             map[string]any{"time": hours, "wind_gusts_10m": gusts},
	})
}

func meteostatOK(w http.ResponseWriter, r *http.Request) {
	win := queryWindow(r, "start", "end")
	var rows []map[string]any
	for d := win.Start; !d.After(win.End); d = d.AddDays(1) {
		rows = append(rows, map[string]any{"date": d.String(), "tmax": 5.0, "tmin": 1.0, "wspd": 12.0, "wpgt": 30.0})
	}
	writeJSON(w, map[string]any{"meta": map[string]any{}, "data": rows})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// testCatalog is the default catalog without rate limiting.
func testCatalog(mods ...func(*catalog.Descriptor)) *catalog.Catalog {
	om, ms := catalog.OpenMeteo(), catalog.Meteostat()
	om.MinInterval, ms.MinInterval = 0, 0
	for _, mod := range mods {
		mod(&om)
		mod(&ms)
	}
	return catalog.MustNew(om, ms)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) ofKind(k EventKind) []Event {
	var out []Event
	for _, e := range l.all() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type setup struct {
	catalog   *catalog.Catalog
	keys      map[models.ProviderID]string
	openMeteo http.HandlerFunc
	meteostat http.HandlerFunc
	cfg       Config
	limiter   *ratelimit.Limiter
	store     usage.Store
}

type engine struct {
	coord     *Coordinator
	ledger    *usage.Ledger
	openMeteo *upstream
	meteostat *upstream
	events    *eventLog
}

func newEngine(t *testing.T, s setup) *engine {
	t.Helper()
	if s.catalog == nil {
		s.catalog = testCatalog()
	}
	if s.keys == nil {
		s.keys = map[models.ProviderID]string{models.ProviderMeteostat: validKey}
	}
	if s.openMeteo == nil {
		s.openMeteo = openMeteoOK
	}
	if s.meteostat == nil {
		s.meteostat = meteostatOK
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(nil)
	}

	creds := config.StaticCredentials(s.catalog, s.keys)
	var ledgerOpts []usage.Option
	if s.store != nil {
		ledgerOpts = append(ledgerOpts, usage.WithStore(s.store))
	}
	ledger := usage.NewLedger(s.catalog, creds, ledgerOpts...)
	om := newUpstream(t, s.openMeteo)
	ms := newUpstream(t, s.meteostat)
	reg := provider.NewRegistry(
		openmeteo.New(openmeteo.WithBaseURL(om.srv.URL)),
		meteostat.New(meteostat.WithBaseURL(ms.srv.URL)),
	)

	coord, err := New(s.cfg, Deps{
		Catalog:   s.catalog,
		Ledger:    ledger,
		Providers: reg,
		Limiter:   s.limiter,
		Keys:      creds,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := &eventLog{}
	coord.Subscribe(events.add)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = coord.Close(ctx)
	})
	return &engine{coord: coord, ledger: ledger, openMeteo: om, meteostat: ms, events: events}
}

// drain closes the coordinator so every published event has been delivered.
func (e *engine) drain(t *testing.T) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.coord.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return e.events.all()
}

func (e *engine) requests(id models.ProviderID) int {
	rec, _ := e.ledger.Snapshot(id)
	return rec.RequestsThisMonth
}

func baseRequest() models.FetchRequest {
	return models.FetchRequest{
		Latitude:  47.50,
		Longitude: 19.04,
		Start:     models.MustDate("2024-01-01"),
		End:       models.MustDate("2024-01-03"),
		UseCase:   models.UseCaseSingleLocation,
	}
}

func submitAndWait(t *testing.T, c *Coordinator, req models.FetchRequest) (*Handle, Outcome) {
	t.Helper()
	h, err := c.Submit(req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return h, wait(t, h)
}

func wait(t *testing.T, h *Handle) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return out
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func kinds(events []Event, taskID string) []string {
	var out []string
	for _, e := range events {
		if e.TaskID != taskID {
			continue
		}
		k := string(e.Kind)
		if e.Kind == EventProgress {
			k = fmt.Sprintf("progress:%d", e.Percent)
		}
		out = append(out, k)
	}
	return out
}
