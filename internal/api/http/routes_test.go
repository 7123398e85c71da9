package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/metrics"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/meteostat"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/openmeteo"
	"github.com/joshuadavidthomas/meteofetch/internal/ratelimit"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

// Helpers

// openMeteoArchive answers with one day per requested date.
func openMeteoArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := models.MustDate(q.Get("start_date")), models.MustDate(q.Get("end_date"))
	var days []string
	var tmax []float64
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d.String())
		tmax = append(tmax, 12.5)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"timezone":    "UTC",
		"daily_units": map[string]string{"temperature_2m_max": "°C"},
		"daily":       map[string]any{"time": days, "temperature_2m_max": tmax},
	})
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(openMeteoArchive))
	t.Cleanup(upstream.Close)

	om, ms := catalog.OpenMeteo(), catalog.Meteostat()
	om.MinInterval, ms.MinInterval = 0, 0
	cat := catalog.MustNew(om, ms)
	creds := config.StaticCredentials(cat, nil)
	rec := metrics.New()

	coord, err := fetch.New(fetch.Config{}, fetch.Deps{
		Catalog: cat,
		Ledger:  usage.NewLedger(cat, creds),
		Providers: provider.NewRegistry(
			openmeteo.New(openmeteo.WithBaseURL(upstream.URL)),
			meteostat.New(meteostat.WithBaseURL(upstream.URL)),
		),
		Limiter: ratelimit.New(nil),
		Keys:    creds,
		Metrics: rec,
	})
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = coord.Close(ctx)
	})

	return New(coord, append([]Option{WithMetrics(rec)}, opts...)...)
}

func do(t *testing.T, s *Server, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decoding %s: %v", data, err)
		}
	}
	return resp.StatusCode, out
}

const budapest = `{"latitude": 47.5, "longitude": 19.04, "start_date": "2024-01-01", "end_date": "2024-01-03"}`

// Tests

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("got %d %v", code, body)
	}
}

func TestSubmit_WaitReturnsOutcome(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodPost, "/api/v1/fetch?wait=true", budapest)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["state"] != "succeeded" {
		t.Errorf("state = %v", body["state"])
	}
	outcome, _ := body["outcome"].(map[string]any)
	if outcome["provider"] != "open-meteo" || outcome["status"] != "succeeded" {
		t.Errorf("outcome = %v", outcome)
	}
	if recs, _ := outcome["records"].([]any); len(recs) != 3 {
		t.Errorf("records = %d, want 3", len(recs))
	}
}

func TestSubmit_AcceptedThenGet(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodPost, "/api/v1/fetch", budapest)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	id, _ := body["task_id"].(string)
	if id == "" {
		t.Fatal("missing task_id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		code, body = do(t, s, http.MethodGet, "/api/v1/fetch/"+id, "")
		if code != http.StatusOK {
			t.Fatalf("GET status = %d", code)
		}
		if body["state"] == "succeeded" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task did not finish, last state %v", body["state"])
		}
		time.Sleep(10 * time.Millisecond)
	}

	code, body = do(t, s, http.MethodGet, "/api/v1/fetch", "")
	tasks, _ := body["tasks"].([]any)
	if code != http.StatusOK || len(tasks) != 1 {
		t.Fatalf("list = %d %v", code, body)
	}
	first := tasks[0].(map[string]any)
	if o, _ := first["outcome"].(map[string]any); o["records"] != nil {
		t.Error("list should omit records")
	}
}

func TestSubmit_Validation(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"latitude out of range", `{"latitude": 95, "longitude": 0, "start_date": "2024-01-01", "end_date": "2024-01-01"}`},
		{"missing dates", `{"latitude": 1, "longitude": 2}`},
		{"bad date", `{"latitude": 1, "longitude": 2, "start_date": "2024-13-01", "end_date": "2024-01-01"}`},
		{"end before start", `{"latitude": 1, "longitude": 2, "start_date": "2024-01-05", "end_date": "2024-01-01"}`},
		{"no location", `{"start_date": "2024-01-01", "end_date": "2024-01-01"}`},
		{"unknown use case", `{"latitude": 1, "longitude": 2, "start_date": "2024-01-01", "end_date": "2024-01-01", "use_case": "forecast"}`},
		{"unknown provider", `{"latitude": 1, "longitude": 2, "start_date": "2024-01-01", "end_date": "2024-01-01", "provider": "openweather"}`},
		{"location without resolver", `{"location": "Budapest", "start_date": "2024-01-01", "end_date": "2024-01-01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/api/v1/fetch", tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %v)", code, body)
			}
			if body["error"] == nil {
				t.Error("missing error message")
			}
		})
	}
}

func TestSubmit_ResolvesLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.yaml")
	files := geocode.FileResolver{Path: path}
	if err := files.Save("Budapest", geocode.Coordinates{Latitude: 47.4979, Longitude: 19.0402}); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, WithResolver(files))

	code, body := do(t, s, http.MethodPost, "/api/v1/fetch?wait=true",
		`{"location": "budapest", "start_date": "2024-01-01", "end_date": "2024-01-01"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	req, _ := body["request"].(map[string]any)
	if req["latitude"] != 47.4979 || req["label"] != "Budapest" {
		t.Errorf("request = %v", req)
	}

	code, _ = do(t, s, http.MethodPost, "/api/v1/fetch",
		`{"location": "Atlantis", "start_date": "2024-01-01", "end_date": "2024-01-01"}`)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("unknown location status = %d, want 422", code)
	}
}

func TestUnknownTask(t *testing.T) {
	s := newTestServer(t)
	if code, _ := do(t, s, http.MethodGet, "/api/v1/fetch/nope", ""); code != http.StatusNotFound {
		t.Errorf("GET status = %d", code)
	}
	if code, _ := do(t, s, http.MethodDelete, "/api/v1/fetch/nope", ""); code != http.StatusNotFound {
		t.Errorf("DELETE status = %d", code)
	}
}

func TestCancelFinishedTask(t *testing.T) {
	s := newTestServer(t)
	_, body := do(t, s, http.MethodPost, "/api/v1/fetch?wait=true", budapest)
	id := body["task_id"].(string)

	code, body := do(t, s, http.MethodDelete, "/api/v1/fetch/"+id, "")
	if code != http.StatusOK || body["cancelled"] != false {
		t.Errorf("got %d %v, want cancelled=false for a finished task", code, body)
	}

	code, body = do(t, s, http.MethodDelete, "/api/v1/fetch", "")
	if code != http.StatusOK || body["cancelled"] != float64(0) {
		t.Errorf("cancel all = %d %v", code, body)
	}
}

func TestUsageAndProviders(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/fetch?wait=true", budapest)

	code, body := do(t, s, http.MethodGet, "/api/v1/usage", "")
	if code != http.StatusOK {
		t.Fatalf("usage status = %d", code)
	}
	found := false
	for _, p := range body["providers"].([]any) {
		m := p.(map[string]any)
		if m["provider"] == "open-meteo" {
			found = true
			if m["requests_this_month"] != float64(1) {
				t.Errorf("open-meteo requests = %v", m["requests_this_month"])
			}
		}
	}
	if !found {
		t.Error("open-meteo missing from usage")
	}

	_, body = do(t, s, http.MethodGet, "/api/v1/providers", "")
	for _, p := range body["providers"].([]any) {
		m := p.(map[string]any)
		if m["id"] == "meteostat" && m["available"] != false {
			t.Errorf("meteostat without a key should be unavailable: %v", m)
		}
	}
}

func TestRoute(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/api/v1/route?use_case=single-location&provider=meteostat", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	chain, _ := body["chain"].([]any)
	if len(chain) != 1 || chain[0] != "open-meteo" {
		t.Errorf("chain = %v", chain)
	}
	if rej, _ := body["rejected"].(map[string]any); rej["provider"] != "meteostat" {
		t.Errorf("rejected = %v", body["rejected"])
	}

	if code, _ := do(t, s, http.MethodGet, "/api/v1/route?use_case=forecast", ""); code != http.StatusBadRequest {
		t.Errorf("bad use case status = %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/fetch?wait=true", budapest)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), 5000)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `meteofetch_provider_requests_total{provider="open-meteo",status="ok"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", data)
	}
}
