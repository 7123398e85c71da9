package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/meteostat"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/openmeteo"
	"github.com/joshuadavidthomas/meteofetch/internal/testenv"
)

// reloadConfig forces a config reload. Used by tests that modify
// METEOFETCH_CONFIG_DIR via t.Setenv before exercising commands.
func reloadConfig() {
	_, _ = config.Reload()
}

func newQuietContext(logBuf *bytes.Buffer) context.Context {
	l := logging.NewLogger(logBuf)
	logging.Configure(l, logging.Flags{Quiet: true})
	return logging.WithLogger(context.Background(), l)
}

// isolate points every meteofetch directory at a temp dir and resets the
// global config to defaults.
func isolate(t *testing.T) testenv.Dirs {
	t.Helper()
	dirs := testenv.Apply(t.Setenv, t.TempDir())
	config.Override(t, config.DefaultConfig())
	return dirs
}

// captureOutput redirects command output to a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	outWriter = &buf
	t.Cleanup(func() { outWriter = os.Stdout })
	return &buf
}

func setJSON(t *testing.T) {
	t.Helper()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
}

func setQuiet(t *testing.T) {
	t.Helper()
	quiet = true
	t.Cleanup(func() { quiet = false })
}

func useMockPrompt(t *testing.T, m *prompt.Mock) {
	t.Helper()
	old := prompt.Default
	prompt.SetDefault(m)
	t.Cleanup(func() { prompt.SetDefault(old) })
}

// setFlags sets flags on cmd and restores their defaults on cleanup.
func setFlags(t *testing.T, cmd *cobra.Command, values map[string]string) {
	t.Helper()
	for name, v := range values {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("unknown flag %q on %s", name, cmd.Name())
		}
		if err := cmd.Flags().Set(name, v); err != nil {
			t.Fatalf("setting --%s: %v", name, err)
		}
		t.Cleanup(func() {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
}

func findSubcommand(parent *cobra.Command, name string) *cobra.Command {
	for _, c := range parent.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

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

// useUpstream points both providers at handler for the test.
func useUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	old := newProviders
	newProviders = func() *provider.Registry {
		return provider.NewRegistry(
			openmeteo.New(openmeteo.WithBaseURL(srv.URL)),
			meteostat.New(meteostat.WithBaseURL(srv.URL)),
		)
	}
	t.Cleanup(func() { newProviders = old })
	return srv
}
