package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
)

func TestLocationsAddThenList(t *testing.T) {
	isolate(t)
	captureOutput(t)
	setFlags(t, locationsAddCmd, map[string]string{"lat": "47.4979", "lon": "19.0402", "country": "Hungary"})

	if err := locationsAddCmd.RunE(locationsAddCmd, []string{"Budapest"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	buf := captureOutput(t)
	setJSON(t)
	if err := locationsListCmd.RunE(locationsListCmd, nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	var got map[string]geocode.Coordinates
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	c, ok := got["Budapest"]
	if !ok || c.Latitude != 47.4979 || c.Country != "Hungary" {
		t.Errorf("locations = %+v", got)
	}
}

func TestLocationsAdd_Validation(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
		loc   string
	}{
		{"blank name", map[string]string{"lat": "10", "lon": "10"}, "  "},
		{"missing lon", map[string]string{"lat": "10"}, "X"},
		{"latitude out of range", map[string]string{"lat": "91", "lon": "0"}, "X"},
		{"longitude out of range", map[string]string{"lat": "0", "lon": "-181"}, "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			captureOutput(t)
			setFlags(t, locationsAddCmd, tt.flags)
			if err := locationsAddCmd.RunE(locationsAddCmd, []string{tt.loc}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLocationsList_Empty(t *testing.T) {
	isolate(t)
	buf := captureOutput(t)
	if err := locationsListCmd.RunE(locationsListCmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No saved locations") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLocationsSearch_Quiet(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Vienna" {
			t.Errorf("name = %q", r.URL.Query().Get("name"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"name":"Vienna","latitude":48.2085,"longitude":16.3721,"country":"Austria","admin1":"Vienna","timezone":"Europe/Vienna"}]}`))
	}))
	defer srv.Close()

	old := newSearcher
	newSearcher = func() *geocode.OpenMeteoResolver {
		r := geocode.NewOpenMeteoResolver(httpclient.New())
		r.BaseURL = srv.URL
		return r
	}
	defer func() { newSearcher = old }()

	buf := captureOutput(t)
	setQuiet(t)
	locationsSearchCmd.SetContext(context.Background())
	if err := locationsSearchCmd.RunE(locationsSearchCmd, []string{"Vienna"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := buf.String(); got != "Vienna\t48.2085\t16.3721\n" {
		t.Errorf("output = %q", got)
	}
}
