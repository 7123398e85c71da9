package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

// seedUsage records n meteostat requests in the on-disk ledger.
func seedUsage(t *testing.T, n int) {
	t.Helper()
	l := usage.NewLedger(catalog.Default(), nil, usage.WithStore(usage.FileStore{Path: config.UsageFile()}))
	for i := 0; i < n; i++ {
		if _, err := l.RecordUsage(models.ProviderMeteostat); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}
}

func loadedRequests(t *testing.T, id models.ProviderID) int {
	t.Helper()
	l := usage.NewLedger(catalog.Default(), nil, usage.WithStore(usage.FileStore{Path: config.UsageFile()}))
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	rec, _ := l.Snapshot(id)
	return rec.RequestsThisMonth
}

func TestUsageCmd_JSON(t *testing.T) {
	isolate(t)
	seedUsage(t, 12)
	buf := captureOutput(t)
	setJSON(t)

	usageCmd.SetContext(context.Background())
	if err := usageCmd.RunE(usageCmd, nil); err != nil {
		t.Fatalf("usage: %v", err)
	}

	var got struct {
		Providers []struct {
			Provider          string `json:"provider"`
			RequestsThisMonth int    `json:"requests_this_month"`
			Quota             int    `json:"quota"`
			Unlimited         bool   `json:"unlimited"`
		} `json:"providers"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Providers) != 2 {
		t.Fatalf("providers = %+v", got.Providers)
	}
	for _, p := range got.Providers {
		switch p.Provider {
		case "meteostat":
			if p.RequestsThisMonth != 12 || p.Quota != 10000 {
				t.Errorf("meteostat = %+v", p)
			}
		case "open-meteo":
			if !p.Unlimited {
				t.Errorf("open-meteo should be unlimited: %+v", p)
			}
		}
	}
}

func TestUsageCmd_Text(t *testing.T) {
	isolate(t)
	buf := captureOutput(t)
	noColor = true
	defer func() { noColor = false }()

	usageCmd.SetContext(context.Background())
	if err := usageCmd.RunE(usageCmd, nil); err != nil {
		t.Fatalf("usage: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "open-meteo") || !strings.Contains(out, "unlimited") {
		t.Errorf("output missing open-meteo line:\n%s", out)
	}
	if !strings.Contains(out, "credential") {
		t.Errorf("output should mention the missing meteostat key:\n%s", out)
	}
}

func TestUsageReset_UsesConfirm(t *testing.T) {
	isolate(t)
	seedUsage(t, 5)
	captureOutput(t)
	mock := &prompt.Mock{
		ConfirmFunc: func(cfg prompt.ConfirmConfig) (bool, error) { return true, nil },
	}
	useMockPrompt(t, mock)

	usageResetCmd.SetContext(context.Background())
	if err := usageResetCmd.RunE(usageResetCmd, []string{"meteostat"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(mock.ConfirmCalls) != 1 {
		t.Errorf("expected 1 Confirm call, got %d", len(mock.ConfirmCalls))
	}
	if n := loadedRequests(t, models.ProviderMeteostat); n != 0 {
		t.Errorf("requests after reset = %d", n)
	}
}

func TestUsageReset_UserDeclines(t *testing.T) {
	isolate(t)
	seedUsage(t, 5)
	buf := captureOutput(t)
	useMockPrompt(t, &prompt.Mock{
		ConfirmFunc: func(cfg prompt.ConfirmConfig) (bool, error) { return false, nil },
	})

	usageResetCmd.SetContext(context.Background())
	if err := usageResetCmd.RunE(usageResetCmd, []string{"meteostat"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(buf.String(), "cancelled") {
		t.Errorf("output = %q", buf.String())
	}
	if n := loadedRequests(t, models.ProviderMeteostat); n != 5 {
		t.Errorf("requests = %d, want 5 untouched", n)
	}
}

func TestUsageReset_UnknownProvider(t *testing.T) {
	isolate(t)
	captureOutput(t)
	var logBuf bytes.Buffer
	usageResetCmd.SetContext(newQuietContext(&logBuf))
	if err := usageResetCmd.RunE(usageResetCmd, []string{"nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
