package cli

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
)

const testKey = "0123456789abcdef0123456789abcdef"

func meteostatKeyCmd(t *testing.T, sub string) *cobra.Command {
	t.Helper()
	parent := findSubcommand(keyCmd, "meteostat")
	if parent == nil {
		t.Fatal("expected 'meteostat' subcommand under 'key'")
	}
	if sub == "" {
		return parent
	}
	c := findSubcommand(parent, sub)
	if c == nil {
		t.Fatalf("expected %q subcommand under 'key meteostat'", sub)
	}
	return c
}

func TestKeySet_UsesInputPrompt(t *testing.T) {
	isolate(t)
	captureOutput(t)
	mock := &prompt.Mock{
		InputFunc: func(cfg prompt.InputConfig) (string, error) {
			if !cfg.Secret {
				t.Error("key input should be masked")
			}
			if cfg.Validate == nil || cfg.Validate("short") == nil {
				t.Error("validation should reject a short key")
			}
			return testKey, nil
		},
	}
	useMockPrompt(t, mock)

	setCmd := meteostatKeyCmd(t, "set")
	if err := setCmd.RunE(setCmd, nil); err != nil {
		t.Fatalf("key set: %v", err)
	}
	if len(mock.InputCalls) != 1 {
		t.Fatalf("expected 1 Input call, got %d", len(mock.InputCalls))
	}
	if key, source := config.FindAPIKey(models.ProviderMeteostat); key != testKey || source != config.SourceStored {
		t.Errorf("stored key = %q from %q", key, source)
	}
}

func TestKeySet_FromArgRejectsInvalid(t *testing.T) {
	isolate(t)
	captureOutput(t)
	setCmd := meteostatKeyCmd(t, "set")
	if err := setCmd.RunE(setCmd, []string{"short"}); err == nil {
		t.Error("expected error for a malformed key")
	}
	if _, err := os.Stat(config.CredentialPath(models.ProviderMeteostat)); !os.IsNotExist(err) {
		t.Error("no credential file should be written")
	}
}

func TestKeyDelete_UsesConfirmPrompt(t *testing.T) {
	isolate(t)
	buf := captureOutput(t)
	if err := config.StoreAPIKey(models.ProviderMeteostat, testKey); err != nil {
		t.Fatal(err)
	}
	mock := &prompt.Mock{
		ConfirmFunc: func(cfg prompt.ConfirmConfig) (bool, error) { return true, nil },
	}
	useMockPrompt(t, mock)

	deleteCmd := meteostatKeyCmd(t, "delete")
	if err := deleteCmd.RunE(deleteCmd, nil); err != nil {
		t.Fatalf("key delete: %v", err)
	}
	if len(mock.ConfirmCalls) != 1 {
		t.Errorf("expected 1 Confirm call, got %d", len(mock.ConfirmCalls))
	}
	if !strings.Contains(buf.String(), "Deleted") {
		t.Errorf("output = %q", buf.String())
	}
	if _, err := os.Stat(config.CredentialPath(models.ProviderMeteostat)); !os.IsNotExist(err) {
		t.Error("credential file should be removed")
	}
}

func TestKeyDelete_UserDeclinesConfirm(t *testing.T) {
	isolate(t)
	captureOutput(t)
	if err := config.StoreAPIKey(models.ProviderMeteostat, testKey); err != nil {
		t.Fatal(err)
	}
	useMockPrompt(t, &prompt.Mock{
		ConfirmFunc: func(cfg prompt.ConfirmConfig) (bool, error) { return false, nil },
	})

	deleteCmd := meteostatKeyCmd(t, "delete")
	if err := deleteCmd.RunE(deleteCmd, nil); err != nil {
		t.Fatalf("key delete: %v", err)
	}
	if _, err := os.Stat(config.CredentialPath(models.ProviderMeteostat)); err != nil {
		t.Error("credential should be kept when the user declines")
	}
}

func TestKeyCmd_StatusJSON(t *testing.T) {
	isolate(t)
	t.Setenv("METEOSTAT_API_KEY", testKey)
	buf := captureOutput(t)
	setJSON(t)

	if err := keyCmd.RunE(keyCmd, nil); err != nil {
		t.Fatalf("key: %v", err)
	}
	var got []struct {
		Provider string `json:"provider"`
		Valid    bool   `json:"valid"`
		Source   string `json:"source"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 1 || got[0].Provider != "meteostat" || !got[0].Valid || got[0].Source != config.SourceEnv {
		t.Errorf("status = %+v", got)
	}
}

func TestKeyProviderCmd_NotConfigured(t *testing.T) {
	isolate(t)
	buf := captureOutput(t)
	c := meteostatKeyCmd(t, "")
	if err := c.RunE(c, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "METEOSTAT_API_KEY") {
		t.Errorf("output should name the env var:\n%s", buf.String())
	}
}
