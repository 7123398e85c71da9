package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/keychain"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// ProviderEnvVars maps provider ids to the environment variable holding their API key.
var ProviderEnvVars = map[models.ProviderID]string{
	models.ProviderMeteostat: "METEOSTAT_API_KEY",
}

// minKeyLength is the shortest key each provider issues.
var minKeyLength = map[models.ProviderID]int{
	models.ProviderMeteostat: 32,
}

var (
	ErrNoCredential      = errors.New("no API key configured")
	ErrInvalidCredential = errors.New("API key is malformed")
)

const (
	SourceEnv      = "env"
	SourceDotenv   = "dotenv"
	SourceStored   = "stored"
	SourceKeychain = "keychain"
)

type storedKey struct {
	APIKey string `json:"api_key"`
}

func CredentialPath(id models.ProviderID) string {
	return filepath.Join(CredentialsDir(), string(id), "apikey.json")
}

// ValidateAPIKey applies the provider's key shape rules.
func ValidateAPIKey(id models.ProviderID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNoCredential
	}
	if n := minKeyLength[id]; len(key) < n {
		return fmt.Errorf("%w: expected at least %d characters", ErrInvalidCredential, n)
	}
	return nil
}

// FindAPIKey looks for a provider key in the environment, then .env files
// (config dir, then working dir), then the stored credential file, then the
// macOS keychain.
// It returns the key and its source, or empty strings when none exists.
func FindAPIKey(id models.ProviderID) (string, string) {
	envVar, ok := ProviderEnvVars[id]
	if ok {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v, SourceEnv
		}
		for _, f := range []string{EnvFile(), ".env"} {
			vals, err := godotenv.Read(f)
			if err != nil {
				continue
			}
			if v := strings.TrimSpace(vals[envVar]); v != "" {
				return v, SourceDotenv
			}
		}
	}

	if v := readStoredKey(id); v != "" {
		return v, SourceStored
	}
	if v, err := keychainLookup(keychain.Service, string(id)); err == nil {
		return v, SourceKeychain
	}
	return "", ""
}

var keychainLookup = keychain.Lookup

func readStoredKey(id models.ProviderID) string {
	data, err := ReadCredential(CredentialPath(id))
	if err != nil || data == nil {
		return ""
	}
	var sk storedKey
	if err := json.Unmarshal(data, &sk); err != nil {
		return ""
	}
	return strings.TrimSpace(sk.APIKey)
}

// StoreAPIKey validates and writes a provider key to credential storage.
func StoreAPIKey(id models.ProviderID, key string) error {
	if err := ValidateAPIKey(id, key); err != nil {
		return err
	}
	content, err := json.Marshal(storedKey{APIKey: strings.TrimSpace(key)})
	if err != nil {
		return err
	}
	return WriteCredential(CredentialPath(id), content)
}

func WriteCredential(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	return nil
}

func ReadCredential(path string) ([]byte, error) {
	if !fileExists(path) {
		return nil, nil
	}
	return os.ReadFile(path)
}

func DeleteCredential(path string) bool {
	return os.Remove(path) == nil
}

// CredentialStatus reports whether a provider can be called.
type CredentialStatus struct {
	Required bool   `json:"required"`
	Present  bool   `json:"present"`
	Valid    bool   `json:"valid"`
	Source   string `json:"source,omitempty"`
	Problem  string `json:"problem,omitempty"`
}

// Credentials resolves API keys for the providers of one catalog.
type Credentials struct {
	requiresKey map[models.ProviderID]bool
	lookup      func(models.ProviderID) (string, string)
}

func NewCredentials(cat *catalog.Catalog) *Credentials {
	req := make(map[models.ProviderID]bool)
	for _, d := range cat.All() {
		req[d.ID] = d.RequiresKey
	}
	return &Credentials{requiresKey: req, lookup: FindAPIKey}
}

// StaticCredentials serves fixed keys. Used by tests and the HTTP server's
// test harness.
func StaticCredentials(cat *catalog.Catalog, keys map[models.ProviderID]string) *Credentials {
	c := NewCredentials(cat)
	c.lookup = func(id models.ProviderID) (string, string) {
		if k, ok := keys[id]; ok && k != "" {
			return k, "static"
		}
		return "", ""
	}
	return c
}

// APIKey returns the provider's key, or "" when none is needed or found.
func (c *Credentials) APIKey(id models.ProviderID) string {
	if !c.requiresKey[id] {
		return ""
	}
	key, _ := c.lookup(id)
	return key
}

func (c *Credentials) Status(id models.ProviderID) CredentialStatus {
	if !c.requiresKey[id] {
		return CredentialStatus{Present: true, Valid: true}
	}
	key, source := c.lookup(id)
	st := CredentialStatus{Required: true, Present: key != "", Source: source}
	if err := ValidateAPIKey(id, key); err != nil {
		st.Problem = err.Error()
		return st
	}
	st.Valid = true
	return st
}

// Check returns nil when the provider's credential is usable.
func (c *Credentials) Check(id models.ProviderID) error {
	if !c.requiresKey[id] {
		return nil
	}
	key, _ := c.lookup(id)
	return ValidateAPIKey(id, key)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
