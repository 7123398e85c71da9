package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

type FetchConfig struct {
	Timeout       float64 `toml:"timeout" json:"timeout"`
	MaxConcurrent int     `toml:"max_concurrent" json:"max_concurrent"`
}

type RoutingConfig struct {
	DefaultProvider string            `toml:"default_provider" json:"default_provider"`
	UseCases        map[string]string `toml:"use_cases" json:"use_cases"`
}

type ProviderConfig struct {
	Enabled        *bool    `toml:"enabled,omitempty" json:"enabled,omitempty"`
	MonthlyQuota   *int     `toml:"monthly_quota,omitempty" json:"monthly_quota,omitempty"`
	CostPerRequest *float64 `toml:"cost_per_request,omitempty" json:"cost_per_request,omitempty"`
	MinInterval    *float64 `toml:"min_interval,omitempty" json:"min_interval,omitempty"` // seconds
}

type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

type GeocodingConfig struct {
	Online bool `toml:"online" json:"online"`
}

type Config struct {
	Fetch     FetchConfig               `toml:"fetch" json:"fetch"`
	Routing   RoutingConfig             `toml:"routing" json:"routing"`
	Providers map[string]ProviderConfig `toml:"providers" json:"providers"`
	Server    ServerConfig              `toml:"server" json:"server"`
	Geocoding GeocodingConfig           `toml:"geocoding" json:"geocoding"`
}

func DefaultConfig() Config {
	return Config{
		Fetch: FetchConfig{
			Timeout:       30.0,
			MaxConcurrent: 4,
		},
		Routing: RoutingConfig{
			DefaultProvider: "auto",
			UseCases:        make(map[string]string),
		},
		Providers: make(map[string]ProviderConfig),
		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},
		Geocoding: GeocodingConfig{
			Online: true,
		},
	}
}

func (c Config) clone() Config {
	out := c
	out.Routing.UseCases = make(map[string]string, len(c.Routing.UseCases))
	for k, v := range c.Routing.UseCases {
		out.Routing.UseCases[k] = v
	}
	out.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for k, v := range c.Providers {
		out.Providers[k] = v
	}
	return out
}

// FetchTimeout returns the per-request timeout.
func (c Config) FetchTimeout() time.Duration {
	if c.Fetch.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetch.Timeout * float64(time.Second))
}

func (c Config) IsProviderEnabled(id models.ProviderID) bool {
	pc, ok := c.Providers[string(id)]
	return !ok || pc.Enabled == nil || *pc.Enabled
}

// DefaultChoice parses routing.default_provider.
func (c Config) DefaultChoice() (models.ProviderChoice, error) {
	return models.ParseProviderChoice(c.Routing.DefaultProvider)
}

// Catalog applies the [providers] section to base: disabled providers are
// dropped, quota, cost and interval overrides are applied.
func (c Config) Catalog(base *catalog.Catalog) (*catalog.Catalog, error) {
	overrides := make(map[models.ProviderID]catalog.Override)
	var kept []catalog.Descriptor
	for _, d := range base.All() {
		if !c.IsProviderEnabled(d.ID) {
			continue
		}
		kept = append(kept, d)
		pc, ok := c.Providers[string(d.ID)]
		if !ok {
			continue
		}
		o := catalog.Override{MonthlyQuota: pc.MonthlyQuota, CostPerRequest: pc.CostPerRequest}
		if pc.MinInterval != nil {
			iv := time.Duration(*pc.MinInterval * float64(time.Second))
			o.MinInterval = &iv
		}
		overrides[d.ID] = o
	}
	cat, err := catalog.New(kept...)
	if err != nil {
		return nil, err
	}
	return cat.WithOverrides(overrides), nil
}

// UseCasePreferences parses routing.use_cases into router preferences.
func (c Config) UseCasePreferences() (map[models.UseCase]models.ProviderID, error) {
	prefs := make(map[models.UseCase]models.ProviderID, len(c.Routing.UseCases))
	for rawUC, rawID := range c.Routing.UseCases {
		uc, err := models.ParseUseCase(rawUC)
		if err != nil {
			return nil, fmt.Errorf("routing.use_cases: %w", err)
		}
		id := models.ProviderID(strings.TrimSpace(rawID))
		if !id.Known() {
			return nil, fmt.Errorf("routing.use_cases.%s: unknown provider %q", rawUC, rawID)
		}
		prefs[uc] = id
	}
	return prefs, nil
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

func Get() Config {
	configMu.RLock()
	if c := globalConfig; c != nil {
		configMu.RUnlock()
		return c.clone()
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig != nil {
		return globalConfig.clone()
	}
	c, _ := Load("")
	globalConfig = &c
	return c.clone()
}

// Init loads the config file into the global config, surfacing parse errors.
func Init() (Config, error) {
	return Reload()
}

func Reload() (Config, error) {
	configMu.Lock()
	defer configMu.Unlock()
	c, err := Load("")
	globalConfig = &c
	return c.clone(), err
}

func set(cfg Config) {
	configMu.Lock()
	defer configMu.Unlock()
	c := cfg.clone()
	globalConfig = &c
}

func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigFile()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return applyEnvOverrides(cfg), nil
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return applyEnvOverrides(DefaultConfig()), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Routing.UseCases == nil {
		cfg.Routing.UseCases = make(map[string]string)
	}

	return applyEnvOverrides(cfg), nil
}

func Save(cfg Config, path string) error {
	if path == "" {
		path = ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("METEOFETCH_PROVIDER")); v != "" {
		cfg.Routing.DefaultProvider = v
	}
	if v := strings.TrimSpace(os.Getenv("METEOFETCH_MAX_CONCURRENT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Fetch.MaxConcurrent = n
		}
	}
	return cfg
}
