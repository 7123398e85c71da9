package config

import "testing"

// Override sets the global config to cfg for the duration of the test,
// restoring the previous value on cleanup.
func Override(t testing.TB, cfg Config) {
	t.Helper()
	configMu.RLock()
	prev := globalConfig
	configMu.RUnlock()

	set(cfg)
	t.Cleanup(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = prev
	})
}

// Modify overrides the global config with a copy of the defaults changed by
// fn, for the duration of the test.
func Modify(t testing.TB, fn func(*Config)) {
	t.Helper()
	cfg := DefaultConfig()
	fn(&cfg)
	Override(t, cfg)
}
