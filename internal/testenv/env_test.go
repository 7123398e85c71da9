package testenv

import (
	"path/filepath"
	"testing"
)

func TestApply(t *testing.T) {
	got := map[string]string{}
	dirs := Apply(func(k, v string) { got[k] = v }, "/tmp/x")
	if dirs.Config != filepath.Join("/tmp/x", "config") {
		t.Errorf("config = %q", dirs.Config)
	}
	if got["METEOFETCH_DATA_DIR"] != dirs.Data || got["METEOFETCH_CACHE_DIR"] != dirs.Cache {
		t.Errorf("env = %v", got)
	}
	if v, ok := got["METEOSTAT_API_KEY"]; !ok || v != "" {
		t.Error("provider key should be cleared")
	}
}
