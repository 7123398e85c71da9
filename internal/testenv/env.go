package testenv

import "path/filepath"

// Dirs contains isolated directories for meteofetch config/data/cache in tests.
type Dirs struct {
	Base   string
	Config string
	Data   string
	Cache  string
}

// Isolated returns conventional test directories rooted at base.
func Isolated(base string) Dirs {
	return Dirs{
		Base:   base,
		Config: filepath.Join(base, "config"),
		Data:   filepath.Join(base, "data"),
		Cache:  filepath.Join(base, "cache"),
	}
}

// Apply sets METEOFETCH_* env vars to isolated test directories and clears
// provider keys from the environment.
func Apply(setenv func(string, string), base string) Dirs {
	dirs := Isolated(base)
	setenv("METEOFETCH_CONFIG_DIR", dirs.Config)
	setenv("METEOFETCH_DATA_DIR", dirs.Data)
	setenv("METEOFETCH_CACHE_DIR", dirs.Cache)
	setenv("METEOFETCH_PROVIDER", "")
	setenv("METEOFETCH_MAX_CONCURRENT", "")
	setenv("METEOSTAT_API_KEY", "")
	return dirs
}

// ApplySameDir points config/data/cache to the same directory.
// Useful in tests that expect ConfigDir() to exactly match a temp dir path.
func ApplySameDir(setenv func(string, string), dir string) {
	setenv("METEOFETCH_CONFIG_DIR", dir)
	setenv("METEOFETCH_DATA_DIR", dir)
	setenv("METEOFETCH_CACHE_DIR", dir)
	setenv("METEOSTAT_API_KEY", "")
}
