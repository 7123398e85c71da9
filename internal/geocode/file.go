package geocode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LocationsFile is the on-disk form of saved locations.
type LocationsFile struct {
	Locations map[string]Coordinates `yaml:"locations"`
}

// FileResolver looks names up in a YAML file of saved locations. The file
// is read on every call so edits apply without a restart.
type FileResolver struct {
	Path string
}

// Load returns the saved locations. A missing file is empty.
func (f FileResolver) Load() (LocationsFile, error) {
	lf := LocationsFile{Locations: map[string]Coordinates{}}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return lf, nil
	}
	if err != nil {
		return lf, fmt.Errorf("reading locations: %w", err)
	}
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return lf, fmt.Errorf("parsing locations file %s: %w", f.Path, err)
	}
	if lf.Locations == nil {
		lf.Locations = map[string]Coordinates{}
	}
	return lf, nil
}

func (f FileResolver) Resolve(_ context.Context, name string) (Coordinates, error) {
	lf, err := f.Load()
	if err != nil {
		return Coordinates{}, err
	}
	want := normalizeName(name)
	for key, c := range lf.Locations {
		if normalizeName(key) == want {
			if c.Name == "" {
				c.Name = key
			}
			c.Source = "file"
			return c, nil
		}
	}
	return Coordinates{}, ErrNotFound
}

// Save adds or replaces a named location.
func (f FileResolver) Save(name string, c Coordinates) error {
	lf, err := f.Load()
	if err != nil {
		return err
	}
	c.Source = ""
	lf.Locations[name] = c

	data, err := yaml.Marshal(lf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o644)
}

// Names returns saved location names, sorted.
func (f FileResolver) Names() ([]string, error) {
	lf, err := f.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(lf.Locations))
	for n := range lf.Locations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
