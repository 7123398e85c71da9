package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means no resolver knows the name.
	ErrNotFound = errors.New("location not found")
	// ErrQueryTooShort rejects searches shorter than MinQueryLength.
	ErrQueryTooShort = errors.New("location name too short")
)

// MinQueryLength is the shortest name sent to an online search.
const MinQueryLength = 2

// Coordinates is a resolved location.
type Coordinates struct {
	Name      string  `json:"name" yaml:"name,omitempty"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Country   string  `json:"country,omitempty" yaml:"country,omitempty"`
	Region    string  `json:"region,omitempty" yaml:"region,omitempty"`
	Timezone  string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Source    string  `json:"source" yaml:"-"`
}

func (c Coordinates) String() string {
	label := c.Name
	if c.Region != "" {
		label += ", " + c.Region
	}
	if c.Country != "" {
		label += ", " + c.Country
	}
	return fmt.Sprintf("%s (%.4f, %.4f)", label, c.Latitude, c.Longitude)
}

// Resolver turns a location name into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Coordinates, error)
}

// Chain asks each resolver in turn. The first match wins; ErrNotFound moves
// on to the next resolver. When nothing matches, the last other error is
// returned, or ErrNotFound.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, name string) (Coordinates, error) {
	var lastErr error
	for _, r := range c {
		if err := ctx.Err(); err != nil {
			return Coordinates{}, err
		}
		coords, err := r.Resolve(ctx, name)
		if err == nil {
			return coords, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return Coordinates{}, lastErr
	}
	return Coordinates{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Literal resolves "lat,lon" strings without any lookup.
type Literal struct{}

func (Literal) Resolve(_ context.Context, name string) (Coordinates, error) {
	lat, lon, ok := ParseLatLon(name)
	if !ok {
		return Coordinates{}, ErrNotFound
	}
	return Coordinates{Name: strings.TrimSpace(name), Latitude: lat, Longitude: lon, Source: "literal"}, nil
}

// ParseLatLon parses "47.5,19.04" (whitespace allowed). Values must be
// valid WGS84 coordinates.
func ParseLatLon(s string) (lat, lon float64, ok bool) {
	a, b, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
