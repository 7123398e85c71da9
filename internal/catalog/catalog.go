package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Capabilities describes what a provider can deliver.
type Capabilities struct {
	Historical    bool `json:"historical"`
	WindGusts     bool `json:"wind_gusts"`
	HourlyGusts   bool `json:"hourly_gusts"`
	StationBased  bool `json:"station_based"`
	MultiLocation bool `json:"multi_location"`
}

// Descriptor is the static description of one provider.
type Descriptor struct {
	ID          models.ProviderID `json:"id"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Homepage    string            `json:"homepage"`

	// MonthlyQuota of zero means unlimited.
	MonthlyQuota      int           `json:"monthly_quota"`
	MinInterval       time.Duration `json:"min_interval"`
	CostPerRequest    float64       `json:"cost_per_request_usd"`
	MaxDaysPerRequest int           `json:"max_days_per_request"`
	RequiresKey       bool          `json:"requires_key"`
	Capabilities      Capabilities  `json:"capabilities"`
}

func (d Descriptor) Unlimited() bool { return d.MonthlyQuota <= 0 }

// Override adjusts a descriptor from configuration. Nil fields keep the
// built-in value.
type Override struct {
	MonthlyQuota   *int
	CostPerRequest *float64
	MinInterval    *time.Duration
}

// Catalog is the fixed set of providers known at startup. It is read-only
// after construction and safe to share.
type Catalog struct {
	descriptors []Descriptor
	byID        map[models.ProviderID]Descriptor
}

// New builds a catalog. Duplicate ids are an error.
func New(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[models.ProviderID]Descriptor, len(descs))}
	for _, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog: descriptor without id")
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate provider %q", d.ID)
		}
		c.byID[d.ID] = d
		c.descriptors = append(c.descriptors, d)
	}
	sortByCost(c.descriptors)
	return c, nil
}

// MustNew is New that panics on error.
func MustNew(descs ...Descriptor) *Catalog {
	c, err := New(descs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the built-in providers.
func Default() *Catalog {
	return MustNew(OpenMeteo(), Meteostat())
}

func OpenMeteo() Descriptor {
	return Descriptor{
		ID:                models.ProviderOpenMeteo,
		Label:             "Open-Meteo",
		Description:       "Free historical weather archive (ERA5 reanalysis)",
		Homepage:          "https://open-meteo.com",
		MonthlyQuota:      0,
		MinInterval:       100 * time.Millisecond,
		CostPerRequest:    0,
		MaxDaysPerRequest: 90,
		RequiresKey:       false,
		Capabilities: Capabilities{
			Historical:  true,
			WindGusts:   true,
			HourlyGusts: true,
		},
	}
}

func Meteostat() Descriptor {
	return Descriptor{
		ID:                models.ProviderMeteostat,
		Label:             "Meteostat",
		Description:       "Weather station observations via RapidAPI",
		Homepage:          "https://dev.meteostat.net",
		MonthlyQuota:      10000,
		MinInterval:       100 * time.Millisecond,
		CostPerRequest:    0.001,
		MaxDaysPerRequest: 3650,
		RequiresKey:       true,
		Capabilities: Capabilities{
			Historical:    true,
			WindGusts:     true,
			StationBased:  true,
			MultiLocation: true,
		},
	}
}

func (c *Catalog) Get(id models.ProviderID) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

func (c *Catalog) Has(id models.ProviderID) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns descriptors ordered by ascending cost, then id.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// IDs returns provider ids ordered by ascending cost, then id.
func (c *Catalog) IDs() []models.ProviderID {
	ids := make([]models.ProviderID, len(c.descriptors))
	for i, d := range c.descriptors {
		ids[i] = d.ID
	}
	return ids
}

// WithOverrides returns a new catalog with the given adjustments applied.
// Overrides for unknown providers are ignored.
func (c *Catalog) WithOverrides(overrides map[models.ProviderID]Override) *Catalog {
	descs := c.All()
	for i, d := range descs {
		o, ok := overrides[d.ID]
		if !ok {
			continue
		}
		if o.MonthlyQuota != nil {
			d.MonthlyQuota = *o.MonthlyQuota
		}
		if o.CostPerRequest != nil {
			d.CostPerRequest = *o.CostPerRequest
		}
		if o.MinInterval != nil {
			d.MinInterval = *o.MinInterval
		}
		descs[i] = d
	}
	return MustNew(descs...)
}

func sortByCost(descs []Descriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		if descs[i].CostPerRequest != descs[j].CostPerRequest {
			return descs[i].CostPerRequest < descs[j].CostPerRequest
		}
		return descs[i].ID < descs[j].ID
	})
}
