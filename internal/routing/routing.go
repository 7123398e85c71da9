package routing

import (
	"errors"
	"sort"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

// ErrNoProviderAvailable is returned when routing yields an empty chain.
var ErrNoProviderAvailable = errors.New("no provider available")

// Availability is the view of the usage ledger the router needs.
type Availability interface {
	Check(id models.ProviderID) usage.Availability
}

// DefaultPreferences maps each use case to its preferred provider.
func DefaultPreferences() map[models.UseCase]models.ProviderID {
	return map[models.UseCase]models.ProviderID{
		models.UseCaseSingleLocation: models.ProviderOpenMeteo,
		models.UseCaseRealTime:       models.ProviderOpenMeteo,
		models.UseCaseMultiLocation:  models.ProviderMeteostat,
		models.UseCaseHistoricalDeep: models.ProviderMeteostat,
	}
}

// Rejection records an explicit provider choice that could not be honored.
type Rejection struct {
	Provider models.ProviderID `json:"provider"`
	Reason   string            `json:"reason"`
}

// Skipped is a catalog provider left out of the chain.
type Skipped struct {
	Provider models.ProviderID `json:"provider"`
	Reason   string            `json:"reason"`
}

// Selection is the routing decision for one request.
type Selection struct {
	// Chain is the ordered, duplicate-free list of providers to try.
	Chain     []models.ProviderID `json:"chain"`
	// Preferred is the provider the caller or use case asked for. A result
	// served by anyone else counts as a fallback.
	Preferred models.ProviderID   `json:"preferred,omitempty"`
	Rejected  *Rejection          `json:"rejected,omitempty"`
	Skipped   []Skipped           `json:"skipped,omitempty"`
}

func (s Selection) Empty() bool { return len(s.Chain) == 0 }

// Router builds provider chains from the catalog and a usage snapshot.
type Router struct {
	catalog *catalog.Catalog
	avail   Availability
	prefs   map[models.UseCase]models.ProviderID
}

type Option func(*Router)

// WithPreferences overrides use-case preferences. Unlisted use cases keep
// their defaults.
func WithPreferences(prefs map[models.UseCase]models.ProviderID) Option {
	return func(r *Router) {
		for uc, id := range prefs {
			r.prefs[uc] = id
		}
	}
}

func NewRouter(cat *catalog.Catalog, avail Availability, opts ...Option) *Router {
	r := &Router{catalog: cat, avail: avail, prefs: DefaultPreferences()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Preference returns the preferred provider for a use case.
func (r *Router) Preference(uc models.UseCase) (models.ProviderID, bool) {
	id, ok := r.prefs[uc]
	return id, ok
}

// Select computes the provider chain. A usable explicit choice yields a
// single-element chain. An unusable one is reported in Rejected and routing
// proceeds automatically: the use case's preferred provider first when
// available, then every other available provider by ascending cost with
// provider id as the tie-break.
func (r *Router) Select(uc models.UseCase, choice models.ProviderChoice) Selection {
	var sel Selection

	if id, explicit := choice.Provider(); explicit {
		reason := ""
		if !r.catalog.Has(id) {
			reason = "not in catalog"
		} else if a := r.avail.Check(id); !a.Available {
			reason = a.Reason
		}
		if reason == "" {
			sel.Chain = []models.ProviderID{id}
			sel.Preferred = id
			return sel
		}
		sel.Rejected = &Rejection{Provider: id, Reason: reason}
	}

	preferred, hasPref := r.prefs[uc]
	if hasPref && r.catalog.Has(preferred) {
		sel.Preferred = preferred
	}

	var rest []catalog.Descriptor
	for _, d := range r.catalog.All() {
		a := r.avail.Check(d.ID)
		if !a.Available {
			sel.Skipped = append(sel.Skipped, Skipped{Provider: d.ID, Reason: a.Reason})
			continue
		}
		if d.ID == sel.Preferred {
			sel.Chain = append(sel.Chain, d.ID)
			continue
		}
		rest = append(rest, d)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].CostPerRequest != rest[j].CostPerRequest {
			return rest[i].CostPerRequest < rest[j].CostPerRequest
		}
		return rest[i].ID < rest[j].ID
	})
	for _, d := range rest {
		sel.Chain = append(sel.Chain, d.ID)
	}

	if sel.Preferred == "" && len(sel.Chain) > 0 {
		sel.Preferred = sel.Chain[0]
	}
	return sel
}
