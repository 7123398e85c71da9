package provider

import (
	"fmt"
	"sort"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Request is a prepared provider call.
type Request struct {
	URL     string
	Options []httpclient.RequestOption
}

// Provider builds requests for one upstream API and decodes its responses.
type Provider interface {
	ID() models.ProviderID
	// BuildRequest prepares the call for one point and window. apiKey is
	// empty for providers that need none.
	BuildRequest(req models.FetchRequest, window models.Window, apiKey string) (Request, error)
	aggregate.Decoder
}

// Registry holds the provider integrations wired into one engine.
type Registry struct {
	providers map[models.ProviderID]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[models.ProviderID]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same id.
func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
}

func (r *Registry) Get(id models.ProviderID) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Lookup is Get that errors on unknown ids.
func (r *Registry) Lookup(id models.ProviderID) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("no integration for provider %q", id)
	}
	return p, nil
}

func (r *Registry) IDs() []models.ProviderID {
	ids := make([]models.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Decoders exposes every provider as an aggregate decoder.
func (r *Registry) Decoders() map[models.ProviderID]aggregate.Decoder {
	out := make(map[models.ProviderID]aggregate.Decoder, len(r.providers))
	for id, p := range r.providers {
		out[id] = p
	}
	return out
}
