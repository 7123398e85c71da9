package provider

import (
	"testing"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

type stubProvider struct{ id models.ProviderID }

func (s stubProvider) ID() models.ProviderID { return s.id }

func (s stubProvider) BuildRequest(models.FetchRequest, models.Window, string) (Request, error) {
	return Request{URL: "https://example.test/" + string(s.id)}, nil
}

func (s stubProvider) Decode([]byte) (*aggregate.Table, error) { return aggregate.NewTable(nil), nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubProvider{"b"}, stubProvider{"a"})

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v", ids)
	}
	if _, ok := r.Get("a"); !ok {
		t.Error("Get(a) missing")
	}
	if _, err := r.Lookup("zzz"); err == nil {
		t.Error("Lookup(zzz) should fail")
	}
	if len(r.Decoders()) != 2 {
		t.Errorf("Decoders() = %d", len(r.Decoders()))
	}
}
