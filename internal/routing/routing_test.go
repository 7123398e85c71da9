package routing

import (
	"testing"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

type fakeAvailability map[models.ProviderID]string

// Check treats providers present in the map as unavailable with the mapped reason.
func (f fakeAvailability) Check(id models.ProviderID) usage.Availability {
	if reason, ok := f[id]; ok {
		return usage.Availability{Reason: reason}
	}
	return usage.Availability{Available: true}
}

func fourProviders() *catalog.Catalog {
	return catalog.MustNew(
		catalog.Descriptor{ID: models.ProviderOpenMeteo, Label: "Open-Meteo"},
		catalog.Descriptor{ID: models.ProviderMeteostat, Label: "Meteostat", CostPerRequest: 0.001, MonthlyQuota: 10000},
		catalog.Descriptor{ID: "bravo", Label: "Bravo", CostPerRequest: 0.005},
		catalog.Descriptor{ID: "alpha", Label: "Alpha", CostPerRequest: 0.005},
	)
}

func chainEquals(t *testing.T, got []models.ProviderID, want ...models.ProviderID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain = %v, want %v", got, want)
		}
	}
}

func TestSelect_PreferredFirstThenCostThenID(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{})

	sel := r.Select(models.UseCaseHistoricalDeep, models.Auto)
	chainEquals(t, sel.Chain, models.ProviderMeteostat, models.ProviderOpenMeteo, "alpha", "bravo")
	if sel.Preferred != models.ProviderMeteostat {
		t.Errorf("Preferred = %q", sel.Preferred)
	}

	sel = r.Select(models.UseCaseSingleLocation, models.Auto)
	chainEquals(t, sel.Chain, models.ProviderOpenMeteo, models.ProviderMeteostat, "alpha", "bravo")
}

func TestSelect_Deterministic(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{"bravo": "quota"})
	first := r.Select(models.UseCaseMultiLocation, models.Auto)
	for i := 0; i < 50; i++ {
		again := r.Select(models.UseCaseMultiLocation, models.Auto)
		chainEquals(t, again.Chain, first.Chain...)
	}
}

func TestSelect_UnavailableProvidersExcluded(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{models.ProviderMeteostat: "credential: no API key configured"})

	sel := r.Select(models.UseCaseHistoricalDeep, models.Auto)
	chainEquals(t, sel.Chain, models.ProviderOpenMeteo, "alpha", "bravo")
	if sel.Preferred != models.ProviderMeteostat {
		t.Errorf("Preferred = %q, want meteostat so the substitute counts as fallback", sel.Preferred)
	}
	if len(sel.Skipped) != 1 || sel.Skipped[0].Provider != models.ProviderMeteostat {
		t.Errorf("Skipped = %+v", sel.Skipped)
	}
}

func TestSelect_ValidOverride(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{})
	sel := r.Select(models.UseCaseSingleLocation, models.Use(models.ProviderMeteostat))
	chainEquals(t, sel.Chain, models.ProviderMeteostat)
	if sel.Rejected != nil {
		t.Errorf("Rejected = %+v", sel.Rejected)
	}
}

func TestSelect_InvalidOverrideFallsBackToAuto(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{models.ProviderMeteostat: "credential: API key is malformed"})
	sel := r.Select(models.UseCaseSingleLocation, models.Use(models.ProviderMeteostat))

	if sel.Rejected == nil || sel.Rejected.Provider != models.ProviderMeteostat {
		t.Fatalf("Rejected = %+v", sel.Rejected)
	}
	if sel.Rejected.Reason == "" {
		t.Error("rejection should carry a reason")
	}
	chainEquals(t, sel.Chain, models.ProviderOpenMeteo, "alpha", "bravo")
}

func TestSelect_OverrideNotInCatalog(t *testing.T) {
	cat := catalog.MustNew(catalog.Descriptor{ID: models.ProviderOpenMeteo})
	r := NewRouter(cat, fakeAvailability{})
	sel := r.Select(models.UseCaseSingleLocation, models.Use(models.ProviderMeteostat))
	if sel.Rejected == nil || sel.Rejected.Reason != "not in catalog" {
		t.Errorf("Rejected = %+v", sel.Rejected)
	}
	chainEquals(t, sel.Chain, models.ProviderOpenMeteo)
}

func TestSelect_EmptyChain(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{
		models.ProviderOpenMeteo: "monthly quota critical",
		models.ProviderMeteostat: "monthly quota critical",
		"alpha":                  "monthly quota critical",
		"bravo":                  "monthly quota critical",
	})
	sel := r.Select(models.UseCaseRealTime, models.Auto)
	if !sel.Empty() {
		t.Errorf("chain = %v, want empty", sel.Chain)
	}
	if len(sel.Skipped) != 4 {
		t.Errorf("Skipped = %+v", sel.Skipped)
	}
}

func TestSelect_NoDuplicates(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{})
	for _, uc := range models.UseCases() {
		sel := r.Select(uc, models.Auto)
		seen := map[models.ProviderID]bool{}
		for _, id := range sel.Chain {
			if seen[id] {
				t.Errorf("%s: duplicate %q in %v", uc, id, sel.Chain)
			}
			seen[id] = true
		}
	}
}

func TestWithPreferences(t *testing.T) {
	r := NewRouter(fourProviders(), fakeAvailability{}, WithPreferences(map[models.UseCase]models.ProviderID{
		models.UseCaseRealTime: "bravo",
	}))
	sel := r.Select(models.UseCaseRealTime, models.Auto)
	chainEquals(t, sel.Chain, "bravo", models.ProviderOpenMeteo, models.ProviderMeteostat, "alpha")

	if id, _ := r.Preference(models.UseCaseSingleLocation); id != models.ProviderOpenMeteo {
		t.Errorf("unlisted use case lost its default: %q", id)
	}
}

func TestFormatSelectionRows(t *testing.T) {
	cat := fourProviders()
	r := NewRouter(cat, fakeAvailability{"bravo": "monthly quota critical"})
	table := FormatSelectionRows(r.Select(models.UseCaseSingleLocation, models.Auto), cat)

	if len(table.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(table.Rows))
	}
	if table.Styles[0] != RowBold || table.Styles[3] != RowDim {
		t.Errorf("styles = %v", table.Styles)
	}
	if table.Rows[0][2] != "free" || table.Rows[0][3] != "unlimited" || table.Rows[0][4] != "preferred" {
		t.Errorf("first row = %v", table.Rows[0])
	}
	if table.Rows[3][4] != "monthly quota critical" {
		t.Errorf("skipped row = %v", table.Rows[3])
	}
}
