package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/metrics"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/meteostat"
	"github.com/joshuadavidthomas/meteofetch/internal/provider/openmeteo"
	"github.com/joshuadavidthomas/meteofetch/internal/routing"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

// newProviders builds the provider integrations. Tests point it at local
// servers.
var newProviders = func() *provider.Registry {
	return provider.NewRegistry(openmeteo.New(), meteostat.New())
}

// newSearcher builds the online location search. Tests point it at a local
// server.
var newSearcher = func() *geocode.OpenMeteoResolver {
	return geocode.NewOpenMeteoResolver(httpclient.New())
}

// state is the configured catalog, credentials and ledger. Commands that do
// not fetch use it directly.
type state struct {
	cfg     config.Config
	catalog *catalog.Catalog
	creds   *config.Credentials
	ledger  *usage.Ledger
	router  *routing.Router
}

func loadState(logger *log.Logger) (*state, error) {
	cfg := config.Get()
	cat, err := cfg.Catalog(catalog.Default())
	if err != nil {
		return nil, fmt.Errorf("building provider catalog: %w", err)
	}
	prefs, err := cfg.UseCasePreferences()
	if err != nil {
		return nil, err
	}

	creds := config.NewCredentials(cat)
	ledger := usage.NewLedger(cat, creds,
		usage.WithStore(usage.FileStore{Path: config.UsageFile()}),
		usage.WithLogger(logger),
	)
	if err := ledger.Load(); err != nil {
		return nil, err
	}

	return &state{
		cfg:     cfg,
		catalog: cat,
		creds:   creds,
		ledger:  ledger,
		router:  routing.NewRouter(cat, ledger, routing.WithPreferences(prefs)),
	}, nil
}

// engine is a running coordinator built from configuration.
type engine struct {
	*state
	coord   *fetch.Coordinator
	metrics *metrics.Recorder
}

func newEngine(ctx context.Context) (*engine, error) {
	logger := logging.FromContext(ctx)
	st, err := loadState(logger)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	coord, err := fetch.New(fetch.Config{
		MaxConcurrent:  st.cfg.Fetch.MaxConcurrent,
		RequestTimeout: st.cfg.FetchTimeout(),
	}, fetch.Deps{
		Catalog:   st.catalog,
		Ledger:    st.ledger,
		Providers: newProviders(),
		Router:    st.router,
		Keys:      st.creds,
		Logger:    logger,
		Metrics:   rec,
	})
	if err != nil {
		return nil, err
	}
	return &engine{state: st, coord: coord, metrics: rec}, nil
}

const closeTimeout = 10 * time.Second

// close cancels outstanding work and persists the ledger. It still runs
// when ctx is already cancelled.
func (e *engine) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	return e.coord.Close(ctx)
}

// newResolver chains literal coordinates, saved locations and, when enabled,
// online search.
func newResolver(cfg config.Config) geocode.Resolver {
	chain := geocode.Chain{geocode.Literal{}, geocode.FileResolver{Path: config.LocationsFile()}}
	if cfg.Geocoding.Online {
		chain = append(chain, newSearcher())
	}
	return chain
}
