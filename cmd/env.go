package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/pipeline"
	"github.com/stayguide/guide-cli/internal/store"
	"github.com/stayguide/guide-cli/pkg/describe"
	"github.com/stayguide/guide-cli/pkg/geocode"
	"github.com/stayguide/guide-cli/pkg/places"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "guide.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPlaces() (places.Client, error) {
	if cfg.Places.Key == "" {
		return nil, eris.New("places API key is required (GUIDE_PLACES_KEY)")
	}
	return places.NewClient(cfg.Places.Key,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithRateLimit(cfg.Places.RateLimit),
	), nil
}

func initGeocoder() (geocode.Client, error) {
	key := cfg.Geocode.Key
	if key == "" {
		key = cfg.Places.Key
	}
	if key == "" {
		return nil, eris.New("geocoding API key is required (GUIDE_GEOCODE_KEY)")
	}
	opts := []geocode.Option{}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	return geocode.NewClient(key, opts...), nil
}

func initDescriber() describe.Generator {
	if cfg.Describe.Key == "" {
		return nil
	}
	return describe.NewGenerator(cfg.Describe.Key,
		describe.WithModel(cfg.Describe.Model),
		describe.WithMaxTokens(cfg.Describe.MaxTokens),
	)
}

// loadCatalog returns the category catalog, applying the configured override
// file when present.
func loadCatalog() (model.Catalog, error) {
	catalog := model.DefaultCatalog()
	if cfg.Catalog.OverridePath == "" {
		return catalog, nil
	}
	f, err := os.Open(cfg.Catalog.OverridePath)
	if err != nil {
		return nil, eris.Wrap(err, "open catalog overrides")
	}
	defer f.Close() //nolint:errcheck
	return catalog.ApplyOverrides(f)
}

// env bundles the wired pipeline collaborators for one command invocation.
type env struct {
	store     store.Store
	placesAPI places.Client
	geocoder  geocode.Client
	describer describe.Generator
	catalog   model.Catalog
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	pc, err := initPlaces()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	gc, err := initGeocoder()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	catalog, err := loadCatalog()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	return &env{
		store:     st,
		placesAPI: pc,
		geocoder:  gc,
		describer: initDescriber(),
		catalog:   catalog,
	}, nil
}

func (e *env) Close() {
	e.store.Close() //nolint:errcheck
}

// newMachine wires a workflow machine for one owner.
func (e *env) newMachine(ownerID string, describeEnabled bool) *pipeline.Machine {
	var gen describe.Generator
	if describeEnabled {
		gen = e.describer
	}
	return pipeline.NewMachine(pipeline.MachineConfig{
		Coordinator: pipeline.NewCoordinator(e.placesAPI, cfg.Search.MaxPerQuery),
		Executor: pipeline.NewExecutor(pipeline.ExecutorConfig{
			Client:      e.placesAPI,
			Resolver:    pipeline.NewCategoryResolver(e.store, e.catalog, ownerID),
			Inventory:   e.store,
			Runs:        e.store,
			Describer:   gen,
			OwnerID:     ownerID,
			MaxPhotos:   cfg.Places.MaxPhotos,
			Concurrency: cfg.Import.Concurrency,
		}),
		Geocoder:  e.geocoder,
		Inventory: e.store,
		Catalog:   e.catalog,
		OwnerID:   ownerID,
	})
}
