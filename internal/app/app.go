// Package app assembles the long-lived components shared by the binaries
// from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"radarsync/internal/config"
	"radarsync/internal/geocode"
	"radarsync/internal/logging"
	"radarsync/internal/metrics"
	"radarsync/internal/parse"
	"radarsync/internal/reconcile"
	"radarsync/internal/source"
	"radarsync/internal/storage"
	"radarsync/internal/store"
	"radarsync/internal/store/backend"
)

var logger = logging.For("app")

type App struct {
	Config  *config.Config
	Store   store.Store
	Engine  *reconcile.Engine
	Parser  *parse.Parser
	Metrics *metrics.Metrics
	// Objects is nil when no object store is configured.
	Objects *storage.S3Service

	geocoder *geocode.Limited
}

// New opens the store and, when configured, the object store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	bounds, err := cfg.ParseBounds()
	if err != nil {
		return nil, err
	}
	s, err := backend.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	engine, err := reconcile.NewEngine(s, cfg.EngineConfig())
	if err != nil {
		s.Close()
		return nil, err
	}
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		s.Close()
		return nil, err
	}

	a := &App{Config: cfg, Store: s, Engine: engine, Parser: parse.New(bounds), Metrics: m}
	if cfg.MinIO.Enabled() {
		if a.Objects, err = storage.NewS3Service(cfg.MinIO); err != nil {
			s.Close()
			return nil, err
		}
		if err := a.Objects.EnsureBuckets(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	logger.Info("application ready", "store", cfg.Database.Driver, "object_store", cfg.MinIO.Enabled(), "bounds", bounds.String())
	return a, nil
}

func (a *App) Close() error { return a.Store.Close() }

// HTTPClient returns a client with the configured timeout.
func (a *App) HTTPClient() *http.Client {
	return &http.Client{Timeout: a.Config.HTTPTimeout}
}

// Fetcher downloads publications and, with an object store, keeps cached
// copies of them.
func (a *App) Fetcher() *source.Fetcher {
	if a.Objects == nil {
		return source.NewFetcher(a.HTTPClient(), nil)
	}
	return source.NewFetcher(a.HTTPClient(), a.Objects)
}

// Geocoder returns the rate-limited geocoder, creating it on first use.
func (a *App) Geocoder() (*geocode.Limited, error) {
	if a.geocoder != nil {
		return a.geocoder, nil
	}
	gc := a.Config.Geocoder
	next := geocode.NewNominatim(a.HTTPClient(), gc.BaseURL, gc.UserAgent, gc.CountryCode)
	limited, err := geocode.NewLimited(next, gc.Interval, gc.CacheTTL)
	if err != nil {
		return nil, err
	}
	a.geocoder = limited
	return limited, nil
}

// Importer builds the user CSV importer. Accepted uploads are archived when
// an object store is configured.
func (a *App) Importer() *reconcile.Importer {
	if a.Objects == nil {
		return reconcile.NewImporter(a.Engine, a.Store, a.Parser, nil)
	}
	return reconcile.NewImporter(a.Engine, a.Store, a.Parser, a.Objects)
}

// Voter builds the vote recorder with the configured promotion threshold.
func (a *App) Voter() *reconcile.Voter {
	return reconcile.NewVoter(a.Store, a.Config.Reconcile.PromotionThreshold)
}
