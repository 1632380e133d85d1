package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dpup/campusnav/server/internal/clients/buildings"
	"github.com/dpup/campusnav/server/internal/config"
	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/graph"
	"github.com/dpup/campusnav/server/internal/lib/pathfinding"
	"github.com/dpup/campusnav/server/internal/lib/transform"
	"github.com/dpup/campusnav/server/internal/metrics"
	"github.com/dpup/campusnav/server/internal/render"
	"github.com/dpup/campusnav/server/internal/services"
)

// app holds the components shared by the subcommands
type app struct {
	config    *config.Config
	logger    *zap.Logger
	projector *geo.Projector
	engine    *pathfinding.Engine
	catalog   *buildings.Catalog
	lookup    *buildings.CachedLookup
	metrics   *metrics.Registry
}

func newApp(configPath string, overrides map[string]any, verbose bool) (*app, error) {
	logger, err := newLogger(verbose)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return nil, err
	}

	g, err := graph.NewLoader(logger).LoadFile(cfg.Graph.Path)
	if err != nil {
		return nil, err
	}
	if g.Degraded() {
		logger.Warn("Road graph has no connections, routes follow point order and connectivity is degraded", zap.String("path", cfg.Graph.Path))
	}

	pipeline := transform.NewPipeline(cfg.Calibration, cfg.Model)
	engine := pathfinding.New(g, pipeline, pathfinding.WithLogger(logger))

	projector := geo.NewProjector(cfg.Geo)
	catalog, err := buildings.LoadCatalog(cfg.Buildings.CatalogPath, projector, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:    cfg,
		logger:    logger,
		projector: projector,
		engine:    engine,
		catalog:   catalog,
		lookup:    buildings.NewCachedLookup(catalog, cfg.Buildings.CacheTTL),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	logger.Info("Campus map loaded",
		zap.String("graph", cfg.Graph.Path),
		zap.Int("points", g.Len()),
		zap.Int("connections", len(g.Connections())),
		zap.Int("buildings", len(catalog.Names())))
	return a, nil
}

// navigationService builds a service that reports to listener and writes the
// route to kmlPath when set
func (a *app) navigationService(listener services.Listener, kmlPath string) *services.NavigationService {
	sinks := render.Multi{render.NewLogSink(a.logger)}
	if kmlPath != "" {
		sinks = append(sinks, render.NewKMLSink(kmlPath, a.projector))
	}
	return services.NewNavigationService(a.engine, a.lookup, a.projector, a.config.Navigation,
		services.WithLogger(a.logger),
		services.WithMetrics(a.metrics),
		services.WithSink(sinks),
		services.WithListener(listener))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
