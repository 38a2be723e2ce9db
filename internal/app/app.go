// Package app assembles the pipeline and its supporting services from
// configuration. Every binary builds its components here.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/cache"
	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/extraction"
	"github.com/labqc-mcp-server/internal/gate"
	"github.com/labqc-mcp-server/internal/labdetect"
	"github.com/labqc-mcp-server/internal/ocr"
	"github.com/labqc-mcp-server/internal/pipeline"
	"github.com/labqc-mcp-server/internal/rerun"
	"github.com/labqc-mcp-server/internal/storage"
)

// Options override the default collaborators. Zero values pick the
// built-in pass-through implementations.
type Options struct {
	Engine     domain.OCREngine
	Parser     domain.ItemParser
	Extractors map[domain.LabType]domain.CandidateExtractor
	Universal  domain.CandidateExtractor
}

// App holds the assembled components.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Profiles *labdetect.ProfileSet
	Matcher  *labdetect.Matcher
	Router   *extraction.Router
	Engine   *ocr.ResilientEngine
	Rerun    *rerun.Controller
	Gate     *gate.Gate
	Pipeline *pipeline.Pipeline
	Store    storage.Store
	Cache    *cache.DiagnosticsCache
}

// New builds every component described by cfg.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts Options) (*App, error) {
	profiles, err := loadProfiles(cfg.LabDetect)
	if err != nil {
		return nil, err
	}

	engine := opts.Engine
	if engine == nil {
		engine = ocr.TextEngine{}
	}
	parser := opts.Parser
	if parser == nil {
		parser = extraction.LineParser
	}
	universal := opts.Universal
	if universal == nil {
		universal = extraction.UniversalExtractor
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Profiles: profiles,
		Matcher:  labdetect.NewMatcher(profiles, logger),
		Rerun:    rerun.NewController(logger, cfg.Quality.RerunMinScore),
		Gate:     gate.NewFromConfig(cfg.Quality),
	}
	a.Router = extraction.NewRouter(logger, a.Matcher, universal, opts.Extractors)
	a.Engine = ocr.NewResilientEngine(engine, cfg.OCR, logger)
	a.Pipeline = pipeline.New(logger, a.Engine, a.Router, parser, a.Rerun, a.Gate, cfg.Pipeline.Workers)

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostics store: %w", err)
	}
	a.Store = store

	c, err := cache.NewFromConfig(ctx, cfg.Cache, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create diagnostics cache: %w", err)
	}
	a.Cache = c

	logger.WithFields(logrus.Fields{
		"profiles":        profiles.Len(),
		"storage":         cfg.Storage.Driver,
		"rerun_min_score": cfg.Quality.RerunMinScore,
		"gate_min_score":  cfg.Quality.LLMMinParseScore,
		"gate_min_values": cfg.Quality.LLMMinValidValues,
	}).Info("Pipeline components initialized")

	return a, nil
}

// Close releases the store and the cache.
func (a *App) Close() error {
	var firstErr error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func loadProfiles(cfg domain.LabDetectConfig) (*labdetect.ProfileSet, error) {
	if cfg.ProfilesFile == "" {
		return labdetect.DefaultProfiles()
	}
	profiles, err := labdetect.LoadProfilesFile(cfg.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load lab profiles: %w", err)
	}
	return profiles, nil
}
