package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"patterndraw/internal/chart"
	"patterndraw/internal/config"
	"patterndraw/internal/provider"
	"patterndraw/internal/ratelimit"
	"patterndraw/internal/search"
	"patterndraw/internal/store"
	"patterndraw/internal/symbols"
	"patterndraw/internal/workspace"
)

// app holds the wired components shared by every command
type app struct {
	cfg          *config.Config
	limits       *ratelimit.Registry
	client       *search.Client
	store        *store.CandleStore
	candles      *provider.CachingProvider
	orchestrator *search.Orchestrator
	symbols      *symbols.Loader
	logFile      io.Closer
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{cfg: cfg, limits: ratelimit.NewRegistry()}
	a.setupLogging()

	a.client = search.NewClient(cfg.API.BaseURL, cfg.API.Token, a.limits.Get("analysis-api", cfg.API.RateLimit))
	a.client.SetTimeout(cfg.Search.Timeout)
	a.client.SetEndpoints(search.Endpoints{
		PatternSearch: cfg.API.PatternSearchPath,
		FindSimilar:   cfg.API.FindSimilarPath,
	})
	a.orchestrator = search.NewOrchestrator(a.client)
	a.orchestrator.SetPrimaryTimeout(cfg.Search.PrimaryTimeout)
	a.symbols = symbols.NewLoader(a.client)

	// API first, Yahoo as the fallback source
	providers := []provider.Provider{provider.NewAPIProvider(a.client, cfg.API.RateLimit)}
	if cfg.Yahoo.Enabled {
		providers = append(providers, provider.NewYahooProvider(a.limits.Get("yahoo", cfg.Yahoo.RateLimit), cfg.Yahoo.RateLimit))
	}

	var st provider.Store
	if cfg.Store.Path != "" {
		a.store, err = store.Open(cfg.Store.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		st = a.store
	}
	a.candles = provider.NewCachingProvider(provider.NewFallbackProvider(providers...), st, cfg.Store.CacheTTL)
	return a, nil
}

// setupLogging tees the standard logger into a rotating file when one is configured
func (a *app) setupLogging() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if a.cfg.Log.File == "" {
		return
	}
	lj := &lumberjack.Logger{
		Filename:   a.cfg.Log.File,
		MaxSize:    a.cfg.Log.MaxSizeMB,
		MaxBackups: a.cfg.Log.MaxBackups,
		MaxAge:     a.cfg.Log.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	a.logFile = lj
}

func (a *app) workspaceOptions() workspace.Options {
	opts := chart.DefaultOptions()
	opts.Width = float64(a.cfg.Chart.Width)
	opts.Height = float64(a.cfg.Chart.Height)
	return workspace.Options{
		Chart:         opts,
		Interval:      a.cfg.Chart.Interval,
		Period:        a.cfg.Chart.Period,
		MinSimilarity: a.cfg.Search.MinSimilarity,
		Limit:         a.cfg.Search.Limit,
		SearchTimeout: a.cfg.Search.Timeout,
	}
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("[STORE] close: %v", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
