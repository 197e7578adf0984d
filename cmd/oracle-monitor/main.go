package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StrathCole/oracle-monitor/pkg/cache"
	"github.com/StrathCole/oracle-monitor/pkg/config"
	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/metrics"
	"github.com/StrathCole/oracle-monitor/pkg/notify"
	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/api"
	"github.com/StrathCole/oracle-monitor/pkg/server/events"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
	"github.com/StrathCole/oracle-monitor/pkg/server/monitor"
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
	"github.com/StrathCole/oracle-monitor/pkg/store"
	"github.com/StrathCole/oracle-monitor/pkg/version"

	// Import sources to register them
	_ "github.com/StrathCole/oracle-monitor/pkg/server/sources/cex"
	_ "github.com/StrathCole/oracle-monitor/pkg/server/sources/evm"
	_ "github.com/StrathCole/oracle-monitor/pkg/server/sources/fiat"
	_ "github.com/StrathCole/oracle-monitor/pkg/server/sources/oracle"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	envFile    = flag.String("env", ".env", "Optional .env file loaded before the configuration")
	showVer    = flag.Bool("version", false, "Show version and exit")
	once       = flag.Bool("once", false, "Run a single round per asset, print the events as JSON and exit")
)

// pipeline is the per-asset wiring of aggregator, validator, monitor and dispatcher.
type pipeline struct {
	asset      string
	monitor    *monitor.Monitor
	dispatcher *events.Dispatcher
	sources    []sources.Source
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("oracle-monitor version %s\n", version.Version)
		os.Exit(0)
	}

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting oracle-monitor", "version", version.Version, "assets", len(cfg.Assets))

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Oracle monitor failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	var (
		sinks         []events.Sink
		historyReader api.HistoryReader
		closers       []func()
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	if cfg.Storage.Driver != "" {
		recorder, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		closers = append(closers, func() { _ = recorder.Close() })
		sinks = append(sinks, recorder)
		historyReader = recorder
		logger.Info("Event storage enabled", "driver", cfg.Storage.Driver)
	}

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL.ToDuration(),
			Prefix:   cfg.Redis.Prefix,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = redisCache.Close() })
		sinks = append(sinks, redisCache)
		logger.Info("Redis cache enabled", "addr", cfg.Redis.Addr, "channel", redisCache.Channel())
	}

	if cfg.Telegram.Enabled {
		notifier, err := notify.NewTelegram(notify.TelegramConfig{
			BotToken:      cfg.Telegram.BotToken,
			ChatID:        cfg.Telegram.ChatID,
			MinConfidence: cfg.Telegram.MinConfidence,
			Cooldown:      cfg.Telegram.Cooldown.ToDuration(),
			Timeout:       cfg.Telegram.Timeout.ToDuration(),
		}, logger.With("component", "telegram"))
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		sinks = append(sinks, notifier)
		logger.Info("Telegram alerts enabled", "min_confidence", cfg.Telegram.MinConfidence)
	}

	var (
		httpServer *api.Server
		wsServer   *api.WebSocketServer
	)
	if !*once && cfg.Server.HTTP.Enabled {
		httpServer = api.NewServer(cfg.Server.HTTP.Addr, historyReader, logger)
		sinks = append(sinks, httpServer)
	}
	if !*once && cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		sinks = append(sinks, wsServer)
	}

	pipelines := make([]*pipeline, 0, len(cfg.Assets))
	defer func() {
		for _, p := range pipelines {
			closeSources(p.sources)
		}
	}()
	for _, assetCfg := range cfg.Assets {
		p, err := buildPipeline(cfg.Oracle, assetCfg, sinks, logger)
		if err != nil {
			return fmt.Errorf("asset %s: %w", assetCfg.Symbol, err)
		}
		pipelines = append(pipelines, p)
	}

	if *once {
		return runOnce(ctx, pipelines)
	}

	errChan := make(chan error, 2)
	if httpServer != nil {
		go func() {
			errChan <- httpServer.Start()
		}()
	}
	if wsServer != nil {
		go func() {
			errChan <- wsServer.Start(ctx)
		}()
	}

	interval := cfg.Oracle.PollInterval.ToDuration()
	for _, p := range pipelines {
		if err := p.monitor.Start(interval, p.dispatcher.Handle); err != nil {
			return fmt.Errorf("start monitor %s: %w", p.asset, err)
		}
		logger.Info("Monitor started", "asset", p.asset, "sources", len(p.sources), "interval", interval)
	}

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	for _, p := range pipelines {
		p.monitor.Stop()
	}
	for _, p := range pipelines {
		if err := p.monitor.Wait(shutdownCtx); err != nil {
			logger.Warn("Monitor did not stop in time", "asset", p.asset, "error", err)
		}
	}
	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed", "error", err)
		}
	}
	if wsServer != nil {
		wsServer.Stop()
	}
	return nil
}

func buildPipeline(oracle config.OracleConfig, assetCfg config.AssetConfig, sinks []events.Sink, logger *logging.Logger) (*pipeline, error) {
	assetLogger := logger.With("asset", assetCfg.Symbol)

	var srcs []sources.Source
	for _, sourceCfg := range assetCfg.EnabledSources() {
		// Add logger to config so sources don't create their own
		sourceConfig := make(map[string]interface{}, len(sourceCfg.Config)+2)
		for k, v := range sourceCfg.Config {
			sourceConfig[k] = v
		}
		sourceConfig["logger"] = assetLogger
		if _, ok := sourceConfig["pair"]; !ok {
			sourceConfig["pair"] = assetCfg.Symbol
		}

		source, err := sources.Create(sourceCfg.Type, sourceCfg.Name, sourceConfig)
		if err != nil {
			closeSources(srcs)
			return nil, fmt.Errorf("source %s: %w", sourceCfg.Key(), err)
		}
		assetLogger.Info("Initialized source", "source", source.Name(), "type", source.Type())
		srcs = append(srcs, source)
	}
	if len(srcs) == 0 {
		return nil, aggregator.ErrNoSources
	}

	agg, err := aggregator.New(assetCfg.Symbol, srcs, oracle.Timeout.ToDuration(), assetLogger)
	if err != nil {
		closeSources(srcs)
		return nil, err
	}

	validator, err := history.NewValidator(history.Config{
		Capacity:         oracle.HistoryCapacity,
		WindowSize:       oracle.WindowSize,
		MinHistory:       oracle.MinHistoryForValidation,
		ThresholdPercent: oracle.DeviationThresholdPercent,
	})
	if err != nil {
		closeSources(srcs)
		return nil, err
	}

	mon, err := monitor.New(agg, validator, assetLogger,
		monitor.WithAsset(assetCfg.Symbol),
		monitor.WithMinSources(oracle.MinSources),
		monitor.WithErrorHandler(func(err error) {
			if errors.Is(err, aggregator.ErrAllSourcesFailed) {
				assetLogger.Warn("No source produced a price this round", "error", err)
			}
		}),
	)
	if err != nil {
		closeSources(srcs)
		return nil, err
	}

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		Asset:            assetCfg.Symbol,
		MinChangePercent: oracle.MinChangePercent,
		MinSources:       oracle.MinSources,
		PublishTimeout:   oracle.PublishTimeout.ToDuration(),
	}, logger, sinks...)

	return &pipeline{
		asset:      assetCfg.Symbol,
		monitor:    mon,
		dispatcher: dispatcher,
		sources:    srcs,
	}, nil
}

// runOnce performs one round per asset, publishes it and prints the events.
func runOnce(ctx context.Context, pipelines []*pipeline) error {
	out := make([]events.PriceEvent, 0, len(pipelines))
	var errs []error
	for _, p := range pipelines {
		report, confidence, validation, err := p.monitor.RunOnce(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.asset, err))
			continue
		}
		p.dispatcher.Handle(report, confidence, validation)
		if event, ok := p.dispatcher.Last(); ok {
			out = append(out, event)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func closeSources(srcs []sources.Source) {
	for _, s := range srcs {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
