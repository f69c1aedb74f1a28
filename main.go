package main

import (
	"context"
	"log" // standard log only for fatal errors before the logger is up
	"os/signal"
	"syscall"

	"multiStratBot/config"
	"multiStratBot/internal/adapters/binanceterm"
	"multiStratBot/internal/adapters/logger"
	"multiStratBot/internal/adapters/sqlite"
	"multiStratBot/internal/adapters/terminal"
	"multiStratBot/internal/app"
	"multiStratBot/internal/marketdata"
	"multiStratBot/internal/risk"
	"multiStratBot/internal/scheduler"
	"multiStratBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Export Repository
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize export repository")
		log.Fatalf("FATAL: Failed to initialize export repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing export repository")
		}
	}()

	// 4. Initialize Broker Terminal and Resilience Client
	symbolNames := make([]string, 0, len(cfg.Portfolio.Symbols))
	for _, s := range cfg.Portfolio.Symbols {
		symbolNames = append(symbolNames, s.Name)
	}
	term, err := binanceterm.New(binanceterm.Config{
		APIKey:     cfg.BinanceAPIKey,
		SecretKey:  cfg.BinanceSecret,
		UseTestnet: cfg.BinanceTestnet,
		Logger:     appLogger,
		Symbols:    symbolNames,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize broker terminal")
		log.Fatalf("FATAL: Failed to initialize broker terminal: %v", err)
	}
	broker, err := terminal.New(terminal.Config{
		Terminal:   term,
		Logger:     appLogger,
		MaxRetries: cfg.MaxConnectRetries,
		RetryDelay: cfg.ConnectRetryDelay,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize broker client")
		log.Fatalf("FATAL: Failed to initialize broker client: %v", err)
	}
	if err := broker.Connect(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Could not establish broker connection")
		log.Fatalf("FATAL: Could not establish broker connection: %v", err)
	}
	defer func() {
		if err := broker.Disconnect(context.Background()); err != nil {
			appLogger.Error(context.Background(), err, "Error disconnecting broker client")
		}
	}()

	// 5. Initialize Strategies
	registry := strategy.NewRegistry()
	strategyConfigs := cfg.Portfolio.StrategyConfigs()
	instances := make([]strategy.Instance, 0, len(strategyConfigs))
	for _, sc := range strategyConfigs {
		impl, err := strategy.New(sc, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to build strategy", map[string]interface{}{"strategy": sc.Name})
			log.Fatalf("FATAL: Failed to build strategy %q: %v", sc.Name, err)
		}
		instances = append(instances, strategy.Instance{
			Config: sc,
			Impl:   impl,
			Magic:  registry.Register(sc.Name),
		})
	}
	runner, err := strategy.NewRunner(strategy.Config{Instances: instances, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize strategy runner")
		log.Fatalf("FATAL: Failed to initialize strategy runner: %v", err)
	}

	// 6. Initialize Market Data Assembler and Risk Gate
	assembler, err := marketdata.New(marketdata.Config{Provider: broker, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market data assembler")
		log.Fatalf("FATAL: Failed to initialize market data assembler: %v", err)
	}
	gate, err := risk.New(risk.Config{Limits: cfg.Portfolio.RiskLimits(), Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk gate")
		log.Fatalf("FATAL: Failed to initialize risk gate: %v", err)
	}

	// 7. Initialize Cycle Engine
	engine, err := app.NewEngine(app.Config{
		Broker:     broker,
		Assembler:  assembler,
		Runner:     runner,
		Gate:       gate,
		TradeRepo:  repo,
		PosRepo:    repo,
		Logger:     appLogger,
		Symbols:    cfg.Portfolio.SymbolConfigs(),
		Strategies: strategyConfigs,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize cycle engine")
		log.Fatalf("FATAL: Failed to initialize cycle engine: %v", err)
	}

	// 8. Run the bar-synchronized loop until interrupted
	sched, err := scheduler.New(scheduler.Config{
		BarMinutes:            cfg.BarMinutes,
		PostCloseDelaySeconds: cfg.PostCloseDelaySeconds,
		Logger:                appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize scheduler")
		log.Fatalf("FATAL: Failed to initialize scheduler: %v", err)
	}
	appLogger.Info(ctx, "Bot started", map[string]interface{}{
		"symbols":    symbolNames,
		"strategies": len(instances),
		"barMinutes": cfg.BarMinutes,
	})
	if err := sched.RunSynchronized(ctx, engine.RunCycle); err != nil {
		appLogger.Info(ctx, "Scheduler stopped", map[string]interface{}{"reason": err.Error()})
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
