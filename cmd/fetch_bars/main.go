package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"multiStratBot/config"
	"multiStratBot/internal/adapters/binanceterm"
	"multiStratBot/internal/adapters/logger"
	"multiStratBot/internal/domain"
	"multiStratBot/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "symbol to fetch")
	timeframe := flag.String("timeframe", "M1", "bar timeframe (M1, M5, M15, M30, H1, H4, D1)")
	days := flag.Int("days", 90, "number of trailing days to fetch")
	outDir := flag.String("out", "data", "output directory for the CSV file")
	flag.Parse()

	tf := domain.Timeframe(*timeframe)
	if !tf.IsValid() {
		log.Fatalf("FATAL: Invalid timeframe %q", *timeframe)
	}

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
	ctx := context.Background()

	// 3. Initialize Broker Terminal
	term, err := binanceterm.New(binanceterm.Config{
		APIKey:     cfg.BinanceAPIKey,
		SecretKey:  cfg.BinanceSecret,
		UseTestnet: cfg.BinanceTestnet,
		Logger:     appLogger,
		Symbols:    []string{*symbol},
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize broker terminal: %v", err)
	}
	if err := term.Initialize(ctx); err != nil {
		log.Fatalf("FATAL: Failed to connect to broker terminal: %v", err)
	}
	defer term.Shutdown(context.Background())

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -*days)

	fmt.Printf("Fetching %s %s bars from %s to %s...\n", *symbol, tf, start.Format("2006-01-02"), end.Format("2006-01-02"))
	klines, err := term.CopyRatesRange(ctx, *symbol, tf, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching bars")
		log.Fatalf("FATAL: Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"symbol": *symbol, "count": len(klines)})

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("FATAL: Cannot create output directory: %v", err)
	}
	filename := filepath.Join(*outDir, fmt.Sprintf("%s_%s_%s_to_%s.csv",
		*symbol, tf, start.Format("20060102"), end.Format("20060102")))
	series := domain.Series{Symbol: *symbol, Timeframe: tf, Klines: klines}
	if err := utils.WriteSeriesToCSV(series, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("FATAL: Error writing CSV: %v", err)
	}
	fmt.Printf("Saved %d bars to %s\n", len(klines), filename)
}
