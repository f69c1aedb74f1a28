package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"multiStratBot/internal/adapters/logger"
	"multiStratBot/internal/domain"
	"multiStratBot/internal/strategy"
	"multiStratBot/internal/strategy/backtesting"
	"multiStratBot/internal/utils"
)

// paramFlags collects repeated -param name=value flags.
type paramFlags map[string]float64

func (p paramFlags) String() string { return fmt.Sprintf("%v", map[string]float64(p)) }

func (p paramFlags) Set(value string) error {
	name, raw, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("value of %q is not a number: %w", name, err)
	}
	p[name] = v
	return nil
}

func main() {
	csvPath := flag.String("csv", "", "CSV file of bars written by fetch_bars (required)")
	symbol := flag.String("symbol", "BTCUSDT", "symbol of the bars in the CSV")
	timeframe := flag.String("timeframe", "H1", "timeframe of the bars in the CSV")
	kind := flag.String("strategy", "momentum", "strategy kind (momentum, ma_crossover)")
	balance := flag.Float64("balance", 10000, "starting balance")
	volume := flag.Float64("volume", 1, "lots per entry")
	warmup := flag.Int("warmup", 50, "bars to skip before the first evaluation")
	params := paramFlags{}
	flag.Var(params, "param", "strategy parameter as name=value (repeatable)")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("FATAL: -csv is required")
	}
	tf := domain.Timeframe(*timeframe)
	if !tf.IsValid() {
		log.Fatalf("FATAL: Invalid timeframe %q", *timeframe)
	}

	appLogger, err := logger.New(logger.Config{Level: "info"})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	series, err := utils.ReadSeriesFromCSV(*csvPath, *symbol, tf)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars: %v", err)
	}

	strat, err := strategy.New(domain.StrategyConfig{
		Name:      *kind,
		Kind:      *kind,
		Symbol:    *symbol,
		Timeframe: tf,
		Params:    params,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to build strategy %q: %v", *kind, err)
	}

	res, err := backtesting.Run(context.Background(), strat, params, series, backtesting.Config{
		InitialBalance: *balance,
		Volume:         *volume,
		Warmup:         *warmup,
	})
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	m := res.Metrics
	fmt.Printf("Backtest: %s %s on %d bars (%s)\n", *kind, *symbol, series.Len(), tf)
	fmt.Printf("  Trades:            %d (%d wins / %d losses)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Printf("  Win rate:          %.1f%%\n", m.WinRate*100)
	fmt.Printf("  Total profit:      %.2f\n", m.TotalProfit)
	fmt.Printf("  Final balance:     %.2f (ROI %.2f%%)\n", m.FinalBalance, m.ReturnOnInvestment*100)
	fmt.Printf("  Profit factor:     %.2f\n", m.ProfitFactor)
	fmt.Printf("  Max drawdown:      %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("  Avg win / loss:    %.2f / %.2f\n", m.AverageWin, m.AverageLoss)
	fmt.Printf("  Expectancy:        %.2f\n", m.Expectancy)
	fmt.Printf("  Avg duration:      %s\n", m.AverageTradeDuration)
	fmt.Printf("  Streaks:           %d wins / %d losses\n", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)

	months := m.SortedMonthlyReturns()
	if len(months) > 0 {
		fmt.Println("  Monthly PnL:")
		for _, mr := range months {
			fmt.Printf("    %s  %+.2f\n", mr.Month.Format("2006-01"), mr.Return)
		}
	}
}
