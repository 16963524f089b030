// Command backtest runs a strategy against historical data using the
// simulator's deterministic Engine Facade.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/nordlight/backtester/internal/broker"
	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/commission"
	"github.com/nordlight/backtester/internal/config"
	"github.com/nordlight/backtester/internal/engine"
	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/observability"
	"github.com/nordlight/backtester/internal/portfolio"
	"github.com/nordlight/backtester/internal/pricesource/csv"
	"github.com/nordlight/backtester/internal/strategy/js"
	"github.com/nordlight/backtester/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "backtest.yaml", "Path to the run configuration file (YAML)")
	pretty := flag.Bool("pretty", false, "Use console-formatted (instead of JSON) logging")
	flag.Parse()

	logger := observability.NewZerolog(os.Stdout, *pretty)
	observability.SetLogger(logger)

	cfg, loadedFromFile, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Info("configuration file not found, using defaults", observability.F("path", *configPath))
	}

	source, err := csv.Open(cfg.DataPath)
	if err != nil {
		log.Fatalf("open price data: %v", err)
	}

	cal, err := resolveCalendar(cfg.Calendar)
	if err != nil {
		log.Fatalf("resolve calendar: %v", err)
	}

	opts := []engine.Option{
		engine.WithCalendar(cal),
		engine.WithLogger(logger),
		engine.WithCommissionModel(resolveCommission(cfg.Commission)),
	}
	if cfg.ExecutionDelay > 0 {
		opts = append(opts, engine.WithExecutionDelay(cfg.ExecutionDelay))
	}
	if cfg.RateLimitPerSec > 0 {
		opts = append(opts, engine.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)))
	}
	if strings.TrimSpace(cfg.PriceTickerURL) != "" {
		opts = append(opts, engine.WithPriceTicker(cfg.PriceTickerURL))
	}

	if cfg.EnableMetrics {
		opts = append(opts, engine.WithMetrics(telemetry.New()))
	}

	if cfg.Strategy.Kind == "js" {
		strat, err := loadJSStrategy(cfg.Strategy.SourcePath, cfg.Strategy.EntryPoint)
		if err != nil {
			log.Fatalf("load strategy: %v", err)
		}
		opts = append(opts, engine.WithStrategy(strat))
	}

	eng := engine.New(cfg.Start, cfg.End, source, cfg.CapitalBase, opts...)

	if err := eng.Run(context.Background()); err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	printSummary(eng)
}

func resolveCalendar(mic string) (calendar.Calendar, error) {
	switch strings.ToUpper(strings.TrimSpace(mic)) {
	case "", "XNYS":
		return calendar.XNYS(), nil
	default:
		return nil, fmt.Errorf("unknown exchange calendar %q", mic)
	}
}

func resolveCommission(c config.CommissionConfig) commission.Model {
	switch c.Model {
	case "per_share":
		return commission.PerShare{Rate: c.Rate}
	case "proportional":
		return commission.Proportional{Rate: c.Rate}
	default:
		return commission.NoCommission{}
	}
}

func loadJSStrategy(sourcePath, entryPoint string) (engine.Strategy, error) {
	source, err := os.ReadFile(sourcePath) // #nosec G304 -- path is operator-provided via configuration.
	if err != nil {
		return nil, fmt.Errorf("read strategy source %s: %w", sourcePath, err)
	}
	strat, err := js.Compile(string(source), entryPoint)
	if err != nil {
		return nil, err
	}
	return func(k *kernel.Kernel, p *portfolio.Portfolio, br *broker.Broker) {
		strat.Register(k, p, br, []event.Type{
			event.PreMarketOpen, event.MarketOpen, event.MarketClose, event.PostMarketClose,
		})
	}, nil
}

func printSummary(eng *engine.Engine) {
	pf := eng.Portfolio.Portfolio()
	series := eng.Tracker.Series()

	fmt.Printf("Backtest finished successfully\n")
	fmt.Printf("Final cash: %.2f, Final portfolio value: %.2f\n", pf.Cash(), pf.PortfolioValue())
	fmt.Printf("Trading days recorded: %d\n", len(series))
	if len(series) > 0 {
		fmt.Printf("Most recent daily return: %.4f%%\n", series[len(series)-1].Return*100)
	}
}
