package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bikeshrana/pi5-trading-system-go/internal/api/handlers"
	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
	"github.com/bikeshrana/pi5-trading-system-go/internal/config"
	"github.com/bikeshrana/pi5-trading-system-go/internal/metrics"
	"github.com/bikeshrana/pi5-trading-system-go/internal/middleware"
	"github.com/bikeshrana/pi5-trading-system-go/internal/store"
	"github.com/bikeshrana/pi5-trading-system-go/internal/strategies"
)

var (
	configPath string
	verbose    bool

	symbol              string
	benchmarkPath       string
	dataPath            string
	capital             float64
	strategyName        string
	shortPeriod         int
	longPeriod          int
	rsiPeriod           int
	overboughtThreshold float64
	bandPeriod          int
	bandStdDev          float64
	atrPeriod           int
	macdFast            int
	macdSlow            int
	macdSignal          int
	riskPerTrade        float64
	volatilityLimit     float64
)

func main() {
	root := &cobra.Command{
		Use:   "backtest",
		Short: "Event-driven equity backtest engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (optional)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest against CSV-loaded bars and print a console report",
		RunE:  runBacktest,
	}
	runCmd.Flags().StringVar(&symbol, "symbol", "SPY", "Symbol to backtest")
	runCmd.Flags().StringVar(&dataPath, "data", "", "Path to a CSV file of OHLCV bars for --symbol (required)")
	runCmd.Flags().StringVar(&benchmarkPath, "benchmark", "", "Path to a CSV file of benchmark bars (defaults to --data)")
	runCmd.Flags().Float64Var(&capital, "capital", 0, "Initial cash (0 uses the config default)")
	runCmd.Flags().StringVar(&strategyName, "strategy", "sma", "Strategy to run: sma or bollinger")
	runCmd.Flags().IntVar(&shortPeriod, "short-period", 10, "sma: short SMA period")
	runCmd.Flags().IntVar(&longPeriod, "long-period", 30, "sma: long SMA period")
	runCmd.Flags().IntVar(&rsiPeriod, "rsi-period", 14, "sma: RSI period for the overbought guard")
	runCmd.Flags().Float64Var(&overboughtThreshold, "rsi-overbought", 70, "sma: RSI overbought threshold")
	runCmd.Flags().IntVar(&bandPeriod, "band-period", 20, "bollinger: band period")
	runCmd.Flags().Float64Var(&bandStdDev, "band-stddev", 2.0, "bollinger: band standard deviation multiplier")
	runCmd.Flags().IntVar(&atrPeriod, "atr-period", 14, "bollinger: ATR period used for position sizing")
	runCmd.Flags().IntVar(&macdFast, "macd-fast", 12, "bollinger: MACD fast EMA period")
	runCmd.Flags().IntVar(&macdSlow, "macd-slow", 26, "bollinger: MACD slow EMA period")
	runCmd.Flags().IntVar(&macdSignal, "macd-signal", 9, "bollinger: MACD signal EMA period")
	runCmd.Flags().Float64Var(&riskPerTrade, "risk-per-trade", 0.01, "bollinger: fraction of cash risked per entry")
	runCmd.Flags().Float64Var(&volatilityLimit, "volatility-limit", 3.0, "bollinger: ATR high-volatility entry/exit threshold")
	root.AddCommand(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: cfg.TimeFormat}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	if dataPath == "" {
		return fmt.Errorf("--data is required")
	}
	if err := backtest.ValidateSymbol(symbol); err != nil {
		return fmt.Errorf("invalid --symbol: %w", err)
	}

	btCfg := backtest.DefaultConfig()
	btCfg.Cash, btCfg.CommissionRate, btCfg.MinCommission, btCfg.SlippageBps, btCfg.StampTaxRate = cfg.Backtest.Defaults()
	if capital > 0 {
		btCfg.Cash = capital
	}
	if err := btCfg.Validate(); err != nil {
		return fmt.Errorf("invalid backtest config: %w", err)
	}

	bars, err := backtest.LoadBarsCSV(dataPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", dataPath, err)
	}

	benchBarsPath := benchmarkPath
	if benchBarsPath == "" {
		benchBarsPath = dataPath
	}
	benchBars, err := backtest.LoadBarsCSV(benchBarsPath)
	if err != nil {
		return fmt.Errorf("failed to load benchmark %s: %w", benchBarsPath, err)
	}

	strat, err := buildStrategy(symbol, logger)
	if err != nil {
		return err
	}

	driver := backtest.NewDriver(btCfg, strat, logger)
	driver.Feed().AddMarketData(symbol, bars)
	driver.Feed().SetBenchmark(benchBars)
	if registrar, ok := strat.(indicatorRegistrar); ok {
		if err := registrar.Register(driver.Indicators()); err != nil {
			return fmt.Errorf("failed to register indicators: %w", err)
		}
	}

	result, err := driver.Run()
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	report := backtest.NewReportGenerator(&result, btCfg.Cash)
	fmt.Println(report.GenerateConsoleReport())

	return nil
}

// indicatorRegistrar is implemented by strategies that register builtin
// timeline-precomputed indicators ahead of a run.
type indicatorRegistrar interface {
	Register(ind *backtest.IndicatorEngine) error
}

// buildStrategy constructs the strategy selected by --strategy for symbol.
func buildStrategy(symbol string, logger zerolog.Logger) (backtest.Strategy, error) {
	switch strategyName {
	case "", "sma":
		return strategies.NewSMACrossover([]string{symbol}, shortPeriod, longPeriod, rsiPeriod, overboughtThreshold, logger), nil
	case "bollinger":
		return strategies.NewBollingerBreakout([]string{symbol}, bandPeriod, bandStdDev, atrPeriod, macdFast, macdSlow, macdSignal, riskPerTrade, volatilityLimit, logger), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: expected sma or bollinger", strategyName)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("starting backtest API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	resultsStore, err := store.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to results store: %w", err)
	}
	defer resultsStore.Close()

	runMetrics := metrics.NewRunMetrics(cfg.Backtest.MetricsNamespace)
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RunsPerSecond, cfg.Server.RunsBurst, logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	healthHandler := handlers.NewHealthHandler(resultsStore, logger)
	runsHandler := handlers.NewRunsHandler(resultsStore, runMetrics, &cfg.Backtest, logger)

	router.Get("/health", healthHandler.Handle)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/runs", func(r chi.Router) {
		r.With(rateLimiter.Limit).Post("/", runsHandler.Create)
		r.Get("/{id}", runsHandler.Get)
		r.Get("/{id}/stream", runsHandler.Stream)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down server")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
