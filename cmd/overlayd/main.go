// cmd/overlayd hosts the overlay engine.
//
// Usage:
//
//	overlayd serve   -config overlayd.toml [-env .env]
//	overlayd analyze -csv btc_1h.csv [-symbol BTCUSDT] [-interval 1h] [-detectors structure,channels] [-json] [-rows 12]
//	overlayd init    -config overlayd.toml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/overlay"
	"overlaycore/internal/config"
	"overlaycore/internal/logger"
	"overlaycore/internal/market"
	"overlaycore/internal/metrics"
	"overlaycore/internal/report"
	"overlaycore/internal/scheduler"
	"overlaycore/internal/store"
	overlayapi "overlaycore/internal/transport/http/overlay"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "analyze":
		err = runAnalyze(os.Args[2:], os.Stdout)
	case "init":
		err = runInit(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "overlayd %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: overlayd <serve|analyze|init> [flags]")
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "overlayd.toml", "Path to TOML/YAML config (missing file = defaults)")
	envPath := fs.String("env", ".env", "Optional env file with OVERLAY_* overrides")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.LoadEnvFile(*envPath); err != nil {
		return err
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	logger.Init(os.Stdout, cfg.Log.Service, cfg.Log.Level)

	windows := store.NewMemoryWindowStore(cfg.Window.StoreMax)
	engine := overlay.New(cfg.Window.MaxCandles, cfg.Detectors)
	prom := metrics.NewMetrics()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), prom.Middleware())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(prom.Handler()))
	overlayapi.NewRouter(engine, windows, indicator.Settings{}).
		WithMetrics(prom).
		Register(router.Group("/api/overlay"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditor := scheduler.NewAuditor(ctx, windows, prom)
	scheduled, err := auditor.Register(cfg.Window.Audit)
	if err != nil {
		return err
	}
	if scheduled {
		auditor.Start()
		defer auditor.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[overlayd] listening on %s (max_candles=%d store_max=%d)", cfg.Server.Addr, engine.MaxCandles(), cfg.Window.StoreMax)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Infof("[overlayd] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runAnalyze(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	csvPath := fs.String("csv", "", "Candle CSV file (time,open,high,low,close,volume)")
	cfgPath := fs.String("config", "", "Optional config for detector defaults")
	symbol := fs.String("symbol", "", "Symbol label for the report")
	interval := fs.String("interval", "", "Interval label for the report")
	detectors := fs.String("detectors", "", "Comma-separated detectors (default: all)")
	asJSON := fs.Bool("json", false, "Print the raw JSON result instead of tables")
	rows := fs.Int("rows", 0, "Rows per table section (0 = default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *csvPath == "" {
		return errors.New("-csv is required")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	logger.Init(os.Stderr, cfg.Log.Service, cfg.Log.Level)

	f, err := os.Open(*csvPath)
	if err != nil {
		return err
	}
	defer f.Close()
	candles, err := market.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", *csvPath, err)
	}

	req := overlay.Request{Symbol: *symbol, Interval: *interval, Candles: candles}
	for _, d := range strings.Split(*detectors, ",") {
		if d = strings.TrimSpace(d); d != "" {
			req.Detectors = append(req.Detectors, overlay.Detector(d))
		}
	}
	engine := overlay.New(cfg.Window.MaxCandles, cfg.Detectors)
	res, err := engine.Analyze(context.Background(), req)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	report.Render(out, res, report.Options{Rows: *rows})

	window := candles[len(candles)-res.Candles:]
	snap, err := indicator.ComputeAll(window, indicator.Settings{Symbol: *symbol, Interval: *interval})
	if err != nil {
		return err
	}
	report.RenderSnapshot(out, snap)
	return nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cfgPath := fs.String("config", "overlayd.toml", "Where to write the default config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if err := config.Write(*cfgPath, cfg); err != nil {
		return err
	}
	fmt.Printf("config written to %s\n", *cfgPath)
	return nil
}
