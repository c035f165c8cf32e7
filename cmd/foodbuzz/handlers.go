package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/foodbuzz/internal/config"
	"github.com/elonfeng/foodbuzz/internal/history"
	"github.com/elonfeng/foodbuzz/internal/logging"
	"github.com/elonfeng/foodbuzz/internal/pipeline"
	"github.com/elonfeng/foodbuzz/internal/scheduler"
	"github.com/elonfeng/foodbuzz/internal/store"
	"github.com/elonfeng/foodbuzz/pkg/alert"
	"github.com/elonfeng/foodbuzz/pkg/entity"
	"github.com/elonfeng/foodbuzz/pkg/server"
	"github.com/elonfeng/foodbuzz/pkg/trend"
)

func loadConfig(flags *scoringFlags) (*config.Config, zerolog.Logger, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("load config: %w", err)
	}

	if flags != nil {
		if flags.minSimilarity >= 0 {
			cfg.Dedupe.MinSimilarity = flags.minSimilarity
		}
		if flags.halfLife >= 0 {
			cfg.Dedupe.DecayHalfLifeDays = flags.halfLife
		}
	}

	logger, err := logging.New(cfg.Log.Environment, cfg.Log.Level)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	for _, fix := range cfg.Normalize() {
		logger.Warn().Msg("config: " + fix)
	}
	return cfg, logger, nil
}

// app holds everything a pipeline command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *store.SQLiteStore
	runner *pipeline.Runner
}

func newApp(flags *scoringFlags) (*app, error) {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	a.runner = pipeline.New(cfg, db, buildHistory(cfg, db), buildAlertManager(cfg), &a.logger)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func buildHistory(cfg *config.Config, db *store.SQLiteStore) trend.History {
	if cfg.History.Backend == config.BackendSQLite {
		return db
	}
	return history.NewDir(cfg.HistoryDir())
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	return alert.NewManager(pipeline.NotifiersFromConfig(cfg.Alerts))
}

func runDedupe(ctx context.Context, flags scoringFlags) error {
	a, err := newApp(&flags)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.runner.Dedupe(ctx)
	if err != nil {
		return err
	}
	if !res.Written {
		fmt.Println("nothing to process")
		return nil
	}
	fmt.Printf("%d entities from %d mentions -> %s\n", res.Entities, res.Read, res.Path)
	return nil
}

func runSnapshot(ctx context.Context) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.runner.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !res.Written {
		fmt.Println("no canonical table to snapshot (run: foodbuzz dedupe)")
		return nil
	}
	fmt.Printf("snapshot %s saved (%d entities from %s)\n", res.Key, res.Entities, res.Source)
	return nil
}

func runMovers(ctx context.Context, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.runner.Movers(ctx)
	if err != nil {
		return err
	}
	return printReport(report, jsonOutput)
}

func printReport(report trend.Report, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if !report.Enough {
		fmt.Println("not enough snapshots for movers")
		return nil
	}

	fmt.Printf("movers %s vs %s\n", report.LatestKey, report.PreviousKey)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DELTA\tNEW\tOLD\tNAME")
	for _, m := range report.Movers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatScore(m.Delta), formatScore(m.ScoreTotalNew), formatScore(m.ScoreTotalOld), m.Name)
	}
	return w.Flush()
}

func formatScore(f float64) string {
	if math.IsNaN(f) {
		return "-"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func runPipeline(ctx context.Context, flags scoringFlags, jsonOutput bool) error {
	a, err := newApp(&flags)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.runner.Run(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	fmt.Printf("run %s\n", sum.RunID)
	if !sum.Dedupe.Written {
		fmt.Println("  dedupe: nothing to process, snapshot and movers skipped")
		return nil
	}
	fmt.Printf("  dedupe: %d entities from %d mentions\n", sum.Dedupe.Entities, sum.Dedupe.Read)
	if sum.Snapshot.Written {
		fmt.Printf("  snapshot: %s\n", sum.Snapshot.Key)
	} else {
		fmt.Println("  snapshot: skipped")
	}
	return printReport(sum.Movers, false)
}

func runForecast(ctx context.Context, weeks int, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := a.runner.Forecast(ctx)
	if err != nil {
		return err
	}
	f.Weeks = f.Tail(weeks)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}

	if len(f.Weeks) == 0 {
		fmt.Println("no dated raw mentions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "WEEK\tMENTIONS\tAVG(%d)\n", f.Window)
	for _, wk := range f.Weeks {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", wk.Key, wk.Mentions, wk.MovingAverage)
	}
	for _, p := range f.Projected {
		fmt.Fprintf(w, "%s\t~%.2f\t\n", p.Key, p.Mentions)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if f.Undated > 0 {
		fmt.Printf("%d mentions without a created timestamp\n", f.Undated)
	}
	return nil
}

func runValidate(path string, enriched *bool) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	if path == "" {
		path = cfg.CleanPath()
		if _, err := os.Stat(cfg.EnhancedPath()); err == nil {
			path = cfg.EnhancedPath()
		}
	}

	opts := entity.ValidateOpts{Enriched: filepath.Base(path) == config.EnhancedFile}
	if enriched != nil {
		opts.Enriched = *enriched
	}

	table, err := entity.ReadFile(path)
	if err != nil && !errors.Is(err, entity.ErrMissingColumn) {
		return err
	}

	var issues []string
	if err != nil {
		issues = append(issues, err.Error())
	} else {
		issues = entity.Validate(table, opts)
	}

	if len(issues) == 0 {
		fmt.Printf("%s: ok (%d rows)\n", path, len(table.Entities))
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("%s: %s\n", path, issue)
	}
	return fmt.Errorf("%d data quality issues in %s", len(issues), path)
}

func runServe(ctx context.Context, port int) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	srv := server.New(a.db, a.runner, port, &a.logger)
	return srv.ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	sched := scheduler.New(a.runner, a.cfg.Schedule.ParseInterval(), &a.logger)
	srv := server.New(a.db, a.runner, port, &a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	err = g.Wait()
	a.logger.Info().Msg("shutting down")
	return err
}
