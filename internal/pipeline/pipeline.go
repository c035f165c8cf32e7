// Package pipeline runs the weekly dedupe, snapshot and movers steps over a
// data directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/foodbuzz/internal/config"
	"github.com/elonfeng/foodbuzz/internal/observability"
	"github.com/elonfeng/foodbuzz/internal/runlock"
	"github.com/elonfeng/foodbuzz/internal/store"
	"github.com/elonfeng/foodbuzz/pkg/alert"
	"github.com/elonfeng/foodbuzz/pkg/entity"
	"github.com/elonfeng/foodbuzz/pkg/mention"
	"github.com/elonfeng/foodbuzz/pkg/trend"
)

// Commands recorded in the run log.
const (
	CommandDedupe   = "dedupe"
	CommandSnapshot = "snapshot"
	CommandMovers   = "movers"
	CommandRun      = "run"
)

// Runner executes pipeline steps. Each public step holds the data directory
// lock for its duration and is recorded in the run log.
type Runner struct {
	cfg     *config.Config
	store   store.Store
	engine  *trend.Engine
	tracker *trend.Tracker
	alerts  *alert.Manager
	logger  *zerolog.Logger
	now     func() time.Time
}

// New creates a runner. history is the snapshot backend; alerts may be nil.
func New(cfg *config.Config, st store.Store, history trend.History, alerts *alert.Manager, logger *zerolog.Logger) *Runner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Runner{
		cfg:     cfg,
		store:   st,
		engine:  trend.NewEngine(cfg.Dedupe.MinSimilarity, cfg.Dedupe.DecayHalfLifeDays, logger),
		tracker: trend.NewTracker(history, cfg.Movers.Limit, logger),
		alerts:  alerts,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the current time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// DedupeResult describes one dedupe step.
type DedupeResult struct {
	Read     int    `json:"read"`
	Skipped  int    `json:"skipped"`
	Dropped  int    `json:"dropped"`
	Entities int    `json:"entities"`
	Path     string `json:"path,omitempty"`
	// Written is false when there was nothing to process.
	Written bool `json:"written"`
}

// SnapshotResult describes one snapshot step.
type SnapshotResult struct {
	Key      string `json:"key,omitempty"`
	Source   string `json:"source,omitempty"`
	Entities int    `json:"entities"`
	Written  bool   `json:"written"`
}

// Summary is the outcome of a full run.
type Summary struct {
	RunID    string         `json:"run_id"`
	Dedupe   DedupeResult   `json:"dedupe"`
	Snapshot SnapshotResult `json:"snapshot"`
	Movers   trend.Report   `json:"movers"`
}

// Dedupe reads raw mentions, writes the canonical entity table and mirrors it
// into the store.
func (r *Runner) Dedupe(ctx context.Context) (DedupeResult, error) {
	var res DedupeResult
	_, err := r.execute(ctx, CommandDedupe, func(run *store.Run) error {
		var err error
		res, _, err = r.dedupe(ctx, run)
		return err
	})
	return res, err
}

// Snapshot copies the latest canonical table into this week's history slot.
func (r *Runner) Snapshot(ctx context.Context) (SnapshotResult, error) {
	var res SnapshotResult
	_, err := r.execute(ctx, CommandSnapshot, func(run *store.Run) error {
		var err error
		res, err = r.snapshot(ctx, run)
		return err
	})
	return res, err
}

// Movers diffs the two latest snapshots, writes the movers table and notifies
// the configured channels.
func (r *Runner) Movers(ctx context.Context) (trend.Report, error) {
	var report trend.Report
	_, err := r.execute(ctx, CommandMovers, func(run *store.Run) error {
		var err error
		report, err = r.movers(ctx, run)
		return err
	})
	return report, err
}

// Run executes dedupe, snapshot and movers in order under one lock. The
// snapshot is taken from the table the dedupe step just produced. When there
// is nothing to process the snapshot and movers steps are skipped.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	runID, err := r.execute(ctx, CommandRun, func(run *store.Run) error {
		var (
			entities []entity.Entity
			err      error
		)
		if sum.Dedupe, entities, err = r.dedupe(ctx, run); err != nil {
			return err
		}
		if !sum.Dedupe.Written {
			r.logger.Info().Msg("nothing to process, skipping snapshot and movers")
			return nil
		}
		if sum.Snapshot, err = r.saveSnapshot(ctx, run, sum.Dedupe.Path, entities); err != nil {
			return err
		}
		sum.Movers, err = r.movers(ctx, run)
		return err
	})
	sum.RunID = runID
	return sum, err
}

// Report computes movers without writing anything.
func (r *Runner) Report(ctx context.Context) (trend.Report, error) {
	return r.tracker.Movers(ctx)
}

// SnapshotKeys lists stored snapshots, oldest first.
func (r *Runner) SnapshotKeys(ctx context.Context) ([]string, error) {
	return r.tracker.Keys(ctx)
}

// Forecast projects weekly raw mention volume. It only reads the raw mentions
// file and takes no lock; a missing file yields an empty forecast.
func (r *Runner) Forecast(ctx context.Context) (trend.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return trend.Forecast{}, err
	}
	batch, err := mention.Load(r.cfg.RawMentionsPath(), r.logger)
	if err != nil {
		return trend.Forecast{}, err
	}

	f := trend.NewForecast(batch.Mentions, r.cfg.Forecast.Window, r.cfg.Forecast.Horizon)
	r.logger.Info().
		Int("weeks", len(f.Weeks)).
		Int("undated", f.Undated).
		Int("window", f.Window).
		Msg("mention volume forecast computed")
	return f, nil
}

func (r *Runner) execute(ctx context.Context, command string, fn func(run *store.Run) error) (string, error) {
	lock, err := runlock.Acquire(r.cfg.LockPath(), r.cfg.Lock.ParseStaleAfter())
	if err != nil {
		observability.RunsTotal.WithLabelValues(command, store.RunFailed).Inc()
		return "", err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn().Err(err).Msg("release lock")
		}
	}()

	start := r.now().UTC()
	run := &store.Run{ID: lock.RunID, Command: command, StartedAt: start}
	logger := r.logger.With().Str("run_id", run.ID).Str("command", command).Logger()
	logger.Info().Msg("run started")

	runErr := fn(run)

	run.FinishedAt = r.now().UTC()
	run.Status = store.RunSucceeded
	if runErr != nil {
		run.Status = store.RunFailed
		run.Error = runErr.Error()
	}
	observability.RunsTotal.WithLabelValues(command, run.Status).Inc()
	observability.RunDuration.WithLabelValues(command).Observe(run.FinishedAt.Sub(start).Seconds())

	if r.store != nil {
		if err := r.store.RecordRun(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("record run")
		}
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("run failed")
		return run.ID, runErr
	}
	logger.Info().Dur("took", run.FinishedAt.Sub(start)).Msg("run finished")
	return run.ID, nil
}

func (r *Runner) dedupe(ctx context.Context, run *store.Run) (DedupeResult, []entity.Entity, error) {
	path := r.cfg.RawMentionsPath()
	batch, err := mention.Load(path, r.logger)
	if err != nil {
		return DedupeResult{}, nil, err
	}

	res := DedupeResult{Read: len(batch.Mentions), Skipped: batch.Skipped}
	run.MentionsRead = res.Read
	run.MentionsSkipped = res.Skipped
	observability.MentionsRead.Add(float64(res.Read))
	observability.MentionsDropped.WithLabelValues("malformed").Add(float64(res.Skipped))

	if len(batch.Mentions) == 0 {
		r.logger.Info().Str("path", path).Msg("no raw mentions, nothing to process")
		return res, nil, nil
	}

	result := r.engine.Detect(batch.Mentions, r.now())
	res.Dropped = result.Dropped
	res.Entities = len(result.Entities)
	run.Entities = res.Entities
	observability.MentionsDropped.WithLabelValues("unnamed").Add(float64(result.Dropped))
	observability.ClustersFormed.Add(float64(len(result.Entities)))

	if len(result.Entities) == 0 {
		r.logger.Info().Int("dropped", result.Dropped).Msg("no named mentions, nothing to process")
		return res, nil, nil
	}

	out := r.cfg.CleanPath()
	if err := entity.WriteFile(out, result.Entities); err != nil {
		return res, nil, err
	}
	res.Path = out
	res.Written = true
	observability.EntitiesWritten.Set(float64(len(result.Entities)))

	if r.store != nil {
		if err := r.store.ReplaceEntities(ctx, result.Entities); err != nil {
			return res, nil, fmt.Errorf("store entities: %w", err)
		}
	}

	r.logger.Info().Str("path", out).Int("entities", res.Entities).Msg("canonical table written")
	return res, result.Entities, nil
}

// snapshotSource prefers the enriched table over the plain canonical one,
// unless the canonical table was rewritten after the last enrichment.
func (r *Runner) snapshotSource() (string, bool, error) {
	clean, err := statTable(r.cfg.CleanPath())
	if err != nil {
		return "", false, err
	}
	enhanced, err := statTable(r.cfg.EnhancedPath())
	if err != nil {
		return "", false, err
	}

	switch {
	case enhanced != nil && (clean == nil || !enhanced.ModTime().Before(clean.ModTime())):
		return r.cfg.EnhancedPath(), true, nil
	case clean != nil:
		if enhanced != nil {
			r.logger.Info().
				Time("enhanced_mtime", enhanced.ModTime()).
				Time("clean_mtime", clean.ModTime()).
				Msg("enriched table is older than canonical table, ignoring it")
		}
		return r.cfg.CleanPath(), true, nil
	}
	return "", false, nil
}

func statTable(path string) (os.FileInfo, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi, nil
}

func (r *Runner) snapshot(ctx context.Context, run *store.Run) (SnapshotResult, error) {
	path, ok, err := r.snapshotSource()
	if err != nil {
		return SnapshotResult{}, err
	}
	if !ok {
		r.logger.Info().Str("data_dir", r.cfg.DataDir).Msg("no canonical table, nothing to snapshot")
		return SnapshotResult{}, nil
	}

	table, err := entity.ReadFile(path)
	if err != nil {
		return SnapshotResult{}, err
	}
	return r.saveSnapshot(ctx, run, path, table.Entities)
}

func (r *Runner) saveSnapshot(ctx context.Context, run *store.Run, source string, entities []entity.Entity) (SnapshotResult, error) {
	key, err := r.tracker.Snapshot(ctx, r.now(), entities)
	if err != nil {
		return SnapshotResult{}, err
	}
	run.SnapshotKey = key
	observability.SnapshotsWritten.Inc()

	return SnapshotResult{Key: key, Source: source, Entities: len(entities), Written: true}, nil
}

func (r *Runner) movers(ctx context.Context, run *store.Run) (trend.Report, error) {
	report, err := r.tracker.Movers(ctx)
	if err != nil {
		return trend.Report{}, err
	}
	if !report.Enough {
		return report, nil
	}

	run.Movers = len(report.Movers)
	observability.MoversComputed.Set(float64(len(report.Movers)))

	out := r.cfg.MoversPath()
	if err := trend.WriteMoversFile(out, report.Movers); err != nil {
		return report, err
	}
	r.logger.Info().Str("path", out).Int("movers", len(report.Movers)).Msg("movers table written")

	r.notify(ctx, report)
	return report, nil
}

func (r *Runner) notify(ctx context.Context, report trend.Report) {
	if !r.alerts.HasNotifiers() {
		return
	}
	n := alert.NewMoversNotification(report, r.cfg.Movers.AlertTop)
	if n == nil {
		return
	}
	if err := r.alerts.Broadcast(ctx, n); err != nil {
		r.logger.Warn().Err(err).Msg("movers alert failed")
		return
	}
	r.logger.Info().Int("movers", len(n.Movers)).Msg("movers alert sent")
}

// NotifiersFromConfig builds the notifiers enabled in cfg.
func NotifiersFromConfig(cfg config.AlertsConfig) []alert.Notifier {
	var notifiers []alert.Notifier
	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Slack.WebhookURL))
	}
	if cfg.Discord.Enabled && cfg.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Discord.WebhookURL))
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Secret))
	}
	return notifiers
}
