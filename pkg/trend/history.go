package trend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/foodbuzz/pkg/entity"
)

// DefaultMoversLimit caps the movers table.
const DefaultMoversLimit = 20

// History persists one entity table per ISO week.
type History interface {
	// SaveSnapshot stores entities under key, replacing any table already there.
	SaveSnapshot(ctx context.Context, key string, entities []entity.Entity) error
	// SnapshotKeys lists stored keys in any order.
	SnapshotKeys(ctx context.Context) ([]string, error)
	LoadSnapshot(ctx context.Context, key string) ([]entity.Entity, error)
}

// WeekKey formats the ISO year and week of t as YYYYWww, e.g. 2025W09.
// Sorting keys as strings sorts them chronologically.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04dW%02d", year, week)
}

// Tracker records weekly snapshots and diffs the latest two.
type Tracker struct {
	history History
	limit   int
	logger  *zerolog.Logger
}

// NewTracker creates a tracker. A non-positive limit uses DefaultMoversLimit.
func NewTracker(h History, limit int, logger *zerolog.Logger) *Tracker {
	if limit <= 0 {
		limit = DefaultMoversLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Tracker{history: h, limit: limit, logger: logger}
}

// Snapshot stores entities under the ISO week of now and returns the key. A
// second snapshot in the same week overwrites the first.
func (t *Tracker) Snapshot(ctx context.Context, now time.Time, entities []entity.Entity) (string, error) {
	key := WeekKey(now)
	if err := t.history.SaveSnapshot(ctx, key, entities); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", key, err)
	}
	t.logger.Info().Str("key", key).Int("entities", len(entities)).Msg("snapshot saved")
	return key, nil
}

// Keys returns the stored snapshot keys, oldest first.
func (t *Tracker) Keys(ctx context.Context) ([]string, error) {
	keys, err := t.history.SnapshotKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Report is the outcome of a movers computation.
type Report struct {
	LatestKey   string  `json:"latest_key,omitempty"`
	PreviousKey string  `json:"previous_key,omitempty"`
	Movers      []Mover `json:"movers"`
	// Enough is false when fewer than two snapshots exist; Movers is then empty.
	Enough bool `json:"enough"`
}

// Movers diffs the two most recent snapshots. Fewer than two snapshots is not
// an error: the report comes back with Enough unset.
func (t *Tracker) Movers(ctx context.Context) (Report, error) {
	keys, err := t.Keys(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(keys) < 2 {
		t.logger.Info().Int("snapshots", len(keys)).Msg("not enough snapshots for movers")
		return Report{Movers: []Mover{}}, nil
	}

	latestKey, previousKey := keys[len(keys)-1], keys[len(keys)-2]

	latest, err := t.history.LoadSnapshot(ctx, latestKey)
	if err != nil {
		return Report{}, fmt.Errorf("load snapshot %s: %w", latestKey, err)
	}
	previous, err := t.history.LoadSnapshot(ctx, previousKey)
	if err != nil {
		return Report{}, fmt.Errorf("load snapshot %s: %w", previousKey, err)
	}

	movers := ComputeMovers(latest, previous, t.limit)
	t.logger.Info().
		Str("latest", latestKey).
		Str("previous", previousKey).
		Int("movers", len(movers)).
		Msg("computed movers")

	return Report{
		LatestKey:   latestKey,
		PreviousKey: previousKey,
		Movers:      movers,
		Enough:      true,
	}, nil
}
