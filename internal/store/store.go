package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/foodbuzz/pkg/entity"
)

// Run statuses recorded in the runs table.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID              string    `db:"id" json:"id"`
	Command         string    `db:"command" json:"command"`
	Status          string    `db:"status" json:"status"`
	Error           string    `db:"error" json:"error,omitempty"`
	MentionsRead    int       `db:"mentions_read" json:"mentions_read"`
	MentionsSkipped int       `db:"mentions_skipped" json:"mentions_skipped"`
	Entities        int       `db:"entities" json:"entities"`
	SnapshotKey     string    `db:"snapshot_key" json:"snapshot_key,omitempty"`
	Movers          int       `db:"movers" json:"movers"`
	StartedAt       time.Time `db:"started_at" json:"started_at"`
	FinishedAt      time.Time `db:"finished_at" json:"finished_at"`
}

// EntityListOpts controls entity listing.
type EntityListOpts struct {
	MinScore float64
	Limit    int
}

// Store is the persistence interface.
type Store interface {
	ReplaceEntities(ctx context.Context, entities []entity.Entity) error
	ListEntities(ctx context.Context, opts EntityListOpts) ([]entity.Entity, error)

	SaveSnapshot(ctx context.Context, key string, entities []entity.Entity) error
	SnapshotKeys(ctx context.Context) ([]string, error)
	LoadSnapshot(ctx context.Context, key string) ([]entity.Entity, error)

	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// entityRow is the column layout shared by entities and snapshot_entities.
// Unknown values are stored as NULL.
type entityRow struct {
	Position     int             `db:"position"`
	Name         string          `db:"name"`
	Neighborhood sql.NullString  `db:"neighborhood"`
	Cuisine      sql.NullString  `db:"cuisine"`
	Why          sql.NullString  `db:"why"`
	SourceURL    sql.NullString  `db:"source_url"`
	Sentiment    sql.NullString  `db:"sentiment"`
	FirstSeen    sql.NullString  `db:"first_seen"`
	LastSeen     sql.NullString  `db:"last_seen"`
	Mentions     int             `db:"mentions"`
	ScoreBuzz    sql.NullFloat64 `db:"score_buzz"`
	ScoreTrend   sql.NullFloat64 `db:"score_trend"`
	ScoreTotal   sql.NullFloat64 `db:"score_total"`
	Extra        string          `db:"extra"`
}

const entityColumns = `position, name, neighborhood, cuisine, why, source_url, sentiment,
	first_seen, last_seen, mentions, score_buzz, score_trend, score_total, extra`

func toRow(pos int, e *entity.Entity) entityRow {
	extra := "{}"
	if len(e.Extra) > 0 {
		data, _ := json.Marshal(e.Extra)
		extra = string(data)
	}
	return entityRow{
		Position:     pos,
		Name:         e.Name,
		Neighborhood: nullString(e.Neighborhood),
		Cuisine:      nullString(e.Cuisine),
		Why:          nullString(e.Why),
		SourceURL:    nullString(e.SourceURL),
		Sentiment:    nullString(e.Sentiment),
		FirstSeen:    nullTime(e.FirstSeen),
		LastSeen:     nullTime(e.LastSeen),
		Mentions:     e.Mentions,
		ScoreBuzz:    nullFloat(e.ScoreBuzz),
		ScoreTrend:   nullFloat(e.ScoreTrend),
		ScoreTotal:   nullFloat(e.ScoreTotal),
		Extra:        extra,
	}
}

func (r entityRow) toEntity() (entity.Entity, error) {
	e := entity.Entity{
		Name:         r.Name,
		Neighborhood: r.Neighborhood.String,
		Cuisine:      r.Cuisine.String,
		Why:          r.Why.String,
		SourceURL:    r.SourceURL.String,
		Sentiment:    r.Sentiment.String,
		FirstSeen:    parseTime(r.FirstSeen),
		LastSeen:     parseTime(r.LastSeen),
		Mentions:     r.Mentions,
		ScoreBuzz:    floatOrNaN(r.ScoreBuzz),
		ScoreTrend:   floatOrNaN(r.ScoreTrend),
		ScoreTotal:   floatOrNaN(r.ScoreTotal),
	}
	if r.Extra != "" && r.Extra != "{}" {
		if err := json.Unmarshal([]byte(r.Extra), &e.Extra); err != nil {
			return e, fmt.Errorf("decode extra columns of %s: %w", r.Name, err)
		}
	}
	return e, nil
}

// ReplaceEntities swaps the current canonical table for entities.
func (s *SQLiteStore) ReplaceEntities(ctx context.Context, entities []entity.Entity) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities"); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	for i := range entities {
		row := toRow(i, &entities[i])
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO entities (`+entityColumns+`)
			VALUES (:position, :name, :neighborhood, :cuisine, :why, :source_url, :sentiment,
				:first_seen, :last_seen, :mentions, :score_buzz, :score_trend, :score_total, :extra)
		`, row); err != nil {
			return fmt.Errorf("insert entity %s: %w", row.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entities: %w", err)
	}
	return nil
}

// ListEntities returns the canonical table ordered by score_total, highest
// first. Entities without a total come last.
func (s *SQLiteStore) ListEntities(ctx context.Context, opts EntityListOpts) ([]entity.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE 1=1"
	var args []any

	if opts.MinScore > 0 {
		query += " AND score_total >= ?"
		args = append(args, opts.MinScore)
	}

	query += " ORDER BY score_total IS NULL, score_total DESC, position"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []entityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return toEntities(rows)
}

// SaveSnapshot stores entities under key, replacing any snapshot with the
// same key.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, key string, entities []entity.Entity) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_entities WHERE year_week = ?", key); err != nil {
		return fmt.Errorf("clear snapshot %s: %w", key, err)
	}
	for i := range entities {
		row := toRow(i, &entities[i])
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO snapshot_entities (year_week, `+entityColumns+`)
			VALUES (:year_week, :position, :name, :neighborhood, :cuisine, :why, :source_url, :sentiment,
				:first_seen, :last_seen, :mentions, :score_buzz, :score_trend, :score_total, :extra)
		`, snapshotRow{YearWeek: key, entityRow: row}); err != nil {
			return fmt.Errorf("insert snapshot entity %s: %w", row.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (year_week, entities, created_at) VALUES (?, ?, ?)
		ON CONFLICT(year_week) DO UPDATE SET entities = excluded.entities, created_at = excluded.created_at
	`, key, len(entities), time.Now().UTC()); err != nil {
		return fmt.Errorf("record snapshot %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", key, err)
	}
	return nil
}

type snapshotRow struct {
	YearWeek string `db:"year_week"`
	entityRow
}

func (s *SQLiteStore) SnapshotKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT year_week FROM snapshots ORDER BY year_week"); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, key string) ([]entity.Entity, error) {
	var rows []entityRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+entityColumns+" FROM snapshot_entities WHERE year_week = ? ORDER BY position", key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	entities, err := toEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return entities, nil
}

// RecordRun inserts run, or updates it when a row with the same id exists.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, command, status, error, mentions_read, mentions_skipped, entities, snapshot_key, movers, started_at, finished_at)
		VALUES (:id, :command, :status, :error, :mentions_read, :mentions_skipped, :entities, :snapshot_key, :movers, :started_at, :finished_at)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			mentions_read = excluded.mentions_read,
			mentions_skipped = excluded.mentions_skipped,
			entities = excluded.entities,
			snapshot_key = excluded.snapshot_key,
			movers = excluded.movers,
			finished_at = excluded.finished_at
	`, run)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func toEntities(rows []entityRow) ([]entity.Entity, error) {
	out := make([]entity.Entity, len(rows))
	for i, r := range rows {
		e, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func floatOrNaN(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
