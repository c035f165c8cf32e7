package store

const schema = `
CREATE TABLE IF NOT EXISTS entities (
    position      INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    neighborhood  TEXT,
    cuisine       TEXT,
    why           TEXT,
    source_url    TEXT,
    sentiment     TEXT,
    first_seen    TEXT,
    last_seen     TEXT,
    mentions      INTEGER NOT NULL DEFAULT 0,
    score_buzz    REAL,
    score_trend   REAL,
    score_total   REAL,
    extra         TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_entities_score_total ON entities(score_total);

CREATE TABLE IF NOT EXISTS snapshot_entities (
    year_week     TEXT NOT NULL,
    position      INTEGER NOT NULL,
    name          TEXT NOT NULL,
    neighborhood  TEXT,
    cuisine       TEXT,
    why           TEXT,
    source_url    TEXT,
    sentiment     TEXT,
    first_seen    TEXT,
    last_seen     TEXT,
    mentions      INTEGER NOT NULL DEFAULT 0,
    score_buzz    REAL,
    score_trend   REAL,
    score_total   REAL,
    extra         TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (year_week, position)
);

CREATE TABLE IF NOT EXISTS snapshots (
    year_week   TEXT PRIMARY KEY,
    entities    INTEGER NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    command          TEXT NOT NULL,
    status           TEXT NOT NULL,
    error            TEXT NOT NULL DEFAULT '',
    mentions_read    INTEGER NOT NULL DEFAULT 0,
    mentions_skipped INTEGER NOT NULL DEFAULT 0,
    entities         INTEGER NOT NULL DEFAULT 0,
    snapshot_key     TEXT NOT NULL DEFAULT '',
    movers           INTEGER NOT NULL DEFAULT 0,
    started_at       DATETIME NOT NULL,
    finished_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
