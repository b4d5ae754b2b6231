package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	raster_path TEXT NOT NULL,
	dst_crs     TEXT NOT NULL,
	cities      INTEGER NOT NULL DEFAULT 0,
	segments    INTEGER NOT NULL DEFAULT 0,
	aggregates  INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS road_aggregates (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	city           TEXT NOT NULL,
	osm_id         INTEGER NOT NULL,
	name           TEXT NOT NULL,
	highway        TEXT NOT NULL,
	lanes          TEXT NOT NULL,
	maxspeed       TEXT NOT NULL,
	surface        TEXT NOT NULL,
	bridge         INTEGER NOT NULL,
	tunnel         INTEGER NOT NULL,
	lit            INTEGER NOT NULL,
	sidewalk       INTEGER NOT NULL,
	oneway         INTEGER NOT NULL,
	cycleway       INTEGER NOT NULL,
	segment_length REAL NOT NULL,
	segment_width  REAL NOT NULL,
	mean_curvature REAL NOT NULL,
	mean_slope     REAL,
	segments       INTEGER NOT NULL,
	geom           BLOB
);

CREATE TABLE IF NOT EXISTS bbox_cache (
	query     TEXT PRIMARY KEY,
	west      REAL NOT NULL,
	south     REAL NOT NULL,
	east      REAL NOT NULL,
	north     REAL NOT NULL,
	cached_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_road_aggregates_run_id ON road_aggregates(run_id);
CREATE INDEX IF NOT EXISTS idx_road_aggregates_city ON road_aggregates(city);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, rasterPath, dstCRS string) (*Run, error) {
	r := newRun(rasterPath, dstCRS)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, raster_path, dst_crs, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.RasterPath, r.DstCRS, r.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return r, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, counts RunCounts) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET cities = ?, segments = ?, aggregates = ?, finished_at = ? WHERE id = ?`,
		counts.Cities, counts.Segments, counts.Aggregates, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, raster_path, dst_crs, cities, segments, aggregates, started_at, finished_at
		 FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.RasterPath, &r.DstCRS, &r.Cities, &r.Segments, &r.Aggregates, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// SaveAggregates inserts aggs for runID in one transaction.
func (s *SQLiteStore) SaveAggregates(ctx context.Context, runID string, aggs []road.Aggregate, srid int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(aggregateColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO road_aggregates (`+strings.Join(aggregateColumns, ", ")+`) VALUES (`+marks+`)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare aggregate insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i := range aggs {
		row, err := aggregateRow(runID, &aggs[i], srid)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert aggregate %s/%s", aggs[i].City, aggs[i].Name)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit aggregates")
	}
	return n, nil
}

// GetBBox returns the cached box for query, or nil when missing or older
// than maxAge.
func (s *SQLiteStore) GetBBox(ctx context.Context, query string, maxAge time.Duration) (*geocode.BBox, error) {
	var (
		b        geocode.BBox
		cachedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT west, south, east, north, cached_at FROM bbox_cache WHERE query = ?`,
		query,
	).Scan(&b.West, &b.South, &b.East, &b.North, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get bbox %q", query)
	}
	if !fresh(cachedAt, maxAge) {
		return nil, nil
	}
	return &b, nil
}

func (s *SQLiteStore) PutBBox(ctx context.Context, query string, box geocode.BBox) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bbox_cache (query, west, south, east, north, cached_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET
			west = excluded.west, south = excluded.south,
			east = excluded.east, north = excluded.north,
			cached_at = excluded.cached_at`,
		query, box.West, box.South, box.East, box.North, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put bbox %q", query)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
