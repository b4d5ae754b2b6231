package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roadfeat/internal/db"
	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// PostgresStore implements Store using pgxpool. Aggregate geometry lands in
// a PostGIS column.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	raster_path TEXT NOT NULL,
	dst_crs     TEXT NOT NULL,
	cities      INTEGER NOT NULL DEFAULT 0,
	segments    INTEGER NOT NULL DEFAULT 0,
	aggregates  INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS road_aggregates (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	city           TEXT NOT NULL,
	osm_id         BIGINT NOT NULL,
	name           TEXT NOT NULL,
	highway        TEXT NOT NULL,
	lanes          TEXT NOT NULL,
	maxspeed       TEXT NOT NULL,
	surface        TEXT NOT NULL,
	bridge         BOOLEAN NOT NULL,
	tunnel         BOOLEAN NOT NULL,
	lit            BOOLEAN NOT NULL,
	sidewalk       BOOLEAN NOT NULL,
	oneway         BOOLEAN NOT NULL,
	cycleway       BOOLEAN NOT NULL,
	segment_length DOUBLE PRECISION NOT NULL,
	segment_width  DOUBLE PRECISION NOT NULL,
	mean_curvature DOUBLE PRECISION NOT NULL,
	mean_slope     DOUBLE PRECISION,
	segments       INTEGER NOT NULL,
	geom           geometry(MultiLineString)
);

CREATE TABLE IF NOT EXISTS bbox_cache (
	query     TEXT PRIMARY KEY,
	west      DOUBLE PRECISION NOT NULL,
	south     DOUBLE PRECISION NOT NULL,
	east      DOUBLE PRECISION NOT NULL,
	north     DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_road_aggregates_run_id ON road_aggregates(run_id);
CREATE INDEX IF NOT EXISTS idx_road_aggregates_city ON road_aggregates(city);
CREATE INDEX IF NOT EXISTS idx_road_aggregates_geom ON road_aggregates USING GIST (geom);
`

// bboxUpsert keys the geocode cache on the normalized query.
var bboxUpsert = db.UpsertConfig{
	Table:        "bbox_cache",
	Columns:      []string{"query", "west", "south", "east", "north", "cached_at"},
	ConflictKeys: []string{"query"},
	UpdateCols:   []string{"west", "south", "east", "north", "cached_at"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, rasterPath, dstCRS string) (*Run, error) {
	r := newRun(rasterPath, dstCRS)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, raster_path, dst_crs, started_at) VALUES ($1, $2, $3, $4)`,
		r.ID, r.RasterPath, r.DstCRS, r.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return r, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, counts RunCounts) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET cities = $1, segments = $2, aggregates = $3, finished_at = $4 WHERE id = $5`,
		counts.Cities, counts.Segments, counts.Aggregates, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, raster_path, dst_crs, cities, segments, aggregates, started_at, finished_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.RasterPath, &r.DstCRS, &r.Cities, &r.Segments, &r.Aggregates, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

// SaveAggregates bulk loads aggs with COPY. Geometry is sent as EWKB.
func (s *PostgresStore) SaveAggregates(ctx context.Context, runID string, aggs []road.Aggregate, srid int) (int64, error) {
	rows := make([][]any, 0, len(aggs))
	for i := range aggs {
		row, err := aggregateRow(runID, &aggs[i], srid)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	n, err := db.CopyFrom(ctx, s.pool, "road_aggregates", aggregateColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save aggregates for run %s", runID)
	}
	return n, nil
}

// GetBBox returns the cached box for query, or nil when missing or older
// than maxAge.
func (s *PostgresStore) GetBBox(ctx context.Context, query string, maxAge time.Duration) (*geocode.BBox, error) {
	var (
		b        geocode.BBox
		cachedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT west, south, east, north, cached_at FROM bbox_cache WHERE query = $1`,
		query,
	).Scan(&b.West, &b.South, &b.East, &b.North, &cachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get bbox %q", query)
	}
	if !fresh(cachedAt, maxAge) {
		return nil, nil
	}
	return &b, nil
}

func (s *PostgresStore) PutBBox(ctx context.Context, query string, box geocode.BBox) error {
	return db.Upsert(ctx, s.pool, bboxUpsert,
		query, box.West, box.South, box.East, box.North, time.Now().UTC(),
	)
}
