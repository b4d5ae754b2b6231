// Package store persists runs, road aggregates and the geocode cache in
// SQLite or PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// Run is one extract invocation.
type Run struct {
	ID         string     `json:"id"`
	RasterPath string     `json:"raster_path"`
	DstCRS     string     `json:"dst_crs"`
	Cities     int        `json:"cities"`
	Segments   int        `json:"segments"`
	Aggregates int        `json:"aggregates"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunCounts are the totals recorded when a run finishes.
type RunCounts struct {
	Cities     int
	Segments   int
	Aggregates int
}

// Store defines the persistence interface for extract runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, rasterPath, dstCRS string) (*Run, error)
	FinishRun(ctx context.Context, runID string, counts RunCounts) error
	GetRun(ctx context.Context, runID string) (*Run, error)

	// Aggregates
	SaveAggregates(ctx context.Context, runID string, aggs []road.Aggregate, srid int) (int64, error)

	// Geocode cache
	GetBBox(ctx context.Context, query string, maxAge time.Duration) (*geocode.BBox, error)
	PutBBox(ctx context.Context, query string, box geocode.BBox) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver: sqlite, postgres or none. The schema is
// migrated before returning.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, nil)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Nop discards everything. It backs the "none" driver.
type Nop struct{}

// CreateRun returns an unsaved run with a fresh id.
func (Nop) CreateRun(_ context.Context, rasterPath, dstCRS string) (*Run, error) {
	return newRun(rasterPath, dstCRS), nil
}

func (Nop) FinishRun(context.Context, string, RunCounts) error { return nil }

func (Nop) GetRun(_ context.Context, runID string) (*Run, error) {
	return nil, eris.Errorf("run not found: %s", runID)
}

func (Nop) SaveAggregates(_ context.Context, _ string, aggs []road.Aggregate, _ int) (int64, error) {
	return 0, nil
}

func (Nop) GetBBox(context.Context, string, time.Duration) (*geocode.BBox, error) { return nil, nil }
func (Nop) PutBBox(context.Context, string, geocode.BBox) error                   { return nil }
func (Nop) Migrate(context.Context) error                                         { return nil }
func (Nop) Close() error                                                          { return nil }

func newRun(rasterPath, dstCRS string) *Run {
	return &Run{
		ID:         uuid.New().String(),
		RasterPath: rasterPath,
		DstCRS:     dstCRS,
		StartedAt:  time.Now().UTC(),
	}
}

// fresh reports whether an entry cached at t is within maxAge. Zero maxAge
// accepts any age.
func fresh(t time.Time, maxAge time.Duration) bool {
	return maxAge <= 0 || time.Since(t) <= maxAge
}
