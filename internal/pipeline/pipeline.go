// Package pipeline runs the extract flow: resolve each city, fetch its roads,
// project them, compute features, aggregate by street and write the result.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/config"
	"github.com/sells-group/roadfeat/internal/export"
	"github.com/sells-group/roadfeat/internal/proj"
	"github.com/sells-group/roadfeat/internal/raster"
	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/internal/source"
	"github.com/sells-group/roadfeat/internal/store"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// Options controls one extract run.
type Options struct {
	// DstCRS is an EPSG code or "utm". Ignored when a grid is set, whose CRS
	// wins.
	DstCRS       string
	BufferRadius float64
	Concurrency  int
	Output       string
	Export       export.Options
	// DryRun computes everything but writes neither the table nor the store.
	DryRun bool
	// RasterPath is recorded on the run.
	RasterPath string
}

// Pipeline holds the collaborators of an extract run.
type Pipeline struct {
	source   source.Source
	resolver geocode.Resolver
	store    store.Store
	grid     *raster.Grid
	opts     Options
}

// New creates a Pipeline. grid may be nil, which leaves every slope unknown.
// st may be nil, which disables persistence.
func New(src source.Source, resolver geocode.Resolver, st store.Store, grid *raster.Grid, opts Options) *Pipeline {
	if st == nil {
		st = store.Nop{}
	}
	return &Pipeline{
		source:   src,
		resolver: resolver,
		store:    st,
		grid:     grid,
		opts:     opts,
	}
}

// CityResult is the outcome for one roster entry. Err is set when the city
// was skipped.
type CityResult struct {
	City     string        `json:"city"`
	BBox     *geocode.BBox `json:"bbox,omitempty"`
	Segments int           `json:"segments"`
	Err      string        `json:"error,omitempty"`
}

// Result summarises a run.
type Result struct {
	RunID      string              `json:"run_id"`
	CRS        string              `json:"crs"`
	Cities     []CityResult        `json:"cities"`
	Segments   int                 `json:"segments"`
	Extract    road.ExtractStats   `json:"extract"`
	Normalize  road.NormalizeStats `json:"normalize"`
	Reduce     road.ReduceStats    `json:"reduce"`
	Aggregates []road.Aggregate    `json:"-"`
	Output     string              `json:"output,omitempty"`
	Saved      int64               `json:"saved"`
	Duration   time.Duration       `json:"duration"`
}

// Skipped returns the cities that produced no segments because of an error.
func (r *Result) Skipped() []CityResult {
	var out []CityResult
	for _, c := range r.Cities {
		if c.Err != "" {
			out = append(out, c)
		}
	}
	return out
}

// Run processes cities in order. A city that fails to resolve or fetch is
// logged and skipped. The output table is written even when no street
// survives.
func (p *Pipeline) Run(ctx context.Context, cities []config.City) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.Int("cities", len(cities)))
	log.Info("pipeline: starting extract")

	res := &Result{}
	if !p.opts.DryRun {
		run, err := p.store.CreateRun(ctx, p.opts.RasterPath, p.opts.DstCRS)
		if err != nil {
			log.Warn("pipeline: failed to create run", zap.Error(err))
		} else {
			res.RunID = run.ID
		}
	}

	segs, err := p.collect(ctx, cities, res)
	if err != nil {
		return nil, err
	}
	res.Segments = len(segs)

	crs, err := p.targetCRS(res.Cities)
	if err != nil {
		return nil, err
	}
	res.CRS = crs.String()
	if err := projectSegments(segs, crs); err != nil {
		return nil, err
	}

	ex := &road.Extractor{
		Radius:      p.opts.BufferRadius,
		Concurrency: p.opts.Concurrency,
		Grid:        p.grid,
	}
	res.Extract, err = ex.Extract(ctx, segs)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract features")
	}
	res.Normalize = road.Normalize(segs)
	res.Aggregates, res.Reduce = road.Reduce(segs)

	if !p.opts.DryRun {
		if err := p.persist(ctx, res, crs); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	log.Info("pipeline: extract complete",
		zap.String("crs", res.CRS),
		zap.Int("segments", res.Segments),
		zap.Int("aggregates", len(res.Aggregates)),
		zap.Int("skipped_cities", len(res.Skipped())),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// collect resolves and fetches each city sequentially.
func (p *Pipeline) collect(ctx context.Context, cities []config.City, res *Result) ([]road.Segment, error) {
	var all []road.Segment
	for _, c := range cities {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: canceled")
		}
		log := zap.L().With(zap.String("city", c.Name))
		cr := CityResult{City: c.Name}

		box, err := p.resolver.Resolve(ctx, c.GeocodeQuery())
		switch {
		case err != nil:
			log.Warn("pipeline: geocode failed, skipping city", zap.Error(err))
			cr.Err = err.Error()
		case box == nil:
			log.Warn("pipeline: city not found, skipping")
			cr.Err = "geocode: no match"
		}
		if cr.Err != "" {
			res.Cities = append(res.Cities, cr)
			continue
		}
		cr.BBox = box

		segs, err := p.source.Segments(ctx, c.Name, *box)
		if err != nil {
			log.Warn("pipeline: road fetch failed, skipping city", zap.Error(err))
			cr.Err = err.Error()
			res.Cities = append(res.Cities, cr)
			continue
		}
		cr.Segments = len(segs)
		log.Info("pipeline: city fetched",
			zap.String("bbox", box.String()),
			zap.Int("segments", len(segs)),
		)
		res.Cities = append(res.Cities, cr)
		all = append(all, segs...)
	}
	return all, nil
}

// targetCRS is the grid's CRS when a grid is loaded, otherwise DstCRS
// resolved around the first resolved city.
func (p *Pipeline) targetCRS(cities []CityResult) (proj.CRS, error) {
	if p.grid != nil {
		crs, err := proj.Parse(p.grid.CRS)
		return crs, eris.Wrap(err, "pipeline: grid crs")
	}
	lon, lat := 0.0, 0.0
	for _, c := range cities {
		if c.BBox != nil {
			lon, lat = c.BBox.Center()
			break
		}
	}
	crs, err := proj.Resolve(p.opts.DstCRS, lon, lat)
	return crs, eris.Wrap(err, "pipeline: destination crs")
}

// projectSegments maps every lon/lat line into crs in place.
func projectSegments(segs []road.Segment, crs proj.CRS) error {
	fn, err := proj.New(proj.WGS84, crs)
	if err != nil {
		return eris.Wrap(err, "pipeline: projection")
	}
	for i := range segs {
		segs[i].Line = road.ProjectLine(segs[i].Line, fn)
	}
	return nil
}

// persist writes the output table and records the run. A store failure is
// logged; a table failure is returned.
func (p *Pipeline) persist(ctx context.Context, res *Result, crs proj.CRS) error {
	if p.opts.Output != "" {
		if err := export.Write(p.opts.Output, res.Aggregates, p.opts.Export); err != nil {
			return eris.Wrap(err, "pipeline: write output")
		}
		res.Output = p.opts.Output
	}
	if res.RunID == "" {
		return nil
	}

	n, err := p.store.SaveAggregates(ctx, res.RunID, res.Aggregates, crs.SRID())
	if err != nil {
		zap.L().Warn("pipeline: failed to save aggregates", zap.String("run_id", res.RunID), zap.Error(err))
	}
	res.Saved = n

	counts := store.RunCounts{
		Cities:     len(res.Cities) - len(res.Skipped()),
		Segments:   res.Segments,
		Aggregates: len(res.Aggregates),
	}
	if err := p.store.FinishRun(ctx, res.RunID, counts); err != nil {
		zap.L().Warn("pipeline: failed to finish run", zap.String("run_id", res.RunID), zap.Error(err))
	}
	return nil
}
