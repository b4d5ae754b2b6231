package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/config"
	"github.com/sells-group/roadfeat/internal/fetcher"
	"github.com/sells-group/roadfeat/internal/raster"
	"github.com/sells-group/roadfeat/internal/resilience"
)

// NewAcquirer builds the raster acquirer from the fetch and raster settings.
func NewAcquirer(cfg *config.Config) *fetcher.Acquirer {
	retry := resilience.Policy{
		Attempts: cfg.Fetch.Attempts,
		Pause:    millis(cfg.Fetch.PauseMs),
	}
	return &fetcher.Acquirer{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   seconds(cfg.Fetch.TimeoutSecs),
			Retry:     retry,
			RateLimit: limit(cfg.Fetch.RateLimit),
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: seconds(cfg.Fetch.TimeoutSecs),
			Retry:   retry,
		}),
		CacheDir: cfg.Raster.CacheDir,
	}
}

// PrepareGrid acquires, loads and reprojects the elevation model. The
// configured nodata value is rewritten to missing before resampling.
func PrepareGrid(ctx context.Context, acq *fetcher.Acquirer, rc config.RasterConfig) (*raster.Grid, error) {
	path, err := acq.Acquire(ctx, rc.Path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire raster")
	}
	src, err := raster.Load(path)
	if err != nil {
		return nil, err
	}
	if n := src.FillNoData(rc.NoData); n > 0 {
		zap.L().Debug("pipeline: nodata cells filled", zap.Int("cells", n))
	}

	grid, err := raster.Reproject(ctx, src, rc.DstCRS, rc.Scale)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reproject raster")
	}
	zap.L().Info("pipeline: raster ready",
		zap.String("path", path),
		zap.String("crs", grid.CRS),
		zap.Int("rows", grid.Rows),
		zap.Int("cols", grid.Cols),
		zap.Int("valid", grid.ValidCount()),
	)
	return grid, nil
}
