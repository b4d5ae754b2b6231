package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/config"
	"github.com/sells-group/roadfeat/internal/export"
	"github.com/sells-group/roadfeat/internal/pipeline"
)

var (
	extractCities    []string
	extractRoster    string
	extractOut       string
	extractSource    string
	extractShapefile string
	extractLimit     int
	extractSlope     bool
	extractDryRun    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Compute per-street road features for the roster cities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if extractOut != "" {
			cfg.Output.Path = extractOut
		}
		if cmd.Flags().Changed("with-slope") {
			cfg.Output.IncludeSlope = extractSlope
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		cities, err := selectCities(extractRoster, extractCities, extractLimit)
		if err != nil {
			return err
		}

		src, err := pipeline.NewSource(cfg, extractSource, extractShapefile)
		if err != nil {
			return err
		}

		grid, err := pipeline.PrepareGrid(ctx, pipeline.NewAcquirer(cfg), cfg.Raster)
		if err != nil {
			return eris.Wrap(err, "prepare raster")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := pipeline.New(src, pipeline.NewResolver(cfg, st), st, grid, pipeline.Options{
			DstCRS:       cfg.Raster.DstCRS,
			BufferRadius: cfg.Extract.BufferRadius,
			Concurrency:  cfg.Extract.Concurrency,
			Output:       cfg.Output.Path,
			Export:       export.Options{IncludeSlope: cfg.Output.IncludeSlope},
			DryRun:       extractDryRun,
			RasterPath:   cfg.Raster.Path,
		})
		res, err := p.Run(ctx, cities)
		if err != nil {
			return err
		}

		for _, c := range res.Skipped() {
			fmt.Fprintf(os.Stderr, "skipped %s: %s\n", c.City, c.Err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// selectCities loads the roster and applies the --cities and --limit-cities
// filters. Unknown names are logged and ignored.
func selectCities(rosterPath string, names []string, limit int) ([]config.City, error) {
	if rosterPath == "" {
		rosterPath = cfg.Roster
	}
	all, err := config.LoadRoster(rosterPath)
	if err != nil {
		return nil, err
	}
	cities, unknown := config.FilterCities(all, names)
	for _, n := range unknown {
		zap.L().Warn("city not in roster", zap.String("city", n), zap.String("roster", rosterPath))
	}
	if limit > 0 && len(cities) > limit {
		cities = cities[:limit]
	}
	if len(cities) == 0 {
		return nil, eris.New("no cities selected")
	}
	return cities, nil
}

func init() {
	extractCmd.Flags().StringSliceVar(&extractCities, "cities", nil, "comma-separated roster cities to process (default all)")
	extractCmd.Flags().StringVar(&extractRoster, "roster", "", "city roster YAML (default from config)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output table: .csv, .xlsx or .shp (default from config)")
	extractCmd.Flags().StringVar(&extractSource, "source", "overpass", "road source: overpass or shapefile")
	extractCmd.Flags().StringVar(&extractShapefile, "shapefile", "", "road shapefile for --source shapefile")
	extractCmd.Flags().IntVar(&extractLimit, "limit-cities", 0, "process at most this many cities (0 = all)")
	extractCmd.Flags().BoolVar(&extractSlope, "with-slope", false, "include the mean_slope column")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "compute without writing the table or the store")
	rootCmd.AddCommand(extractCmd)
}
