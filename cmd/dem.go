package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/roadfeat/internal/pipeline"
)

var demCmd = &cobra.Command{
	Use:   "dem",
	Short: "Load and reproject the elevation model and describe it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("dem"); err != nil {
			return err
		}
		g, err := pipeline.PrepareGrid(ctx, pipeline.NewAcquirer(cfg), cfg.Raster)
		if err != nil {
			return err
		}

		minX, minY, maxX, maxY := g.Bounds()
		w := os.Stdout
		fmt.Fprintf(w, "crs:        %s\n", g.CRS)
		fmt.Fprintf(w, "size:       %d cols x %d rows\n", g.Cols, g.Rows)
		fmt.Fprintf(w, "origin:     %.3f, %.3f\n", g.Transform.OriginX, g.Transform.OriginY)
		fmt.Fprintf(w, "pixel:      %.4f x %.4f\n", g.Transform.PixelWidth, g.Transform.PixelHeight)
		fmt.Fprintf(w, "bounds:     %.3f %.3f %.3f %.3f\n", minX, minY, maxX, maxY)
		fmt.Fprintf(w, "valid:      %d of %d cells\n", g.ValidCount(), g.Rows*g.Cols)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demCmd)
}
