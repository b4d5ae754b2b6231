package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/pipeline"
)

var bboxCmd = &cobra.Command{
	Use:   "bbox <city>...",
	Short: "Resolve city bounding boxes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("bbox"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r := pipeline.NewResolver(cfg, st)
		for _, city := range args {
			box, err := r.Resolve(ctx, city)
			switch {
			case err != nil:
				zap.L().Warn("bbox: resolve failed", zap.String("city", city), zap.Error(err))
				fmt.Fprintf(os.Stdout, "%s\terror: %v\n", city, err)
			case box == nil:
				fmt.Fprintf(os.Stdout, "%s\tnot found\n", city)
			default:
				fmt.Fprintf(os.Stdout, "%s\t%s\n", city, box)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bboxCmd)
}
