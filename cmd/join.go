package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/config"
	"github.com/sells-group/roadfeat/internal/export"
	"github.com/sells-group/roadfeat/internal/join"
)

var (
	joinIn         string
	joinOut        string
	joinCrashes    string
	joinPopulation string
	joinRoster     string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Add population and crash columns to a road table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("join"); err != nil {
			return err
		}
		if joinIn == "" {
			joinIn = cfg.Output.Path
		}
		if joinOut == "" {
			joinOut = joinIn
		}
		if joinCrashes == "" && joinPopulation == "" && joinRoster == "" {
			return eris.New("join: nothing to join, pass --crashes, --population or --roster")
		}

		t, err := export.ReadTable(joinIn)
		if err != nil {
			return eris.Wrap(err, "read road table")
		}

		if joinPopulation != "" || joinRoster != "" {
			pops, err := loadPopulation(joinPopulation, joinRoster)
			if err != nil {
				return err
			}
			rep, err := join.AddPopulation(t, pops)
			if err != nil {
				return err
			}
			printReport("population", rep)
		}

		if joinCrashes != "" {
			ct, err := export.ReadTable(joinCrashes)
			if err != nil {
				return eris.Wrap(err, "read crash table")
			}
			crashes, err := join.CrashesFromTable(ct)
			if err != nil {
				return err
			}
			rep, err := join.AddCrashes(t, crashes)
			if err != nil {
				return err
			}
			printReport("crashes", rep)
		}

		if err := export.WriteTable(joinOut, t); err != nil {
			return eris.Wrap(err, "write joined table")
		}
		zap.L().Info("join: table written", zap.String("path", joinOut), zap.Int("rows", len(t.Rows)))
		return nil
	},
}

// loadPopulation reads a population table, or the roster's census figures
// when no table is given.
func loadPopulation(tablePath, rosterPath string) ([]join.Population, error) {
	if tablePath != "" {
		pt, err := export.ReadTable(tablePath)
		if err != nil {
			return nil, eris.Wrap(err, "read population table")
		}
		return join.PopulationFromTable(pt)
	}
	cities, err := config.LoadRoster(rosterPath)
	if err != nil {
		return nil, err
	}
	return join.PopulationFromRoster(cities), nil
}

func printReport(name string, rep join.Report) {
	fmt.Fprintf(os.Stdout, "%s: %d rows, %d matched\n", name, rep.Rows, rep.Matched)
	for _, k := range rep.Unmatched {
		fmt.Fprintf(os.Stdout, "  unmatched: %s\n", k)
	}
}

func init() {
	joinCmd.Flags().StringVar(&joinIn, "in", "", "road table to extend (default output.path)")
	joinCmd.Flags().StringVar(&joinOut, "out", "", "joined table (default overwrites --in)")
	joinCmd.Flags().StringVar(&joinCrashes, "crashes", "", "crash table with city and city_total_crashes")
	joinCmd.Flags().StringVar(&joinPopulation, "population", "", "population table with city, total_population, urban_population")
	joinCmd.Flags().StringVar(&joinRoster, "roster", "", "take population figures from this roster instead of a table")
	rootCmd.AddCommand(joinCmd)
}
