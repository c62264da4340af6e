package cmd

import (
	"time"

	"warehousesim/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Estimate zone end times over many simulation runs",
	Long: `Repeat the simulation of the given zones with different seeds and summarise
the latest end time (P50, P90, mean), the per-zone average and best case, and the
average completion curve.`,
	Example: `  simctl montecarlo --zones 1,2 --runs 200`,
	RunE: func(cmd *cobra.Command, args []string) error {
		zones, _ := cmd.Flags().GetInt64Slice("zones")
		testData, _ := cmd.Flags().GetBool("test-data")
		runs, _ := cmd.Flags().GetInt("runs")
		showCurve, _ := cmd.Flags().GetBool("curve")

		timeout := viper.GetDuration("timeout")
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		client := NewSimClient(viper.GetString("url"), timeout)
		res, err := client.RunMonteCarlo(cmd.Context(), api.MonteCarloRequest{
			ZoneIDs:     zones,
			UseTestData: testData,
			Runs:        runs,
		})
		if err != nil {
			cmd.PrintErrf("Monte Carlo failed: %v\n", err)
			return err
		}

		printMonteCarlo(cmd, res, showCurve)
		return nil
	},
}

func printMonteCarlo(cmd *cobra.Command, res *api.MonteCarloResponse, showCurve bool) {
	cmd.Printf("%sMonte Carlo %s%s\n", colorBold, res.RunID, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sRuns:%s        %d (%d completed)\n", colorDim, colorReset, res.Runs, res.Completed)
	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, res.StartedAt.Format(time.RFC3339))

	if res.LatestEnd == nil {
		cmd.Printf("%sNo run completed any task%s\n", colorYellow, colorReset)
	} else {
		cmd.Printf("%sP50 end:%s     %s\n", colorDim, colorReset, formatSince(&res.LatestEnd.P50, res.StartedAt))
		cmd.Printf("%sP90 end:%s     %s\n", colorDim, colorReset, formatSince(&res.LatestEnd.P90, res.StartedAt))
		cmd.Printf("%sMean end:%s    %s\n", colorDim, colorReset, formatSince(&res.LatestEnd.Mean, res.StartedAt))
	}

	for _, z := range res.Zones {
		cmd.Printf("\nZone %d: average end %s, best %s (run %d)\n",
			z.ZoneID, formatSince(z.AverageEnd, res.StartedAt), formatSince(z.BestEnd, res.StartedAt), z.BestRun)
	}

	if showCurve {
		cmd.Println("\nCompleted tasks")
		for _, p := range res.Curve {
			at := p.At
			cmd.Printf("  %s  %.1f\n", formatClock(&at), p.Completed)
		}
	}

	for _, msg := range res.Errors {
		cmd.Printf("%s%s%s\n", colorDim, msg, colorReset)
	}
}

func init() {
	montecarloCmd.Flags().Int64Slice("zones", nil, "Zone ids to simulate (comma separated)")
	montecarloCmd.Flags().Bool("test-data", false, "Use generated tasks instead of stored ones")
	montecarloCmd.Flags().Int("runs", 0, "Number of runs (default: server setting)")
	montecarloCmd.Flags().Bool("curve", false, "Print the completion curve")
	montecarloCmd.MarkFlagRequired("zones")
	rootCmd.AddCommand(montecarloCmd)
}
