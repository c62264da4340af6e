package cmd

import (
	"time"

	"warehousesim/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate the pending work of one or more zones",
	Long: `Run a single simulation of the given zones. Each zone assigns its pending tasks
to its available workers and the result shows when every task starts and ends.`,
	Example: `  simctl simulate --zones 1,2
  simctl simulate --zones 3 --test-data --tasks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		zones, _ := cmd.Flags().GetInt64Slice("zones")
		testData, _ := cmd.Flags().GetBool("test-data")
		showTasks, _ := cmd.Flags().GetBool("tasks")

		client := NewSimClient(viper.GetString("url"), viper.GetDuration("timeout"))
		res, err := client.RunSimulation(cmd.Context(), api.RunSimulationRequest{
			ZoneIDs:     zones,
			UseTestData: testData,
		})
		if err != nil {
			cmd.PrintErrf("Simulation failed: %v\n", err)
			return err
		}

		printSimulation(cmd, res, showTasks)
		return nil
	},
}

func printSimulation(cmd *cobra.Command, res *api.SimulationResponse, showTasks bool) {
	cmd.Printf("%sSimulation %s%s\n", colorBold, res.RunID, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sSeed:%s        %d\n", colorDim, colorReset, res.Seed)
	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, res.StartedAt.Format(time.RFC3339))
	cmd.Printf("%sLatest end:%s  %s\n", colorDim, colorReset, formatSince(res.LatestEnd, res.StartedAt))

	for _, z := range res.Zones {
		kind := "active"
		if z.IsPickerZone {
			kind = "picker"
		}
		cmd.Printf("\nZone %d (%s): %d scheduled, %d failed, last end %s\n",
			z.ZoneID, kind, z.Scheduled, z.Failed, formatSince(z.LastEnd, res.StartedAt))
		if z.Partial {
			cmd.Printf("  %spartial result%s\n", colorYellow, colorReset)
		}
		if z.Error != "" {
			cmd.Printf("  %s%s%s\n", colorRed, z.Error, colorReset)
		}
		if showTasks {
			for _, t := range z.Tasks {
				cmd.Printf("  %s %-8s %-6s %s → %s workers=%v\n",
					stateIcon(t.State), t.TaskID, t.Kind, formatClock(t.Start), formatClock(t.End), t.WorkerIDs)
			}
		}
		for _, msg := range z.Messages {
			cmd.Printf("  %s%s%s\n", colorDim, msg, colorReset)
		}
	}
}

func init() {
	simulateCmd.Flags().Int64Slice("zones", nil, "Zone ids to simulate (comma separated)")
	simulateCmd.Flags().Bool("test-data", false, "Use generated tasks instead of stored ones")
	simulateCmd.Flags().Bool("tasks", false, "Print every task")
	simulateCmd.MarkFlagRequired("zones")
	rootCmd.AddCommand(simulateCmd)
}
