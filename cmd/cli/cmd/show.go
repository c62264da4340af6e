package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show [run_id]",
	Short: "Show a stored simulation run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewSimClient(viper.GetString("url"), viper.GetDuration("timeout"))
		run, err := client.GetSimulation(cmd.Context(), args[0])
		if err != nil {
			cmd.PrintErrf("Failed to get run: %v\n", err)
			return err
		}

		cmd.Printf("%sRun %s%s\n", colorBold, run.ID, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sKind:%s        %s\n", colorDim, colorReset, run.Kind)
		cmd.Printf("%sZones:%s       %v\n", colorDim, colorReset, run.ZoneIDs)
		cmd.Printf("%sRuns:%s        %d\n", colorDim, colorReset, run.Runs)
		cmd.Printf("%sTest data:%s   %t\n", colorDim, colorReset, run.UseTestData)
		cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, run.StartedAt.Format(time.RFC3339))
		cmd.Printf("%sLatest end:%s  %s\n", colorDim, colorReset, formatSince(run.LatestEnd, run.StartedAt))
		for _, msg := range run.Errors {
			cmd.Printf("%s%s%s\n", colorDim, msg, colorReset)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
