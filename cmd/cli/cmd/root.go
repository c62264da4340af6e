package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "simctl",
	Short: "Simctl runs warehouse task-assignment simulations",
	Long: `simctl is the command-line interface for the warehousesim controller.

The controller simulates the pending work of warehouse zones: it assigns tasks to
workers, samples task durations and reports when each zone is expected to finish.

Common workflows:

  Simulate two zones once:
    simctl simulate --zones 1,2

  Simulate with generated test data instead of stored tasks:
    simctl simulate --zones 1 --test-data

  Estimate end-time percentiles over 200 runs:
    simctl montecarlo --zones 1,2 --runs 200

  Show a stored run:
    simctl show <run-id>

Configuration:
  Set the API endpoint via flag, environment variable or config file:
    WAREHOUSESIM_URL    API endpoint (default: http://localhost:6161)`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".simctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".simctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "WAREHOUSESIM_VARNAME"
	viper.SetEnvPrefix("WAREHOUSESIM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.simctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "Warehousesim controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP timeout (default 30s, 10m for montecarlo)")
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}
