package cmd

import (
	"fmt"
	"os"

	"pulsefm/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulsefm",
	Short: "Pulse FM is an unattended internet radio station.",
	Run: func(cmd *cobra.Command, args []string) {
		// Running the bare binary starts the station, same as "pulsefm server".
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
