package cmd

import (
	"pulsefm/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Pulse FM station",
	Long:  `Starts the playback orchestrator, the stream relay connection and the HTTP/WebSocket control surface, and keeps broadcasting until the process is stopped.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
