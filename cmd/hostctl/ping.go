package main

import "github.com/spf13/cobra"

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("ping", nil)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon uptime, autonomy level, and today's case counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("status", nil)
	},
}
