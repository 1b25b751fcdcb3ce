package main

import "github.com/spf13/cobra"

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Query recorded process telemetry",
}

var telemetryWindow string

func telemetryParams(args []string) (map[string]interface{}, error) {
	if len(args) != 1 {
		return nil, newArgError("telemetry command requires exactly one process name argument")
	}
	return map[string]interface{}{"name": args[0], "window": telemetryWindow}, nil
}

var telemetrySnapshotCmd = &cobra.Command{
	Use:   "snapshot <name>",
	Short: "Show current-window stats for one process name",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := telemetryParams(args)
		if err != nil {
			return err
		}
		return callAndPrint("telemetry_snapshot", params)
	},
}

var telemetryHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show enhanced window stats (peaks, top samples) for one process name",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := telemetryParams(args)
		if err != nil {
			return err
		}
		return callAndPrint("telemetry_history", params)
	},
}

var telemetryTrendsCmd = &cobra.Command{
	Use:   "trends <name>",
	Short: "Show the 24h trend for one process name",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := telemetryParams(args)
		if err != nil {
			return err
		}
		return callAndPrint("telemetry_trends", params)
	},
}

func init() {
	telemetryCmd.PersistentFlags().StringVar(&telemetryWindow, "window", "24h", "window: 1h, 24h, 7d, or 30d")
	telemetryCmd.AddCommand(telemetrySnapshotCmd, telemetryHistoryCmd, telemetryTrendsCmd)
}
