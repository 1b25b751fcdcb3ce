package main

import "github.com/spf13/cobra"

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show, list, and clear surfaced alert events",
}

var eventsShowCmd = &cobra.Command{
	Use:   "show <fingerprint>",
	Short: "Show one event by its fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("events show requires exactly one fingerprint argument")
		}
		return callAndPrint("events_show", map[string]interface{}{"fingerprint": args[0]})
	},
}

var eventsListLimit int

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently active events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("events_list", map[string]interface{}{"limit": float64(eventsListLimit)})
	},
}

var eventsClearSuppress bool

var eventsClearCmd = &cobra.Command{
	Use:   "clear <fingerprint>",
	Short: "Clear (or suppress) one event by its fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("events clear requires exactly one fingerprint argument")
		}
		return callAndPrint("events_clear", map[string]interface{}{
			"fingerprint": args[0],
			"suppress":    eventsClearSuppress,
		})
	},
}

func init() {
	eventsListCmd.Flags().IntVar(&eventsListLimit, "limit", 50, "maximum number of events to list")
	eventsClearCmd.Flags().BoolVar(&eventsClearSuppress, "suppress", false, "suppress the fingerprint instead of just clearing it")
	eventsCmd.AddCommand(eventsShowCmd, eventsListCmd, eventsClearCmd)
}
