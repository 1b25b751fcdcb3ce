package main

import "github.com/spf13/cobra"

var learningCmd = &cobra.Command{
	Use:   "learning",
	Short: "Inspect and reset the daemon's learned command/pattern history",
}

var learningStatsLimit int

var learningStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the top learned patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("learning_stats", map[string]interface{}{"limit": float64(learningStatsLimit)})
	},
}

var learningRecommendationsCmd = &cobra.Command{
	Use:   "recommendations",
	Short: "List the recipe index available for recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("learning_recommendations", nil)
	},
}

var learningResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learned pattern history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("learning_reset", nil)
	},
}

func init() {
	learningStatsCmd.Flags().IntVar(&learningStatsLimit, "limit", 20, "maximum number of patterns to show")
	learningCmd.AddCommand(learningStatsCmd, learningRecommendationsCmd, learningResetCmd)
}
