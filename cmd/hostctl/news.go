package main

import "github.com/spf13/cobra"

var (
	newsVersion bool
	newsList    bool
)

// newsCmd is a non-goal surface (news/explore copy is out of scope) kept
// only so the command tree matches what the daemon actually exposes; see
// the daemon's handleNews for what little it returns.
var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show release news (always empty; content is out of scope)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("news", nil)
	},
}

func init() {
	newsCmd.Flags().BoolVar(&newsVersion, "version", false, "accepted for compatibility; has no effect on the response")
	newsCmd.Flags().BoolVar(&newsList, "list", false, "accepted for compatibility; has no effect on the response")
}
