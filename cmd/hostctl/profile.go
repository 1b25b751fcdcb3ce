package main

import "github.com/spf13/cobra"

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the operator's command/pattern profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show top commands and top patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("profile_show", nil)
	},
}

var profileChecksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Run the same checks as doctor validate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("profile_checks", nil)
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd, profileChecksCmd)
}
