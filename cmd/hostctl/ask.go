package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <intent...>",
	Short: "Ask the daemon to match a recipe against a free-text request",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return newArgError("ask requires an intent to match against")
		}
		intent := strings.Join(args, " ")
		return callAndPrint("ask", map[string]interface{}{"intent": intent})
	},
}
