package main

import "github.com/spf13/cobra"

// personaCmd is a non-goal surface (persona copy is out of scope); see
// the daemon's registerStubMethods for what little backs it.
var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Get or set the active persona name",
}

var personaGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active persona",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("persona_get", nil)
	},
}

var personaSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Set the active persona",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("persona set requires exactly one name argument")
		}
		return callAndPrint("persona_set", map[string]interface{}{"persona": args[0]})
	},
}

var personaWhyCmd = &cobra.Command{
	Use:   "why",
	Short: "Show which persona is active and why",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("persona_why", nil)
	},
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("persona_list", nil)
	},
}

func init() {
	personaCmd.AddCommand(personaGetCmd, personaSetCmd, personaWhyCmd, personaListCmd)
}
