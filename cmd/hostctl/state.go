package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Save, load, and list recorded system-state snapshots",
}

var stateSaveFile string

var stateSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Record an inventory snapshot from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if stateSaveFile == "" {
			return newArgError("state save requires --file")
		}
		data, err := readFile(stateSaveFile)
		if err != nil {
			return newArgError("read inventory file: %v", err)
		}
		var inventory interface{}
		if err := json.Unmarshal(data, &inventory); err != nil {
			return newArgError("decode inventory file as JSON: %v", err)
		}
		return callAndPrint("state_save", map[string]interface{}{"inventory": inventory})
	},
}

var stateLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Show the most recently saved inventory snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("state_load", nil)
	},
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List today's recorded cases and daily counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("state_list", nil)
	},
}

func init() {
	stateSaveCmd.Flags().StringVar(&stateSaveFile, "file", "", "path to a JSON inventory snapshot")
	stateCmd.AddCommand(stateSaveCmd, stateLoadCmd, stateListCmd)
}
