package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write daemon configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get one configuration key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("config get requires exactly one key argument")
		}
		return callAndPrint("config_get", map[string]interface{}{"key": args[0]})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return newArgError("config set requires a key and a value argument")
		}
		return callAndPrint("config_set", map[string]interface{}{"key": args[0], "value": args[1]})
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Reset one configuration key to its default",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("config reset requires exactly one key argument")
		}
		return callAndPrint("config_reset", map[string]interface{}{"key": args[0]})
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the daemon's resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("config_list", nil)
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the daemon's resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("config_export", nil)
	},
}

var configImportFile string

var configImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a settings object from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configImportFile == "" {
			return newArgError("config import requires --file")
		}
		data, err := readFile(configImportFile)
		if err != nil {
			return newArgError("read import file: %v", err)
		}
		var settings map[string]interface{}
		if err := json.Unmarshal(data, &settings); err != nil {
			return newArgError("decode import file as JSON object: %v", err)
		}
		return callAndPrint("config_import", map[string]interface{}{"settings": settings})
	},
}

func init() {
	configImportCmd.Flags().StringVar(&configImportFile, "file", "", "path to a JSON settings object")
	configCmd.AddCommand(configGetCmd, configSetCmd, configResetCmd, configListCmd, configExportCmd, configImportCmd)
}

var autonomyCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Get or set the daemon's autonomy level",
}

var autonomyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current autonomy level",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("autonomy_get", nil)
	},
}

var autonomySetCmd = &cobra.Command{
	Use:   "set <read_only|suggest_only|full>",
	Short: "Set the autonomy level",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("autonomy set requires exactly one level argument")
		}
		return callAndPrint("autonomy_set", map[string]interface{}{"autonomy": args[0]})
	},
}

func init() {
	autonomyCmd.AddCommand(autonomyGetCmd, autonomySetCmd)
}
