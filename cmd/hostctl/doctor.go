package main

import "github.com/spf13/cobra"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Inspect and repair known-bad conditions",
}

var doctorCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show the active issue summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("doctor_check", nil)
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the data layout and scope policy are sane",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("doctor_validate", nil)
	},
}

var doctorSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create any missing data directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("doctor_setup", nil)
	},
}

var doctorRepairArgs struct {
	recipeID string
}

var doctorRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Run a recipe's repair plan and record the outcome as a case",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorRepairArgs.recipeID == "" {
			return newArgError("doctor repair requires --recipe-id")
		}
		return callAndPrint("doctor_repair", map[string]interface{}{
			"recipe_id": doctorRepairArgs.recipeID,
		})
	},
}

var doctorRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Show the last case and its recorded repairs for manual rollback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("doctor_rollback", nil)
	},
}

func init() {
	doctorRepairCmd.Flags().StringVar(&doctorRepairArgs.recipeID, "recipe-id", "", "recipe to run")
	doctorCmd.AddCommand(doctorCheckCmd, doctorValidateCmd, doctorSetupCmd, doctorRepairCmd, doctorRollbackCmd)
}
