package main

import "github.com/spf13/cobra"

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and reload the file-edit scope policy",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the currently enforced scope policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint("policy_list", nil)
	},
}

var policyReloadExtraAllow []string

var policyReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-derive the scope policy's home directory and allow-list",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{}
		if len(policyReloadExtraAllow) > 0 {
			extra := make([]interface{}, len(policyReloadExtraAllow))
			for i, v := range policyReloadExtraAllow {
				extra[i] = v
			}
			params["extra_allow"] = extra
		}
		return callAndPrint("policy_reload", params)
	},
}

var policyEvalCmd = &cobra.Command{
	Use:   "eval <path>",
	Short: "Check whether a path is inside the enforced scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return newArgError("policy eval requires exactly one path argument")
		}
		return callAndPrint("policy_eval", map[string]interface{}{"path": args[0]})
	},
}

func init() {
	policyReloadCmd.Flags().StringSliceVar(&policyReloadExtraAllow, "extra-allow", nil, "additional allow-listed path prefixes")
	policyCmd.AddCommand(policyListCmd, policyReloadCmd, policyEvalCmd)
}
