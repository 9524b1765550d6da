package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Pin or clear a file's label for a job",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <job> <file> <label>",
	Short: "Pin a label (id or name) for a file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, err := application.LabelService.ResolveLabel(cmd.Context(), args[2])
		if err != nil {
			return err
		}
		if err := application.LabelService.SetOverride(cmd.Context(), args[0], args[1], label.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[1], label.Name)
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear <job> <file>",
	Short: "Remove a file's pinned label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.LabelService.SetOverride(cmd.Context(), args[0], args[1], "")
	},
}

func init() {
	overrideCmd.AddCommand(overrideSetCmd, overrideClearCmd)
}
