package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/rename"
)

var (
	renameEdits       []string
	renameUseTemplate bool
	renamePlanPath    string
)

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Preview and apply rename plans",
}

var renamePreviewCmd = &cobra.Command{
	Use:   "preview <job>",
	Short: "Preview a plan from manual edits (--edit file_id=new name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseEdits(renameEdits)
		if err != nil {
			return err
		}
		ops, err := application.Renames.PreviewManual(cmd.Context(), args[0], edits)
		if err != nil {
			return err
		}
		return printJSON(cmd, ops)
	},
}

var renamePreviewLabelsCmd = &cobra.Command{
	Use:   "preview-labels <job>",
	Short: "Preview a plan that names each file after its resolved label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := application.Renames.PreviewLabels(cmd.Context(), args[0], rename.LabelPlanOptions{UseNamingTemplate: renameUseTemplate})
		if err != nil {
			return err
		}
		return printJSON(cmd, ops)
	},
}

var renameApplyCmd = &cobra.Command{
	Use:   "apply <job>",
	Short: "Apply a previewed plan read from --plan (JSON, - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if renamePlanPath == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(renamePlanPath)
		}
		if err != nil {
			return fmt.Errorf("read plan: %w", err)
		}
		var ops []entity.RenameOp
		if err := json.Unmarshal(data, &ops); err != nil {
			return fmt.Errorf("decode plan: %w", err)
		}
		if err := application.Renames.Apply(cmd.Context(), args[0], ops); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d rename(s)\n", len(ops))
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <job>",
	Short: "Revert the last applied plan of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := application.Renames.Undo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, ops)
	},
}

func init() {
	renamePreviewCmd.Flags().StringArrayVarP(&renameEdits, "edit", "e", nil, "file_id=new name (repeatable)")
	renamePreviewLabelsCmd.Flags().BoolVar(&renameUseTemplate, "template", false, "render each label's naming template")
	renameApplyCmd.Flags().StringVarP(&renamePlanPath, "plan", "p", "-", "plan JSON file")

	renameCmd.AddCommand(renamePreviewCmd, renamePreviewLabelsCmd, renameApplyCmd)
}

func parseEdits(raw []string) (map[string]string, error) {
	edits := make(map[string]string, len(raw))
	for _, e := range raw {
		id, name, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid edit %q, want file_id=name", e)
		}
		edits[strings.TrimSpace(id)] = name
	}
	return edits, nil
}
