package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	reportPending bool
	reportOut     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render and write job reports",
}

var reportPreviewCmd = &cobra.Command{
	Use:   "preview <job>",
	Short: "Print the report text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			content string
			err     error
		)
		if reportPending {
			content, err = application.Reports.PreviewPending(cmd.Context(), args[0])
		} else {
			content, err = application.Reports.Preview(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), content)
		return err
	},
}

var reportWriteCmd = &cobra.Command{
	Use:   "write <job>",
	Short: "Upload the report into the job folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := application.Reports.Write(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", w.Filename, w.FileID)
		return nil
	},
}

var reportXLSXCmd = &cobra.Command{
	Use:   "xlsx <job>",
	Short: "Export the job results as a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := application.Reports.ExportXLSX(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if reportOut == "" {
			reportOut = args[0] + ".xlsx"
		}
		if err := os.WriteFile(reportOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", reportOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", reportOut)
		return nil
	},
}

func init() {
	reportPreviewCmd.Flags().BoolVar(&reportPending, "pending", false, "render the pending-extraction variant")
	reportXLSXCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output path (default <job>.xlsx)")

	reportCmd.AddCommand(reportPreviewCmd, reportWriteCmd, reportXLSXCmd)
}

