package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/folder-renamer/internal/labels"
)

var (
	labelName          string
	labelSchema        string
	labelSchemaFile    string
	labelTemplate      string
	labelFallbackInstr string
	labelExtractInstr  string
	labelListAll       bool
	labelExampleName   string
	labelJobID         string
	labelFileID        string
	labelTextFile      string
	labelGuidance      string
	labelExampleFile   string
	labelExampleInstr  string
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage labels, their examples and schemas",
}

var labelCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a label",
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaJSON, err := schemaInput(cmd)
		if err != nil {
			return err
		}
		l, err := application.LabelService.CreateLabel(cmd.Context(), labels.CreateLabelRequest{
			Name:                   labelName,
			SchemaJSON:             schemaJSON,
			NamingTemplate:         labelTemplate,
			FallbackInstructions:   labelFallbackInstr,
			ExtractionInstructions: labelExtractInstr,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, l)
	},
}

var labelUpdateCmd = &cobra.Command{
	Use:   "update <label>",
	Short: "Change a label's fields; only the flags given are updated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := application.LabelService.ResolveLabel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		req := labels.UpdateLabelRequest{LabelID: l.ID}
		flags := cmd.Flags()
		if flags.Changed("name") {
			req.Name = &labelName
		}
		if flags.Changed("schema") || flags.Changed("schema-file") {
			s, err := schemaInput(cmd)
			if err != nil {
				return err
			}
			req.SchemaJSON = &s
		}
		if flags.Changed("template") {
			req.NamingTemplate = &labelTemplate
		}
		if flags.Changed("fallback-instructions") {
			req.FallbackInstructions = &labelFallbackInstr
		}
		if flags.Changed("extraction-instructions") {
			req.ExtractionInstructions = &labelExtractInstr
		}
		updated, err := application.LabelService.UpdateLabel(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd, updated)
	},
}

var labelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List labels",
	RunE: func(cmd *cobra.Command, args []string) error {
		ls, err := application.LabelService.ListLabels(cmd.Context(), labelListAll)
		if err != nil {
			return err
		}
		return printJSON(cmd, ls)
	},
}

var labelDeactivateCmd = &cobra.Command{
	Use:   "deactivate <label>",
	Short: "Deactivate a label so it no longer classifies files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := application.LabelService.ResolveLabel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return application.LabelService.DeactivateLabel(cmd.Context(), l.ID)
	},
}

var labelAttachCmd = &cobra.Command{
	Use:   "attach <label> <file>",
	Short: "Attach a file as an example of a label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := application.LabelService.ResolveLabel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ex, err := application.LabelService.AttachExample(cmd.Context(), l.ID, args[1], labelExampleName)
		if err != nil {
			return err
		}
		return printJSON(cmd, ex)
	},
}

var labelProcessCmd = &cobra.Command{
	Use:   "process <label>",
	Short: "Compute tokens and embeddings for a label's examples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := application.LabelService.ResolveLabel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := application.LabelService.ProcessExamples(cmd.Context(), l.ID, labelJobID)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var labelBuildSchemaCmd = &cobra.Command{
	Use:   "build-schema <label>",
	Short: "Draft a label schema from an example document, guidance or example JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildSchema,
}

func init() {
	for _, c := range []*cobra.Command{labelCreateCmd, labelUpdateCmd} {
		c.Flags().StringVar(&labelName, "name", "", "label name")
		c.Flags().StringVar(&labelSchema, "schema", "", "schema JSON")
		c.Flags().StringVar(&labelSchemaFile, "schema-file", "", "read the schema JSON from a file")
		c.Flags().StringVar(&labelTemplate, "template", "", "naming template, e.g. \"{vendor} {date}\"")
		c.Flags().StringVar(&labelFallbackInstr, "fallback-instructions", "", "instructions for the fallback classifier")
		c.Flags().StringVar(&labelExtractInstr, "extraction-instructions", "", "instructions for field extraction")
	}
	labelListCmd.Flags().BoolVar(&labelListAll, "all", false, "include inactive labels")
	labelAttachCmd.Flags().StringVar(&labelExampleName, "name", "", "display filename of the example")
	labelProcessCmd.Flags().StringVar(&labelJobID, "job", "", "reuse OCR text cached for this job")

	f := labelBuildSchemaCmd.Flags()
	f.StringVar(&labelJobID, "job", "", "job holding the example's OCR text (with --file)")
	f.StringVar(&labelFileID, "file", "", "example file id (with --job)")
	f.StringVar(&labelTextFile, "text-file", "", "read the example text from a local file")
	f.StringVar(&labelGuidance, "guidance", "", "describe the fields instead of reading an example")
	f.StringVar(&labelExampleFile, "example", "", "example JSON object file")
	f.StringVar(&labelExampleInstr, "instructions", "", "extraction instructions saved with an --example schema")

	labelCmd.AddCommand(labelCreateCmd, labelUpdateCmd, labelListCmd, labelDeactivateCmd,
		labelAttachCmd, labelProcessCmd, labelBuildSchemaCmd)
}

func schemaInput(cmd *cobra.Command) (string, error) {
	if labelSchemaFile == "" {
		return labelSchema, nil
	}
	if cmd.Flags().Changed("schema") {
		return "", errors.New("--schema and --schema-file are exclusive")
	}
	b, err := os.ReadFile(labelSchemaFile)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	return string(b), nil
}

func runBuildSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	l, err := application.LabelService.ResolveLabel(ctx, args[0])
	if err != nil {
		return err
	}

	if labelExampleFile != "" {
		b, err := os.ReadFile(labelExampleFile)
		if err != nil {
			return fmt.Errorf("read example: %w", err)
		}
		res, err := application.Builder.BuildFromExample(ctx, l.ID, string(b), labelExampleInstr)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	}

	var text string
	switch {
	case labelTextFile != "":
		b, err := os.ReadFile(labelTextFile)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		text = string(b)
	case labelJobID != "" && labelFileID != "":
		ocr, err := application.Results.GetOCR(ctx, labelJobID, labelFileID)
		if err != nil {
			return err
		}
		text = ocr.Text
	case labelGuidance == "":
		return errors.New("one of --example, --text-file, --job with --file, or --guidance is required")
	}
	res, err := application.Builder.BuildFromOCR(ctx, l.ID, text, labelGuidance)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
