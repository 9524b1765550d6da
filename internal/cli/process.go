package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/folder-renamer/internal/pipeline"
)

var stageFileIDs []string

var processCmd = &cobra.Command{
	Use:   "process <job>",
	Short: "Run OCR, classification, fallback and extraction for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := pipeline.AllSteps()
		steps.FileIDs = stageFileIDs
		return runSteps(cmd, args[0], steps)
	},
}

// stageCommands returns one command per pipeline stage.
func stageCommands() []*cobra.Command {
	stages := []struct {
		use, short string
		steps      pipeline.Steps
	}{
		{"ocr", "Extract text from the job files", pipeline.Steps{OCR: true}},
		{"classify", "Match the job files against the label examples", pipeline.Steps{Classify: true}},
		{"fallback", "Ask the model to label files the classifier left unresolved", pipeline.Steps{Fallback: true}},
		{"extract", "Extract the resolved label's fields for each file", pipeline.Steps{Extract: true}},
	}
	cmds := make([]*cobra.Command, 0, len(stages))
	for _, st := range stages {
		steps := st.steps
		c := &cobra.Command{
			Use:   st.use + " <job>",
			Short: st.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s := steps
				s.FileIDs = stageFileIDs
				return runSteps(cmd, args[0], s)
			},
		}
		c.Flags().StringSliceVar(&stageFileIDs, "file", nil, "restrict to these file ids (repeatable)")
		cmds = append(cmds, c)
	}
	return cmds
}

func init() {
	processCmd.Flags().StringSliceVar(&stageFileIDs, "file", nil, "restrict to these file ids (repeatable)")
}

func runSteps(cmd *cobra.Command, jobID string, steps pipeline.Steps) error {
	rep, err := application.Processor.Process(cmd.Context(), jobID, steps)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, rep); err != nil {
		return err
	}
	if n := rep.Failed(); n > 0 {
		return fmt.Errorf("%d file(s) failed", n)
	}
	return nil
}
