package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var presetsPath string

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Seed or export the label library as YAML",
}

var presetsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the preset labels when the library is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := application.LabelService.SeedIfEmpty(cmd.Context(), presetFile())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d label(s)\n", n)
		return nil
	},
}

var presetsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every label to a presets file",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := application.LabelService.Export(cmd.Context(), presetFile())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d label(s) to %s\n", n, presetFile())
		return nil
	},
}

func init() {
	presetsCmd.PersistentFlags().StringVar(&presetsPath, "path", "", "presets YAML (default from config)")
	presetsCmd.AddCommand(presetsSeedCmd, presetsExportCmd)
}

func presetFile() string {
	if presetsPath != "" {
		return presetsPath
	}
	return cfg.PresetsPath
}
