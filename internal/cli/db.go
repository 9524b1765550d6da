package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var dbHealthTimeout time.Duration

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping the database and count the stored labels and recent jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := application.DB.HealthCheck(ctx, dbHealthTimeout); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", application.DB.Dialect())

		labels, err := application.Labels.List(ctx, true)
		if err != nil {
			return err
		}
		jobs, err := application.Jobs.List(ctx, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "labels: %d, recent jobs: %d\n", len(labels), len(jobs))
		return nil
	},
}

func init() {
	dbHealthCmd.Flags().DurationVar(&dbHealthTimeout, "timeout", 2*time.Second, "ping timeout")
	dbCmd.AddCommand(dbHealthCmd)
	rootCmd.AddCommand(dbCmd)
}
