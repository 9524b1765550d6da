package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/folder-renamer/internal/async"
	"github.com/joseph-ayodele/folder-renamer/internal/filestore"
	"github.com/joseph-ayodele/folder-renamer/internal/pipeline"
)

var (
	jobListLimit    int
	watchDebounce   time.Duration
	watchRunProcess bool
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create and inspect jobs",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create <folder>",
	Short: "Snapshot the files of a folder into a new job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, files, err := application.JobService.CreateJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"job": job, "files": files})
	},
}

var jobFilesCmd = &cobra.Command{
	Use:   "files <job>",
	Short: "List the files of a job under their current names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := application.Renames.CurrentFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, files)
	},
}

var jobRefreshCmd = &cobra.Command{
	Use:   "refresh <job>",
	Short: "Re-list the job folder and replace the file snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := application.JobService.RefreshJobFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, files)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := application.JobService.ListJobs(cmd.Context(), jobListLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd, jobs)
	},
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Create a job and refresh it whenever the folder changes (local backend)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobWatch,
}

func init() {
	jobListCmd.Flags().IntVarP(&jobListLimit, "limit", "n", 20, "max jobs")
	jobWatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before a change batch is handled")
	jobWatchCmd.Flags().BoolVar(&watchRunProcess, "process", false, "run the processing stages after each refresh")

	jobCmd.AddCommand(jobCreateCmd, jobFilesCmd, jobRefreshCmd, jobListCmd, jobWatchCmd)
}

func runJobWatch(cmd *cobra.Command, args []string) error {
	if cfg.Storage.Backend != "" && cfg.Storage.Backend != "local" {
		return errors.New("job watch needs the local file store backend")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	folder := args[0]
	job, files, err := application.JobService.CreateJob(ctx, folder)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s as job %s (%d files)\n", folder, job.ID, len(files))

	filter, err := filestore.NewGlobFilter(cfg.Storage.IncludeGlobs)
	if err != nil {
		return err
	}
	changes, errs, err := filestore.Watch(ctx, filestore.WatchConfig{
		Dir:      filepath.Join(cfg.Storage.LocalRoot, folder),
		Filter:   filter,
		Debounce: watchDebounce,
	}, logger)
	if err != nil {
		return err
	}

	queue := async.NewJobQueue(func(ctx context.Context, j async.Job) error {
		files, err := application.JobService.RefreshJobFiles(ctx, j.JobID)
		if err != nil {
			return err
		}
		logger.Info("job.watch.refreshed", "job_id", j.JobID, "files", len(files))
		if !watchRunProcess {
			return nil
		}
		rep, err := application.Processor.Process(ctx, j.JobID, pipeline.AllSteps())
		if err != nil {
			return err
		}
		logger.Info("job.watch.processed", "job_id", j.JobID, "status", rep.Status, "failed", rep.Failed())
		return nil
	}, logger, async.WithWorkers(1), async.WithProcessTimeout(cfg.Pipeline.FileTimeout*10))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Info("job.watch.changed", "job_id", job.ID, "files", batch)
			if err := queue.Enqueue(ctx, async.Job{JobID: job.ID, SubmittedAt: time.Now()}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("job.watch.enqueue_failed", "job_id", job.ID, "error", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				logger.Warn("job.watch.error", "error", err)
			}
		}
	}
}
