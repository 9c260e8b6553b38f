package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pwa-builder/PWABuilder-sub006/internal/component"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	jobservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/job_service"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

func jobService(ctx context.Context) (*jobservice.JobService, func(), error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := component.GetStore(ctx, cfg.STORE_TYPE)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { st.ShutDown(context.Background()) }
	return jobservice.New(st, cfg.IsProduction()), closeFn, nil
}

func newEnqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <options.json|->",
		Short: "Validate options and queue a packaging job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readOptions(cmd, args[0])
			if err != nil {
				return err
			}
			if err := packaging.Validate(opts); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			jobs, closeFn, err := jobService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			id, err := jobs.Enqueue(ctx, *opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var logs bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a packaging job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			jobs, closeFn, err := jobService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			job, err := jobs.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			redacted := job.Redacted()
			if !logs {
				redacted.Logs = nil
			}
			return printJSON(cmd, redacted)
		},
	}
	cmd.Flags().BoolVar(&logs, "logs", false, "include the job log")
	return cmd
}

func newOutcomesCmd() *cobra.Command {
	var limit int
	var jobID string

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List recorded job outcomes from the audit database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			repo, d, err := component.GetAuditRepository(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			var rows []model.JobOutcome
			if jobID != "" {
				rows, err = repo.ListByJob(ctx, jobID)
			} else {
				rows, err = repo.ListRecent(ctx, limit)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FINISHED\tSTATUS\tRETRIES\tPACKAGE\tJOB\tERROR")
			for _, o := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					o.FinishedAt.Format(time.RFC3339), o.Status, o.RetryCount, o.PackageID, o.JobID, o.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum rows")
	cmd.Flags().StringVar(&jobID, "job", "", "only show outcomes of this job")
	return cmd
}
