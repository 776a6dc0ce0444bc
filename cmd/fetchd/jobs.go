package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fetchd/internal/config"
	"fetchd/internal/queue"
)

func newJobsCommand(configFlag *string) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List download jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			var jobs []*queue.Job
			if userFlag != "" {
				jobs, err = store.ListByOwner(ctx, userFlag)
			} else {
				jobs, err = store.List(ctx)
			}
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.OwnerID,
					colorizeStatus(string(job.Status), colorize),
					titleOrURL(job),
					formatSize(job.ByteSize),
					job.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "User", "Status", "Title", "Size", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("job stats: %w", err)
			}
			fmt.Fprintf(out, "pending %d · downloading %d · completed %d · failed %d · error %d\n",
				stats[queue.StatusPending],
				stats[queue.StatusDownloading],
				stats[queue.StatusCompleted],
				stats[queue.StatusFailed],
				stats[queue.StatusError])
			return nil
		},
	}

	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "Only show jobs for this user")
	return cmd
}

func titleOrURL(job *queue.Job) string {
	if job.Title != "" {
		return job.Title
	}
	return job.SourceURL
}

func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
