package main

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/vigil/monitor"
)

func newQueuesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "List discovered queues with their job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := a.ops().Overview(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.opts.json, summaries, func(tw *tabwriter.Writer) {
				row(tw, "ID", "LABEL", "CHANNEL", "TOTAL", "WAITING", "RESERVED", "FAILED")
				for _, q := range summaries {
					if q.Stats == nil {
						row(tw, q.ID, q.Label, q.Channel, "error: "+q.Error, "", "", "")
						continue
					}
					row(tw, q.ID, q.Label, q.Channel, q.Stats.Total, q.Stats.Waiting, q.Stats.Reserved, q.Stats.Failed)
				}
			})
		},
	}
}

func newJobsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs <queue>",
		Short: "List a queue's jobs, reserved first and failed last",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.ops().ListJobs(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.opts.json, list, func(tw *tabwriter.Writer) {
				row(tw, "ID", "STATUS", "ATTEMPT", "PROGRESS", "PUSHED", "DESCRIPTION")
				for _, j := range list.Jobs {
					row(tw, j.ID, j.StatusLabel, j.Attempt, strconv.Itoa(j.Progress)+"%", orDash(j.TimePushed), j.Description)
				}
				s := list.Stats
				fmt.Fprintf(tw, "\ntotal=%d waiting=%d reserved=%d failed=%d\n", s.Total, s.Waiting, s.Reserved, s.Failed)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max jobs (0 uses --jobs-per-page)")
	return cmd
}

func newJobCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "job <queue> <id>",
		Short: "Show one job with its payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.ops().JobDetail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.opts.json, d, func(tw *tabwriter.Writer) {
				row(tw, "ID", d.ID)
				row(tw, "Description", d.Description)
				row(tw, "Status", d.StatusLabel)
				row(tw, "Attempt", d.Attempt)
				row(tw, "Progress", strconv.Itoa(d.Progress)+"% "+orDash(d.ProgressLabel))
				row(tw, "TTR", d.TTR)
				row(tw, "Delay", d.Delay)
				row(tw, "Priority", d.Priority)
				row(tw, "Pushed", orDash(d.TimePushed))
				row(tw, "Reserved", orDash(d.DateReserved))
				row(tw, "Failed", orDash(d.DateFailed))
				row(tw, "Updated", orDash(d.TimeUpdated))
				row(tw, "Error", orDash(d.Error))
				if d.Data == nil {
					return
				}
				row(tw, "Class", d.Data.Class)
				if d.Data.Placeholder != "" {
					row(tw, "Payload", d.Data.Placeholder)
					return
				}
				keys := make([]string, 0, len(d.Data.Fields))
				for k := range d.Data.Fields {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					row(tw, "  "+k, d.Data.Fields[k])
				}
			})
		},
	}
}

func newRetryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <queue> <id>",
		Short: "Re-enqueue one job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ops().Retry(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return actionDone(cmd, a, args[1], "Job queued for retry.")
		},
	}
}

func newReleaseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "release <queue> <id>",
		Short: "Delete one job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ops().Release(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return actionDone(cmd, a, args[1], "Job released.")
		},
	}
}

func actionDone(cmd *cobra.Command, a *app, jobID, message string) error {
	out := struct {
		JobID   string `json:"jobId"`
		Message string `json:"message"`
	}{jobID, message}
	return render(cmd.OutOrStdout(), a.opts.json, out, func(tw *tabwriter.Writer) {
		row(tw, jobID, message)
	})
}

func newRetryAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-all <queue>",
		Short: "Re-enqueue every failed job in a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.ops().RetryAllFailed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return bulkDone(cmd, a, res)
		},
	}
}

func newReleaseAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "release-all <queue>",
		Short: "Delete every job in a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.ops().ReleaseAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return bulkDone(cmd, a, res)
		},
	}
}

func bulkDone(cmd *cobra.Command, a *app, res *monitor.BulkResult) error {
	return render(cmd.OutOrStdout(), a.opts.json, res, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "%d of %d jobs processed\n", res.Succeeded, res.Attempted)
		for _, f := range res.Failures {
			row(tw, f.JobID, f.Error)
		}
	})
}

func newBadgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "badge",
		Short: "Print the number of failed jobs across all queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.ops().FailedCount(cmd.Context())
			if err != nil {
				return err
			}
			out := struct {
				Failed int64 `json:"failed"`
			}{n}
			return render(cmd.OutOrStdout(), a.opts.json, out, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, n)
			})
		},
	}
}
