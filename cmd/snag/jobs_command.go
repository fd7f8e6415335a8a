package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"snag/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent job history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobsList(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						shortID(job.ID),
						string(job.Kind),
						string(job.State),
						job.Title,
						humanize.Time(job.CreatedAt),
						job.Code,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Kind", "State", "Title", "Started", "Code"}, rows))
				return nil
			})
		},
	}
	jobsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to list")

	showCmd := &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show one job history record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(args[0])
				if err != nil {
					return err
				}
				job := resp.Job
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "ID:      %s\n", job.ID)
				fmt.Fprintf(stdout, "Kind:    %s\n", job.Kind)
				fmt.Fprintf(stdout, "State:   %s\n", job.State)
				fmt.Fprintf(stdout, "Target:  %s\n", job.Target)
				if job.Title != "" {
					fmt.Fprintf(stdout, "Title:   %s\n", job.Title)
				}
				if job.FinalPath != "" {
					fmt.Fprintf(stdout, "Path:    %s\n", job.FinalPath)
				}
				if job.Code != "" {
					fmt.Fprintf(stdout, "Code:    %s\n", job.Code)
				}
				if job.Detail != "" {
					fmt.Fprintf(stdout, "Detail:  %s\n", job.Detail)
				}
				fmt.Fprintf(stdout, "Started: %s\n", job.CreatedAt.Format(time.RFC3339))
				if !job.FinishedAt.IsZero() {
					fmt.Fprintf(stdout, "Ended:   %s\n", job.FinishedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	jobsCmd.AddCommand(showCmd)

	return jobsCmd
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
