package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snag/internal/ipc"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Stop a live job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopJob(args[0])
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Found {
					fmt.Fprintf(stdout, "No live job with id %s\n", args[0])
					return nil
				}
				fmt.Fprintf(stdout, "Stop requested for %s\n", args[0])
				return nil
			})
		},
	}
}
