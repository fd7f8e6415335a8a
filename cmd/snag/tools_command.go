package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snag/internal/ipc"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage provisioned external tools",
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure [tool...]",
		Short: "Verify or download the named tools (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = []string{"transcoder", "prober", "fetcher"}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EnsureTools(ipc.EnsureToolsRequest{Tools: names})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				for _, name := range names {
					fmt.Fprintf(stdout, "%s: %s\n", name, resp.Paths[name])
				}
				return nil
			})
		},
	}
	toolsCmd.AddCommand(ensureCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List installed tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(status.Tools) == 0 {
					fmt.Fprintln(stdout, "No tools provisioned yet; run `snag tools ensure`")
					return nil
				}
				rows := make([][]string, 0, len(status.Tools))
				for _, tool := range status.Tools {
					rows = append(rows, []string{tool.Tool, tool.Version, tool.Path})
				}
				fmt.Fprintln(stdout, renderTable([]string{"Tool", "Version", "Path"}, rows))
				return nil
			})
		},
	}
	toolsCmd.AddCommand(listCmd)

	return toolsCmd
}
