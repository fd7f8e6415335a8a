package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"snag/internal/config"
	"snag/internal/ipc"
)

func newCutCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var segmentDuration float64
	var jobID string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "cut VIDEO",
		Short: "Split a video into fixed-duration segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()

			videoPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}

			dir := strings.TrimSpace(outputDir)
			if dir == "" {
				dir = cfg.Paths.DownloadDir
			} else {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return fmt.Errorf("resolve output dir: %w", err)
				}
				dir = expanded
			}

			id := strings.TrimSpace(jobID)
			if id == "" {
				id = uuid.NewString()
			}

			followCtx, cancelFollow := context.WithCancel(cmd.Context())
			defer cancelFollow()
			var followDone sync.WaitGroup
			if !noProgress {
				followDone.Add(1)
				go func() {
					defer followDone.Done()
					followEvents(followCtx, cfg.Paths.APIBind, id, stdout)
				}()
			}

			var resp *ipc.CutResponse
			err = ctx.withClient(func(client *ipc.Client) error {
				var callErr error
				resp, callErr = client.Cut(ipc.CutRequest{
					JobID:           id,
					VideoPath:       videoPath,
					OutputDir:       dir,
					SegmentDuration: segmentDuration,
				})
				return callErr
			})
			cancelFollow()
			followDone.Wait()

			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Wrote %d segments to %s\n", resp.Segments, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (defaults to configured download dir)")
	cmd.Flags().Float64VarP(&segmentDuration, "duration", "d", 30, "Segment duration in seconds")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Caller-supplied job id")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable live progress rendering")
	return cmd
}
