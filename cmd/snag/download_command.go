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

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var formatCode string
	var cookiePath string
	var jobID string
	var audioOnly bool
	var playlist bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download media from a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()

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

			req := ipc.DownloadRequest{
				JobID:            id,
				URL:              args[0],
				OutputDir:        dir,
				FormatCode:       formatCode,
				AudioOnly:        audioOnly,
				DownloadPlaylist: playlist,
				UseCookieFile:    cookiePath != "",
				CookieFilePath:   cookiePath,
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

			var resp *ipc.DownloadResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var callErr error
				resp, callErr = client.Download(req)
				return callErr
			})
			cancelFollow()
			followDone.Wait()

			if err != nil {
				return err
			}

			switch {
			case resp.AlreadyExists:
				fmt.Fprintf(stdout, "Already downloaded: %s\n", resp.FinalPath)
			case resp.FinalPath == "":
				fmt.Fprintf(stdout, "Playlist download complete (%s)\n", dir)
			default:
				fmt.Fprintf(stdout, "Saved: %s\n", resp.FinalPath)
			}
			if resp.Title != "" {
				fmt.Fprintf(stdout, "Title: %s\n", resp.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (defaults to configured download dir)")
	cmd.Flags().StringVarP(&formatCode, "format", "f", "", "Explicit format code")
	cmd.Flags().StringVar(&cookiePath, "cookies", "", "Cookie file passed to the fetcher")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Caller-supplied job id")
	cmd.Flags().BoolVarP(&audioOnly, "audio", "a", false, "Extract audio only")
	cmd.Flags().BoolVar(&playlist, "playlist", false, "Download the whole playlist when the URL names one")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable live progress rendering")
	return cmd
}
