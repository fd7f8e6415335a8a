package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"snag/internal/ipc"
	"snag/internal/services/ytdlp"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var cookiePath string
	var playlist bool
	var showFormats bool

	cmd := &cobra.Command{
		Use:   "inspect URL",
		Short: "Fetch media metadata without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.FetchMetadata(ipc.MetadataRequest{
					URL:              args[0],
					UseCookieFile:    cookiePath != "",
					CookieFilePath:   cookiePath,
					DownloadPlaylist: playlist,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				for i, item := range resp.Items {
					if i > 0 {
						fmt.Fprintln(stdout)
					}
					renderMetadata(cmd, item, showFormats)
				}
				if len(resp.Items) > 1 {
					fmt.Fprintf(stdout, "\n%d items\n", len(resp.Items))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cookiePath, "cookies", "", "Cookie file passed to the fetcher")
	cmd.Flags().BoolVar(&playlist, "playlist", false, "Expand playlist entries when the URL names one")
	cmd.Flags().BoolVar(&showFormats, "formats", false, "List available formats")
	return cmd
}

func renderMetadata(cmd *cobra.Command, item ytdlp.Metadata, showFormats bool) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Title:    %s\n", item.Title)
	fmt.Fprintf(stdout, "ID:       %s\n", item.ID)
	if item.Uploader != "" {
		fmt.Fprintf(stdout, "Uploader: %s\n", item.Uploader)
	}
	if item.Duration > 0 {
		fmt.Fprintf(stdout, "Duration: %s\n", (time.Duration(item.Duration) * time.Second).String())
	}
	if item.IsLive {
		fmt.Fprintln(stdout, "Live:     yes")
	}
	if item.WebpageURL != "" {
		fmt.Fprintf(stdout, "URL:      %s\n", item.WebpageURL)
	}

	if !showFormats || len(item.Formats) == 0 {
		return
	}
	rows := make([][]string, 0, len(item.Formats))
	for _, format := range item.Formats {
		resolution := ""
		if format.Width > 0 && format.Height > 0 {
			resolution = fmt.Sprintf("%dx%d", format.Width, format.Height)
		}
		size := ""
		if format.Filesize > 0 {
			size = humanize.Bytes(uint64(format.Filesize))
		}
		rows = append(rows, []string{
			format.FormatID,
			format.Ext,
			resolution,
			format.VCodec,
			format.ACodec,
			size,
		})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"Format", "Ext", "Resolution", "Video", "Audio", "Size"}, rows, 6))
}
