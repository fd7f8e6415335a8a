package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"snag/internal/ipc"
)

func renderStatus(out io.Writer, status *ipc.StatusResponse) {
	fmt.Fprintf(out, "Daemon:  %s (pid %d)\n", runningLabel(status.Running), status.PID)
	if !status.StartedAt.IsZero() {
		fmt.Fprintf(out, "Uptime:  started %s\n", humanize.Time(status.StartedAt))
	}
	fmt.Fprintf(out, "API:     %s\n", status.APIBind)
	fmt.Fprintf(out, "History: %s\n", status.HistoryDBPath)

	if len(status.LiveJobs) > 0 {
		fmt.Fprintf(out, "Live jobs: %s\n", strings.Join(status.LiveJobs, ", "))
	} else {
		fmt.Fprintln(out, "Live jobs: none")
	}

	if len(status.JobCounts) > 0 {
		states := make([]string, 0, len(status.JobCounts))
		for state := range status.JobCounts {
			states = append(states, state)
		}
		sort.Strings(states)
		parts := make([]string, 0, len(states))
		for _, state := range states {
			parts = append(parts, fmt.Sprintf("%s=%d", state, status.JobCounts[state]))
		}
		fmt.Fprintf(out, "History counts: %s\n", strings.Join(parts, " "))
	}

	if len(status.Tools) > 0 {
		rows := make([][]string, 0, len(status.Tools))
		for _, tool := range status.Tools {
			verified := ""
			if !tool.VerifiedAt.IsZero() {
				verified = humanize.Time(tool.VerifiedAt)
			}
			rows = append(rows, []string{tool.Tool, tool.Version, tool.Path, verified})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Tool", "Version", "Path", "Verified"}, rows))
	} else {
		fmt.Fprintln(out, "Tools: none provisioned yet")
	}
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func isInteractive(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
