package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"snag/internal/ipc"
)

func TestRenderStatusBasics(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &ipc.StatusResponse{
		Running:       true,
		PID:           4242,
		StartedAt:     time.Now().Add(-time.Minute),
		APIBind:       "127.0.0.1:7645",
		HistoryDBPath: "/data/jobs.db",
		LiveJobs:      []string{"job-a"},
		JobCounts:     map[string]int{"success": 3, "failed": 1},
		Tools: []ipc.ToolInfo{
			{Tool: "fetcher", Version: "2026.01.01", Path: "/bin/yt-dlp", VerifiedAt: time.Now()},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"running", "4242", "127.0.0.1:7645", "/data/jobs.db",
		"job-a", "failed=1 success=3", "fetcher", "/bin/yt-dlp",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q\n%s", want, out)
		}
	}
}

func TestRenderStatusStoppedNoTools(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &ipc.StatusResponse{Running: false, PID: 1})

	out := buf.String()
	if !strings.Contains(out, "stopped") {
		t.Errorf("expected stopped label\n%s", out)
	}
	if !strings.Contains(out, "none provisioned") {
		t.Errorf("expected empty tools hint\n%s", out)
	}
	if !strings.Contains(out, "Live jobs: none") {
		t.Errorf("expected empty live jobs line\n%s", out)
	}
}
