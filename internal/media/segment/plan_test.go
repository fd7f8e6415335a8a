package segment

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestNewPlanSegmentCount(t *testing.T) {
	tests := []struct {
		name            string
		totalDuration   float64
		segmentDuration float64
		want            int
	}{
		{name: "exact multiple", totalDuration: 90, segmentDuration: 30, want: 3},
		{name: "rounds up", totalDuration: 95, segmentDuration: 30, want: 4},
		{name: "shorter than one segment", totalDuration: 12, segmentDuration: 30, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlan("/tmp/in.mp4", "/tmp/out", tt.totalDuration, tt.segmentDuration)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.TotalSegments != tt.want {
				t.Fatalf("TotalSegments = %d, want %d", plan.TotalSegments, tt.want)
			}
		})
	}
}

func TestNewPlanRejectsBadInputs(t *testing.T) {
	if _, err := NewPlan("", "/tmp/out", 90, 30); err == nil {
		t.Fatal("expected error for empty video path")
	}
	if _, err := NewPlan("/tmp/in.mp4", "", 90, 30); err == nil {
		t.Fatal("expected error for empty output dir")
	}
	if _, err := NewPlan("/tmp/in.mp4", "/tmp/out", 90, 0); err == nil {
		t.Fatal("expected error for zero segment duration")
	}
	if _, err := NewPlan("/tmp/in.mp4", "/tmp/out", 0, 30); err == nil {
		t.Fatal("expected error for zero total duration")
	}
}

func TestPlanArgs(t *testing.T) {
	plan, err := NewPlan("/videos/in.mp4", "/videos/cut", 95, 30)
	if err != nil {
		t.Fatal(err)
	}
	args := plan.Args()

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /videos/in.mp4",
		"-force_key_frames expr:gte(t,n_forced*30)",
		"-map 0",
		"-segment_time 30",
		"-f segment",
		"-reset_timestamps 1",
		"-segment_start_number 1",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != filepath.Join("/videos/cut", "output-%03d.mp4") {
		t.Fatalf("output pattern must be last: %v", args)
	}
}

func TestProgressCounter(t *testing.T) {
	counter := NewProgressCounter(4)

	if percent, updated := counter.Feed("frame=  100 fps= 30\n"); updated || percent != 0 {
		t.Fatalf("noise chunk changed progress: %v %v", percent, updated)
	}

	percent, updated := counter.Feed("[segment @ 0x1] Opening '/tmp/out/output-001.mp4' for writing\n")
	if !updated || percent != 25 {
		t.Fatalf("after 1st segment: %v %v, want 25", percent, updated)
	}

	percent, updated = counter.Feed("[segment @ 0x1] Opening '/tmp/out/output-002.mp4' for writing\n")
	if !updated || percent != 50 {
		t.Fatalf("after 2nd segment: %v %v, want 50", percent, updated)
	}
}

func TestProgressCounterMultipleOpensInOneChunk(t *testing.T) {
	counter := NewProgressCounter(4)
	chunk := "[segment @ 0x1] Opening '/tmp/out/output-001.mp4' for writing\n" +
		"[segment @ 0x1] Opening '/tmp/out/output-002.mp4' for writing\n"
	if percent, updated := counter.Feed(chunk); !updated || percent != 50 {
		t.Fatalf("batched chunk: %v %v, want 50", percent, updated)
	}
}

func TestProgressCounterClampsAt100(t *testing.T) {
	counter := NewProgressCounter(2)
	for i := 0; i < 5; i++ {
		counter.Feed("Opening 'x.mp4' for writing")
	}
	if counter.Percent() != 100 {
		t.Fatalf("percent = %v, want 100", counter.Percent())
	}
}

func TestFailureDetail(t *testing.T) {
	stderr := "frame= 10\nError while opening encoder for output stream\nprogress noise\n"
	if got := FailureDetail(stderr, 1); got != "Error while opening encoder for output stream" {
		t.Fatalf("detail = %q", got)
	}
	if got := FailureDetail("nothing useful\n", 187); got != "transcoder exited with code 187" {
		t.Fatalf("fallback = %q", got)
	}
}
