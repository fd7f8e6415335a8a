package jobs_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"snag/internal/jobs"
)

func openTestStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.OpenStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordStartAndFinishRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordStart(ctx, jobs.Record{
		ID:     "job-1",
		Kind:   jobs.KindDownload,
		Target: "https://example.com/watch?v=abc",
		Output: "/tmp/out",
	}); err != nil {
		t.Fatalf("RecordStart returned error: %v", err)
	}

	rec, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec.State != jobs.StateRunning {
		t.Fatalf("expected running state, got %q", rec.State)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}

	if err := store.RecordFinish(ctx, "job-1", jobs.Outcome{
		State:     jobs.StateSuccess,
		FinalPath: "/tmp/out/video-1080p.mp4",
		Title:     "A Video",
	}); err != nil {
		t.Fatalf("RecordFinish returned error: %v", err)
	}

	rec, err = store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec.State != jobs.StateSuccess || rec.FinalPath != "/tmp/out/video-1080p.mp4" {
		t.Fatalf("unexpected record after finish: %+v", rec)
	}
	if rec.FinishedAt.IsZero() {
		t.Fatal("expected finished timestamp")
	}
}

func TestRecordFinishUnknownJob(t *testing.T) {
	store := openTestStore(t)
	err := store.RecordFinish(context.Background(), "ghost", jobs.Outcome{State: jobs.StateFailed})
	if err == nil || !strings.Contains(err.Error(), "unknown job") {
		t.Fatalf("expected unknown job error, got %v", err)
	}
}

func TestRecordStartReplacesRetriedJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordStart(ctx, jobs.Record{ID: "job-1", Kind: jobs.KindCut, Target: "/a.mp4"}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordFinish(ctx, "job-1", jobs.Outcome{State: jobs.StateFailed, Code: "CUT_FAILED"}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordStart(ctx, jobs.Record{ID: "job-1", Kind: jobs.KindCut, Target: "/a.mp4"}); err != nil {
		t.Fatalf("retried RecordStart returned error: %v", err)
	}

	rec, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != jobs.StateRunning || rec.Code != "" || !rec.FinishedAt.IsZero() {
		t.Fatalf("retry did not reset terminal fields: %+v", rec)
	}
}

func TestListNewestFirstAndCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.RecordStart(ctx, jobs.Record{ID: id, Kind: jobs.KindDownload, Target: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.RecordFinish(ctx, "a", jobs.Outcome{State: jobs.StateCanceled, Code: "DOWNLOAD_CANCELED"}); err != nil {
		t.Fatal(err)
	}

	records, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	counts, err := store.CountByState(ctx)
	if err != nil {
		t.Fatalf("CountByState returned error: %v", err)
	}
	if counts[jobs.StateRunning] != 2 || counts[jobs.StateCanceled] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
