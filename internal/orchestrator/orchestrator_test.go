//go:build !windows

package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snag/internal/config"
	"snag/internal/events"
	"snag/internal/jobs"
	"snag/internal/logging"
	"snag/internal/orchestrator"
	"snag/internal/provision"
	"snag/internal/services"
	"snag/internal/services/ytdlp"
	"snag/internal/supervise"
)

type stubProvisioner struct {
	paths map[provision.Tool]string
}

func (s *stubProvisioner) Ensure(_ context.Context, tools []provision.Tool) (map[provision.Tool]string, error) {
	out := make(map[provision.Tool]string, len(tools))
	for _, tool := range tools {
		path, ok := s.paths[tool]
		if !ok {
			return nil, services.NewCoded(services.CodeProvisionFailed, "no stub for "+string(tool))
		}
		out[tool] = path
	}
	return out, nil
}

type harness struct {
	orch     *orchestrator.Orchestrator
	registry *jobs.Registry
	bus      *events.Bus
	store    *jobs.Store
	tools    *stubProvisioner
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	store, err := jobs.OpenStore(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	registry := jobs.NewRegistry()
	bus := events.NewBus()
	tools := &stubProvisioner{paths: map[provision.Tool]string{}}
	sup := supervise.New(registry, logging.NewNop())
	return &harness{
		orch:     orchestrator.New(&cfg, tools, sup, store, bus, logging.NewNop()),
		registry: registry,
		bus:      bus,
		store:    store,
		tools:    tools,
		dir:      dir,
	}
}

func (h *harness) script(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func (h *harness) setTool(tool provision.Tool, path string) {
	h.tools.paths[tool] = path
}

func (h *harness) setAllTools(t *testing.T, body string) {
	path := h.script(t, "tool.sh", body)
	for _, tool := range []provision.Tool{provision.ToolTranscoder, provision.ToolProber, provision.ToolFetcher} {
		h.setTool(tool, path)
	}
}

func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestDownloadResolvesDestination(t *testing.T) {
	h := newHarness(t)
	h.setAllTools(t, `
echo "[info] Title: My Talk"
echo "[download]  25.0%"
echo "[download] Destination: /tmp/My-Talk.f137.mp4"
echo "[download]  80.0%" >&2
echo "[Merger] Merging formats into \"/tmp/My-Talk.mp4\""
exit 0
`)
	ch, cancel := h.bus.Subscribe(64)
	defer cancel()

	result, err := h.orch.Download(context.Background(), orchestrator.DownloadRequest{
		JobID:     "job-1",
		URL:       "https://example.com/v",
		OutputDir: filepath.Join(h.dir, "out"),
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if result.FinalPath != "/tmp/My-Talk.mp4" {
		t.Fatalf("final path = %q, want merged file", result.FinalPath)
	}
	if result.Title != "My Talk" {
		t.Fatalf("title = %q", result.Title)
	}
	if result.AlreadyExists {
		t.Fatal("unexpected already-exists flag")
	}
	if h.registry.Len() != 0 {
		t.Fatal("job leaked in registry")
	}

	time.Sleep(20 * time.Millisecond)
	evs := drainEvents(ch)
	var sawProgress, sawFinished bool
	for _, ev := range evs {
		if ev.Type == events.TypeJobProgress && ev.JobID == "job-1" {
			sawProgress = true
		}
		if ev.Type == events.TypeJobFinished && ev.Status == string(jobs.StateSuccess) {
			sawFinished = true
		}
	}
	if !sawProgress || !sawFinished {
		t.Fatalf("missing events, got %+v", evs)
	}

	rec, err := h.store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("history record missing: %v", err)
	}
	if rec.State != jobs.StateSuccess || rec.FinalPath != "/tmp/My-Talk.mp4" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestDownloadAlreadyDownloaded(t *testing.T) {
	h := newHarness(t)
	h.setAllTools(t, `
echo "[download] /tmp/x.mp4.part has already been downloaded"
exit 0
`)
	result, err := h.orch.Download(context.Background(), orchestrator.DownloadRequest{
		URL:       "https://example.com/v",
		OutputDir: filepath.Join(h.dir, "out"),
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if !result.AlreadyExists || result.FinalPath != "/tmp/x.mp4.part" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.JobID == "" {
		t.Fatal("expected a generated job id")
	}
}

func TestDownloadPlaylistNoSinglePath(t *testing.T) {
	h := newHarness(t)
	h.setAllTools(t, `
echo "[download]  100%"
exit 0
`)
	result, err := h.orch.Download(context.Background(), orchestrator.DownloadRequest{
		URL:       "https://example.com/v?list=PL99",
		OutputDir: filepath.Join(h.dir, "out"),
		Options:   ytdlp.DownloadOptions{DownloadPlaylist: true},
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if result.FinalPath != "" {
		t.Fatalf("playlist download must not report a single path, got %q", result.FinalPath)
	}
	if result.Title != "Playlist" {
		t.Fatalf("title = %q", result.Title)
	}
}

func TestDownloadPlaylistRequestWithoutListMarker(t *testing.T) {
	h := newHarness(t)
	h.setAllTools(t, `
echo "[download]  100%"
exit 0
`)
	result, err := h.orch.Download(context.Background(), orchestrator.DownloadRequest{
		URL:       "https://example.com/channel/videos",
		OutputDir: filepath.Join(h.dir, "out"),
		Options:   ytdlp.DownloadOptions{DownloadPlaylist: true},
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if result.FinalPath != "" {
		t.Fatalf("playlist download must not report a single path, got %q", result.FinalPath)
	}
	if result.Title != "Playlist" {
		t.Fatalf("title = %q", result.Title)
	}
}

func TestDownloadClassifiesFailure(t *testing.T) {
	h := newHarness(t)
	h.setAllTools(t, `
echo "ERROR: fresh cookies are needed" >&2
exit 1
`)
	_, err := h.orch.Download(context.Background(), orchestrator.DownloadRequest{
		JobID:     "job-cookies",
		URL:       "https://example.com/v",
		OutputDir: filepath.Join(h.dir, "out"),
	})
	if code, ok := services.CodeOf(err); !ok || code != services.CodeCookiesNeeded {
		t.Fatalf("expected COOKIES_NEEDED, got %v", err)
	}

	rec, err := h.store.Get(context.Background(), "job-cookies")
	if err != nil {
		t.Fatalf("history record missing: %v", err)
	}
	if rec.State != jobs.StateFailed || rec.Code != string(services.CodeCookiesNeeded) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestDownloadStopYieldsCanceledAndCleansPartials(t *testing.T) {
	h := newHarness(t)
	partial := filepath.Join(h.dir, "video.mp4")
	if err := os.WriteFile(partial, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(partial+".part", []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.setAllTools(t, `
echo "[download] Destination: `+partial+`"
sleep 30
`)

	type downloadResult struct {
		result orchestrator.DownloadResult
		err    error
	}
	done := make(chan downloadResult, 1)
	go func() {
		result, err := h.orch.Download(context.Background(), orchestrator.DownloadRequest{
			JobID:     "job-stop",
			URL:       "https://example.com/v",
			OutputDir: filepath.Join(h.dir, "out"),
		})
		done <- downloadResult{result, err}
	}()

	waitForJob(t, h.registry, "job-stop")
	if stop := h.orch.Stop("job-stop"); !stop.Found {
		t.Fatal("stop did not find the live job")
	}

	select {
	case res := <-done:
		if code, ok := services.CodeOf(res.err); !ok || code != services.CodeDownloadCanceled {
			t.Fatalf("expected DOWNLOAD_CANCELED, got %v", res.err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("download did not terminate after stop")
	}

	for _, victim := range []string{partial, partial + ".part"} {
		if _, err := os.Stat(victim); !os.IsNotExist(err) {
			t.Fatalf("partial file %s not cleaned up", victim)
		}
	}
	if h.registry.Len() != 0 {
		t.Fatal("job leaked in registry")
	}
}

func TestStopUnknownJob(t *testing.T) {
	h := newHarness(t)
	if stop := h.orch.Stop("never-existed"); stop.Found {
		t.Fatal("unknown job reported as found")
	}
}

func TestFetchMetadata(t *testing.T) {
	h := newHarness(t)
	h.setTool(provision.ToolFetcher, h.script(t, "meta.sh", `
echo '{"id":"a","title":"One","duration":10}'
echo '{"id":"b","title":"Two","duration":20}'
exit 0
`))
	items, err := h.orch.FetchMetadata(context.Background(), "https://example.com/v", ytdlp.MetadataOptions{})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(items) != 2 || items[0].Title != "One" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestFetchMetadataToleratesBenignCookieFailure(t *testing.T) {
	h := newHarness(t)
	h.setTool(provision.ToolFetcher, h.script(t, "meta.sh", `
echo '{"id":"a","title":"One"}'
echo "ERROR: could not find firefox cookies database" >&2
exit 1
`))
	items, err := h.orch.FetchMetadata(context.Background(), "https://example.com/v", ytdlp.MetadataOptions{})
	if err != nil {
		t.Fatalf("benign cookie failure must not be fatal: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestFetchMetadataClassifiesUnsupportedURL(t *testing.T) {
	h := newHarness(t)
	h.setTool(provision.ToolFetcher, h.script(t, "meta.sh", `
echo "ERROR: Unsupported URL: ftp://nope" >&2
exit 1
`))
	_, err := h.orch.FetchMetadata(context.Background(), "ftp://nope", ytdlp.MetadataOptions{})
	if code, ok := services.CodeOf(err); !ok || code != services.CodeUnsupportedURL {
		t.Fatalf("expected UNSUPPORTED_URL, got %v", err)
	}
}

func TestCutSuccessWithProgress(t *testing.T) {
	h := newHarness(t)
	h.setTool(provision.ToolProber, h.script(t, "probe.sh", `echo "95.0"`))
	h.setTool(provision.ToolTranscoder, h.script(t, "cut.sh", `
echo "[segment @ 0x1] Opening 'output-001.mp4' for writing" >&2
echo "[segment @ 0x1] Opening 'output-002.mp4' for writing" >&2
echo "[segment @ 0x1] Opening 'output-003.mp4' for writing" >&2
echo "[segment @ 0x1] Opening 'output-004.mp4' for writing" >&2
exit 0
`))
	ch, cancel := h.bus.Subscribe(64)
	defer cancel()

	result, err := h.orch.Cut(context.Background(), orchestrator.CutRequest{
		JobID:           "cut-1",
		VideoPath:       filepath.Join(h.dir, "in.mp4"),
		OutputDir:       filepath.Join(h.dir, "cut"),
		SegmentDuration: 30,
	})
	if err != nil {
		t.Fatalf("cut failed: %v", err)
	}
	if result.Segments != 4 {
		t.Fatalf("segments = %d, want ceil(95/30) = 4", result.Segments)
	}

	time.Sleep(20 * time.Millisecond)
	var percents []float64
	for _, ev := range drainEvents(ch) {
		if ev.Type == events.TypeJobProgress && ev.JobID == "cut-1" {
			percents = append(percents, ev.Percent)
		}
	}
	if len(percents) == 0 {
		t.Fatal("no progress events")
	}
	if percents[len(percents)-1] != 100 {
		t.Fatalf("final progress = %v, want 100", percents)
	}
}

func TestCutFailsOnNonNumericDuration(t *testing.T) {
	h := newHarness(t)
	h.setTool(provision.ToolProber, h.script(t, "probe.sh", `echo "N/A"`))
	h.setTool(provision.ToolTranscoder, h.script(t, "cut.sh", `exit 0`))

	_, err := h.orch.Cut(context.Background(), orchestrator.CutRequest{
		VideoPath:       filepath.Join(h.dir, "in.mp4"),
		OutputDir:       filepath.Join(h.dir, "cut"),
		SegmentDuration: 30,
	})
	if code, ok := services.CodeOf(err); !ok || code != services.CodeProbeFailed {
		t.Fatalf("expected PROBE_FAILED, got %v", err)
	}
}

func TestCutFailureCarriesLastErrorLine(t *testing.T) {
	h := newHarness(t)
	h.setTool(provision.ToolProber, h.script(t, "probe.sh", `echo "60"`))
	h.setTool(provision.ToolTranscoder, h.script(t, "cut.sh", `
echo "Error while opening encoder" >&2
exit 1
`))
	_, err := h.orch.Cut(context.Background(), orchestrator.CutRequest{
		VideoPath:       filepath.Join(h.dir, "in.mp4"),
		OutputDir:       filepath.Join(h.dir, "cut"),
		SegmentDuration: 30,
	})
	code, ok := services.CodeOf(err)
	if !ok || code != services.CodeCutFailed {
		t.Fatalf("expected CUT_FAILED, got %v", err)
	}
	if want := "Error while opening encoder"; err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("detail missing %q: %v", want, err)
	}
}

func TestEnsureToolsRejectsUnknownNames(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.EnsureTools(context.Background(), []string{"toaster"}); err == nil {
		t.Fatal("expected error for unknown tool name")
	}
}

func waitForJob(t *testing.T, registry *jobs.Registry, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := registry.Get(id); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never registered", id)
}

