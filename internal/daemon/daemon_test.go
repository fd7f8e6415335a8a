package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snag/internal/config"
	"snag/internal/daemon"
	"snag/internal/events"
	"snag/internal/jobs"
	"snag/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BinariesDir = filepath.Join(dir, "bin")
	cfg.Paths.DownloadDir = filepath.Join(dir, "downloads")
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.SocketPath = filepath.Join(dir, "snagd.sock")
	cfg.Paths.APIBind = "127.0.0.1:0"
	return &cfg
}

func startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(testConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestStatusEndpointReportsRunning(t *testing.T) {
	d := startDaemon(t)

	resp, err := http.Get("http://" + d.APIAddr() + "/api/status")
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Error("expected running daemon")
	}
	if status.HistoryDBPath == "" {
		t.Error("expected history db path")
	}
	if len(status.LiveJobs) != 0 {
		t.Errorf("live jobs = %v, want none", status.LiveJobs)
	}
}

func TestJobsEndpointListsHistory(t *testing.T) {
	d := startDaemon(t)

	resp, err := http.Get("http://" + d.APIAddr() + "/api/jobs")
	if err != nil {
		t.Fatalf("jobs request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	var records []jobs.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}

	resp, err = http.Get("http://" + d.APIAddr() + "/api/jobs?limit=bogus")
	if err != nil {
		t.Fatalf("jobs request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestJobEndpointUnknownID(t *testing.T) {
	d := startDaemon(t)

	resp, err := http.Get("http://" + d.APIAddr() + "/api/jobs/no-such-job")
	if err != nil {
		t.Fatalf("job request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", resp.StatusCode)
	}
}

func TestEventsWebsocketStreamsBusEvents(t *testing.T) {
	d := startDaemon(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+d.APIAddr()+"/api/events", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register its bus subscription.
	deadline := time.Now().Add(2 * time.Second)
	for d.Bus().SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.Bus().Publish(events.Event{
		Type:    events.TypeJobProgress,
		JobID:   "job-1",
		Percent: 42.5,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != events.TypeJobProgress || ev.JobID != "job-1" {
		t.Errorf("event = %+v, want job_progress for job-1", ev)
	}
	if ev.Percent != 42.5 {
		t.Errorf("percent = %v, want 42.5", ev.Percent)
	}
}

func TestStartTwiceFails(t *testing.T) {
	d := startDaemon(t)
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a running daemon")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d := startDaemon(t)
	d.Stop()
	d.Stop()
}
