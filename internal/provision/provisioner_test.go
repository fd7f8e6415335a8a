package provision_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"snag/internal/provision"
	"snag/internal/services"
)

type fakeDistro struct {
	server        *httptest.Server
	bundleVersion string
	fetcherTag    string
	downloads     atomic.Int64
	indexGate     chan struct{} // when set, /version/latest blocks until closed
	indexHit      chan struct{} // receives one signal per index request
}

func newFakeDistro(t *testing.T) *fakeDistro {
	t.Helper()
	d := &fakeDistro{
		bundleVersion: "6.1",
		fetcherTag:    "2025.08.01",
		indexHit:      make(chan struct{}, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/bundle/version/latest", func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.indexHit <- struct{}{}:
		default:
		}
		if d.indexGate != nil {
			<-d.indexGate
		}
		platforms := map[string]map[string]string{}
		for _, platform := range []string{"windows-64", "osx-64", "linux-64", "linux-arm64", "linux-armhf", "linux-32"} {
			platforms[platform] = map[string]string{
				"ffmpeg":  d.server.URL + "/blob/ffmpeg",
				"ffprobe": d.server.URL + "/blob/ffprobe",
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version": d.bundleVersion,
			"bin":     platforms,
		})
	})
	mux.HandleFunc("/release/latest", func(w http.ResponseWriter, r *http.Request) {
		assets := []map[string]string{}
		for _, name := range []string{"yt-dlp", "yt-dlp.exe", "yt-dlp_macos"} {
			assets = append(assets, map[string]string{
				"name":                 name,
				"browser_download_url": d.server.URL + "/blob/" + name,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tag_name": d.fetcherTag,
			"assets":   assets,
		})
	})
	mux.HandleFunc("/blob/", func(w http.ResponseWriter, r *http.Request) {
		d.downloads.Add(1)
		w.Header().Set("Content-Length", "16")
		fmt.Fprint(w, "fake-binary-data")
	})
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func newProvisioner(t *testing.T, d *fakeDistro, dir string, opts ...provision.Option) *provision.Provisioner {
	t.Helper()
	return provision.New(provision.Config{
		Dir:               dir,
		BundleIndexURL:    d.server.URL + "/bundle",
		FetcherReleaseURL: d.server.URL + "/release/latest",
		RequestTimeout:    5 * time.Second,
	}, opts...)
}

func TestEnsureDownloadsBundleAndWritesManifest(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	prov := newProvisioner(t, distro, dir)

	paths, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolTranscoder, provision.ToolProber})
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected two paths, got %v", paths)
	}
	for tool, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("tool %s missing: %v", tool, err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
			t.Fatalf("tool %s not executable", tool)
		}
	}
	if distro.downloads.Load() != 2 {
		t.Fatalf("expected 2 downloads, got %d", distro.downloads.Load())
	}

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	var m struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &m); err != nil || m.Version != "6.1" {
		t.Fatalf("unexpected manifest: %s (err %v)", data, err)
	}

	// Second ensure sees a current manifest and downloads nothing.
	if _, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolTranscoder}); err != nil {
		t.Fatalf("second Ensure returned error: %v", err)
	}
	if distro.downloads.Load() != 2 {
		t.Fatalf("expected no extra downloads, got %d", distro.downloads.Load())
	}
}

func TestEnsureConcurrentCallsShareOneDownload(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	distro.indexGate = make(chan struct{})
	prov := newProvisioner(t, distro, dir)

	results := make(chan map[provision.Tool]string, 2)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	run := func() {
		defer wg.Done()
		paths, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolTranscoder})
		results <- paths
		errs <- err
	}

	wg.Add(1)
	go run()
	// Wait for the leader to reach the index lookup, then start the follower
	// so it joins the in-flight call rather than starting a second one.
	<-distro.indexHit
	wg.Add(1)
	go run()
	time.Sleep(100 * time.Millisecond)
	close(distro.indexGate)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Ensure returned error: %v", err)
		}
	}
	first := <-results
	second := <-results
	if first[provision.ToolTranscoder] != second[provision.ToolTranscoder] {
		t.Fatalf("paths differ: %v vs %v", first, second)
	}
	// Transcoder and prober ship together, so one acquisition = two blobs.
	if distro.downloads.Load() != 2 {
		t.Fatalf("expected exactly one acquisition (2 blobs), got %d blob fetches", distro.downloads.Load())
	}
}

func TestEnsureWaiterCancellationIsCoded(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	distro.indexGate = make(chan struct{})
	prov := newProvisioner(t, distro, dir)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = prov.Ensure(context.Background(), []provision.Tool{provision.ToolTranscoder})
	}()
	<-distro.indexHit

	// Join the in-flight call with an already-canceled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := prov.Ensure(ctx, []provision.Tool{provision.ToolTranscoder})
	if code, ok := services.CodeOf(err); !ok || code != services.CodeProvisionFailed {
		t.Fatalf("expected PROVISION_FAILED for canceled waiter, got %v", err)
	}

	close(distro.indexGate)
	wg.Wait()
}

func TestEnsureFailuresAlwaysCarryProvisionCode(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	prov := newProvisioner(t, distro, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := prov.Ensure(ctx, []provision.Tool{provision.ToolFetcher})
	if err == nil {
		t.Fatal("expected error with canceled context")
	}
	if _, ok := services.CodeOf(err); !ok {
		t.Fatalf("expected a coded provisioning error, got %v", err)
	}
}

func TestEnsureRedownloadsWhenManifestStale(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	prov := newProvisioner(t, distro, dir)

	if _, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolTranscoder}); err != nil {
		t.Fatal(err)
	}
	base := distro.downloads.Load()

	distro.bundleVersion = "7.0"
	if _, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolTranscoder}); err != nil {
		t.Fatal(err)
	}
	if distro.downloads.Load() != base+2 {
		t.Fatalf("expected redownload after version bump, got %d fetches", distro.downloads.Load()-base)
	}
}

func TestEnsureRedownloadsWhenManifestUnreadable(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	prov := newProvisioner(t, distro, dir)

	if _, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolFetcher}); err != nil {
		t.Fatal(err)
	}
	base := distro.downloads.Load()

	if err := os.WriteFile(filepath.Join(dir, "fetcher-manifest.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolFetcher}); err != nil {
		t.Fatal(err)
	}
	if distro.downloads.Load() != base+1 {
		t.Fatal("expected a redownload after manifest corruption")
	}
}

func TestEnsureStatusSequence(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)

	var mu sync.Mutex
	var phases []string
	prov := newProvisioner(t, distro, dir, provision.WithStatusFunc(func(s provision.Status) {
		mu.Lock()
		defer mu.Unlock()
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
	}))

	if _, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolFetcher}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{provision.PhaseVerifying, provision.PhaseDownloading, provision.PhaseComplete}
	if len(phases) != len(want) {
		t.Fatalf("unexpected phase sequence: %v", phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phase %d = %q, want %q (all: %v)", i, phases[i], want[i], phases)
		}
	}
}

func TestEnsureLookupFailureIsProvisioningError(t *testing.T) {
	dir := t.TempDir()
	distro := newFakeDistro(t)
	distro.server.Close() // simulate network failure

	var mu sync.Mutex
	sawError := false
	prov := newProvisioner(t, distro, dir, provision.WithStatusFunc(func(s provision.Status) {
		mu.Lock()
		defer mu.Unlock()
		if s.Phase == provision.PhaseError {
			sawError = true
		}
	}))

	_, err := prov.Ensure(context.Background(), []provision.Tool{provision.ToolFetcher})
	if err == nil {
		t.Fatal("expected error when the distribution source is unreachable")
	}
	if code, ok := services.CodeOf(err); !ok || code != services.CodeProvisionFailed {
		t.Fatalf("expected PROVISION_FAILED, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !sawError {
		t.Fatal("expected an error status notification before the call rejected")
	}
}
