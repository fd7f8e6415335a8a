package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"snag/internal/logging"
	"snag/internal/services"
)

// Config carries provisioner construction parameters.
type Config struct {
	// Dir is where binaries and manifests are installed.
	Dir string
	// BundleIndexURL is the transcoder/prober distribution index.
	BundleIndexURL string
	// FetcherReleaseURL is the fetcher release-asset index.
	FetcherReleaseURL string
	// RequestTimeout bounds index lookups. Downloads are bounded by ctx only.
	RequestTimeout time.Duration
}

// Option configures the provisioner.
type Option func(*Provisioner)

// WithStatusFunc installs the progress observer.
func WithStatusFunc(fn StatusFunc) Option {
	return func(p *Provisioner) {
		if fn != nil {
			p.status = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logging.WithComponent(logger, "provision")
	}
}

// WithHTTPClient injects the HTTP client used for lookups and downloads
// (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provisioner) {
		if client != nil {
			p.lookupClient = client
			p.downloadClient = client
		}
	}
}

// Provisioner resolves tools to verified on-disk executables.
type Provisioner struct {
	dir            string
	status         StatusFunc
	logger         *slog.Logger
	lookupClient   *http.Client
	downloadClient *http.Client
	sources        map[Family]source
	fileLock       *flock.Flock

	mu       sync.Mutex
	inflight map[Family]*call
	verified map[Tool]ManagedBinary
}

type call struct {
	done  chan struct{}
	paths map[Tool]string
	err   error
}

// New constructs a Provisioner for the given install directory and sources.
func New(cfg Config, opts ...Option) *Provisioner {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := &Provisioner{
		dir:            cfg.Dir,
		status:         func(Status) {},
		logger:         logging.WithComponent(nil, "provision"),
		lookupClient:   &http.Client{Timeout: timeout},
		downloadClient: &http.Client{},
		fileLock:       flock.New(filepath.Join(cfg.Dir, ".provision.lock")),
		inflight:       make(map[Family]*call),
		verified:       make(map[Tool]ManagedBinary),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sources = map[Family]source{
		FamilyBundle:  &bundleSource{indexURL: cfg.BundleIndexURL, client: p.lookupClient},
		FamilyFetcher: &fetcherSource{releaseURL: cfg.FetcherReleaseURL, client: p.lookupClient},
	}
	return p
}

// Ensure verifies (and if needed acquires) the requested tools, returning the
// absolute path of each. Concurrent calls for overlapping tool sets share
// in-flight work; at most one download runs per tool family at a time.
func (p *Provisioner) Ensure(ctx context.Context, tools []Tool) (map[Tool]string, error) {
	families := make(map[Family]struct{})
	for _, tool := range tools {
		families[tool.Family()] = struct{}{}
	}

	paths := make(map[Tool]string, len(tools))
	for family := range families {
		familyPaths, err := p.ensureFamily(ctx, family)
		if err != nil {
			return nil, err
		}
		for tool, path := range familyPaths {
			paths[tool] = path
		}
	}

	// Trim to exactly the requested set.
	result := make(map[Tool]string, len(tools))
	for _, tool := range tools {
		result[tool] = paths[tool]
	}
	return result, nil
}

// Installed returns the binaries verified during this process's lifetime.
func (p *Provisioner) Installed() []ManagedBinary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ManagedBinary, 0, len(p.verified))
	for _, bin := range p.verified {
		out = append(out, bin)
	}
	return out
}

func (p *Provisioner) ensureFamily(ctx context.Context, family Family) (map[Tool]string, error) {
	p.mu.Lock()
	if existing, ok := p.inflight[family]; ok {
		p.mu.Unlock()
		select {
		case <-existing.done:
			if existing.err != nil {
				return nil, provisionError(family, existing.err)
			}
			return existing.paths, nil
		case <-ctx.Done():
			return nil, services.WrapCoded(services.CodeProvisionFailed,
				"wait for in-flight "+string(family)+" provisioning", ctx.Err())
		}
	}
	c := &call{done: make(chan struct{})}
	p.inflight[family] = c
	p.mu.Unlock()

	c.paths, c.err = p.verifyOrAcquire(ctx, family)

	p.mu.Lock()
	delete(p.inflight, family)
	p.mu.Unlock()
	close(c.done)

	if c.err != nil {
		return nil, provisionError(family, c.err)
	}
	return c.paths, nil
}

// provisionError guarantees every failure leaving the provisioner carries a
// classification code naming what was being provisioned. Errors that are
// already coded pass through unchanged.
func provisionError(family Family, err error) error {
	var coded *services.Coded
	if errors.As(err, &coded) {
		return err
	}
	return services.WrapCoded(services.CodeProvisionFailed,
		"provision "+string(family)+" tools", err)
}

func (p *Provisioner) verifyOrAcquire(ctx context.Context, family Family) (map[Tool]string, error) {
	tools := familyTools(family)
	p.notifyAll(tools, PhaseVerifying, 0, "")

	latest, err := p.sources[family].Latest(ctx)
	if err != nil {
		p.notifyAll(tools, PhaseError, 0, err.Error())
		return nil, err
	}

	if paths, ok := p.installed(family); ok {
		if m, ok := readManifest(p.dir, family); ok && m.Version == latest.Version {
			p.notifyAll(tools, PhaseComplete, 100, "")
			p.cacheVerified(family, paths, m.Version)
			return paths, nil
		}
		// Stale or unreadable manifest: wipe the family and redownload.
		p.logger.Info("installed tools are stale, redownloading",
			logging.String("family", string(family)),
			logging.String("latest", latest.Version))
		p.removeFamily(family)
	}

	paths, err := p.acquire(ctx, family, latest)
	if err != nil {
		p.notifyAll(tools, PhaseError, 0, err.Error())
		return nil, err
	}
	p.notifyAll(tools, PhaseComplete, 100, "")
	p.cacheVerified(family, paths, latest.Version)
	return paths, nil
}

// installed reports whether every family member exists and is executable.
func (p *Provisioner) installed(family Family) (map[Tool]string, bool) {
	paths := make(map[Tool]string)
	for _, tool := range familyTools(family) {
		path := filepath.Join(p.dir, tool.ExecutableName())
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return nil, false
		}
		if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
			return nil, false
		}
		paths[tool] = path
	}
	return paths, true
}

func (p *Provisioner) removeFamily(family Family) {
	for _, tool := range familyTools(family) {
		_ = os.Remove(filepath.Join(p.dir, tool.ExecutableName()))
	}
	_ = os.Remove(manifestPath(p.dir, family))
}

func (p *Provisioner) acquire(ctx context.Context, family Family, latest release) (map[Tool]string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, services.WrapCoded(services.CodeProvisionFailed, "create binaries directory", err)
	}

	// Cross-process guard: another daemon instance may be mid-download.
	if err := p.fileLock.Lock(); err != nil {
		return nil, services.WrapCoded(services.CodeProvisionFailed, "lock binaries directory", err)
	}
	defer func() { _ = p.fileLock.Unlock() }()

	// Re-check under the lock: the download may have completed elsewhere.
	if paths, ok := p.installed(family); ok {
		if m, ok := readManifest(p.dir, family); ok && m.Version == latest.Version {
			return paths, nil
		}
	}

	paths := make(map[Tool]string, len(latest.URLs))
	for _, tool := range familyTools(family) {
		url := latest.URLs[tool]
		dest := filepath.Join(p.dir, tool.ExecutableName())
		if err := p.download(ctx, tool, url, dest); err != nil {
			return nil, services.WrapCoded(services.CodeProvisionFailed,
				fmt.Sprintf("download %s", tool), err)
		}
		paths[tool] = dest
	}

	if err := writeManifest(p.dir, family, latest.Version); err != nil {
		// The binaries are usable; a failed manifest write only costs a
		// redownload next time.
		p.logger.Warn("manifest write failed", logging.Error(err))
	}

	if _, ok := p.installed(family); !ok {
		return nil, services.NewCoded(services.CodeProvisionFailed,
			fmt.Sprintf("%s tools missing after download", family))
	}
	return paths, nil
}

func (p *Provisioner) download(ctx context.Context, tool Tool, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.downloadClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	p.notify(tool, PhaseDownloading, 0, "")
	written, err := io.Copy(out, &progressReader{
		reader: resp.Body,
		total:  resp.ContentLength,
		onProgress: func(percent float64) {
			p.notify(tool, PhaseDownloading, percent, "")
		},
	})
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("stream download after %d bytes: %w", written, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(dest, 0o755); err != nil {
			return fmt.Errorf("mark executable: %w", err)
		}
	}
	p.logger.Info("tool downloaded",
		logging.String("tool", string(tool)),
		logging.String("path", dest),
		logging.Int64("bytes", written))
	return nil
}

func (p *Provisioner) cacheVerified(family Family, paths map[Tool]string, version string) {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for tool, path := range paths {
		p.verified[tool] = ManagedBinary{
			Tool:       tool,
			FileName:   tool.ExecutableName(),
			Path:       path,
			Version:    version,
			VerifiedAt: now,
		}
	}
}

func (p *Provisioner) notify(tool Tool, phase string, percent float64, detail string) {
	p.status(Status{Tool: string(tool), Phase: phase, Percent: percent, Detail: detail})
}

func (p *Provisioner) notifyAll(tools []Tool, phase string, percent float64, detail string) {
	for _, tool := range tools {
		p.notify(tool, phase, percent, detail)
	}
}

// progressReader reports cumulative progress as a percentage of total when
// the length is known. Unknown lengths produce no percentage updates.
type progressReader struct {
	reader     io.Reader
	total      int64
	read       int64
	lastPct    int
	onProgress func(float64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)
	if r.total > 0 && r.onProgress != nil {
		pct := int(float64(r.read) / float64(r.total) * 100)
		if pct > r.lastPct {
			r.lastPct = pct
			r.onProgress(float64(pct))
		}
	}
	return n, err
}
