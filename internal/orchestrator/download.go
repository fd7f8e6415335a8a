package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"snag/internal/events"
	"snag/internal/jobs"
	"snag/internal/logging"
	"snag/internal/provision"
	"snag/internal/services"
	"snag/internal/services/ytdlp"
)

// DownloadRequest describes one download job.
type DownloadRequest struct {
	JobID     string
	URL       string
	OutputDir string
	Options   ytdlp.DownloadOptions
}

// DownloadResult is the terminal success payload for a download.
type DownloadResult struct {
	JobID string `json:"job_id"`
	// FinalPath is empty for playlist downloads, which produce many files.
	FinalPath     string `json:"final_path,omitempty"`
	Title         string `json:"title,omitempty"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
}

// Download provisions the required tools, runs the fetcher, streams progress
// to the event bus, and resolves the terminal outcome. It blocks until the
// job ends; the daemon runs one goroutine per job.
func (o *Orchestrator) Download(ctx context.Context, req DownloadRequest) (DownloadResult, error) {
	id := jobs.NormalizeID(req.JobID)
	if id == "" {
		id = uuid.NewString()
	}
	logger := o.logger.With(logging.String(logging.FieldJobID, id))
	logger.Info("download starting", logging.String("url", req.URL))

	paths, err := o.ensureParallel(ctx,
		[]provision.Tool{provision.ToolTranscoder, provision.ToolProber},
		[]provision.Tool{provision.ToolFetcher},
	)
	if err != nil {
		return DownloadResult{JobID: id}, err
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return DownloadResult{JobID: id}, services.WrapCoded(services.CodeProcessError, "create output directory", err)
	}

	args := ytdlp.DownloadArgs(req.URL, req.OutputDir, paths[provision.ToolTranscoder],
		o.cfg.Download.MergeFormat, o.cfg.Download.AudioFormat, req.Options)

	o.recordStart(ctx, jobs.Record{
		ID:        id,
		Kind:      jobs.KindDownload,
		Target:    req.URL,
		Output:    req.OutputDir,
		State:     jobs.StateRunning,
		CreatedAt: time.Now(),
	})
	o.bus.Publish(events.Event{Type: events.TypeJobStarted, JobID: id, Detail: req.URL})

	handle, err := o.sup.Spawn(id, paths[provision.ToolFetcher], args)
	if err != nil {
		coded := services.WrapCoded(services.CodeProcessError, "spawn fetcher", err)
		o.finish(id, outcomeFromError(coded))
		return DownloadResult{JobID: id}, coded
	}

	parser := ytdlp.NewParser()
	var stderr chunkBuffer
	var mu sync.Mutex
	consume := func(chunk string) {
		mu.Lock()
		parsed := parser.Feed(chunk)
		title := parser.Title()
		mu.Unlock()
		for _, ev := range parsed {
			switch ev.Kind {
			case ytdlp.EventProgress:
				o.bus.Publish(events.Event{Type: events.TypeJobProgress, JobID: id, Percent: ev.Percent, Title: title})
			case ytdlp.EventTitle:
				o.bus.Publish(events.Event{Type: events.TypeJobStarted, JobID: id, Title: ev.Title, Detail: req.URL})
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readChunks(handle.Stdout, consume)
	}()
	go func() {
		defer wg.Done()
		readChunks(handle.Stderr, func(chunk string) {
			stderr.append(chunk)
			consume(chunk)
		})
	}()
	wg.Wait()

	status := o.sup.Wait(id, handle)

	switch {
	case status.Canceled:
		o.cleanupPartials(parser.Destinations(), logger)
		coded := services.NewCoded(services.CodeDownloadCanceled, "stopped by user")
		o.finish(id, outcomeFromError(coded))
		return DownloadResult{JobID: id}, coded

	case status.Signaled:
		coded := services.NewCoded(services.CodeDownloadCanceled, "terminated by signal")
		o.finish(id, outcomeFromError(coded))
		return DownloadResult{JobID: id}, coded

	case status.WaitErr != nil:
		coded := services.WrapCoded(services.CodeProcessError, "wait for fetcher", status.WaitErr)
		o.finish(id, outcomeFromError(coded))
		return DownloadResult{JobID: id}, coded

	case parser.AlreadyDownloadedPath() != "":
		result := DownloadResult{
			JobID:         id,
			FinalPath:     parser.AlreadyDownloadedPath(),
			Title:         titleOrDerived(parser.Title(), parser.AlreadyDownloadedPath()),
			AlreadyExists: true,
		}
		logger.Info("download skipped, file already present", logging.String("path", result.FinalPath))
		o.finish(id, jobs.Outcome{State: jobs.StateSuccess, FinalPath: result.FinalPath, Title: result.Title, AlreadyExists: true})
		return result, nil

	case parser.Destination() != "":
		result := DownloadResult{
			JobID:     id,
			FinalPath: parser.Destination(),
			Title:     titleOrDerived(parser.Title(), parser.Destination()),
		}
		logger.Info("download complete",
			logging.String("path", result.FinalPath), logging.Int("code", status.Code))
		o.finish(id, jobs.Outcome{State: jobs.StateSuccess, FinalPath: result.FinalPath, Title: result.Title})
		return result, nil

	// Playlist downloads emit one destination per entry; when none stuck, a
	// clean exit still means the playlist landed in the output directory.
	case status.Code == 0 && req.Options.DownloadPlaylist:
		result := DownloadResult{JobID: id, Title: playlistTitle(parser.Title())}
		logger.Info("playlist download complete", logging.String("dir", req.OutputDir))
		o.finish(id, jobs.Outcome{State: jobs.StateSuccess, Title: result.Title})
		return result, nil

	default:
		err := ytdlp.Classify(ytdlp.OpDownload, stderr.String(), status.Code, req.Options.UseCookieFile)
		logger.Warn("download failed", logging.Error(err))
		o.finish(id, outcomeFromError(err))
		return DownloadResult{JobID: id}, err
	}
}

// cleanupPartials removes files the fetcher announced before cancellation,
// including their temp-suffix counterparts. Missing files are fine.
func (o *Orchestrator) cleanupPartials(destinations []string, logger *slog.Logger) {
	for _, path := range destinations {
		for _, victim := range []string{path, path + ".part"} {
			if err := os.Remove(victim); err == nil {
				logger.Debug("removed partial file", logging.String("path", victim))
			}
		}
	}
}

func playlistTitle(parsed string) string {
	if parsed != "" {
		return parsed
	}
	return "Playlist"
}

// chunkBuffer accumulates stream chunks from a reader goroutine for
// classification after exit.
type chunkBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *chunkBuffer) append(chunk string) {
	b.mu.Lock()
	b.buf = append(b.buf, chunk...)
	b.mu.Unlock()
}

func (b *chunkBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
