package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"snag/internal/config"
	"snag/internal/events"
	"snag/internal/jobs"
	"snag/internal/logging"
	"snag/internal/provision"
	"snag/internal/services"
	"snag/internal/supervise"
)

// Provisioner resolves logical tool names to installed binary paths.
type Provisioner interface {
	Ensure(ctx context.Context, tools []provision.Tool) (map[provision.Tool]string, error)
}

// Orchestrator is the operation facade the daemon exposes over IPC.
type Orchestrator struct {
	cfg    *config.Config
	prov   Provisioner
	sup    *supervise.Supervisor
	store  *jobs.Store
	bus    *events.Bus
	logger *slog.Logger
}

// New wires the facade. store may be nil when history persistence is
// disabled; every other collaborator is required.
func New(cfg *config.Config, prov Provisioner, sup *supervise.Supervisor, store *jobs.Store, bus *events.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		prov:   prov,
		sup:    sup,
		store:  store,
		bus:    bus,
		logger: logging.WithComponent(logger, "orchestrator"),
	}
}

// StopResult reports whether a stop request found a live job.
type StopResult struct {
	Found bool `json:"found"`
}

// Stop requests termination of a live job. An unknown or already-finished
// job id is reported as not found, never as an error.
func (o *Orchestrator) Stop(jobID string) StopResult {
	found := o.sup.Stop(jobs.NormalizeID(jobID))
	if !found {
		o.logger.Info("stop requested for unknown job", logging.String(logging.FieldJobID, jobID))
	}
	return StopResult{Found: found}
}

// EnsureTools provisions the named tools and returns their binary paths.
func (o *Orchestrator) EnsureTools(ctx context.Context, names []string) (map[string]string, error) {
	tools, err := parseTools(names)
	if err != nil {
		return nil, err
	}
	paths, err := o.prov.Ensure(ctx, tools)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(paths))
	for tool, path := range paths {
		out[string(tool)] = path
	}
	return out, nil
}

func parseTools(names []string) ([]provision.Tool, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no tools named")
	}
	tools := make([]provision.Tool, 0, len(names))
	for _, name := range names {
		switch tool := provision.Tool(strings.ToLower(strings.TrimSpace(name))); tool {
		case provision.ToolTranscoder, provision.ToolProber, provision.ToolFetcher:
			tools = append(tools, tool)
		default:
			return nil, fmt.Errorf("unknown tool %q", name)
		}
	}
	return tools, nil
}

// ensureParallel provisions several tool sets concurrently and merges their
// paths. Downloads need both the fetcher and the transcoder bundle, and the
// two families come from different sources.
func (o *Orchestrator) ensureParallel(ctx context.Context, sets ...[]provision.Tool) (map[provision.Tool]string, error) {
	type result struct {
		paths map[provision.Tool]string
		err   error
	}
	results := make(chan result, len(sets))
	for _, set := range sets {
		go func(tools []provision.Tool) {
			paths, err := o.prov.Ensure(ctx, tools)
			results <- result{paths: paths, err: err}
		}(set)
	}

	merged := make(map[provision.Tool]string)
	var firstErr error
	for range sets {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		for tool, path := range res.paths {
			merged[tool] = path
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return merged, nil
}

// recordStart persists the running job, best-effort.
func (o *Orchestrator) recordStart(ctx context.Context, rec jobs.Record) {
	if o.store == nil {
		return
	}
	if err := o.store.RecordStart(ctx, rec); err != nil {
		o.logger.Warn("job history start not recorded",
			logging.String(logging.FieldJobID, rec.ID), logging.Error(err))
	}
}

// finish persists the terminal outcome and publishes the job_finished event.
// Runs against a fresh context so a canceled job context cannot block the
// bookkeeping.
func (o *Orchestrator) finish(id string, out jobs.Outcome) {
	if o.store != nil {
		if err := o.store.RecordFinish(context.Background(), id, out); err != nil {
			o.logger.Warn("job history finish not recorded",
				logging.String(logging.FieldJobID, id), logging.Error(err))
		}
	}
	o.bus.Publish(events.Event{
		Type:   events.TypeJobFinished,
		JobID:  id,
		Status: string(out.State),
		Title:  out.Title,
		Detail: out.Detail,
	})
}

// outcomeFromError maps a terminal error to its persisted form.
func outcomeFromError(err error) jobs.Outcome {
	out := jobs.Outcome{State: jobs.StateFailed, Detail: err.Error()}
	var coded *services.Coded
	if errors.As(err, &coded) {
		out.Code = string(coded.Code)
		out.Detail = coded.Detail
		if coded.Code == services.CodeDownloadCanceled {
			out.State = jobs.StateCanceled
		}
	}
	return out
}

// readChunks forwards raw reads to fn until the stream closes. Chunked
// (not line-based) reads matter: progress lines end in carriage returns and
// several can arrive in one read.
func readChunks(r io.Reader, fn func(string)) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			fn(string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}
