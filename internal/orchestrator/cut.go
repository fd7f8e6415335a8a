package orchestrator

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"snag/internal/events"
	"snag/internal/jobs"
	"snag/internal/logging"
	"snag/internal/media/ffprobe"
	"snag/internal/media/segment"
	"snag/internal/provision"
	"snag/internal/services"
)

// CutRequest describes one segmentation job.
type CutRequest struct {
	JobID           string
	VideoPath       string
	OutputDir       string
	SegmentDuration float64
}

// CutResult reports a completed segmentation.
type CutResult struct {
	JobID string `json:"job_id"`
	// Segments is the planned count used for progress estimation, not a
	// promise about the number of files actually produced.
	Segments int `json:"segments"`
}

// Cut probes the source duration, then re-encodes it into fixed-length
// segments with forced keyframes at each boundary. Blocks until the job ends.
func (o *Orchestrator) Cut(ctx context.Context, req CutRequest) (CutResult, error) {
	id := jobs.NormalizeID(req.JobID)
	if id == "" {
		id = uuid.NewString()
	}
	logger := o.logger.With(logging.String(logging.FieldJobID, id))
	logger.Info("cut starting", logging.String("video", req.VideoPath))

	paths, err := o.prov.Ensure(ctx, []provision.Tool{provision.ToolTranscoder, provision.ToolProber})
	if err != nil {
		return CutResult{JobID: id}, err
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return CutResult{JobID: id}, services.WrapCoded(services.CodeProcessError, "create output directory", err)
	}

	duration, err := ffprobe.Duration(ctx, paths[provision.ToolProber], req.VideoPath)
	if err != nil {
		return CutResult{JobID: id}, services.WrapCoded(services.CodeProbeFailed, "probe duration", err)
	}

	plan, err := segment.NewPlan(req.VideoPath, req.OutputDir, duration, req.SegmentDuration)
	if err != nil {
		return CutResult{JobID: id}, services.WrapCoded(services.CodeCutFailed, "plan segments", err)
	}
	logger.Info("segmentation planned",
		logging.Float64("duration", duration), logging.Int("segments", plan.TotalSegments))

	o.recordStart(ctx, jobs.Record{
		ID:        id,
		Kind:      jobs.KindCut,
		Target:    req.VideoPath,
		Output:    req.OutputDir,
		State:     jobs.StateRunning,
		CreatedAt: time.Now(),
	})
	o.bus.Publish(events.Event{Type: events.TypeJobStarted, JobID: id, Detail: req.VideoPath})

	handle, err := o.sup.Spawn(id, paths[provision.ToolTranscoder], plan.Args())
	if err != nil {
		coded := services.WrapCoded(services.CodeProcessError, "spawn transcoder", err)
		o.finish(id, outcomeFromError(coded))
		return CutResult{JobID: id}, coded
	}

	counter := segment.NewProgressCounter(plan.TotalSegments)
	var stderr chunkBuffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readChunks(handle.Stdout, func(string) {})
	}()
	go func() {
		defer wg.Done()
		readChunks(handle.Stderr, func(chunk string) {
			stderr.append(chunk)
			if percent, updated := counter.Feed(chunk); updated {
				o.bus.Publish(events.Event{Type: events.TypeJobProgress, JobID: id, Percent: percent})
			}
		})
	}()
	wg.Wait()

	status := o.sup.Wait(id, handle)

	switch {
	case status.Canceled, status.Signaled:
		coded := services.NewCoded(services.CodeDownloadCanceled, "stopped by user")
		o.finish(id, outcomeFromError(coded))
		return CutResult{JobID: id}, coded

	case status.WaitErr != nil:
		coded := services.WrapCoded(services.CodeProcessError, "wait for transcoder", status.WaitErr)
		o.finish(id, outcomeFromError(coded))
		return CutResult{JobID: id}, coded

	case status.Code == 0:
		logger.Info("cut complete", logging.Int("segments", plan.TotalSegments))
		o.finish(id, jobs.Outcome{State: jobs.StateSuccess, FinalPath: req.OutputDir})
		return CutResult{JobID: id, Segments: plan.TotalSegments}, nil

	default:
		coded := services.NewCoded(services.CodeCutFailed, segment.FailureDetail(stderr.String(), status.Code))
		logger.Warn("cut failed", logging.Error(coded))
		o.finish(id, outcomeFromError(coded))
		return CutResult{JobID: id}, coded
	}
}
