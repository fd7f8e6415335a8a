package segment

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Plan describes one segmentation run.
type Plan struct {
	VideoPath       string
	OutputDir       string
	SegmentDuration float64
	TotalSegments   int
}

// NewPlan validates the inputs and derives the expected segment count from
// the probed duration. The count drives progress estimation only; the
// transcoder decides the real output count.
func NewPlan(videoPath, outputDir string, totalDuration, segmentDuration float64) (Plan, error) {
	if strings.TrimSpace(videoPath) == "" {
		return Plan{}, errors.New("segment plan: empty video path")
	}
	if strings.TrimSpace(outputDir) == "" {
		return Plan{}, errors.New("segment plan: empty output directory")
	}
	if segmentDuration <= 0 {
		return Plan{}, fmt.Errorf("segment plan: segment duration %v must be positive", segmentDuration)
	}
	if totalDuration <= 0 {
		return Plan{}, fmt.Errorf("segment plan: total duration %v must be positive", totalDuration)
	}
	total := int(math.Ceil(totalDuration / segmentDuration))
	if total < 1 {
		total = 1
	}
	return Plan{
		VideoPath:       videoPath,
		OutputDir:       outputDir,
		SegmentDuration: segmentDuration,
		TotalSegments:   total,
	}, nil
}

// OutputPattern returns the numbered output file pattern for the plan.
func (p Plan) OutputPattern() string {
	return filepath.Join(p.OutputDir, "output-%03d.mp4")
}

// Args builds the transcoder invocation. Keyframes are forced at each
// boundary and the streams are re-encoded; a stream-copy segment mode would
// be cheaper but can only cut at existing keyframes.
func (p Plan) Args() []string {
	duration := strconv.FormatFloat(p.SegmentDuration, 'f', -1, 64)
	return []string{
		"-i", p.VideoPath,
		"-force_key_frames", "expr:gte(t,n_forced*" + duration + ")",
		"-map", "0",
		"-segment_time", duration,
		"-f", "segment",
		"-reset_timestamps", "1",
		"-segment_start_number", "1",
		p.OutputPattern(),
	}
}

var openForWritingPattern = regexp.MustCompile(`Opening '[^']*' for writing`)

// ProgressCounter estimates cut progress by counting the transcoder's
// file-open announcements against the planned segment count.
type ProgressCounter struct {
	total int
	done  int
}

// NewProgressCounter returns a counter sized for the plan.
func NewProgressCounter(totalSegments int) *ProgressCounter {
	if totalSegments < 1 {
		totalSegments = 1
	}
	return &ProgressCounter{total: totalSegments}
}

// Feed consumes one stderr chunk and reports the updated percentage. The
// second return is false when the chunk opened no new segment.
func (c *ProgressCounter) Feed(chunk string) (float64, bool) {
	opened := len(openForWritingPattern.FindAllString(chunk, -1))
	if opened == 0 {
		return c.Percent(), false
	}
	c.done += opened
	return c.Percent(), true
}

// Percent returns the current estimate clamped to 100.
func (c *ProgressCounter) Percent() float64 {
	percent := math.Round(float64(c.done) / float64(c.total) * 100)
	if percent > 100 {
		percent = 100
	}
	return percent
}

// FailureDetail picks the most useful diagnostic from accumulated stderr
// after a non-zero exit: the last non-empty line mentioning an error, or the
// exit code when the transcoder said nothing usable.
func FailureDetail(stderr string, exitCode int) string {
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			return line
		}
	}
	return fmt.Sprintf("transcoder exited with code %d", exitCode)
}
