package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Duration executes the prober against the provided path and returns the
// container duration in seconds.
func Duration(ctx context.Context, binary string, path string) (float64, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe duration: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"--", path)
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		if detail != "" {
			return 0, fmt.Errorf("ffprobe duration: %w: %s", err, detail)
		}
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	return ParseDuration(string(output))
}

// ParseDuration interprets raw prober output as a duration in seconds.
// Non-numeric output is an error rather than a zero value so callers never
// plan a cut around a duration the prober did not actually report.
func ParseDuration(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, errors.New("ffprobe duration: empty output")
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: non-numeric output %q", cleaned)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("ffprobe duration: negative duration %q", cleaned)
	}
	return parsed, nil
}
