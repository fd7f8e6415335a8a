package provision

import (
	"runtime"
	"time"
)

// Tool is the logical name of a required external executable.
type Tool string

const (
	ToolTranscoder Tool = "transcoder"
	ToolProber     Tool = "prober"
	ToolFetcher    Tool = "fetcher"
)

// Family groups tools by distribution source. The transcoder and prober ship
// together as one versioned bundle; the fetcher is a standalone release asset.
type Family string

const (
	FamilyBundle  Family = "bundle"
	FamilyFetcher Family = "fetcher"
)

// Family returns the distribution family the tool belongs to.
func (t Tool) Family() Family {
	if t == ToolFetcher {
		return FamilyFetcher
	}
	return FamilyBundle
}

// ExecutableName returns the platform-specific file name for the tool.
func (t Tool) ExecutableName() string {
	return executableName(t, runtime.GOOS)
}

func executableName(t Tool, goos string) string {
	var base string
	switch t {
	case ToolTranscoder:
		base = "ffmpeg"
	case ToolProber:
		base = "ffprobe"
	case ToolFetcher:
		base = "yt-dlp"
	default:
		base = string(t)
	}
	if goos == "windows" {
		return base + ".exe"
	}
	return base
}

// familyTools lists each family's members in a stable order.
func familyTools(f Family) []Tool {
	if f == FamilyFetcher {
		return []Tool{ToolFetcher}
	}
	return []Tool{ToolTranscoder, ToolProber}
}

// ManagedBinary describes one provisioned executable.
type ManagedBinary struct {
	Tool       Tool
	FileName   string
	Path       string
	Version    string
	VerifiedAt time.Time
}

// Phase values for status updates.
const (
	PhaseVerifying   = "verifying"
	PhaseDownloading = "downloading"
	PhaseComplete    = "complete"
	PhaseError       = "error"
)

// Status is one provisioning progress notification.
type Status struct {
	Tool    string
	Phase   string
	Percent float64
	Detail  string
}

// StatusFunc observes provisioning progress. Implementations must not block;
// notifications are fire-and-forget relative to Ensure's return value.
type StatusFunc func(Status)
