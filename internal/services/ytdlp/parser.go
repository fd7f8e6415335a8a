package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

// EventKind tags a parsed output event.
type EventKind int

const (
	// EventProgress carries the current download percentage.
	EventProgress EventKind = iota
	// EventTitle carries the discovered media title. Emitted at most once.
	EventTitle
	// EventDestination carries a file path the fetcher announced it is
	// writing to. Later announcements supersede earlier ones.
	EventDestination
	// EventAlreadyDownloaded carries the path of a file the fetcher
	// skipped because it already exists.
	EventAlreadyDownloaded
)

// Event is one structured fact recovered from the fetcher's text output.
type Event struct {
	Kind    EventKind
	Percent float64
	Title   string
	Path    string
}

var (
	progressPattern = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)
	titlePattern    = regexp.MustCompile(`\[info\] Title:\s(.+)`)
	destPattern     = regexp.MustCompile(`\[(?:Merger|download)\] Merging formats into "([^"]+)"|\[download\] Destination:\s(.+)`)
	alreadyPattern  = regexp.MustCompile(`\[download\]\s+(.+?)\s+has already been downloaded`)
)

// Parser accumulates facts across output chunks for a single job. The
// fetcher interleaves progress, title, and destination lines across stdout
// and stderr, and a single read can deliver several progress lines at once.
// Not safe for concurrent use; feed it from one goroutine per stream pair.
type Parser struct {
	title        string
	destinations []string
	alreadyPath  string
	percent      float64
	hasPercent   bool
}

// NewParser returns an empty accumulator.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one raw output chunk and returns the events it produced.
// When a chunk contains several progress lines only the last one is
// authoritative; earlier ones are stale by the time the chunk arrived.
func (p *Parser) Feed(chunk string) []Event {
	if chunk == "" {
		return nil
	}
	var events []Event

	if matches := progressPattern.FindAllStringSubmatch(chunk, -1); len(matches) > 0 {
		raw := matches[len(matches)-1][1]
		if percent, err := strconv.ParseFloat(raw, 64); err == nil {
			percent = clampPercent(percent)
			p.percent = percent
			p.hasPercent = true
			events = append(events, Event{Kind: EventProgress, Percent: percent, Title: p.title})
		}
	}

	if p.title == "" {
		if match := titlePattern.FindStringSubmatch(chunk); match != nil {
			p.title = strings.TrimSpace(match[1])
			events = append(events, Event{Kind: EventTitle, Title: p.title})
		}
	}

	for _, match := range destPattern.FindAllStringSubmatch(chunk, -1) {
		path := strings.TrimSpace(match[1])
		if path == "" {
			path = strings.TrimSpace(match[2])
		}
		if path == "" {
			continue
		}
		p.destinations = append(p.destinations, path)
		events = append(events, Event{Kind: EventDestination, Path: path})
	}

	if p.alreadyPath == "" {
		if match := alreadyPattern.FindStringSubmatch(chunk); match != nil {
			p.alreadyPath = strings.TrimSpace(match[1])
			events = append(events, Event{Kind: EventAlreadyDownloaded, Path: p.alreadyPath})
		}
	}

	return events
}

// Title returns the discovered title, or empty if none was seen.
func (p *Parser) Title() string {
	return p.title
}

// Percent returns the most recent progress value and whether any was seen.
func (p *Parser) Percent() (float64, bool) {
	return p.percent, p.hasPercent
}

// Destination returns the final announced output path. The last announcement
// wins because the merge step reports the merged file after the per-stream
// intermediate files.
func (p *Parser) Destination() string {
	if len(p.destinations) == 0 {
		return ""
	}
	return p.destinations[len(p.destinations)-1]
}

// Destinations returns every announced output path in document order,
// deduplicated. Cancellation cleanup removes all of them plus their
// temp-suffix counterparts.
func (p *Parser) Destinations() []string {
	if len(p.destinations) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(p.destinations))
	out := make([]string, 0, len(p.destinations))
	for _, path := range p.destinations {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

// AlreadyDownloadedPath returns the existing file path when the fetcher
// reported the download as already complete, or empty otherwise.
func (p *Parser) AlreadyDownloadedPath() string {
	return p.alreadyPath
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
