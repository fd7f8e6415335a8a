package ytdlp

import (
	"encoding/json"
	"log/slog"
	"strings"

	"snag/internal/services"
)

// Format is one downloadable rendition reported by the fetcher.
type Format struct {
	FormatID   string  `json:"format_id"`
	FormatNote string  `json:"format_note"`
	Ext        string  `json:"ext"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	Filesize   int64   `json:"filesize"`
	TBR        float64 `json:"tbr"`
}

// Metadata is one media item from a metadata dump. Playlist fetches emit one
// item per entry; single fetches emit exactly one.
type Metadata struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	WebpageURL string   `json:"webpage_url"`
	Duration   float64  `json:"duration"`
	Uploader   string   `json:"uploader"`
	Thumbnail  string   `json:"thumbnail"`
	Ext        string   `json:"ext"`
	IsLive     bool     `json:"is_live"`
	Formats    []Format `json:"formats"`
}

// ParseMetadata decodes a single-JSON-per-line dump. Unparseable lines are
// skipped with a warning; the call only fails when no line yields an item.
func ParseMetadata(stdout string, logger *slog.Logger) ([]Metadata, error) {
	var items []Metadata
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item Metadata
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			if logger != nil {
				logger.Warn("skipping unparseable metadata line", "error", err)
			}
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, services.NewCoded(services.CodeParseError, "no metadata items in fetcher output")
	}
	return items, nil
}
