package ipc

import (
	"time"

	"snag/internal/jobs"
	"snag/internal/services/ytdlp"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// ToolInfo describes one managed executable.
type ToolInfo struct {
	Tool       string    `json:"tool"`
	Path       string    `json:"path"`
	Version    string    `json:"version"`
	VerifiedAt time.Time `json:"verified_at"`
}

// StatusResponse is a point-in-time daemon snapshot.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StartedAt     time.Time      `json:"started_at"`
	LiveJobs      []string       `json:"live_jobs"`
	JobCounts     map[string]int `json:"job_counts"`
	HistoryDBPath string         `json:"history_db_path"`
	APIBind       string         `json:"api_bind"`
	Tools         []ToolInfo     `json:"tools"`
}

// EnsureToolsRequest provisions the named tools up front.
type EnsureToolsRequest struct {
	Tools []string `json:"tools"`
}

// EnsureToolsResponse maps tool names to verified executable paths.
type EnsureToolsResponse struct {
	Paths map[string]string `json:"paths"`
}

// MetadataRequest inspects a URL without downloading.
type MetadataRequest struct {
	URL              string `json:"url"`
	UseCookieFile    bool   `json:"use_cookie_file"`
	CookieFilePath   string `json:"cookie_file_path"`
	DownloadPlaylist bool   `json:"download_playlist"`
}

// MetadataResponse carries one entry per media item.
type MetadataResponse struct {
	Items []ytdlp.Metadata `json:"items"`
}

// DownloadRequest starts a download job and blocks until it resolves.
type DownloadRequest struct {
	JobID            string `json:"job_id"`
	URL              string `json:"url"`
	OutputDir        string `json:"output_dir"`
	FormatCode       string `json:"format_code"`
	AudioOnly        bool   `json:"audio_only"`
	DownloadPlaylist bool   `json:"download_playlist"`
	UseCookieFile    bool   `json:"use_cookie_file"`
	CookieFilePath   string `json:"cookie_file_path"`
}

// DownloadResponse reports the resolved download.
type DownloadResponse struct {
	JobID         string `json:"job_id"`
	FinalPath     string `json:"final_path,omitempty"`
	Title         string `json:"title,omitempty"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
}

// CutRequest starts a segmentation job and blocks until it resolves.
type CutRequest struct {
	JobID           string  `json:"job_id"`
	VideoPath       string  `json:"video_path"`
	OutputDir       string  `json:"output_dir"`
	SegmentDuration float64 `json:"segment_duration"`
}

// CutResponse reports the completed cut.
type CutResponse struct {
	JobID    string `json:"job_id"`
	Segments int    `json:"segments"`
}

// StopJobRequest cancels a live job by id.
type StopJobRequest struct {
	JobID string `json:"job_id"`
}

// StopJobResponse reports whether the job was live.
type StopJobResponse struct {
	Found bool `json:"found"`
}

// JobsListRequest lists recent job history.
type JobsListRequest struct {
	Limit int `json:"limit"`
}

// JobRecord mirrors the history store record for IPC callers.
type JobRecord = jobs.Record

// JobsListResponse contains history records, newest first.
type JobsListResponse struct {
	Jobs []JobRecord `json:"jobs"`
}

// JobDescribeRequest fetches a single history record by id.
type JobDescribeRequest struct {
	JobID string `json:"job_id"`
}

// JobDescribeResponse contains the requested record.
type JobDescribeResponse struct {
	Job JobRecord `json:"job"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
