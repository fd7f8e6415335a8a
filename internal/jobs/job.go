package jobs

import (
	"strings"
	"time"
)

// Kind identifies the type of external work a job performs.
type Kind string

const (
	KindDownload Kind = "download"
	KindCut      Kind = "cut"
)

// State is the lifecycle position of a job.
type State string

const (
	StateRunning  State = "running"
	StateSuccess  State = "success"
	StateCanceled State = "canceled"
	StateFailed   State = "failed"
)

// Record is the persisted history entry for one job.
type Record struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Target     string    `json:"target"`
	Output     string    `json:"output"`
	State      State     `json:"state"`
	Title      string    `json:"title,omitempty"`
	FinalPath  string    `json:"final_path,omitempty"`
	Code       string    `json:"code,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Outcome is the terminal result reported for a job. AlreadyExists marks the
// idempotent-success path where the tool found a previous download.
type Outcome struct {
	State         State
	FinalPath     string
	Title         string
	AlreadyExists bool
	Code          string
	Detail        string
}

// NormalizeID trims caller-supplied ids; an empty result means the caller
// wants one generated.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
