package jobs

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ErrSkipped signals that the executor declined the job without doing
// work, for example because the subtitle already exists. Wrap it to
// carry the reason.
var ErrSkipped = errors.New("job skipped")

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload describes one transcription request: a local media file,
// or a source URL to download the audio from first. OutputFile
// overrides where the SRT is written; empty means next to the input.
type JobPayload struct {
	MediaFile  string `json:"media_file"`
	SourceURL  string `json:"source_url"`
	OutputFile string `json:"output_file"`
}

// UnitProgress counts the upload units of a job as the pipeline works
// through them. Total is the number of units the preparation plan
// produced, Done the units whose transcript landed in the timeline,
// Failed the units skipped over after a backend error.
type UnitProgress struct {
	Total  int `json:"total"`
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

type TranscriptionJob struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	DedupeKey string       `json:"dedupe_key"`
	Payload   JobPayload   `json:"payload"`
	Status    Status       `json:"status"`
	Error     string       `json:"error,omitempty"`
	Progress  UnitProgress `json:"progress"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
