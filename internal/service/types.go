package service

import (
	"context"
	"time"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/config"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/persistence"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/prepare"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/stitch"
)

// SettingsSource provides the current mutable settings. The pipeline
// reads them at the start of every job, so an update through the API
// applies to the next job without a restart.
type SettingsSource interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
}

// CheckpointStore persists per-unit results so an interrupted
// multi-unit job can pick up where it stopped instead of re-paying for
// the units that already came back.
type CheckpointStore interface {
	SaveUnitCheckpoint(ctx context.Context, cp persistence.UnitCheckpoint) error
	ResumePoint(ctx context.Context, jobID string) ([]stitch.Entry, stitch.Cursor, int, error)
	DeleteJobData(ctx context.Context, jobID string) error
}

// Downloader fetches the audio behind a URL into a local file.
type Downloader interface {
	DownloadAudio(ctx context.Context, url string) (string, error)
}

// Deliverer pushes a finished subtitle file to the media player.
type Deliverer interface {
	LoadSubtitles(ctx context.Context, path string) error
}

// planner gates one input file into the ordered list of upload units.
type planner interface {
	Classify(ctx context.Context, path string) (prepare.Plan, error)
}

// RunResult summarizes one finished pipeline run.
type RunResult struct {
	OutputPath  string
	Entries     int
	UnitsTotal  int
	UnitsOK     int
	UnitsFailed int
	FailedUnits []int
	Language    string
	Resumed     bool
}

// QueueCounts breaks the job queue down by status.
type QueueCounts struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Status is the daemon snapshot served by the API.
type Status struct {
	WatchDir       string      `json:"watch_dir"`
	ScanSchedule   string      `json:"scan_schedule"`
	NextScanAt     *time.Time  `json:"next_scan_at,omitempty"`
	LastScanAt     *time.Time  `json:"last_scan_at,omitempty"`
	LastScanQueued int         `json:"last_scan_queued"`
	ClipboardWatch bool        `json:"clipboard_watch"`
	Queue          QueueCounts `json:"queue"`
}
