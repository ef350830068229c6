package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/asbplayer"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/config"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/library"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/media"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/prepare"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/subtitle"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/transcribe"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/icron"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// TranscriptionService owns the transcription pipeline and its
// ingestion sources. Scheduled folder scans, manual submissions and
// clipboard URLs all converge on the same job queue; the service is
// the queue's executor.
type TranscriptionService struct {
	cfg      *config.Config
	settings SettingsSource
	store    CheckpointStore
	queue    *jobs.Queue
	scanner  *library.Scanner
	cron     *cron.Cron

	transcriber  transcribe.Transcriber
	deliverer    Deliverer
	reader       subtitle.Reader
	writer       subtitle.Writer
	errorHandler ErrorHandler

	// Replaced in tests to run the pipeline without ffmpeg or yt-dlp.
	newPlanner    func(temp *prepare.Registry) planner
	newDownloader func(dir string) Downloader

	scanGroup singleflight.Group

	mu             sync.Mutex
	cronEntryID    cron.EntryID
	schedule       string
	lastScanAt     time.Time
	lastScanQueued int
}

func NewTranscriptionService(
	cfg *config.Config,
	settings SettingsSource,
	store CheckpointStore,
	queue *jobs.Queue,
	scanner *library.Scanner,
	cronEngine *cron.Cron,
) (*TranscriptionService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("job queue is required")
	}

	transcriber, err := transcribe.NewClient(transcribe.ClientConfig{
		APIKey:  cfg.Groq.APIKey,
		BaseURL: cfg.Groq.BaseURL,
		Timeout: time.Duration(cfg.Transcribe.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, WrapError(err, ErrConfig, "failed to create transcription client")
	}

	svc := &TranscriptionService{
		cfg:          cfg,
		settings:     settings,
		store:        store,
		queue:        queue,
		scanner:      scanner,
		cron:         cronEngine,
		transcriber:  transcriber,
		deliverer:    asbplayer.NewClient(cfg.Player.URL),
		reader:       subtitle.NewReader(),
		writer:       subtitle.NewWriter(),
		errorHandler: NewDefaultErrorHandler(),
	}
	svc.newPlanner = func(temp *prepare.Registry) planner {
		return prepare.NewGate(cfg.Pipeline.MaxUploadBytes(), cfg.Pipeline.ChunkBytes(), temp)
	}
	svc.newDownloader = func(dir string) Downloader {
		return media.NewYtdlp(dir)
	}
	return svc, nil
}

// Schedule registers the folder scan on the cron engine, using the
// schedule from the current settings. Starting and stopping the engine
// stays with the caller.
func (s *TranscriptionService) Schedule() error {
	if s.cron == nil || s.scanner == nil {
		log.Info("Folder scanning disabled")
		return nil
	}

	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		return WrapError(err, ErrConfig, "failed to load runtime settings")
	}
	schedule := settings.ScanSchedule
	if schedule == "" {
		schedule = s.cfg.Watch.ScanSchedule
	}
	return s.reschedule(schedule)
}

// reschedule swaps the cron entry for the folder scan. The new entry is
// added before the old one is removed, so a bad expression leaves the
// previous schedule running and the engine never holds more than one
// scan entry.
func (s *TranscriptionService) reschedule(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Scan(context.Background()); err != nil {
			log.Error("Scheduled scan failed: %v", err)
		}
	})
	if err != nil {
		return WrapError(err, ErrConfig, "invalid scan schedule").
			WithContext("schedule", schedule)
	}

	if s.cronEntryID != 0 {
		s.cron.Remove(s.cronEntryID)
	}
	s.cronEntryID = entryID
	s.schedule = schedule
	log.Info("Folder scan scheduled: %s", schedule)
	return nil
}

// ApplyRuntimeSettings reacts to a settings update. Transcription
// parameters are read fresh for every job, so only a changed scan
// schedule needs explicit handling.
func (s *TranscriptionService) ApplyRuntimeSettings(next config.RuntimeSettings) error {
	s.mu.Lock()
	current := s.schedule
	s.mu.Unlock()

	if s.cron == nil || s.scanner == nil {
		return nil
	}
	if next.ScanSchedule == "" || next.ScanSchedule == current {
		return nil
	}
	return s.reschedule(next.ScanSchedule)
}

// Scan walks the watch folder once and enqueues every media file that
// still lacks a subtitle. Concurrent calls collapse into a single walk.
// Returns how many jobs the scan newly enqueued.
func (s *TranscriptionService) Scan(ctx context.Context) (int, error) {
	if s.scanner == nil {
		return 0, fmt.Errorf("no watch folder configured")
	}

	queued, err, _ := s.scanGroup.Do("scan", func() (interface{}, error) {
		return s.scanOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	return queued.(int), nil
}

func (s *TranscriptionService) scanOnce(ctx context.Context) (int, error) {
	s.scanner.Invalidate()
	lib, err := s.scanner.Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", s.scanner.Dir(), err)
	}

	queued := 0
	for _, f := range lib.Pending() {
		_, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    "scan",
			DedupeKey: f.Path,
			Payload:   jobs.JobPayload{MediaFile: f.Path},
		})
		if created {
			queued++
		}
	}

	s.mu.Lock()
	s.lastScanAt = time.Now()
	s.lastScanQueued = queued
	s.mu.Unlock()

	if queued > 0 {
		log.Info("Scan of %s queued %d new file(s)", lib.Dir, queued)
	} else {
		log.Debug("Scan of %s found nothing new (%d files, %d pending)",
			lib.Dir, len(lib.Files), lib.PendingCount)
	}
	return queued, nil
}

// SubmitFile enqueues a local media file. The path doubles as the
// dedupe key, so the same file cannot pile up while a job for it is
// still pending or running.
func (s *TranscriptionService) SubmitFile(path, outputFile, source string) (*jobs.TranscriptionJob, bool) {
	return s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: path,
		Payload: jobs.JobPayload{
			MediaFile:  path,
			OutputFile: outputFile,
		},
	})
}

// SubmitURL enqueues a remote source for download and transcription.
func (s *TranscriptionService) SubmitURL(url, source string) (*jobs.TranscriptionJob, bool) {
	return s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: url,
		Payload:   jobs.JobPayload{SourceURL: url},
	})
}

// Status snapshots the daemon for the API.
func (s *TranscriptionService) Status() Status {
	s.mu.Lock()
	schedule := s.schedule
	lastScanAt := s.lastScanAt
	lastScanQueued := s.lastScanQueued
	s.mu.Unlock()

	st := Status{
		ScanSchedule:   schedule,
		LastScanQueued: lastScanQueued,
		ClipboardWatch: s.cfg.Watch.ClipboardWatch,
	}
	if s.scanner != nil {
		st.WatchDir = s.scanner.Dir()
	}
	if !lastScanAt.IsZero() {
		t := lastScanAt
		st.LastScanAt = &t
	}
	if schedule != "" {
		if info, err := icron.GetTriggerInfo(schedule, time.Now()); err == nil {
			next := info.Next
			st.NextScanAt = &next
		}
	}

	for _, job := range s.queue.List() {
		switch job.Status {
		case jobs.StatusPending:
			st.Queue.Pending++
		case jobs.StatusRunning:
			st.Queue.Running++
		case jobs.StatusSuccess:
			st.Queue.Success++
		case jobs.StatusFailed:
			st.Queue.Failed++
		case jobs.StatusSkipped:
			st.Queue.Skipped++
		}
	}
	return st
}

func (s *TranscriptionService) reportProgress(jobID string, progress jobs.UnitProgress) {
	if s.queue == nil {
		return
	}
	s.queue.SetProgress(jobID, progress)
}

func (s *TranscriptionService) reportOutputFile(jobID, path string) {
	if s.queue == nil {
		return
	}
	s.queue.SetOutputFile(jobID, path)
}

func (s *TranscriptionService) discardCheckpoints(jobID string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteJobData(context.Background(), jobID); err != nil {
		log.Warn("Could not delete checkpoints of job %s: %v", jobID, err)
	}
}

func (s *TranscriptionService) deliver(ctx context.Context, settings config.RuntimeSettings, path string) {
	if !settings.Deliver || s.deliverer == nil {
		return
	}
	if err := s.deliverer.LoadSubtitles(ctx, path); err != nil {
		log.Warn("Could not deliver %s to asbplayer: %v", filepath.Base(path), err)
	}
}
