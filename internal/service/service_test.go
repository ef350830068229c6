package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/library"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/persistence"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/prepare"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/transcribe"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/file"
)

func newScanService(t *testing.T, watchDir string, tr transcribe.Transcriber) (*TranscriptionService, *jobs.Queue, *cron.Cron) {
	t.Helper()

	cfg := testConfig(t)
	cfg.Watch.Dir = watchDir

	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "asbsubs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	queue := jobs.NewQueue(1, store)
	t.Cleanup(queue.Stop)

	scanner := library.NewScanner(watchDir, library.WithCacheTTL(0))
	cronEngine := cron.New()

	svc, err := NewTranscriptionService(cfg, &fakeSettings{settings: testSettings()}, store, queue, scanner, cronEngine)
	require.NoError(t, err)

	svc.transcriber = tr
	svc.newPlanner = func(*prepare.Registry) planner { return passthroughPlanner{} }
	return svc, queue, cronEngine
}

func TestService_ScanQueuesPendingFiles(t *testing.T) {
	dir := t.TempDir()
	writeAudio(t, dir, "a.mp3")
	writeAudio(t, dir, "b.m4a")
	done := writeAudio(t, dir, "c.mp3")
	require.NoError(t, os.WriteFile(file.ReplaceExt(done, ".srt"), []byte("1\n00:00:00,000 --> 00:00:01,000\nx\n"), 0o644))

	svc, queue, _ := newScanService(t, dir, &fakeTranscriber{})

	queued, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	// The pending jobs dedupe the second walk.
	queued, err = svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, queued)

	listed := queue.List()
	require.Len(t, listed, 2)
	for _, job := range listed {
		assert.Equal(t, jobs.StatusPending, job.Status)
		assert.Equal(t, "scan", job.Source)
	}
}

func TestService_ScanToSubtitleEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeAudio(t, dir, "episode.mp3")

	ft := &fakeTranscriber{defaultResult: transcribe.Result{
		Segments: []transcribe.Segment{seg(0, 0, 2, "hello")},
	}}
	svc, queue, _ := newScanService(t, dir, ft)
	queue.Start(svc.Execute)

	queued, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, queued)

	subtitlePath := file.ReplaceExt(input, ".srt")
	require.Eventually(t, func() bool {
		if _, err := os.Stat(subtitlePath); err != nil {
			return false
		}
		return svc.Status().Queue.Success == 1
	}, 5*time.Second, 20*time.Millisecond)

	// The finished file no longer counts as pending.
	queued, err = svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestService_ScheduleRegistersSingleCronEntry(t *testing.T) {
	dir := t.TempDir()
	svc, _, cronEngine := newScanService(t, dir, &fakeTranscriber{})

	require.NoError(t, svc.Schedule())
	assert.Len(t, cronEngine.Entries(), 1)

	st := svc.Status()
	assert.Equal(t, dir, st.WatchDir)
	assert.Equal(t, "@every 5m", st.ScanSchedule)
	require.NotNil(t, st.NextScanAt)
	assert.True(t, st.NextScanAt.After(time.Now()))
}

func TestService_ApplyRuntimeSettings_ReschedulesScan(t *testing.T) {
	svc, _, cronEngine := newScanService(t, t.TempDir(), &fakeTranscriber{})
	require.NoError(t, svc.Schedule())
	oldID := cronEngine.Entries()[0].ID

	next := testSettings()
	next.ScanSchedule = "@every 1h"
	require.NoError(t, svc.ApplyRuntimeSettings(next))

	entries := cronEngine.Entries()
	require.Len(t, entries, 1)
	assert.NotEqual(t, oldID, entries[0].ID)
	assert.Equal(t, "@every 1h", svc.Status().ScanSchedule)

	// Applying the same schedule again leaves the entry alone.
	require.NoError(t, svc.ApplyRuntimeSettings(next))
	require.Len(t, cronEngine.Entries(), 1)
	assert.Equal(t, entries[0].ID, cronEngine.Entries()[0].ID)
}

func TestService_ApplyRuntimeSettings_RejectsBadSchedule(t *testing.T) {
	svc, _, cronEngine := newScanService(t, t.TempDir(), &fakeTranscriber{})
	require.NoError(t, svc.Schedule())

	next := testSettings()
	next.ScanSchedule = "not a cron line"
	err := svc.ApplyRuntimeSettings(next)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrConfig))

	// The previous schedule keeps running.
	assert.Len(t, cronEngine.Entries(), 1)
	assert.Equal(t, "@every 5m", svc.Status().ScanSchedule)
}

func TestService_SubmitDeduplicates(t *testing.T) {
	svc, _, _ := newScanService(t, t.TempDir(), &fakeTranscriber{})
	path := writeAudio(t, t.TempDir(), "movie.mp3")

	job, created := svc.SubmitFile(path, "", "api")
	require.True(t, created)
	assert.Equal(t, "api", job.Source)
	assert.Equal(t, path, job.Payload.MediaFile)

	_, created = svc.SubmitFile(path, "", "api")
	assert.False(t, created)

	urlJob, created := svc.SubmitURL("https://youtu.be/dQw4w9WgXcQ", "clipboard")
	require.True(t, created)
	assert.Equal(t, "clipboard", urlJob.Source)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", urlJob.Payload.SourceURL)

	_, created = svc.SubmitURL("https://youtu.be/dQw4w9WgXcQ", "clipboard")
	assert.False(t, created)
}

func TestService_StatusCountsQueue(t *testing.T) {
	dir := t.TempDir()
	svc, _, _ := newScanService(t, dir, &fakeTranscriber{})

	_, created := svc.SubmitFile(writeAudio(t, dir, "one.mp3"), "", "api")
	require.True(t, created)
	_, created = svc.SubmitFile(writeAudio(t, dir, "two.mp3"), "", "api")
	require.True(t, created)

	st := svc.Status()
	assert.Equal(t, 2, st.Queue.Pending)
	assert.Zero(t, st.Queue.Running)
	assert.Zero(t, st.Queue.Success)
	assert.False(t, st.ClipboardWatch)
}

func TestNewTranscriptionService_Validates(t *testing.T) {
	cfg := testConfig(t)
	settings := &fakeSettings{settings: testSettings()}
	queue := jobs.NewQueue(1, nil)
	t.Cleanup(queue.Stop)

	_, err := NewTranscriptionService(nil, settings, nil, queue, nil, nil)
	assert.Error(t, err)

	_, err = NewTranscriptionService(cfg, nil, nil, queue, nil, nil)
	assert.Error(t, err)

	_, err = NewTranscriptionService(cfg, settings, nil, nil, nil, nil)
	assert.Error(t, err)

	noKey := testConfig(t)
	noKey.Groq.APIKey = ""
	_, err = NewTranscriptionService(noKey, settings, nil, queue, nil, nil)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrConfig))
}
