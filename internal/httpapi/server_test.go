package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/config"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/service"
)

type fakeSettingsStore struct {
	current   config.RuntimeSettings
	updateErr error
}

func (f *fakeSettingsStore) GetRuntimeSettings() (config.RuntimeSettings, error) {
	return f.current, nil
}

func (f *fakeSettingsStore) UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error) {
	if f.updateErr != nil {
		return config.RuntimeSettings{}, f.updateErr
	}
	f.current = next
	return f.current, nil
}

func validSettings() config.RuntimeSettings {
	return config.RuntimeSettings{
		Language:     "ja",
		Granularity:  "word",
		Model:        "whisper-large-v3-turbo",
		Deliver:      true,
		ScanSchedule: "@every 5m",
	}
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_CreateJob_WithMediaPath(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := NewServer(queue)

	body := []byte(`{"source":"manual","media_path":"/media/a.mp3","output_file":"/out/a.srt"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var ret struct {
		Created bool                   `json:"created"`
		Job     *jobs.TranscriptionJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	require.True(t, ret.Created)
	require.NotNil(t, ret.Job)
	require.Equal(t, "manual", ret.Job.Source)
	require.Equal(t, "/media/a.mp3", ret.Job.DedupeKey)
	require.Equal(t, "/media/a.mp3", ret.Job.Payload.MediaFile)
	require.Equal(t, "/out/a.srt", ret.Job.Payload.OutputFile)
	require.Equal(t, jobs.StatusPending, ret.Job.Status)
}

func TestServer_CreateJob_WithURL(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := NewServer(queue)

	body := []byte(`{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var ret struct {
		Created bool                   `json:"created"`
		Job     *jobs.TranscriptionJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	require.True(t, ret.Created)
	require.Equal(t, "api", ret.Job.Source)
	require.Equal(t, "https://youtu.be/dQw4w9WgXcQ", ret.Job.Payload.SourceURL)

	// The same URL again dedupes onto the pending job.
	req = httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	require.False(t, ret.Created)
}

func TestServer_CreateJob_RequiresExactlyOneSource(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	for _, body := range []string{
		`{"source":"manual"}`,
		`{"media_path":"/media/a.mp3","url":"https://youtu.be/dQw4w9WgXcQ"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestServer_GetJob(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	job, created := queue.Enqueue(jobs.EnqueueRequest{
		Source:    "manual",
		DedupeKey: "/media/a.mp3",
		Payload:   jobs.JobPayload{MediaFile: "/media/a.mp3"},
	})
	require.True(t, created)

	srv := NewServer(queue)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobs.TranscriptionJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, "/media/a.mp3", got.Payload.MediaFile)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/no-such-job", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RetryJob_ReenqueuesFailedJob(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Start(func(context.Context, *jobs.TranscriptionJob) error {
		return errors.New("backend down")
	})
	t.Cleanup(queue.Stop)

	job, created := queue.Enqueue(jobs.EnqueueRequest{
		Source:    "manual",
		DedupeKey: "/media/a.mp3",
		Payload:   jobs.JobPayload{MediaFile: "/media/a.mp3"},
	})
	require.True(t, created)
	require.Eventually(t, func() bool {
		got, ok := queue.Get(job.ID)
		return ok && got.Status == jobs.StatusFailed
	}, time.Second, 20*time.Millisecond)

	srv := NewServer(queue)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/retry", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ret struct {
		Job *jobs.TranscriptionJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	require.NotNil(t, ret.Job)
	require.NotEqual(t, job.ID, ret.Job.ID)
	require.Equal(t, "retry", ret.Job.Source)
	require.Equal(t, job.Payload, ret.Job.Payload)

	req = httptest.NewRequest(http.MethodPost, "/api/jobs/no-such-job/retry", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Status(t *testing.T) {
	now := time.Now()
	srv := NewServer(jobs.NewQueue(1, nil), WithStatusSource(func() service.Status {
		return service.Status{
			WatchDir:     "/media",
			ScanSchedule: "@every 5m",
			NextScanAt:   &now,
			Queue:        service.QueueCounts{Pending: 2, Success: 1},
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got service.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "/media", got.WatchDir)
	require.Equal(t, "@every 5m", got.ScanSchedule)
	require.NotNil(t, got.NextScanAt)
	require.Equal(t, 2, got.Queue.Pending)
	require.Equal(t, 1, got.Queue.Success)
}

func TestServer_Status_NotConfigured(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_Scan(t *testing.T) {
	var calls int
	srv := NewServer(jobs.NewQueue(1, nil), WithScanTrigger(func(context.Context) (int, error) {
		calls++
		return 3, nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, calls)
	require.JSONEq(t, `{"queued":3}`, rec.Body.String())
}

func TestServer_Scan_NotConfigured(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_GetSettings(t *testing.T) {
	store := &fakeSettingsStore{current: validSettings()}
	srv := NewServer(jobs.NewQueue(1, nil), WithRuntimeSettingsStore(store))

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got config.RuntimeSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, store.current, got)
}

func TestServer_UpdateSettings(t *testing.T) {
	store := &fakeSettingsStore{current: validSettings()}
	srv := NewServer(jobs.NewQueue(1, nil), WithRuntimeSettingsStore(store))

	body := []byte(`{"language":"en","granularity":"segment","model":"whisper-large-v3","deliver":false,"scan_schedule":"@every 1h"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got config.RuntimeSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "en", got.Language)
	require.Equal(t, "segment", got.Granularity)
	require.Equal(t, "whisper-large-v3", got.Model)
	require.False(t, got.Deliver)
	require.Equal(t, "@every 1h", got.ScanSchedule)
	require.Equal(t, got, store.current)
}

func TestServer_UpdateSettings_RejectsInvalid(t *testing.T) {
	store := &fakeSettingsStore{current: validSettings()}
	srv := NewServer(jobs.NewQueue(1, nil), WithRuntimeSettingsStore(store))

	// Unsupported language code fails validation before the store is touched.
	body := []byte(`{"language":"xx","granularity":"word","model":"whisper-large-v3-turbo","scan_schedule":"@every 5m"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "ja", store.current.Language)
}

func TestServer_UpdateSettings_StoreFailure(t *testing.T) {
	store := &fakeSettingsStore{
		current:   validSettings(),
		updateErr: errors.New("save failed"),
	}
	srv := NewServer(jobs.NewQueue(1, nil), WithRuntimeSettingsStore(store))

	body := []byte(`{"language":"en","granularity":"segment","model":"whisper-large-v3","scan_schedule":"@every 1h"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_UpdateSettings_AppliesRuntimeSettingsImmediately(t *testing.T) {
	store := &fakeSettingsStore{current: validSettings()}

	var applied config.RuntimeSettings
	var applyCalls int
	srv := NewServer(
		jobs.NewQueue(1, nil),
		WithRuntimeSettingsStore(store),
		WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			applied = next
			applyCalls++
			return nil
		}),
	)

	body := []byte(`{"language":"en","granularity":"segment","model":"whisper-large-v3","scan_schedule":"@every 1h"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, applyCalls)
	require.Equal(t, "en", applied.Language)
	require.Equal(t, "@every 1h", applied.ScanSchedule)
}

func TestServer_Settings_NotConfigured(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_Languages(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/languages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []languageEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotEmpty(t, got)

	byName := make(map[string]string, len(got))
	for i, entry := range got {
		byName[entry.Name] = entry.Code
		if i > 0 {
			require.Less(t, got[i-1].Name, entry.Name)
		}
	}
	require.Equal(t, "ja", byName["Japanese"])
	require.Equal(t, "en", byName["English"])
}

func TestServer_Events_StreamsJobSnapshot(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	job, created := queue.Enqueue(jobs.EnqueueRequest{
		Source:    "manual",
		DedupeKey: "/media/a.mp3",
		Payload:   jobs.JobPayload{MediaFile: "/media/a.mp3"},
	})
	require.True(t, created)

	srv := NewServer(queue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// The first snapshot goes out before the ticker loop notices the
	// canceled context.
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "data: [")
	require.Contains(t, rec.Body.String(), job.ID)
}
