package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	jobs map[string]*TranscriptionJob
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*TranscriptionJob)}
}

func (m *memoryStore) LoadJobs(_ context.Context) ([]*TranscriptionJob, error) {
	ret := make([]*TranscriptionJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		ret = append(ret, cloneJob(j))
	}
	return ret, nil
}

func (m *memoryStore) UpsertJob(_ context.Context, job *TranscriptionJob) error {
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) DeleteJob(_ context.Context, jobID string) error {
	delete(m.jobs, jobID)
	return nil
}

func (m *memoryStore) DeleteJobData(_ context.Context, _ string) error {
	return nil
}

func TestQueue_RecoversPendingAndRunningJobsFromStore(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.jobs["job-1"] = &TranscriptionJob{
		ID:        "job-1",
		Source:    "scan",
		DedupeKey: "/media/ep1.mp3",
		Status:    StatusPending,
		Payload: JobPayload{
			MediaFile: "/media/ep1.mp3",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.jobs["job-2"] = &TranscriptionJob{
		ID:        "job-2",
		Source:    "scan",
		DedupeKey: "/media/ep2.mp3",
		Status:    StatusRunning,
		Payload: JobPayload{
			MediaFile: "/media/ep2.mp3",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(1, store)

	jobs := q.List()
	require.Len(t, jobs, 2)
	byID := map[string]*TranscriptionJob{}
	for _, j := range jobs {
		byID[j.ID] = j
	}
	require.Contains(t, byID, "job-2")
	assert.Equal(t, StatusPending, byID["job-2"].Status)

	q.Start(func(_ context.Context, _ *TranscriptionJob) error { return nil })
	defer q.Stop()

	require.Eventually(t, func() bool {
		got, ok := q.Get("job-1")
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		got, ok := q.Get("job-2")
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_HydrationContinuesIDSequence(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.jobs["job-7"] = &TranscriptionJob{
		ID:        "job-7",
		Status:    StatusSuccess,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(1, store)
	job, created := q.Enqueue(EnqueueRequest{Source: "manual"})
	require.True(t, created)
	assert.Equal(t, "job-8", job.ID)
}
