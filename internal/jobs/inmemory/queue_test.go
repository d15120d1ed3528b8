package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, s *Store, jobID string, want jobs.JobStatus) *jobs.ParseBillJob {
	t.Helper()
	var got *jobs.ParseBillJob
	require.Eventually(t, func() bool {
		j, err := s.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 2, store)
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ParseBillJob)
		j.EntryCount = 7
		return nil
	}))

	job := &jobs.ParseBillJob{File: domain.BillFile{FileID: "f1"}}
	require.NoError(t, q.PublishParseBill(ctx, job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 7, got.EntryCount)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("parse failed")
	}))

	job := &jobs.ParseBillJob{File: domain.BillFile{FileID: "f1"}, MaxRetries: 2}
	require.NoError(t, q.PublishParseBill(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "parse failed", got.Error)
	assert.EqualValues(t, 3, calls.Load())
}

func TestQueue_HandlerPanicIsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(1, 1, store)
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		panic("boom")
	}))

	job := &jobs.ParseBillJob{MaxRetries: -1}
	require.NoError(t, q.PublishParseBill(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, got.Error, "panicked")
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishParseBill(context.Background(), &jobs.ParseBillJob{})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), ErrQueueClosed)
}

func TestQueue_PublishHonorsContext(t *testing.T) {
	q := NewQueue(0, 1, nil)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.PublishParseBill(ctx, &jobs.ParseBillJob{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
