package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
)

func TestQueueRunsJobsInOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    []string
		running int
		overlap bool
	)
	q := NewQueue(func(ctx context.Context, job Job) error {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		seen = append(seen, job.Path)
		assert.Equal(t, job.TraceID, common.RunIDFromContext(ctx))
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}, nil)

	ctx := context.Background()
	for _, p := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p}))
	}
	q.Shutdown(ctx)

	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, seen)
	assert.False(t, overlap)
}

func TestQueueSurvivesFailuresAndPanics(t *testing.T) {
	var mu sync.Mutex
	count := 0
	q := NewQueue(func(_ context.Context, job Job) error {
		mu.Lock()
		count++
		mu.Unlock()
		switch job.Path {
		case "panic.pdf":
			panic("boom")
		case "fail.pdf":
			return assert.AnError
		}
		return nil
	}, nil)

	ctx := context.Background()
	for _, p := range []string{"panic.pdf", "fail.pdf", "ok.pdf"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p}))
	}
	q.Shutdown(ctx)
	assert.Equal(t, 3, count)
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewQueue(func(context.Context, Job) error { return nil }, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "late.pdf"}), ErrClosed)
}

func TestQueueFullRespectsContext(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(func(context.Context, Job) error {
		<-release
		return nil
	}, nil, WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Path: "running.pdf"}))
	// wait until the worker holds the first job so the buffer is free
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, Job{Path: "buffered.pdf"}))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(short, Job{Path: "blocked.pdf"}), context.DeadlineExceeded)
}
