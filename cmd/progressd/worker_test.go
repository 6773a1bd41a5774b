package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/app"
	"github.com/joseph-ayodele/inspection-tracker/internal/async"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm/llmtest"
)

func newTestServices(t *testing.T) *app.Services {
	t.Helper()
	dir := t.TempDir()
	cfg := common.LoadConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:" + filepath.Join(dir, "d.db") + "?_pragma=foreign_keys(1)"
	cfg.Project.Name = "daemon test"
	cfg.Ingest.DocumentsDir = filepath.Join(dir, "reports")
	cfg.Ingest.BatchCooldown = 0
	cfg.ProgressConfigPath = filepath.Join(dir, "progress.yaml")

	svc, err := app.New(context.Background(), cfg, nil, app.Options{
		RequireProviders: true,
		Extractors:       []llm.Extractor{llmtest.New("p").Otherwise(llmtest.Fail(500, "down"))},
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func seedReport(t *testing.T, svc *app.Services, name string, processed bool) *entity.Report {
	t.Helper()
	rep := &entity.Report{
		ProjectID:  svc.Project.ID,
		FileName:   name,
		FilePath:   filepath.Join(svc.Config.Ingest.DocumentsDir, name),
		ReportDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Processed:  processed,
	}
	require.NoError(t, svc.Reports.Create(context.Background(), rep))
	return rep
}

func TestCronTickQueuesUnprocessedOnce(t *testing.T) {
	svc := newTestServices(t)
	a := seedReport(t, svc, "a.pdf", false)
	b := seedReport(t, svc, "b.pdf", false)
	seedReport(t, svc, "done.pdf", true)

	var (
		mu   sync.Mutex
		jobs []async.Job
	)
	release := make(chan struct{})
	queue := async.NewQueue(func(_ context.Context, job async.Job) error {
		<-release
		mu.Lock()
		jobs = append(jobs, job)
		mu.Unlock()
		return nil
	}, nil)

	w := newWorker(svc, svc.Logger)
	ctx := context.Background()
	require.NoError(t, w.tick(ctx, queue, 3))
	require.NoError(t, w.tick(ctx, queue, 3))
	close(release)
	queue.Shutdown(ctx)

	require.Len(t, jobs, 2)
	ids := []uuid.UUID{jobs[0].ReportID, jobs[1].ReportID}
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)
}

func TestCronTickRespectsBatchSize(t *testing.T) {
	svc := newTestServices(t)
	for _, n := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		seedReport(t, svc, n, false)
	}
	var count int
	var mu sync.Mutex
	queue := async.NewQueue(func(context.Context, async.Job) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}, nil)

	require.NoError(t, newWorker(svc, svc.Logger).tick(context.Background(), queue, 3))
	queue.Shutdown(context.Background())
	assert.Equal(t, 3, count)
}

func TestCronTickSkipsRejectedAndParked(t *testing.T) {
	svc := newTestServices(t)
	failed := seedReport(t, svc, "failed.pdf", false)

	raw := `{"reportDate":"2024-05-01","apartments":[]}`
	details := `{"errors":["structure mismatch"],"warnings":[]}`
	rejected := seedReport(t, svc, "rejected.pdf", false)
	rejected.HasErrors = true
	rejected.RawExtraction = &raw
	rejected.ErrorDetails = &details
	require.NoError(t, svc.Reports.Update(context.Background(), rejected))

	waiting := seedReport(t, svc, "waiting.pdf", false)

	var (
		mu   sync.Mutex
		jobs []async.Job
	)
	queue := async.NewQueue(func(_ context.Context, job async.Job) error {
		mu.Lock()
		jobs = append(jobs, job)
		mu.Unlock()
		return nil
	}, nil)

	w := newWorker(svc, svc.Logger)
	w.park(waiting.ID)
	require.NoError(t, w.tick(context.Background(), queue, 1))
	queue.Shutdown(context.Background())

	require.Len(t, jobs, 1)
	assert.Equal(t, failed.ID, jobs[0].ReportID)
}

func TestHandleRetryReleasesClaim(t *testing.T) {
	svc := newTestServices(t)
	rep := seedReport(t, svc, "gone.pdf", false)
	w := newWorker(svc, svc.Logger)

	require.True(t, w.claim(rep.ID))
	assert.False(t, w.claim(rep.ID))

	err := w.handle(context.Background(), async.Job{ReportID: rep.ID, Path: rep.FilePath})
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.True(t, w.claim(rep.ID))
}

func TestHandleInboxRejectsUnsupportedFile(t *testing.T) {
	svc := newTestServices(t)
	w := newWorker(svc, svc.Logger)
	err := w.handle(context.Background(), async.Job{Path: filepath.Join(t.TempDir(), "missing.pdf")})
	assert.Error(t, err)
}
