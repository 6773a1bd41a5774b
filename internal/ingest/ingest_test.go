package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm/llmtest"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

func pngDoc(tag string) []byte {
	return append(append([]byte{}, magicPNG...), []byte(tag)...)
}

type services struct {
	*env
	store    *LocalStore
	uploader *Uploader
	retrier  *Retrier
	batch    *Batch
}

func newServices(t *testing.T, providers ...llm.Extractor) *services {
	e := newEnv(t, unitDetector(true), providers...)
	store := NewLocalStore(t.TempDir())
	reports := repository.NewReportRepository(e.client, nil)
	up := NewUploader(e.coord, store, reports, e.project.ID, nil)
	return &services{
		env:      e,
		store:    store,
		uploader: up,
		retrier:  NewRetrier(e.coord, store, reports, 0, nil),
		batch:    NewBatch(up, 0, nil),
	}
}

func TestLocalStore(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "docs"))

	ref, err := s.Save("../escape/report.pdf", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", filepath.Base(ref))
	assert.True(t, filepath.IsAbs(ref))

	got, err := s.Load(ref)
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	got, err = s.Load("report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	_, err = s.Load("missing.pdf")
	assert.ErrorIs(t, err, ErrStorage)
	_, err = s.Save("", nil)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestLocalStoreKeepsSameNamedDocuments(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "docs"))

	first, err := s.Save("a/report.pdf", []byte("first"))
	require.NoError(t, err)
	second, err := s.Save("b/report.pdf", []byte("second"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "report-"+HashHex([]byte("second"))[:8]+".pdf", filepath.Base(second))

	again, err := s.Save("c/report.pdf", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	got, err := s.Load(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	got, err = s.Load(second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestUploadRejectsBadDocuments(t *testing.T) {
	s := newServices(t, llmtest.New("p"))
	tests := []struct {
		name string
		file string
		doc  []byte
	}{
		{"unsupported extension", "notes.txt", []byte("hello")},
		{"pdf without magic", "report.pdf", []byte("not a pdf")},
		{"broken pdf", "report.pdf", []byte("%PDF-1.7 truncated")},
		{"png without magic", "photo.png", []byte("jpeg?")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.uploader.Upload(context.Background(), Upload{FileName: tt.file, Document: tt.doc})
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
	assert.Empty(t, s.reports(t))
}

func TestUploadDuplicates(t *testing.T) {
	p := llmtest.New("p").On(fullMarker, llmtest.Text(goodReport("2024-05-01")))
	s := newServices(t, p)
	ctx := context.Background()

	first, err := s.uploader.Upload(ctx, Upload{FileName: "site.png", Document: pngDoc("a")})
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.False(t, first.Duplicate)

	stored, err := s.store.Load("site.png")
	require.NoError(t, err)
	assert.Equal(t, pngDoc("a"), stored)

	t.Run("same content", func(t *testing.T) {
		res, err := s.uploader.Upload(ctx, Upload{FileName: "copy.png", Document: pngDoc("a")})
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.True(t, res.RequiresConfirmation)
		assert.Equal(t, first.ReportID, res.ReportID)
		assert.Contains(t, res.Warnings[0], "same content")
	})

	t.Run("same name", func(t *testing.T) {
		res, err := s.uploader.Upload(ctx, Upload{FileName: "site.png", Document: pngDoc("b")})
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.True(t, res.RequiresConfirmation)
	})

	t.Run("forced reprocesses in place", func(t *testing.T) {
		res, err := s.uploader.Upload(ctx, Upload{FileName: "site.png", Document: pngDoc("b"), Force: true})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.True(t, res.Duplicate)
		assert.Equal(t, first.ReportID, res.ReportID)
	})

	reps := s.reports(t)
	require.Len(t, reps, 1)
	assert.Equal(t, HashHex(pngDoc("b")), reps[0].ContentHash)
	assert.Len(t, s.items(t), 6)

	current, err := s.store.Load(reps[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, pngDoc("b"), current)
	original, err := s.store.Load("site.png")
	require.NoError(t, err)
	assert.Equal(t, pngDoc("a"), original)
}

func TestRetryAfterFailure(t *testing.T) {
	p := llmtest.New("p").On(fullMarker,
		llmtest.Fail(500, "overloaded"),
		llmtest.Text(goodReport("2024-05-01")),
	)
	s := newServices(t, p)
	ctx := context.Background()

	failed, err := s.uploader.Upload(ctx, Upload{FileName: "site.png", Document: pngDoc("a")})
	require.NoError(t, err)
	require.True(t, failed.HasErrors)
	assert.False(t, failed.Success)

	res, err := s.retrier.Retry(ctx, failed.ReportID, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, failed.ReportID, res.ReportID)

	reps := s.reports(t)
	require.Len(t, reps, 1)
	assert.True(t, reps[0].Processed)
	assert.False(t, reps[0].HasErrors)
	assert.Len(t, s.items(t), 6)
}

func TestRetryMissingDocument(t *testing.T) {
	p := llmtest.New("p").On(fullMarker, llmtest.Text(goodReport("2024-05-01")))
	s := newServices(t, p)
	ctx := context.Background()

	res, err := s.uploader.Upload(ctx, Upload{FileName: "site.png", Document: pngDoc("a")})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(s.store.Root, "site.png")))
	calls := p.CallCount()

	_, err = s.retrier.Retry(ctx, res.ReportID, false)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, calls, p.CallCount())

	_, err = s.retrier.Retry(ctx, uuid.New(), false)
	assert.True(t, common.IsNotFound(err))
}

func TestReprocessAllFailedOnly(t *testing.T) {
	p := llmtest.New("p").On(fullMarker,
		llmtest.Text(goodReport("2024-05-01")),
		llmtest.Fail(500, "down"),
		llmtest.Text(goodReport("2024-05-08")),
	)
	s := newServices(t, p)
	ctx := context.Background()

	_, err := s.uploader.Upload(ctx, Upload{FileName: "a.png", Document: pngDoc("a")})
	require.NoError(t, err)
	_, err = s.uploader.Upload(ctx, Upload{FileName: "b 8.5.24.png", Document: pngDoc("b")})
	require.NoError(t, err)

	sum, err := s.retrier.ReprocessAll(ctx, ReprocessFilter{FailedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scanned)
	assert.Equal(t, 1, sum.Accepted)
	require.Len(t, sum.Outcomes, 1)
	assert.Equal(t, "b 8.5.24.png", sum.Outcomes[0].Source)

	for _, r := range s.reports(t) {
		assert.True(t, r.Processed, r.FileName)
	}
}

func TestBatchDirectory(t *testing.T) {
	p := llmtest.New("p").On(fullMarker,
		llmtest.Text(goodReport("2024-05-01")),
		llmtest.Text(goodReport("2024-05-08")),
	)
	s := newServices(t, p)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngDoc("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), pngDoc("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), pngDoc("h"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	sum, err := s.batch.Directory(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 2, sum.Accepted)
	assert.Equal(t, filepath.Join(dir, "a.png"), sum.Outcomes[0].Source)
	assert.Equal(t, 6, sum.Outcomes[0].WorkItems)

	again, err := s.batch.Directory(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Skipped)
	assert.Len(t, s.reports(t), 2)
}

func TestCooldown(t *testing.T) {
	assert.NoError(t, Cooldown(context.Background(), 0))
	assert.NoError(t, Cooldown(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Cooldown(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		res  *Result
		err  error
		want OutcomeStatus
	}{
		{"error", nil, assert.AnError, OutcomeError},
		{"accepted", &Result{Success: true, WorkItemsCreated: 3}, nil, OutcomeAccepted},
		{"rejected", &Result{Success: true, HasErrors: true}, nil, OutcomeRejected},
		{"extraction failed", &Result{HasErrors: true}, nil, OutcomeFailed},
		{"confirmation", &Result{RequiresConfirmation: true}, nil, OutcomeNeedsConfirmation},
		{"duplicate", &Result{RequiresConfirmation: true, Duplicate: true}, nil, OutcomeSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify("x", tt.res, tt.err).Status)
		})
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.pdf"), []byte("%PDF-"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watch event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(dir, "existing.pdf"), next())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.pdf"), []byte("%PDF-"), 0o644))
	assert.Equal(t, filepath.Join(dir, "new.pdf"), next())

	cancel()
	for range events {
	}
}

func TestWatchRequiresRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
