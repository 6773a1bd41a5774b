package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository/repotest"
)

func TestServiceTimelineUsesFinalizedReports(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	project := repotest.NewProject(t, client)
	reports := repository.NewReportRepository(client, nil)
	items := repository.NewWorkItemRepository(client, nil)

	add := func(day string, processed, hasErrors bool, statuses ...string) *entity.Report {
		d, _ := time.Parse("2006-01-02", day)
		r := &entity.Report{ProjectID: project.ID, FileName: day + ".pdf", FilePath: day, ReportDate: d, Processed: processed, HasErrors: hasErrors}
		require.NoError(t, reports.Create(ctx, r))
		var batch []*entity.WorkItem
		for i, st := range statuses {
			batch = append(batch, &entity.WorkItem{ReportID: r.ID, Category: "ELECTRICAL", Description: string(rune('a' + i)), Status: st})
		}
		require.NoError(t, items.CreateBulk(ctx, batch))
		return r
	}

	first := add("2024-01-01", true, false, "IN_PROGRESS", "IN_PROGRESS")
	add("2024-01-15", false, false, "COMPLETED", "COMPLETED") // still pending, ignored
	failed := add("2024-02-01", false, true)

	svc := NewService(reports, items, mustEngine(t), nil)
	timeline, err := svc.Timeline(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)

	assert.Equal(t, first.ID, timeline[0].ReportID)
	assert.Equal(t, 8, timeline[0].Overall) // 15 * 50 / 100 = 7.5
	assert.Equal(t, failed.ID, timeline[1].ReportID)
	assert.True(t, timeline[1].HasErrors)
	assert.Equal(t, 15, timeline[1].Overall)
	assert.Equal(t, 2, timeline[1].Counts.Resolved)

	other, err := svc.Timeline(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestServiceSetConfig(t *testing.T) {
	client := repotest.New(t)
	svc := NewService(repository.NewReportRepository(client, nil), repository.NewWorkItemRepository(client, nil), mustEngine(t), nil)

	bad := DefaultConfig()
	bad.Weights["AC"] = 50
	assert.Error(t, svc.SetConfig(bad))

	good := DefaultConfig()
	good.DefectPenalty = 60
	require.NoError(t, svc.SetConfig(good))
	assert.Equal(t, 60.0, svc.engine.Load().Config().DefectPenalty)
}
