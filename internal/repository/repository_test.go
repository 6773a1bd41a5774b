package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository/repotest"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestEnsureProjectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	projects := repository.NewProjectRepository(client, nil)

	p1, err := projects.EnsureProject(ctx, "site", []string{"1", "3"})
	require.NoError(t, err)
	p2, err := projects.EnsureProject(ctx, "site", []string{"1", "3", "5"})
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	apts, err := projects.ListApartments(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, apts, 3)
}

func TestReportCRUD(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	project := repotest.NewProject(t, client)
	reports := repository.NewReportRepository(client, nil)

	inspector := "dana"
	rep := &entity.Report{
		ProjectID:   project.ID,
		FileName:    "report 12.3.24.pdf",
		FilePath:    "/tmp/report.pdf",
		ContentHash: "abc",
		ReportDate:  date("2024-03-12"),
		Inspector:   &inspector,
	}
	require.NoError(t, reports.Create(ctx, rep))
	assert.NotEqual(t, uuid.Nil, rep.ID)

	got, err := reports.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, "report 12.3.24.pdf", got.FileName)
	assert.Equal(t, "2024-03-12", got.ReportDate.Format("2006-01-02"))
	require.NotNil(t, got.Inspector)
	assert.Equal(t, "dana", *got.Inspector)
	assert.Nil(t, got.ErrorDetails)
	assert.False(t, got.Processed)

	details := `{"error":"boom"}`
	got.HasErrors = true
	got.ErrorDetails = &details
	require.NoError(t, reports.Update(ctx, got))

	byHash, err := reports.FindByHash(ctx, project.ID, "abc")
	require.NoError(t, err)
	assert.True(t, byHash.HasErrors)
	assert.Equal(t, details, *byHash.ErrorDetails)

	_, err = reports.FindByHash(ctx, project.ID, "missing")
	assert.True(t, common.IsNotFound(err))

	_, err = reports.Get(ctx, uuid.New())
	assert.True(t, common.IsNotFound(err))
}

func TestReportListOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	project := repotest.NewProject(t, client)
	reports := repository.NewReportRepository(client, nil)

	mk := func(name, d string, processed, failed bool) {
		require.NoError(t, reports.Create(ctx, &entity.Report{
			ProjectID: project.ID, FileName: name, FilePath: name,
			ReportDate: date(d), Processed: processed, HasErrors: failed,
		}))
	}
	mk("c", "2024-03-01", true, false)
	mk("a", "2024-01-01", true, false)
	mk("b", "2024-02-01", false, true)
	mk("d", "2024-04-01", false, false)

	all, err := reports.List(ctx, repository.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{all[0].FileName, all[1].FileName, all[2].FileName, all[3].FileName})

	finalized, err := reports.List(ctx, repository.ReportFilter{Finalized: true})
	require.NoError(t, err)
	assert.Len(t, finalized, 3)

	failed, err := reports.List(ctx, repository.ReportFilter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].FileName)

	unprocessed, err := reports.List(ctx, repository.ReportFilter{Unprocessed: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "b", unprocessed[0].FileName)

	accepted, err := reports.List(ctx, repository.ReportFilter{Accepted: true})
	require.NoError(t, err)
	assert.Len(t, accepted, 2)

	newest, err := reports.List(ctx, repository.ReportFilter{NewestFirst: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "d", newest[0].FileName)
}

func TestReportListRetryableSkipsRejected(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	project := repotest.NewProject(t, client)
	reports := repository.NewReportRepository(client, nil)

	raw := `{"reportDate":"2024-05-01","apartments":[]}`
	for _, r := range []*entity.Report{
		{FileName: "failed", ReportDate: date("2024-01-01"), HasErrors: true},
		{FileName: "rejected", ReportDate: date("2024-02-01"), HasErrors: true, RawExtraction: &raw},
		{FileName: "accepted", ReportDate: date("2024-03-01"), Processed: true, RawExtraction: &raw},
		{FileName: "new", ReportDate: date("2024-04-01")},
	} {
		r.ProjectID = project.ID
		r.FilePath = r.FileName
		require.NoError(t, reports.Create(ctx, r))
	}

	got, err := reports.List(ctx, repository.ReportFilter{ProjectID: project.ID, Retryable: true})
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.FileName)
	}
	assert.Equal(t, []string{"failed", "new"}, names)
}

func TestWorkItemsAndInspections(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	project := repotest.NewProject(t, client)
	reports := repository.NewReportRepository(client, nil)
	items := repository.NewWorkItemRepository(client, nil)
	inspections := repository.NewInspectionRepository(client, nil)
	apts, err := repository.NewProjectRepository(client, nil).ListApartments(ctx, project.ID)
	require.NoError(t, err)

	rep := &entity.Report{ProjectID: project.ID, FileName: "r", FilePath: "r", ReportDate: date("2024-05-05")}
	require.NoError(t, reports.Create(ctx, rep))

	var batch []*entity.WorkItem
	for i := 0; i < 120; i++ {
		it := &entity.WorkItem{ReportID: rep.ID, Category: "ELECTRICAL", Description: "socket", Status: "COMPLETED"}
		if i%2 == 0 {
			it.ApartmentID = &apts[0].ID
		}
		batch = append(batch, it)
	}
	require.NoError(t, items.CreateBulk(ctx, batch))

	n, err := items.CountByReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, n)

	listed, err := items.ListByReport(ctx, rep.ID)
	require.NoError(t, err)
	siteLevel := 0
	for _, it := range listed {
		if it.ApartmentID == nil {
			siteLevel++
		}
	}
	assert.Equal(t, 60, siteLevel)

	in := &entity.Inspection{ReportID: rep.ID, ApartmentID: apts[0].ID, Category: "AC", InspectionDate: date("2024-05-01")}
	updated, err := inspections.Upsert(ctx, in)
	require.NoError(t, err)
	assert.False(t, updated)

	status := "IN_PROGRESS"
	again := &entity.Inspection{ReportID: rep.ID, ApartmentID: apts[0].ID, Category: "AC", InspectionDate: date("2024-05-03"), Status: &status}
	updated, err = inspections.Upsert(ctx, again)
	require.NoError(t, err)
	assert.True(t, updated)

	rows, err := inspections.ListByReport(ctx, rep.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-05-03", rows[0].InspectionDate.Format("2006-01-02"))
	assert.Equal(t, "IN_PROGRESS", *rows[0].Status)

	deleted, err := items.DeleteByReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 120, deleted)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	client := repotest.New(t)
	project := repotest.NewProject(t, client)
	reports := repository.NewReportRepository(client, nil)

	err := client.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, reports.Create(ctx, &entity.Report{
			ProjectID: project.ID, FileName: "x", FilePath: "x", ReportDate: date("2024-01-01"),
		}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	all, err := reports.List(ctx, repository.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHealthCheck(t *testing.T) {
	client := repotest.New(t)
	require.NoError(t, client.HealthCheck(context.Background(), time.Second))
}
