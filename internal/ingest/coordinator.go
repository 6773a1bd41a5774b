package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/extraction"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
	"github.com/joseph-ayodele/inspection-tracker/internal/snapshot"
	"github.com/joseph-ayodele/inspection-tracker/internal/utils"
	"github.com/joseph-ayodele/inspection-tracker/internal/validation"
)

// DocumentExtractor turns a document into a decoded payload.
type DocumentExtractor interface {
	Extract(ctx context.Context, document []byte, mimeType string) (*extraction.Result, error)
}

// UnitDetector looks at the raw document for per-apartment sections.
type UnitDetector interface {
	HasUnitData(ctx context.Context, document []byte, mimeType string) bool
}

// Snapshotter takes the rollback point before every ingestion and rolls
// back to it on request.
type Snapshotter interface {
	Create(ctx context.Context, reason string) (*entity.Snapshot, error)
	CleanupOld(ctx context.Context, keep int) (int, error)
	Restore(ctx context.Context, id uuid.UUID) (snapshot.RestoreResult, error)
}

// Request is one ingestion attempt.
type Request struct {
	Document         []byte
	FileName         string
	MimeType         string // derived from FileName when empty
	ProjectID        uuid.UUID
	StorageRef       string
	ContentHash      string
	PageCount        int
	Force            bool
	ExistingReportID uuid.UUID // set on retry and reprocess
}

// Result is the outcome of an ingestion attempt. Success is false for
// extraction failures and for attempts waiting on confirmation.
type Result struct {
	Success              bool
	ReportID             uuid.UUID
	HasErrors            bool
	ErrorDetail          string
	RequiresConfirmation bool
	Warnings             []string
	WorkItemsCreated     int
	InspectionsWritten   int
	Confidence           validation.Confidence
	SnapshotID           uuid.UUID
	Chunked              bool
	Provider             string
	Duplicate            bool
}

type CoordinatorConfig struct {
	SnapshotKeep int
}

// Coordinator runs the ingestion state machine. Ingestions never interleave.
type Coordinator struct {
	mu sync.Mutex

	client      *repository.Client
	reports     repository.ReportRepository
	workItems   repository.WorkItemRepository
	inspections repository.InspectionRepository
	projects    repository.ProjectRepository

	extractor DocumentExtractor
	detector  UnitDetector
	snapshots Snapshotter

	cfg    CoordinatorConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(
	client *repository.Client,
	extractor DocumentExtractor,
	detector UnitDetector,
	snapshots Snapshotter,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SnapshotKeep <= 0 {
		cfg.SnapshotKeep = 20
	}
	return &Coordinator{
		client:      client,
		reports:     repository.NewReportRepository(client, logger),
		workItems:   repository.NewWorkItemRepository(client, logger),
		inspections: repository.NewInspectionRepository(client, logger),
		projects:    repository.NewProjectRepository(client, logger),
		extractor:   extractor,
		detector:    detector,
		snapshots:   snapshots,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RestoreSnapshot rolls the data back to a snapshot. It waits for any
// ingestion in flight and blocks new ones until the restore commits.
func (c *Coordinator) RestoreSnapshot(ctx context.Context, id uuid.UUID) (snapshot.RestoreResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshots.Restore(ctx, id)
}

// Process ingests one document. The returned error is reserved for
// infrastructure failures and cancellation; extraction and validation
// problems are reported through the Result.
func (c *Coordinator) Process(ctx context.Context, req Request) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if common.RunIDFromContext(ctx) == "" {
		ctx, _ = common.NewRunID(ctx)
	}
	log := c.logger.With("run_id", common.RunIDFromContext(ctx), "file_name", req.FileName)
	state := func(s constants.IngestState, args ...any) {
		log.Info("ingest.state", append([]any{"state", s}, args...)...)
	}
	state(constants.StateReceived, "existing_report_id", req.ExistingReportID, "force", req.Force)

	existing, err := c.loadExisting(ctx, &req)
	if err != nil {
		return nil, err
	}
	if req.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("process %q: project id is required: %w", req.FileName, common.ErrInvalidInput)
	}
	if req.MimeType == "" {
		req.MimeType = constants.MimeForExt(filepath.Ext(req.FileName))
	}
	if req.MimeType == "" {
		req.MimeType = constants.MimePDF
	}

	snap, err := c.snapshots.Create(ctx, "pre-process: "+req.FileName)
	if err != nil {
		log.Error("ingest.snapshot.failed", "error", err)
		return nil, fmt.Errorf("snapshot before %q: %w", req.FileName, err)
	}
	if n, err := c.snapshots.CleanupOld(ctx, c.cfg.SnapshotKeep); err != nil {
		log.Warn("ingest.snapshot.cleanup_failed", "error", err)
	} else if n > 0 {
		log.Debug("ingest.snapshot.cleanup", "deleted", n)
	}
	out := &Result{SnapshotID: snap.ID, ReportID: req.ExistingReportID}

	state(constants.StateExtracting)
	hasUnitData := true
	if c.detector != nil {
		hasUnitData = c.detector.HasUnitData(ctx, req.Document, req.MimeType)
	}
	res, xerr := c.extractor.Extract(ctx, req.Document, req.MimeType)
	if xerr != nil && ctx.Err() != nil {
		log.Warn("ingest.cancelled", "error", xerr)
		return nil, ctx.Err()
	}

	// From here on every write completes even if the caller goes away.
	wctx := context.WithoutCancel(ctx)
	fileDate, hasFileDate := utils.DateFromFilename(req.FileName)

	if xerr != nil {
		state(constants.StateExtractionFailed, "blocking", extraction.IsBlocking(xerr), "error", xerr)
		date := c.now()
		if hasFileDate {
			date = fileDate
		}
		details := mustJSON(map[string]string{"error": xerr.Error()})
		rep := c.reportRow(existing, req)
		rep.ReportDate = date
		rep.RawExtraction = nil
		rep.Processed = false
		rep.HasErrors = true
		rep.ErrorDetails = &details
		rep.HasWarnings = false
		rep.WarningDetails = nil
		if err := c.saveReport(wctx, rep, existing != nil); err != nil {
			return nil, err
		}
		out.ReportID = rep.ID
		out.HasErrors = true
		out.ErrorDetail = xerr.Error()
		out.Confidence = validation.ConfidenceInvalid
		return out, nil
	}

	out.Provider = res.Provider
	out.Chunked = res.Chunked
	payload := res.Payload
	if payload == nil {
		payload = &llm.ReportPayload{}
	}
	if d, ok := validation.ResolveReportDate(payload.ReportDate, req.FileName); ok {
		payload.ReportDate = utils.FormatYMD(d)
	}
	state(constants.StateExtracted, "provider", res.Provider, "chunked", res.Chunked, "items", payload.ItemCount())

	state(constants.StateValidating)
	input, apartments, err := c.validationInput(wctx, req, payload, hasUnitData)
	if err != nil {
		return nil, err
	}
	report := validation.ValidateContent(input)
	out.Confidence = report.Confidence
	out.Warnings = report.Warnings

	rep := c.reportRow(existing, req)
	rep.ReportDate = report.ReportDate
	if rep.ReportDate.IsZero() {
		rep.ReportDate = c.now()
		if hasFileDate {
			rep.ReportDate = fileDate
		}
	}
	rep.Inspector = optional(payload.Inspector)
	raw := mustJSON(payload)
	rep.RawExtraction = &raw

	if !report.Valid {
		state(constants.StateRejected, "errors", len(report.Errors), "warnings", len(report.Warnings))
		details := mustJSON(map[string][]string{"errors": orEmpty(report.Errors), "warnings": orEmpty(report.Warnings)})
		rep.Processed = false
		rep.HasErrors = true
		rep.ErrorDetails = &details
		setWarnings(rep, report.Warnings)
		if err := c.saveReport(wctx, rep, existing != nil); err != nil {
			return nil, err
		}
		out.Success = true
		out.ReportID = rep.ID
		out.HasErrors = true
		out.ErrorDetail = strings.Join(report.Errors, "\n")
		return out, nil
	}

	if len(report.Warnings) > 0 && !req.Force {
		state(constants.StateNeedsConfirmation, "warnings", len(report.Warnings), "confidence", report.Confidence)
		out.RequiresConfirmation = true
		return out, nil
	}

	rep.Processed = true
	rep.HasErrors = false
	rep.ErrorDetails = nil
	setWarnings(rep, report.Warnings)

	err = c.client.WithTx(wctx, func(ctx context.Context) error {
		if err := c.saveReport(ctx, rep, existing != nil); err != nil {
			return err
		}
		if _, err := c.workItems.DeleteByReport(ctx, rep.ID); err != nil {
			return err
		}
		if _, err := c.inspections.DeleteByReport(ctx, rep.ID); err != nil {
			return err
		}
		items := buildWorkItems(rep.ID, payload, apartments, log)
		if err := c.workItems.CreateBulk(ctx, items); err != nil {
			return err
		}
		out.WorkItemsCreated = len(items)
		for _, in := range buildInspections(rep.ID, payload, apartments) {
			if _, err := c.inspections.Upsert(ctx, in); err != nil {
				return err
			}
			out.InspectionsWritten++
		}
		return nil
	})
	if err != nil {
		log.Error("ingest.persist.failed", "report_id", rep.ID, "error", err)
		return nil, fmt.Errorf("persist %q: %w", req.FileName, err)
	}

	state(constants.StateAccepted,
		"report_id", rep.ID,
		"work_items", out.WorkItemsCreated,
		"inspections", out.InspectionsWritten,
		"warnings", len(report.Warnings),
	)
	out.Success = true
	out.ReportID = rep.ID
	return out, nil
}

func (c *Coordinator) loadExisting(ctx context.Context, req *Request) (*entity.Report, error) {
	if req.ExistingReportID == uuid.Nil {
		return nil, nil
	}
	rep, err := c.reports.Get(ctx, req.ExistingReportID)
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", req.ExistingReportID, err)
	}
	if req.ProjectID == uuid.Nil {
		req.ProjectID = rep.ProjectID
	}
	if req.FileName == "" {
		req.FileName = rep.FileName
	}
	return rep, nil
}

// reportRow starts from the stored row on retry so fields the request does
// not carry survive.
func (c *Coordinator) reportRow(existing *entity.Report, req Request) *entity.Report {
	var rep entity.Report
	if existing != nil {
		rep = *existing
	} else {
		rep.ProjectID = req.ProjectID
		rep.FileName = req.FileName
	}
	if req.StorageRef != "" {
		rep.FilePath = req.StorageRef
	}
	if req.ContentHash != "" {
		rep.ContentHash = req.ContentHash
	}
	if req.PageCount > 0 {
		rep.PageCount = req.PageCount
	}
	return &rep
}

func (c *Coordinator) saveReport(ctx context.Context, rep *entity.Report, exists bool) error {
	if exists {
		return c.reports.Update(ctx, rep)
	}
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	return c.reports.Create(ctx, rep)
}

func (c *Coordinator) validationInput(ctx context.Context, req Request, payload *llm.ReportPayload, hasUnitData bool) (validation.Input, map[string]uuid.UUID, error) {
	in := validation.Input{
		Payload:     payload,
		FileName:    req.FileName,
		HasUnitData: hasUnitData,
		Now:         c.now(),
	}

	apts, err := c.projects.ListApartments(ctx, req.ProjectID)
	if err != nil {
		return in, nil, err
	}
	byNumber := make(map[string]uuid.UUID, len(apts))
	for _, a := range apts {
		byNumber[a.Number] = a.ID
		in.KnownApartments = append(in.KnownApartments, a.Number)
	}

	all, err := c.reports.List(ctx, repository.ReportFilter{ProjectID: req.ProjectID})
	if err != nil {
		return in, nil, err
	}
	for _, r := range all {
		if r.ID != req.ExistingReportID {
			in.ExistingDates = append(in.ExistingDates, r.ReportDate)
		}
	}

	recent, err := c.reports.List(ctx, repository.ReportFilter{
		ProjectID:   req.ProjectID,
		Accepted:    true,
		NewestFirst: true,
		Limit:       6,
	})
	if err != nil {
		return in, nil, err
	}
	for _, r := range recent {
		if r.ID == req.ExistingReportID {
			continue
		}
		n, err := c.workItems.CountByReport(ctx, r.ID)
		if err != nil {
			return in, nil, err
		}
		in.RecentItemCounts = append(in.RecentItemCounts, n)
	}
	return in, byNumber, nil
}

func buildWorkItems(reportID uuid.UUID, p *llm.ReportPayload, apartments map[string]uuid.UUID, log *slog.Logger) []*entity.WorkItem {
	out := make([]*entity.WorkItem, 0, p.ItemCount())
	add := func(aptID *uuid.UUID, it llm.WorkItem) {
		cat, _ := constants.NormalizeCategory(it.Category, it.Description)
		st, _ := constants.NormalizeStatus(it.Status, it.Notes)
		out = append(out, &entity.WorkItem{
			ReportID:    reportID,
			ApartmentID: aptID,
			Category:    string(cat),
			Location:    strings.TrimSpace(it.Location),
			Description: strings.TrimSpace(it.Description),
			Status:      string(st),
			Notes:       strings.TrimSpace(it.Notes),
			HasPhoto:    it.HasPhoto,
		})
	}
	for _, apt := range p.Apartments {
		id, ok := apartments[strings.TrimSpace(apt.ApartmentNumber)]
		if !ok {
			if len(apt.WorkItems) > 0 {
				log.Warn("ingest.apartment.unknown", "apartment", apt.ApartmentNumber, "skipped_items", len(apt.WorkItems))
			}
			continue
		}
		for _, it := range apt.WorkItems {
			add(&id, it)
		}
	}
	for _, it := range p.DevelopmentItems {
		add(nil, it)
	}
	return out
}

// buildInspections merges inspection dates and progress tracking rows. Later
// rows for the same apartment and category win, as the upsert would.
func buildInspections(reportID uuid.UUID, p *llm.ReportPayload, apartments map[string]uuid.UUID) []*entity.Inspection {
	type key struct {
		apt uuid.UUID
		cat string
	}
	idx := map[key]int{}
	var out []*entity.Inspection
	put := func(in *entity.Inspection) {
		k := key{in.ApartmentID, in.Category}
		if i, ok := idx[k]; ok {
			out[i] = in
			return
		}
		idx[k] = len(out)
		out = append(out, in)
	}

	for _, apt := range p.Apartments {
		id, ok := apartments[strings.TrimSpace(apt.ApartmentNumber)]
		if !ok {
			continue
		}
		for _, label := range sortedLabels(apt.InspectionDates) {
			d, ok := utils.ParseDate(apt.InspectionDates[label])
			if !ok {
				continue
			}
			cat, _ := constants.NormalizeCategory(label, "")
			put(&entity.Inspection{ReportID: reportID, ApartmentID: id, Category: string(cat), InspectionDate: d})
		}
	}
	for _, t := range p.ProgressTracking {
		id, ok := apartments[strings.TrimSpace(t.ApartmentNumber)]
		if !ok {
			continue
		}
		d, ok := utils.ParseDate(t.InspectionDate)
		if !ok {
			continue
		}
		cat, _ := constants.NormalizeCategory(t.Category, "")
		in := &entity.Inspection{ReportID: reportID, ApartmentID: id, Category: string(cat), InspectionDate: d}
		if strings.TrimSpace(t.Status) != "" {
			st, _ := constants.NormalizeStatus(t.Status, "")
			s := string(st)
			in.Status = &s
		}
		put(in)
	}
	return out
}

func sortedLabels(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// setWarnings overwrites the warning columns so a reprocess never keeps
// warnings from an earlier run.
func setWarnings(rep *entity.Report, warnings []string) {
	rep.HasWarnings = len(warnings) > 0
	rep.WarningDetails = nil
	if rep.HasWarnings {
		w := mustJSON(warnings)
		rep.WarningDetails = &w
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", err.Error())
	}
	return string(b)
}

// IsCancelled reports whether err is a context cancellation or deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
