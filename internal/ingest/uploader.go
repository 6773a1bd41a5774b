package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
	"github.com/joseph-ayodele/inspection-tracker/internal/textextract"
)

var (
	magicPDF  = []byte("%PDF-")
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

// Upload is a new document handed in by a user or the inbox watcher.
type Upload struct {
	FileName string
	Document []byte
	Force    bool
}

// Uploader checks, stores and processes new documents.
type Uploader struct {
	coordinator *Coordinator
	store       Store
	reports     repository.ReportRepository
	projectID   uuid.UUID
	logger      *slog.Logger
}

func NewUploader(coordinator *Coordinator, store Store, reports repository.ReportRepository, projectID uuid.UUID, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		coordinator: coordinator,
		store:       store,
		reports:     reports,
		projectID:   projectID,
		logger:      logger,
	}
}

// Upload validates the file, looks for an earlier copy and runs the
// ingestion. A duplicate of an accepted report needs confirmation. Otherwise
// the earlier report is reprocessed instead of adding a second one.
func (u *Uploader) Upload(ctx context.Context, in Upload) (*Result, error) {
	log := u.logger.With("file_name", in.FileName)

	ext := constants.NormalizeExt(filepath.Ext(in.FileName))
	if !AllowedExt(ext) {
		return nil, fmt.Errorf("upload %q: unsupported extension %q: %w", in.FileName, ext, common.ErrInvalidInput)
	}
	mime := constants.MimeForExt(ext)
	if err := checkMagic(mime, in.Document); err != nil {
		return nil, fmt.Errorf("upload %q: %w", in.FileName, err)
	}

	pages := 0
	if mime == constants.MimePDF {
		n, err := textextract.PageCount(in.Document)
		if err != nil {
			log.Warn("upload.pdf.invalid", "error", err)
			return nil, fmt.Errorf("upload %q: unreadable pdf: %w", in.FileName, common.ErrInvalidInput)
		}
		pages = n
	}
	hash := HashHex(in.Document)

	dup, reason, err := u.findDuplicate(ctx, filepath.Base(in.FileName), hash)
	if err != nil {
		return nil, err
	}
	if dup != nil && dup.Processed && !in.Force {
		log.Info("upload.duplicate", "report_id", dup.ID, "reason", reason)
		return &Result{
			ReportID:             dup.ID,
			RequiresConfirmation: true,
			Duplicate:            true,
			Warnings:             []string{reason},
		}, nil
	}

	ref, err := u.store.Save(in.FileName, in.Document)
	if err != nil {
		log.Error("upload.store.failed", "error", err)
		return nil, err
	}

	req := Request{
		Document:    in.Document,
		FileName:    filepath.Base(in.FileName),
		MimeType:    mime,
		ProjectID:   u.projectID,
		StorageRef:  ref,
		ContentHash: hash,
		PageCount:   pages,
		Force:       in.Force,
	}
	if dup != nil {
		req.ExistingReportID = dup.ID
	}
	res, err := u.coordinator.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Duplicate = dup != nil
	return res, nil
}

func (u *Uploader) findDuplicate(ctx context.Context, fileName, hash string) (*entity.Report, string, error) {
	byHash, err := u.reports.FindByHash(ctx, u.projectID, hash)
	switch {
	case err == nil:
		return byHash, fmt.Sprintf("same content as %q", byHash.FileName), nil
	case !common.IsNotFound(err):
		return nil, "", err
	}
	byName, err := u.reports.FindByFileName(ctx, u.projectID, fileName)
	switch {
	case err == nil:
		return byName, fmt.Sprintf("a report named %q already exists", fileName), nil
	case !common.IsNotFound(err):
		return nil, "", err
	}
	return nil, "", nil
}

func checkMagic(mime string, document []byte) error {
	var magic []byte
	switch mime {
	case constants.MimePDF:
		magic = magicPDF
	case constants.MimeJPEG:
		magic = magicJPEG
	case constants.MimePNG:
		magic = magicPNG
	default:
		return fmt.Errorf("unsupported type %q: %w", mime, common.ErrInvalidInput)
	}
	if !bytes.HasPrefix(document, magic) {
		return fmt.Errorf("content is not a valid %s: %w", mime, common.ErrInvalidInput)
	}
	return nil
}
