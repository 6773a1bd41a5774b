package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/ingest"
)

var (
	forceIngest     bool
	forceReprocess  bool
	failedOnly      bool
	reprocessLimit  int
	unprocessedOnly bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest one or more report documents",
	Long: `Uploads each document and runs it through extraction and validation.

Documents that already exist (same content or same file name) and documents
with validation warnings are left untouched unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		sum, err := svc.Batch.Files(cmd.Context(), args, forceIngest)
		if err != nil {
			return err
		}
		return finishSummary(cmd, sum)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Ingest every supported document under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		sum, err := svc.Batch.Directory(cmd.Context(), args[0], forceIngest)
		if err != nil {
			return err
		}
		return finishSummary(cmd, sum)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <report-id>",
	Short: "Re-run extraction for a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("report id %q: %w", args[0], common.ErrInvalidInput)
		}
		svc, err := openServices(cmd, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Retrier.Retry(cmd.Context(), id, forceReprocess)
		if err != nil {
			return err
		}
		return writeOut(cmd.OutOrStdout(), outputFormat, newResultView(res))
	},
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-run extraction for all stored reports",
	Long: `Re-runs every stored report in date order, one at a time. With
--failed-only only reports whose last attempt errored are retried; with
--unprocessed also the ones that were never accepted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		sum, err := svc.Retrier.ReprocessAll(cmd.Context(), ingest.ReprocessFilter{
			ProjectID:   svc.Project.ID,
			FailedOnly:  failedOnly,
			Unprocessed: unprocessedOnly,
			Limit:       reprocessLimit,
			Force:       forceReprocess,
		})
		if err != nil {
			return err
		}
		return finishSummary(cmd, sum)
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&forceIngest, "force", false, "ingest duplicates and accept documents with warnings")
	batchCmd.Flags().BoolVar(&forceIngest, "force", false, "ingest duplicates and accept documents with warnings")
	retryCmd.Flags().BoolVar(&forceReprocess, "force", false, "accept the result even with warnings")
	reprocessCmd.Flags().BoolVar(&forceReprocess, "force", false, "accept results even with warnings")
	reprocessCmd.Flags().BoolVar(&failedOnly, "failed-only", false, "only reports whose last attempt errored")
	reprocessCmd.Flags().BoolVar(&unprocessedOnly, "unprocessed", false, "only reports that were never accepted")
	reprocessCmd.Flags().IntVar(&reprocessLimit, "limit", 0, "maximum number of reports (0 = all)")
}

func finishSummary(cmd *cobra.Command, sum ingest.Summary) error {
	if err := writeOut(cmd.OutOrStdout(), outputFormat, sum); err != nil {
		return err
	}
	if sum.Errors > 0 {
		return fmt.Errorf("%d of %d documents could not be processed", sum.Errors, sum.Scanned)
	}
	return nil
}

// resultView is the printable form of an ingestion result.
type resultView struct {
	ReportID             uuid.UUID `json:"report_id" yaml:"report_id"`
	Success              bool      `json:"success" yaml:"success"`
	HasErrors            bool      `json:"has_errors" yaml:"has_errors"`
	Errors               string    `json:"errors,omitempty" yaml:"errors,omitempty"`
	RequiresConfirmation bool      `json:"requires_confirmation" yaml:"requires_confirmation"`
	Warnings             []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	WorkItems            int       `json:"work_items" yaml:"work_items"`
	Inspections          int       `json:"inspections" yaml:"inspections"`
	Confidence           string    `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Provider             string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	Chunked              bool      `json:"chunked" yaml:"chunked"`
	SnapshotID           uuid.UUID `json:"snapshot_id" yaml:"snapshot_id"`
}

func newResultView(res *ingest.Result) resultView {
	return resultView{
		ReportID:             res.ReportID,
		Success:              res.Success,
		HasErrors:            res.HasErrors,
		Errors:               res.ErrorDetail,
		RequiresConfirmation: res.RequiresConfirmation,
		Warnings:             res.Warnings,
		WorkItems:            res.WorkItemsCreated,
		Inspections:          res.InspectionsWritten,
		Confidence:           string(res.Confidence),
		Provider:             res.Provider,
		Chunked:              res.Chunked,
		SnapshotID:           res.SnapshotID,
	}
}
