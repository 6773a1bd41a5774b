package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/progress"
)

var (
	progressJSON bool
	exportOut    string
	exportFrom   string
	exportTo     string
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the reconciled progress timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd, false)
		if err != nil {
			return err
		}
		defer svc.Close()

		series, err := svc.Progress.Timeline(cmd.Context(), svc.Project.ID)
		if err != nil {
			return err
		}
		if progressJSON || outputFormat == formatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(series)
		}
		return printTimeline(cmd, series)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the progress timeline to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDay("from", exportFrom)
		if err != nil {
			return err
		}
		to, err := parseDay("to", exportTo)
		if err != nil {
			return err
		}

		svc, err := openServices(cmd, false)
		if err != nil {
			return err
		}
		defer svc.Close()

		out := exportOut
		if out == "" {
			out = filepath.Join(filepath.Dir(filepath.Clean(svc.Config.Ingest.DocumentsDir)), "progress.xlsx")
		}
		b, err := svc.Export.TimelineXLSX(cmd.Context(), svc.Project.ID, from, to)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(b))
		return nil
	},
}

func init() {
	progressCmd.Flags().BoolVar(&progressJSON, "json", false, "print the timeline as JSON")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output XLSX path (default: progress.xlsx next to DOCUMENTS_DIR)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first report date YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last report date YYYY-MM-DD")
}

func parseDay(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q, use YYYY-MM-DD: %w", name, s, common.ErrInvalidInput)
	}
	return &t, nil
}

func printTimeline(cmd *cobra.Command, series []progress.ReportProgress) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tFILE\tOVERALL\tDELTA\tITEMS\tDEFECTS\tERRORS")
	for _, r := range series {
		errFlag := ""
		if r.HasErrors {
			errFlag = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%+d\t%d\t%d\t%s\n",
			r.Date.Format("2006-01-02"), r.FileName, r.Overall, r.Delta, r.Counts.Total, r.Counts.Defects, errFlag)
	}
	if len(series) > 0 {
		last := series[len(series)-1]
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CATEGORY\tPROGRESS")
		for _, c := range constants.AsStringSlice() {
			if v, ok := last.Categories[c]; ok {
				fmt.Fprintf(w, "%s\t%d%%\n", c, v)
			}
		}
	}
	return w.Flush()
}
