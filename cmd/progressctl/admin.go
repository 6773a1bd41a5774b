package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/inspection-tracker/internal/app"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/progress"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

var (
	initOverwrite bool
	healthTimeout time.Duration
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List and restore state snapshots",
}

type snapshotView struct {
	ID          uuid.UUID `json:"id" yaml:"id"`
	Reason      string    `json:"reason" yaml:"reason"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Reports     int       `json:"reports" yaml:"reports"`
	WorkItems   int       `json:"work_items" yaml:"work_items"`
	Inspections int       `json:"inspections" yaml:"inspections"`
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd, false)
		if err != nil {
			return err
		}
		defer svc.Close()

		snaps, err := svc.Snapshots.List(cmd.Context())
		if err != nil {
			return err
		}
		out := make([]snapshotView, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, snapshotView{
				ID:          s.ID,
				Reason:      s.Reason,
				CreatedAt:   s.CreatedAt,
				Reports:     s.ReportCount,
				WorkItems:   s.WorkItemCount,
				Inspections: s.InspectionCount,
			})
		}
		return writeOut(cmd.OutOrStdout(), outputFormat, out)
	},
}

var snapshotsRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Replace all reports, work items and inspections with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("snapshot id %q: %w", args[0], common.ErrInvalidInput)
		}
		svc, err := openServices(cmd, false)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Coordinator.RestoreSnapshot(cmd.Context(), id)
		if err != nil {
			return err
		}
		return writeOut(cmd.OutOrStdout(), outputFormat, map[string]int{
			"reports_restored":     res.ReportsRestored,
			"work_items_restored":  res.WorkItemsRestored,
			"inspections_restored": res.InspectionsRestored,
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default progress configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := loadConfig().ProgressConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initOverwrite {
			return fmt.Errorf("%s already exists (use --overwrite): %w", path, common.ErrInvalidInput)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := progress.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the environment and the progress configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := cfg.Validate(true); err != nil {
			return err
		}
		pc, err := progress.LoadConfig(cfg.ProgressConfigPath)
		if err != nil {
			return err
		}
		return writeOut(cmd.OutOrStdout(), outputFormat, map[string]any{
			"database":        cfg.Database.Driver,
			"project":         cfg.Project.Name,
			"apartments":      cfg.Project.Apartments,
			"progress_config": cfg.ProgressConfigPath,
			"weights":         pc.Weights,
			"providers":       providerNames(cfg),
		})
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database utilities",
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping the configured database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := app.NewLogger(os.Stderr, cfg.Log.Level)
		client, err := repository.Open(cmd.Context(), repository.Config{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN,
			MaxConns:    1,
			MinConns:    1,
			DialTimeout: healthTimeout,
		}, logger)
		if err != nil {
			return common.DatabaseError("open", err)
		}
		defer client.Close()

		start := time.Now()
		if err := client.HealthCheck(cmd.Context(), healthTimeout); err != nil {
			return common.DatabaseError("ping", err)
		}
		return writeOut(cmd.OutOrStdout(), outputFormat, map[string]any{
			"driver":     client.Dialect(),
			"status":     "ok",
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	},
}

func init() {
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsRestoreCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd)
	configInitCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "replace an existing file")
	dbCmd.AddCommand(dbHealthCmd)
	dbHealthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "ping timeout")
}

func providerNames(cfg *common.Config) []string {
	var out []string
	if cfg.LLM.Anthropic.APIKey != "" {
		out = append(out, "anthropic")
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		out = append(out, "openai")
	}
	if cfg.LLM.Gemini.APIKey != "" {
		out = append(out, "gemini")
	}
	return out
}
