package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/inspection-tracker/internal/app"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
)

var (
	outputFormat   string
	logLevel       string
	progressConfig string
)

var rootCmd = &cobra.Command{
	Use:   "progressctl",
	Short: "Ingest construction inspection reports and track apartment progress",
	Long: `progressctl runs inspection reports through the extraction pipeline and
reports per-apartment, per-category progress over time.

Reports are stored under DOCUMENTS_DIR and tracked in the database named by
DB_DRIVER / DB_URL. At least one of ANTHROPIC_API_KEY, OPENAI_API_KEY or
GEMINI_API_KEY is needed for commands that extract.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", formatYAML, "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level (default: $LOG_LEVEL or info)",
	)
	rootCmd.PersistentFlags().StringVar(
		&progressConfig, "progress-config", "", "progress weights file (default: $PROGRESS_CONFIG)",
	)

	rootCmd.AddCommand(ingestCmd, batchCmd, retryCmd, reprocessCmd)
	rootCmd.AddCommand(progressCmd, exportCmd)
	rootCmd.AddCommand(snapshotsCmd, configCmd, dbCmd)
}

// loadConfig applies the persistent flags on top of the environment.
func loadConfig() *common.Config {
	cfg := common.LoadConfig()
	if progressConfig != "" {
		cfg.ProgressConfigPath = progressConfig
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

// openServices builds the service graph. Logs go to stderr so stdout stays
// parseable.
func openServices(cmd *cobra.Command, requireProviders bool) (*app.Services, error) {
	cfg := loadConfig()
	logger := app.NewLogger(os.Stderr, cfg.Log.Level)
	return app.New(cmd.Context(), cfg, logger, app.Options{RequireProviders: requireProviders})
}

func exitCode(err error) int {
	if app.IsUserError(err) {
		return 2
	}
	return 1
}
