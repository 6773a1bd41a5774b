package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Text     TextConfig
	LLM      LLMConfig
	Project  ProjectConfig
	Ingest   IngestConfig
	Log      LogConfig

	// ProgressConfigPath points at the YAML file with category weights and thresholds.
	ProgressConfigPath string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // sqlite | postgres
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr            string
	HealthCheckInterval time.Duration
}

// TextConfig configures plain-text extraction from PDFs.
type TextConfig struct {
	PDFToText string
	TempDir   string
}

// ProviderConfig configures one extraction provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// LLMConfig holds extraction provider configuration
type LLMConfig struct {
	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	Gemini    ProviderConfig

	Timeout             time.Duration
	RequestsPerMinute   float64
	RateLimitRetries    int
	RateLimitMinBackoff time.Duration
}

// ProjectConfig holds the static project reference data.
type ProjectConfig struct {
	Name       string
	Apartments []string
}

// IngestConfig holds ingestion and batch settings.
type IngestConfig struct {
	DocumentsDir  string
	InboxDir      string
	SnapshotKeep  int
	BatchCooldown time.Duration
	CronInterval  time.Duration
	CronBatchSize int
}

type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:inspection-tracker.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:            getEnv("GRPC_ADDR", ":8090"),
			HealthCheckInterval: getEnvAsDuration("HEALTH_CHECK_INTERVAL", 15*time.Second),
		},
		Text: TextConfig{
			PDFToText: getEnv("PDFTOTEXT", "pdftotext"),
			TempDir:   getEnv("TEXT_TEMP_DIR", os.TempDir()),
		},
		LLM: LLMConfig{
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				Model:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20240620"),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
			},
			Gemini: ProviderConfig{
				APIKey:  getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
				Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
				BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			},
			Timeout:             getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			RequestsPerMinute:   getEnvAsFloat64("LLM_REQUESTS_PER_MINUTE", 50),
			RateLimitRetries:    getEnvAsInt("LLM_RATE_LIMIT_RETRIES", 2),
			RateLimitMinBackoff: getEnvAsDuration("LLM_RATE_LIMIT_MIN_BACKOFF", 2*time.Second),
		},
		Project: ProjectConfig{
			Name:       getEnv("PROJECT_NAME", "מוסינזון 5 תל אביב"),
			Apartments: getEnvAsList("PROJECT_APARTMENTS", []string{"1", "3", "5", "6", "7", "10", "11", "14"}),
		},
		Ingest: IngestConfig{
			DocumentsDir:  getEnv("DOCUMENTS_DIR", "./data/reports"),
			InboxDir:      getEnv("INBOX_DIR", "./data/inbox"),
			SnapshotKeep:  getEnvAsInt("SNAPSHOT_KEEP", 20),
			BatchCooldown: getEnvAsDuration("BATCH_COOLDOWN", time.Second),
			CronInterval:  getEnvAsDuration("CRON_INTERVAL", time.Hour),
			CronBatchSize: getEnvAsInt("CRON_BATCH_SIZE", 3),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		ProgressConfigPath: getEnv("PROGRESS_CONFIG", "./progress.yaml"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// HasProvider reports whether at least one extraction provider has a key.
func (c *LLMConfig) HasProvider() bool {
	return c.Anthropic.APIKey != "" || c.OpenAI.APIKey != "" || c.Gemini.APIKey != ""
}

// Validate checks the loaded configuration. Provider keys are only required
// when requireProviders is set (commands that only read data don't need them).
func (c *Config) Validate(requireProviders bool) error {
	v := NewValidator()
	v.Field("DB_DRIVER", c.Database.Driver, Required, OneOf("sqlite", "postgres"))
	v.Field("DB_URL", c.Database.DSN, Required)
	v.Field("PROJECT_NAME", c.Project.Name, Required)
	v.Field("PROJECT_APARTMENTS", len(c.Project.Apartments), Positive)
	v.Field("SNAPSHOT_KEEP", c.Ingest.SnapshotKeep, Positive)
	v.Field("CRON_BATCH_SIZE", c.Ingest.CronBatchSize, Positive)
	v.Field("LLM_RATE_LIMIT_RETRIES", c.LLM.RateLimitRetries, NonNegative)
	if requireProviders && !c.LLM.HasProvider() {
		v.Add(ValidationError{
			Field:   "LLM",
			Message: "at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY is required",
		})
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
