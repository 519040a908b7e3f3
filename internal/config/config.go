// Package config loads the categoriser configuration from environment
// variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultBankSyncCron   = "0 * * * *"
	DefaultCategoriseCron = "*/30 * * * *"
	DefaultModel          = "gemini-2.5-flash"
	DefaultProvider       = "gemini"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultHistoryDays    = 90
	DefaultCategoriseDays = 30
	DefaultMaxHistoryRows = 200
	DefaultAuditDataset   = "finance"
)

// Config is the full process configuration.
type Config struct {
	Actual     ActualConfig
	LLM        LLMConfig
	Schedule   ScheduleConfig
	Pipeline   PipelineConfig
	Audit      AuditConfig
	Log        LogConfig
	StatusAddr string

	// GoogleCredentialsFile is passed to GCS and BigQuery clients when set.
	GoogleCredentialsFile string
}

// ActualConfig holds the remote store connection parameters.
type ActualConfig struct {
	ServerURL      string
	APIKey         string
	BudgetID       string
	BudgetPassword string
	Timeout        time.Duration
}

// LLMConfig selects and authenticates the model service.
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// ScheduleConfig holds the two cron cadences.
type ScheduleConfig struct {
	BankSyncCron      string
	CategoriseCron    string
	CategoriseOnStart bool
	TimeZone          string
}

// PipelineConfig tunes one categorisation run.
type PipelineConfig struct {
	HistoryDays    int
	CategoriseDays int
	MaxHistoryRows int
	PromptTemplate string
	DebugPrompts   bool
	DryRun         bool
}

// AuditConfig enables the BigQuery decision sink when Project is set.
type AuditConfig struct {
	Project string
	Dataset string
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
// It loads .env from the current directory if present, or the given file.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	historyDays, err := parseIntEnv("HISTORY_DAYS", DefaultHistoryDays)
	if err != nil {
		return nil, err
	}
	categoriseDays, err := parseIntEnv("CATEGORISE_DAYS", DefaultCategoriseDays)
	if err != nil {
		return nil, err
	}
	maxHistoryRows, err := parseIntEnv("MAX_HISTORY_ROWS", DefaultMaxHistoryRows)
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := parseIntEnv("SERVER_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Actual: ActualConfig{
			ServerURL:      strings.TrimRight(os.Getenv("SERVER_URL"), "/"),
			APIKey:         os.Getenv("SERVER_API_KEY"),
			BudgetID:       os.Getenv("BUDGET_UUID"),
			BudgetPassword: os.Getenv("BUDGET_PASSWORD"),
			Timeout:        time.Duration(timeoutSeconds) * time.Second,
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnvOrDefault("LLM_PROVIDER", DefaultProvider)),
			Model:    getEnvOrDefault("LLM_MODEL", DefaultModel),
			APIKey:   os.Getenv("LLM_API_KEY"),
			BaseURL:  strings.TrimRight(getEnvOrDefault("LLM_BASE_URL", DefaultOpenAIBaseURL), "/"),
		},
		Schedule: ScheduleConfig{
			BankSyncCron:      getEnvOrDefault("BANK_SYNC_CRON", DefaultBankSyncCron),
			CategoriseCron:    getEnvOrDefault("CATEGORISE_CRON", DefaultCategoriseCron),
			CategoriseOnStart: parseBoolEnv("CATEGORISE_ON_START", true),
			TimeZone:          getEnvOrDefault("CRON_TIMEZONE", "UTC"),
		},
		Pipeline: PipelineConfig{
			HistoryDays:    historyDays,
			CategoriseDays: categoriseDays,
			MaxHistoryRows: maxHistoryRows,
			PromptTemplate: os.Getenv("PROMPT_TEMPLATE"),
			DebugPrompts:   parseBoolEnv("DEBUG_PROMPTS", false),
			DryRun:         parseBoolEnv("DRY_RUN", false),
		},
		Audit: AuditConfig{
			Project: os.Getenv("AUDIT_BQ_PROJECT"),
			Dataset: getEnvOrDefault("AUDIT_BQ_DATASET", DefaultAuditDataset),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
		StatusAddr:            os.Getenv("STATUS_ADDR"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
	}

	return cfg, nil
}

// Validate checks that every required setting is present and that numeric
// settings are in range. All problems are reported together.
func (c *Config) Validate() error {
	var missing []string
	if c.Actual.ServerURL == "" {
		missing = append(missing, "SERVER_URL")
	}
	if c.Actual.APIKey == "" {
		missing = append(missing, "SERVER_API_KEY")
	}
	if c.Actual.BudgetID == "" {
		missing = append(missing, "BUDGET_UUID")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q: want gemini or openai", c.LLM.Provider)
	}
	if c.Pipeline.HistoryDays < 0 || c.Pipeline.CategoriseDays < 0 {
		return fmt.Errorf("HISTORY_DAYS and CATEGORISE_DAYS must not be negative")
	}
	if c.Pipeline.MaxHistoryRows <= 0 {
		return fmt.Errorf("MAX_HISTORY_ROWS must be positive, got %d", c.Pipeline.MaxHistoryRows)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

// parseBoolEnv treats "true", "1" and "yes" as true; an unset variable yields defaultValue.
func parseBoolEnv(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}
