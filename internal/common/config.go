package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sheet backends.
const (
	BackendGoogle = "google"
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Telegram TelegramConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Sheet    SheetConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Log      LogConfig
}

// TelegramConfig holds chat transport configuration
type TelegramConfig struct {
	Token           string
	DownloadTimeout time.Duration
}

// OCRConfig holds OCR.space configuration
type OCRConfig struct {
	APIKey        string
	URL           string
	Language      string
	Engine        string
	Timeout       time.Duration
	Enhance       bool
	MaxImageBytes int
	RatePerMinute int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	Workers     int
}

// SheetConfig selects and configures the row store
type SheetConfig struct {
	Backend        string
	SpreadsheetID  string
	ServiceAccount string
	SheetName      string
	XLSXPath       string
	SQLitePath     string
	Layout         string
	LayoutFile     string
	Timeout        time.Duration
}

// PipelineConfig holds per-order processing configuration
type PipelineConfig struct {
	TempDir        string
	ProcessTimeout time.Duration
	Workers        int
	QueueSize      int
	SuccessReply   string
	FailureReply   string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HealthAddr string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return ConfigError(fmt.Sprintf("load %s", f), err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Token:           getEnv("TELEGRAM_TOKEN", ""),
			DownloadTimeout: getEnvAsDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		},
		OCR: OCRConfig{
			APIKey:        getEnv("OCR_API_KEY", ""),
			URL:           getEnv("OCR_URL", "https://api.ocr.space/parse/image"),
			Language:      getEnv("OCR_LANGUAGE", "eng"),
			Engine:        getEnv("OCR_ENGINE", ""),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			Enhance:       getEnvAsBool("OCR_ENHANCE", false),
			MaxImageBytes: getEnvAsInt("OCR_MAX_IMAGE_BYTES", 1024*1024),
			RatePerMinute: getEnvAsInt("OCR_RATE_PER_MINUTE", 0),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			Workers:     getEnvAsInt("LLM_WORKERS", 2),
		},
		Sheet: SheetConfig{
			Backend:        strings.ToLower(getEnv("SHEET_BACKEND", BackendGoogle)),
			SpreadsheetID:  getEnv("GOOGLE_SHEETS_KEY", ""),
			ServiceAccount: getEnv("GSERVICE_JSON", ""),
			SheetName:      getEnv("SHEET_NAME", "Sheet1"),
			XLSXPath:       getEnv("SHEET_XLSX_PATH", "./orders.xlsx"),
			SQLitePath:     getEnv("SHEET_SQLITE_PATH", "./orders.db"),
			Layout:         getEnv("SHEET_LAYOUT", "full"),
			LayoutFile:     getEnv("SHEET_LAYOUT_FILE", ""),
			Timeout:        getEnvAsDuration("SHEET_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			TempDir:        getEnv("TEMP_DIR", os.TempDir()),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
			Workers:        getEnvAsInt("WORKERS", 1),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 32),
			SuccessReply:   getEnv("SUCCESS_REPLY", "Заказ распознан и добавлен в таблицу."),
			FailureReply:   getEnv("FAILURE_REPLY", ""),
		},
		Server: ServerConfig{
			HealthAddr: getEnv("HEALTH_ADDR", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return missing("TELEGRAM_TOKEN")
	}
	if c.OCR.APIKey == "" {
		return missing("OCR_API_KEY")
	}
	if c.LLM.APIKey == "" {
		return missing("OPENAI_API_KEY")
	}
	switch c.Sheet.Backend {
	case BackendGoogle:
		if c.Sheet.SpreadsheetID == "" {
			return missing("GOOGLE_SHEETS_KEY")
		}
		if c.Sheet.ServiceAccount == "" {
			return missing("GSERVICE_JSON")
		}
		if c.Sheet.SheetName == "" {
			return missing("SHEET_NAME")
		}
	case BackendXLSX:
		if c.Sheet.XLSXPath == "" {
			return missing("SHEET_XLSX_PATH")
		}
	case BackendSQLite:
		if c.Sheet.SQLitePath == "" {
			return missing("SHEET_SQLITE_PATH")
		}
	default:
		return ConfigError(fmt.Sprintf("unknown SHEET_BACKEND %q", c.Sheet.Backend), nil)
	}
	if c.Sheet.Layout == "" {
		return missing("SHEET_LAYOUT")
	}
	if c.Pipeline.TempDir == "" {
		return missing("TEMP_DIR")
	}
	v := NewValidator().
		Field("WORKERS", c.Pipeline.Workers, Positive).
		Field("LLM_WORKERS", c.LLM.Workers, Positive).
		Field("QUEUE_SIZE", c.Pipeline.QueueSize, NonNegative).
		Field("OCR_RATE_PER_MINUTE", c.OCR.RatePerMinute, NonNegative).
		Field("LOG_LEVEL", c.Log.Level, OneOf("debug", "info", "warn", "error")).
		Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json"))
	if v.HasErrors() {
		return ConfigError(v.ErrorMessage(), nil)
	}
	return nil
}

func missing(key string) error {
	return ConfigError(key+" is required", nil)
}
