package common

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/viant/scy/cred/secret"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Queue    QueueConfig
	Storage  StorageConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // sqlite | postgres
	DSN              string
	SecretRef        string // optional scy resource expanded into DSN placeholders
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	HTTPAddr       string
	MaxUploadBytes int64
	EnableGops     bool
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine           string // tesseract | gosseract
	Tesseract        string
	Pdftoppm         string
	HeicConverter    string
	TessdataDir      string
	ArtifactCacheDir string
	Lang             string
	PSM              int
	OEM              int
	Extra            string
	DPI              int
	DenoiseStrength  float64
	PageTimeout      time.Duration
	MaxPages         int
	StripRules       bool
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider       string // openai | ollama
	Model          string
	APIKey         string
	BaseURL        string
	OllamaBaseURL  string
	OllamaModel    string
	Timeout        time.Duration
	MaxRetries     int
	MaxInputChars  int
	ValidateSchema bool
}

// QueueConfig selects between the in-process worker pool and the Redis-backed queue.
type QueueConfig struct {
	RedisURL       string
	Name           string
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// StorageConfig holds where uploads are stored and watched.
type StorageConfig struct {
	UploadDir string
	WatchDir  string
}

// LogConfig controls the slog handler built by NewLogger.
type LogConfig struct {
	Level  string
	Format string // json | text
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is applied first when present; real env wins.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:formscan.db"),
			SecretRef:        getEnv("DB_SECRET_REF", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 25<<20)),
			EnableGops:     getEnvAsBool("GOPS", false),
		},
		OCR: OCRConfig{
			Engine:           strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			Lang:             getEnv("OCR_LANG", "eng"),
			PSM:              getEnvAsInt("OCR_PSM", 6),
			OEM:              getEnvAsInt("OCR_OEM", 3),
			Extra:            getEnv("OCR_EXTRA", ""),
			DPI:              getEnvAsInt("OCR_DPI", 200),
			DenoiseStrength:  float64(getEnvAsFloat32("OCR_DENOISE_H", 15)),
			PageTimeout:      getEnvAsDuration("OCR_PAGE_TIMEOUT", 60*time.Second),
			MaxPages:         getEnvAsInt("OCR_MAX_PAGES", 0),
			StripRules:       getEnvAsBool("OCR_STRIP_RULES", false),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("OLLAMA_MODEL", "llama3"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 3),
			MaxInputChars:  getEnvAsInt("LLM_MAX_INPUT_CHARS", 1500),
			ValidateSchema: getEnvAsBool("LLM_VALIDATE_SCHEMA", true),
		},
		Queue: QueueConfig{
			RedisURL:       getEnv("REDIS_URL", ""),
			Name:           getEnv("QUEUE_NAME", "formscan"),
			Workers:        getEnvAsInt("WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
			WatchDir:  getEnv("WATCH_DIR", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
}

// ResolveDSN expands secret placeholders in the DSN when DB_SECRET_REF is set.
func (c *Config) ResolveDSN(ctx context.Context) (string, error) {
	ref := strings.TrimSpace(c.Database.SecretRef)
	if ref == "" {
		return c.Database.DSN, nil
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return "", NewAppError(CodeConfig, "DB_SECRET_REF set but DB_URL is empty", ErrInvalidInput)
	}
	sec, err := secret.New().Lookup(ctx, secret.Resource(ref))
	if err != nil {
		return "", NewAppError(CodeConfig, "lookup db secret", err)
	}
	return sec.Expand(c.Database.DSN), nil
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrLLMUnavailable)
		}
	case "ollama":
	default:
		return NewAppError(CodeConfig, "LLM_PROVIDER must be openai or ollama", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.PSM < 0 || c.OCR.PSM > 13 {
		return NewAppError(CodeConfig, "OCR_PSM must be within 0..13", ErrInvalidInput)
	}
	if c.OCR.OEM < 0 || c.OCR.OEM > 3 {
		return NewAppError(CodeConfig, "OCR_OEM must be within 0..3", ErrInvalidInput)
	}
	return nil
}
