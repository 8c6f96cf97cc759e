package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	OCR      OCRConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr          string
	MaxUploadMB   int64
	AllowedOrigin string
}

// LLMConfig holds language-model client configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	MaxTokens   int
}

// PipelineConfig holds per-stage bounds for the orchestrator
type PipelineConfig struct {
	NormalizeTimeout time.Duration
	ExtractTimeout   time.Duration
	RenderTimeout    time.Duration
	SafetyMargin     time.Duration
	CodeTarget       string // "go" or "python"
}

// OCRConfig holds the external OCR fallback configuration
type OCRConfig struct {
	TesseractBin string
	TessdataDir  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          getEnv("HTTP_ADDR", ":8000"),
			MaxUploadMB:   int64(getEnvAsInt("MAX_FILE_SIZE_MB", 10)),
			AllowedOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("LLM_MODEL", getEnv("OPENAI_MODEL", "gpt-4o-mini")),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 4096),
		},
		Pipeline: PipelineConfig{
			NormalizeTimeout: getEnvAsDuration("NORMALIZE_TIMEOUT", 20*time.Second),
			ExtractTimeout:   getEnvAsDuration("EXTRACT_TIMEOUT", 90*time.Second),
			RenderTimeout:    getEnvAsDuration("RENDER_TIMEOUT", 10*time.Second),
			SafetyMargin:     getEnvAsDuration("PIPELINE_SAFETY_MARGIN", 10*time.Second),
			CodeTarget:       getEnv("CODEGEN_TARGET", "go"),
		},
		OCR: OCRConfig{
			TesseractBin: getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:  getEnv("TESSDATA_PREFIX", ""),
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

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfigError, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError(CodeConfigError, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if t := c.Pipeline.CodeTarget; t != "go" && t != "python" {
		return NewAppError(CodeConfigError, "CODEGEN_TARGET must be go or python", ErrInvalidInput)
	}
	return nil
}

// RequestTimeout is the overall bound the orchestrator enforces:
// the sum of per-stage timeouts plus a safety margin.
func (p PipelineConfig) RequestTimeout() time.Duration {
	return p.NormalizeTimeout + p.ExtractTimeout + p.RenderTimeout + p.SafetyMargin
}
