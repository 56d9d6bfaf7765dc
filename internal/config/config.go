package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	LLMProvider        string // "openai" or "gemini"
	OpenAIAPIKey       string
	GeminiAPIKey       string
	DatabaseURL        string
	HTTPPort           string
	LogLevel           string
	JWTSecret          string
	ChatModel          string
	SummaryModel       string
	MaxSummaryTokens   int
	SummaryTemperature float64
}

// Load reads the process environment (and an optional .env file) into a
// Config. The returned value is passed explicitly to every component that
// needs it; nothing reads configuration through a package global.
func Load() *Config {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", "postgres://localhost:5432/journal?sslmode=disable"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		ChatModel:          getEnv("CHAT_MODEL", ""),
		SummaryModel:       getEnv("SUMMARY_MODEL", ""),
		MaxSummaryTokens:   getEnvAsInt("MAX_SUMMARY_TOKENS", 1500),
		SummaryTemperature: getEnvAsFloat("SUMMARY_TEMPERATURE", 0.7),
	}

	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required when LLM_PROVIDER=gemini")
		}
	default:
		log.Fatalf("Unknown LLM_PROVIDER %q (expected \"openai\" or \"gemini\")", cfg.LLMProvider)
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	return cfg
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
