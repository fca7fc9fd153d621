package gemini

import (
	"fmt"
	"os"
)

// Config holds Gemini Model Provider configuration.
type Config struct {
	APIKey string // API key for authentication
	Model  string // Model name (default: gemini-2.5-pro)
}

// NewConfigFromEnv creates Config from environment variables.
// Expected env vars: GEMINI_API_KEY, LLM_MODEL.
func NewConfigFromEnv() (*Config, error) {
	config := &Config{
		APIKey: getEnvOrDefault("GEMINI_API_KEY", ""),
		Model:  getEnvOrDefault("LLM_MODEL", "gemini-2.5-pro"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required. Set it in .env or environment")
	}
	if c.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
