package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the operator-tuning constants for the agent runtime: model
// selection, gateway endpoints and timeouts, file locations, and the Core
// Agent / Memory Agent budget constants. Defaults are compiled in; an
// optional settings.yaml overrides them; environment variables override
// both (highest precedence), matching the layering godotenv already
// establishes for secrets.
type Settings struct {
	ModelProvider string  `yaml:"model_provider"`
	LLMModel      string  `yaml:"llm_model"`
	LLMTemperature float64 `yaml:"llm_temperature"`

	GatewayURL            string        `yaml:"gateway_url"`
	GatewaySearchTimeout  time.Duration `yaml:"gateway_search_timeout"`
	GatewayExecuteTimeout time.Duration `yaml:"gateway_execute_timeout"`

	PromptsDir string `yaml:"prompts_dir"`
	RulesPath  string `yaml:"rules_path"`

	MaxActions       int `yaml:"max_actions"`
	ActionMaxRetries int `yaml:"action_max_retries"`
	MemoryTickSeconds int `yaml:"memory_tick_seconds"`
}

// defaultSettings returns the compiled-in defaults, including the
// MAX_ACTIONS=10 / ACTION_MAX_RETRIES=3 budget constants.
func defaultSettings() Settings {
	return Settings{
		ModelProvider:         "openai",
		LLMModel:              "gpt-4o",
		LLMTemperature:        0.7,
		GatewayURL:            "http://localhost:8080",
		GatewaySearchTimeout:  30 * time.Second,
		GatewayExecuteTimeout: 60 * time.Second,
		PromptsDir:            "",
		RulesPath:             "",
		MaxActions:            10,
		ActionMaxRetries:      3,
		MemoryTickSeconds:     5,
	}
}

// LoadSettings builds Settings from compiled-in defaults, an optional
// settings.yaml at path (silently skipped if absent), and environment
// variable overrides (highest precedence).
func LoadSettings(path string) Settings {
	s := defaultSettings()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &s); err != nil {
				log.Printf("[Config] Failed to parse %s: %v; using defaults/env", path, err)
			} else {
				log.Printf("[Config] Loaded settings from %s", path)
			}
		}
	}

	applyEnvOverrides(&s)
	return s
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		s.ModelProvider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		s.LLMModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.LLMTemperature = f
		}
	}
	if v := os.Getenv("GATEWAY_URL"); v != "" {
		s.GatewayURL = v
	}
	if v := os.Getenv("GATEWAY_SEARCH_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			s.GatewaySearchTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("GATEWAY_EXECUTE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			s.GatewayExecuteTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("PROMPTS_DIR"); v != "" {
		s.PromptsDir = v
	}
	if v := os.Getenv("RULES_PATH"); v != "" {
		s.RulesPath = v
	}
	if v := os.Getenv("MAX_ACTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxActions = n
		}
	}
	if v := os.Getenv("ACTION_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.ActionMaxRetries = n
		}
	}
	if v := os.Getenv("MEMORY_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MemoryTickSeconds = n
		}
	}
}
