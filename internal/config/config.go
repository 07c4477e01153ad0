package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all AI Notes environment variables.
const EnvPrefix = "AI_NOTES_"

// Config holds all application configuration. Secrets (API keys, database
// credentials) are loaded exclusively from environment variables and never
// appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	StorageBackend        string `yaml:"storage_backend"` // sqlite or postgres
	DBPath                string `yaml:"db_path"`
	Model                 string `yaml:"model"` // provider/model_name
	SectionWords          int    `yaml:"section_words"`
	ReadTimeout           string `yaml:"read_timeout"`
	SessionTimeout        string `yaml:"session_timeout"`
	LLMTimeout            string `yaml:"llm_timeout"`
	LogLevel              string `yaml:"log_level"`
	LogFormat             string `yaml:"log_format"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets - env vars only, never serialized to YAML.
	DeepgramAPIKey     string `yaml:"-"`
	OpenAIAPIKey       string `yaml:"-"`
	AnthropicAPIKey    string `yaml:"-"`
	GeminiAPIKey       string `yaml:"-"`
	DatabaseURL        string `yaml:"-"`
	SupabaseURL        string `yaml:"-"`
	SupabaseServiceKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8000",
		StorageBackend:        "sqlite",
		DBPath:                "data/ai-notes.db",
		Model:                 "openai/gpt-4o-mini",
		SectionWords:          500,
		ReadTimeout:           "5s",
		SessionTimeout:        "2h",
		LLMTimeout:            "120s",
		LogLevel:              "info",
		LogFormat:             "json",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedReadTimeout returns ReadTimeout as a time.Duration,
// falling back to 5s if the value is invalid.
func (c *Config) ParsedReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, 5*time.Second)
}

// ParsedSessionTimeout returns SessionTimeout as a time.Duration,
// falling back to 2h if the value is invalid.
func (c *Config) ParsedSessionTimeout() time.Duration {
	return parseDurationOr(c.SessionTimeout, 2*time.Hour)
}

// ParsedLLMTimeout returns LLMTimeout as a time.Duration,
// falling back to 120s if the value is invalid.
func (c *Config) ParsedLLMTimeout() time.Duration {
	return parseDurationOr(c.LLMTimeout, 120*time.Second)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvPrefix + "SECTION_WORDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.SectionWords = n
		}
	}
	if v := os.Getenv(EnvPrefix + "READ_TIMEOUT"); v != "" {
		cfg.ReadTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "SESSION_TIMEOUT"); v != "" {
		cfg.SessionTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "LLM_TIMEOUT"); v != "" {
		cfg.LLMTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.DatabaseURL = os.Getenv(EnvPrefix + "DATABASE_URL")
	cfg.SupabaseURL = os.Getenv(EnvPrefix + "SUPABASE_URL")
	cfg.SupabaseServiceKey = os.Getenv(EnvPrefix + "SUPABASE_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured - live transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "No LLM API key configured - summaries are disabled. Set "+EnvPrefix+"OPENAI_API_KEY (or Anthropic/Gemini).")
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		warnings = append(warnings, "Supabase credentials not configured - authentication will reject all connections. Set "+EnvPrefix+"SUPABASE_URL and "+EnvPrefix+"SUPABASE_KEY.")
	}
	switch cfg.StorageBackend {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			warnings = append(warnings, "storage_backend is postgres but "+EnvPrefix+"DATABASE_URL is not set - falling back to sqlite.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown storage_backend %q - using sqlite.", cfg.StorageBackend))
	}
	for _, d := range []struct{ name, raw string }{
		{"read_timeout", cfg.ReadTimeout},
		{"session_timeout", cfg.SessionTimeout},
		{"llm_timeout", cfg.LLMTimeout},
	} {
		if _, err := time.ParseDuration(d.raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q - using default.", d.name, d.raw))
		}
	}

	return warnings
}
