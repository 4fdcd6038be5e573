// Package config loads kbchat configuration from environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Completion modes select which collaborator produces assistant replies.
const (
	ModeHTTP    = "http"
	ModeStream  = "stream"
	ModeDirect  = "direct"
	ModeBedrock = "bedrock"
)

// Storage backends for the session-scoped key/value store.
const (
	StorageBadger = "badger"
	StorageMemory = "memory"
)

// LLM providers for direct mode.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// Remote API
	APIURL        string        `yaml:"api_url"`
	ClientTimeout time.Duration `yaml:"client_timeout"`

	// Chat behaviour
	CompletionMode string `yaml:"completion_mode"`
	DefaultFolder  string `yaml:"default_folder"`
	HistoryWindow  int    `yaml:"history_window"`

	// Session-scoped storage
	Storage    string `yaml:"storage"`
	SessionDir string `yaml:"session_dir"`

	// Non-interactive credentials
	Email    string `yaml:"email"`
	Password string `yaml:"-"`

	// Direct mode (langchaingo)
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`

	// Bedrock mode
	BedrockModel string `yaml:"bedrock_model"`
	AWSRegion    string `yaml:"aws_region"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		APIURL:         "http://localhost:8000",
		CompletionMode: ModeHTTP,
		DefaultFolder:  "itg",
		HistoryWindow:  20,
		Storage:        StorageBadger,
		SessionDir:     defaultSessionDir(),
		LLMProvider:    ProviderOllama,
		LLMModel:       "llama3.2",
		OllamaHost:     "http://localhost:11434",
		BedrockModel:   "anthropic.claude-3-haiku-20240307-v1:0",
		AWSRegion:      "us-east-1",
		LogFile:        "/tmp/kbchat.log",
		LogLevel:       slog.LevelInfo,
	}
}

// Load reads the optional YAML file, then applies environment overrides.
func Load() (Config, error) {
	cfg := Defaults()

	path := getEnv("KBCHAT_CONFIG", defaultConfigPath())
	if err := loadFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// loadFile merges a YAML file into cfg. A missing file is not an error.
func loadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var file struct {
		Config   `yaml:",inline"`
		LogLevel string `yaml:"log_level"`
	}
	file.Config = *cfg
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	*cfg = file.Config
	if file.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(file.LogLevel)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIURL = getEnv("KBCHAT_API_URL", cfg.APIURL)
	if t := os.Getenv("KBCHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			cfg.ClientTimeout = d
		}
	}

	cfg.CompletionMode = strings.ToLower(getEnv("KBCHAT_COMPLETION_MODE", cfg.CompletionMode))
	cfg.DefaultFolder = getEnv("KBCHAT_DEFAULT_FOLDER", cfg.DefaultFolder)
	if w := os.Getenv("KBCHAT_HISTORY_WINDOW"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			cfg.HistoryWindow = n
		}
	}

	cfg.Storage = strings.ToLower(getEnv("KBCHAT_STORAGE", cfg.Storage))
	cfg.SessionDir = getEnv("KBCHAT_SESSION_DIR", cfg.SessionDir)

	cfg.Email = getEnv("KBCHAT_EMAIL", cfg.Email)
	cfg.Password = getEnv("KBCHAT_PASSWORD", cfg.Password)

	cfg.LLMProvider = strings.ToLower(getEnv("KBCHAT_LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMModel = getEnv("KBCHAT_LLM_MODEL", cfg.LLMModel)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)

	cfg.BedrockModel = getEnv("KBCHAT_BEDROCK_MODEL", cfg.BedrockModel)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)

	cfg.LogFile = getEnv("KBCHAT_LOG_FILE", cfg.LogFile)
	if lvl := os.Getenv("KBCHAT_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = parseLogLevel(lvl)
	}
}

// Validate rejects settings the rest of the program cannot act on.
func (c Config) Validate() error {
	switch c.CompletionMode {
	case ModeHTTP, ModeStream, ModeDirect, ModeBedrock:
	default:
		return fmt.Errorf("unsupported completion mode: %q", c.CompletionMode)
	}
	switch c.Storage {
	case StorageBadger, StorageMemory:
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Storage)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history window must be positive, got %d", c.HistoryWindow)
	}
	if c.DefaultFolder == "" {
		return errors.New("default folder must not be empty")
	}
	if c.CompletionMode != ModeDirect && c.CompletionMode != ModeBedrock && c.APIURL == "" {
		return errors.New("api url must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kbchat", "config.yaml")
}

// defaultSessionDir scopes storage to the parent shell, the closest terminal
// analogue of a browser tab session. XDG_RUNTIME_DIR is wiped at logout.
func defaultSessionDir() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "kbchat", fmt.Sprintf("session-%d", os.Getppid()))
}
