package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed settings file for the assistant.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	MaxContextLines  int  `yaml:"max_context_lines"`
	MaxPromptTokens  int  `yaml:"max_prompt_tokens"`
	IncludeHistory   bool `yaml:"include_history"`
	IncludeStructure bool `yaml:"include_structure"`
	HistoryMessages  int  `yaml:"history_messages"`

	SmallDocThreshold  int  `yaml:"small_doc_threshold"`
	MediumDocThreshold int  `yaml:"medium_doc_threshold"`
	LargeMaxTokens     int  `yaml:"large_max_tokens"`
	MinContentLength   int  `yaml:"min_content_length"`
	IncludeBacklinks   bool `yaml:"include_backlinks"`

	MaxMessagesPerFile   int `yaml:"max_messages_per_file"`
	RetentionDays        int `yaml:"retention_days"`
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.anthropic.com/v1/messages",
		Model:       "claude-3-5-haiku-latest",
		MaxTokens:   4096,
		Temperature: 0.7,

		MaxContextLines:  200,
		MaxPromptTokens:  24000,
		IncludeHistory:   true,
		IncludeStructure: true,
		HistoryMessages:  6,

		SmallDocThreshold:  1000,
		MediumDocThreshold: 4000,
		LargeMaxTokens:     1500,
		MinContentLength:   20,
		IncludeBacklinks:   false,

		MaxMessagesPerFile:   100,
		RetentionDays:        30,
		CleanupIntervalHours: 6,
	}
}

// LoadConfig reads the YAML config at path, falling back to defaults for a
// missing file and clamping nonsense values instead of failing on them.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	def := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxContextLines <= 0 {
		cfg.MaxContextLines = def.MaxContextLines
	}
	if cfg.HistoryMessages <= 0 {
		cfg.HistoryMessages = def.HistoryMessages
	}
	if cfg.SmallDocThreshold <= 0 {
		cfg.SmallDocThreshold = def.SmallDocThreshold
	}
	if cfg.MediumDocThreshold <= cfg.SmallDocThreshold {
		cfg.MediumDocThreshold = cfg.SmallDocThreshold * 4
	}
	if cfg.LargeMaxTokens <= 0 {
		cfg.LargeMaxTokens = def.LargeMaxTokens
	}
	if cfg.MaxMessagesPerFile <= 0 {
		cfg.MaxMessagesPerFile = def.MaxMessagesPerFile
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	if cfg.CleanupIntervalHours <= 0 {
		cfg.CleanupIntervalHours = def.CleanupIntervalHours
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "quill", "config.yml")
}

// DefaultStateRoot is where conversation state and logs live.
// Prefer XDG data dir; fall back to ~/.local/share, then the temp dir.
func DefaultStateRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "quill", "storage")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "quill", "storage")
	}
	return filepath.Join(os.TempDir(), "quill", "storage")
}

func (c Config) PromptConfig() PromptConfig {
	return PromptConfig{
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		MaxContextLines:  c.MaxContextLines,
		MaxPromptTokens:  c.MaxPromptTokens,
		IncludeHistory:   c.IncludeHistory,
		IncludeStructure: c.IncludeStructure,
	}
}

func (c Config) AutoContextConfig() AutoContextConfig {
	return AutoContextConfig{
		SmallDocThreshold:  c.SmallDocThreshold,
		MediumDocThreshold: c.MediumDocThreshold,
		LargeMaxTokens:     c.LargeMaxTokens,
		MinContentLength:   c.MinContentLength,
		IncludeBacklinks:   c.IncludeBacklinks,
	}
}

func (c Config) StoreConfig() ConversationStoreConfig {
	return ConversationStoreConfig{
		MaxMessagesPerFile: c.MaxMessagesPerFile,
		RetentionAge:       time.Duration(c.RetentionDays) * 24 * time.Hour,
		CleanupInterval:    time.Duration(c.CleanupIntervalHours) * time.Hour,
	}
}
