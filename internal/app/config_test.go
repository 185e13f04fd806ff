package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg != def {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadConfigOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `api_key: sk-test
model: claude-3-5-sonnet-latest
max_tokens: -5
temperature: 3.2
max_context_lines: 80
small_doc_threshold: 500
medium_doc_threshold: 200
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "sk-test" || cfg.Model != "claude-3-5-sonnet-latest" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxContextLines != 80 {
		t.Fatalf("MaxContextLines = %d, want 80", cfg.MaxContextLines)
	}
	if cfg.MaxTokens != DefaultConfig().MaxTokens {
		t.Fatalf("MaxTokens = %d, want default after clamp", cfg.MaxTokens)
	}
	if cfg.Temperature != DefaultConfig().Temperature {
		t.Fatalf("Temperature = %v, want default after clamp", cfg.Temperature)
	}
	// A medium threshold at or below the small one is rebuilt from the
	// small one, keeping the tiers ordered.
	if cfg.SmallDocThreshold != 500 || cfg.MediumDocThreshold != 2000 {
		t.Fatalf("thresholds = %d/%d, want 500/2000", cfg.SmallDocThreshold, cfg.MediumDocThreshold)
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("model: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := DefaultConfig()
	cfg.APIKey = "sk-roundtrip"
	cfg.MaxContextLines = 123

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "sk-roundtrip" || got.MaxContextLines != 123 {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestConfigConverters(t *testing.T) {
	cfg := DefaultConfig()

	pc := cfg.PromptConfig()
	if pc.MaxContextLines != cfg.MaxContextLines || pc.MaxTokens != cfg.MaxTokens || !pc.IncludeHistory {
		t.Fatalf("PromptConfig = %+v", pc)
	}

	ac := cfg.AutoContextConfig()
	if ac.SmallDocThreshold != cfg.SmallDocThreshold || ac.MediumDocThreshold != cfg.MediumDocThreshold {
		t.Fatalf("AutoContextConfig = %+v", ac)
	}

	sc := cfg.StoreConfig()
	if sc.RetentionAge != 30*24*time.Hour {
		t.Fatalf("RetentionAge = %v, want 720h", sc.RetentionAge)
	}
	if sc.CleanupInterval != 6*time.Hour {
		t.Fatalf("CleanupInterval = %v, want 6h", sc.CleanupInterval)
	}
}
