package ai

import (
	"testing"

	"github.com/minseo-dev/libra/internal/profile"
)

func testProfile() *profile.Profile {
	return &profile.Profile{
		LLMProvider: "openai",
		LLMAPIKey:   "test-key",
		LLMTimeout:  120,
		AgentURL:    "http://localhost:5200",
	}
}

func TestNewConfigFromProfilePipelineDefaults(t *testing.T) {
	cfg := NewConfigFromProfile(testProfile())

	if !cfg.Enabled {
		t.Fatal("config should be enabled with an API key")
	}
	if cfg.Pipeline != DefaultPipelineConfig() {
		t.Errorf("pipeline should use tuned defaults, got %+v", cfg.Pipeline)
	}
}

func TestNewConfigFromProfilePipelineOverrides(t *testing.T) {
	p := testProfile()
	p.PipelineMinSplitLen = 20
	p.PipelineLongQueryLen = 30

	cfg := NewConfigFromProfile(p)

	if cfg.Pipeline.MinSplitLen != 20 {
		t.Errorf("MinSplitLen: expected 20, got %d", cfg.Pipeline.MinSplitLen)
	}
	if cfg.Pipeline.LongQueryLen != 30 {
		t.Errorf("LongQueryLen: expected 30, got %d", cfg.Pipeline.LongQueryLen)
	}
	// Unset thresholds keep their tuned defaults.
	if cfg.Pipeline.MaxTasks != DefaultPipelineConfig().MaxTasks {
		t.Errorf("MaxTasks: expected default %d, got %d", DefaultPipelineConfig().MaxTasks, cfg.Pipeline.MaxTasks)
	}
	if cfg.Pipeline.StructuralTokenMin != DefaultPipelineConfig().StructuralTokenMin {
		t.Errorf("StructuralTokenMin: expected default %d, got %d",
			DefaultPipelineConfig().StructuralTokenMin, cfg.Pipeline.StructuralTokenMin)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.LLM.Provider = "" }, false},
		{"valid", func(c *Config) {}, false},
		{"missing provider", func(c *Config) { c.LLM.Provider = "" }, true},
		{"missing API key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"ollama needs no API key", func(c *Config) { c.LLM.Provider = "ollama"; c.LLM.APIKey = "" }, false},
		{"agent enabled without URL", func(c *Config) { c.Agent.URL = "" }, true},
		{"agent disabled without URL", func(c *Config) { c.Agent.URL = ""; c.Agent.Enabled = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfigFromProfile(testProfile())
			cfg.Agent.Enabled = true
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
