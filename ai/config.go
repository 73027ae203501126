package ai

import (
	"errors"

	"github.com/minseo-dev/libra/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	LLM      LLMConfig
	Agent    AgentConfig
	Pipeline PipelineConfig
	Enabled  bool
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // deepseek, openai, siliconflow, ollama, zai
	Model       string // deepseek-chat, gpt-4o, glm-4.7, ...
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 180
	Temperature float32 // default: 0.7
	Timeout     int     // seconds
}

// AgentConfig represents the external plan-and-run agent endpoint configuration.
type AgentConfig struct {
	URL           string
	Timeout       int // seconds
	Retries       int // network-error retries
	RatePerSecond float64
	Enabled       bool
}

// PipelineConfig represents compound-query pipeline tunables.
type PipelineConfig struct {
	MinSplitLen        int // shortest message worth segmenting
	MaxTasks           int // hard cap on tasks per message
	StructuralTokenMin int // structural tokens needed before splitting
	LongQueryLen       int // length at which a single clause still counts as compound
}

// DefaultPipelineConfig returns the tuned segmentation thresholds.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinSplitLen:        14,
		MaxTasks:           8,
		StructuralTokenMin: 2,
		LongQueryLen:       18,
	}
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = LLMConfig{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   180,
		Temperature: 0.7,
		Timeout:     p.LLMTimeout,
	}

	cfg.Agent = AgentConfig{
		URL:           p.AgentURL,
		Timeout:       int(p.AgentTimeout),
		Retries:       p.AgentRetries,
		RatePerSecond: p.AgentRatePerSecond,
		Enabled:       p.AgentEnabled,
	}

	cfg.Pipeline = DefaultPipelineConfig()
	if p.PipelineMinSplitLen > 0 {
		cfg.Pipeline.MinSplitLen = p.PipelineMinSplitLen
	}
	if p.PipelineMaxTasks > 0 {
		cfg.Pipeline.MaxTasks = p.PipelineMaxTasks
	}
	if p.PipelineStructuralTokenMin > 0 {
		cfg.Pipeline.StructuralTokenMin = p.PipelineStructuralTokenMin
	}
	if p.PipelineLongQueryLen > 0 {
		cfg.Pipeline.LongQueryLen = p.PipelineLongQueryLen
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}

	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.Agent.Enabled && c.Agent.URL == "" {
		return errors.New("agent URL is required when agent is enabled")
	}

	return nil
}
