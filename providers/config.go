// Package providers contains the shared plumbing for concrete provider
// adapters: configuration structs, credential resolution, retry/backoff and
// rate limiting. All of it stays behind the llm.Adapter boundary — the
// orchestration core never sees any of these types.
package providers

import "time"

// AnthropicConfig Anthropic Messages API 适配器配置
type AnthropicConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RateLimitRPS float64       `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
}

// OpenAIConfig OpenAI Chat Completions 适配器配置
type OpenAIConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Organization string        `json:"organization,omitempty" yaml:"organization,omitempty"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RateLimitRPS float64       `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
}

// GeminiConfig Google Gemini generateContent 适配器配置
type GeminiConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RateLimitRPS float64       `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
}
