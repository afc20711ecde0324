// =============================================================================
// 📦 Colloquy 运行配置
// =============================================================================
// 统一的对话运行配置：参与者、供应商凭据、运行参数
// 配置优先级: 默认值 → YAML 文件 → 环境变量（凭据）
// =============================================================================
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/colloquy/providers"
	"github.com/BaSui01/colloquy/types"
)

// Config 是一次对话运行的完整配置。
type Config struct {
	// Providers 各供应商的连接配置
	Providers ProvidersConfig `yaml:"providers"`
	// Participants 参与者列表（至少 2 个才能开启对话）
	Participants []ParticipantConfig `yaml:"participants"`
	// Run 运行参数
	Run RunConfig `yaml:"run"`
	// Log 日志配置
	Log LogConfig `yaml:"log"`
}

// ProvidersConfig 汇总所有受支持供应商的适配器配置。
type ProvidersConfig struct {
	Anthropic providers.AnthropicConfig `yaml:"anthropic"`
	OpenAI    providers.OpenAIConfig    `yaml:"openai"`
	Gemini    providers.GeminiConfig    `yaml:"gemini"`
}

// ParticipantConfig 描述一个参与者。
type ParticipantConfig struct {
	// Name 参与者名，运行内唯一
	Name string `yaml:"name"`
	// Provider 供应商标识: anthropic, openai, gemini
	Provider string `yaml:"provider"`
	// Model 模型标识，空则用供应商配置或默认模型
	Model string `yaml:"model"`
	// Temperature 采样温度
	Temperature float32 `yaml:"temperature"`
	// TopP 核采样参数，0 视为 1.0
	TopP float32 `yaml:"top_p"`
	// Seed 随机种子（供应商支持时生效）
	Seed *int64 `yaml:"seed,omitempty"`
	// SystemPrompts 依序固定的系统提示
	SystemPrompts []string `yaml:"system_prompts"`
}

// RunConfig 运行参数。
type RunConfig struct {
	// StartingMessage 开场消息
	StartingMessage string `yaml:"starting_message"`
	// StartingParticipant 先手参与者名，空 = 第一个
	StartingParticipant string `yaml:"starting_participant"`
	// MaxTurns 回合上限，0 = 无上限
	MaxTurns int `yaml:"max_turns"`
	// MaxToolSteps 每回合工具循环上限，0 = 默认 6
	MaxToolSteps int `yaml:"max_tool_steps"`
	// StopSubstring 任一回合消息包含该串即停止，空 = 不启用
	StopSubstring string `yaml:"stop_substring"`
	// ToolChoice 工具选择策略: auto, required, none
	ToolChoice string `yaml:"tool_choice"`
}

// LogConfig 日志配置。
type LogConfig struct {
	// Level 日志级别: debug, info, warn, error
	Level string `yaml:"level"`
	// Encoding 输出格式: json, console
	Encoding string `yaml:"encoding"`
}

// Default 返回缺省配置。
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Anthropic: providers.AnthropicConfig{Timeout: 60 * time.Second, MaxRetries: 2},
			OpenAI:    providers.OpenAIConfig{Timeout: 60 * time.Second, MaxRetries: 2},
			Gemini:    providers.GeminiConfig{Timeout: 60 * time.Second, MaxRetries: 2},
		},
		Run: RunConfig{
			MaxTurns:   8,
			ToolChoice: "auto",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load 读取 YAML 配置文件并叠加到缺省值上。
// 凭据不放进配置文件：适配器构造时从环境变量（含 .env）解析。
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError(fmt.Sprintf("read config %s", path)).WithCause(err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, types.NewConfigurationError(fmt.Sprintf("parse config %s", path)).WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 做构造期检查：参与者数量、名字唯一性、供应商合法性。
func (c *Config) Validate() error {
	if len(c.Participants) < 2 {
		return types.NewConfigurationError(fmt.Sprintf(
			"at least 2 participants required, got %d", len(c.Participants),
		))
	}

	seen := make(map[string]bool, len(c.Participants))
	for i, p := range c.Participants {
		if p.Name == "" {
			return types.NewConfigurationError(fmt.Sprintf("participants[%d]: name must not be empty", i))
		}
		if seen[p.Name] {
			return types.NewConfigurationError(fmt.Sprintf("duplicate participant name: %s", p.Name))
		}
		seen[p.Name] = true

		switch p.Provider {
		case "anthropic", "openai", "gemini":
		default:
			return types.NewConfigurationError(fmt.Sprintf(
				"participants[%d] (%s): unknown provider %q", i, p.Name, p.Provider,
			))
		}
	}
	return nil
}
