package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/colloquy/conversation"
	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/providers/anthropic"
	"github.com/BaSui01/colloquy/providers/gemini"
	"github.com/BaSui01/colloquy/providers/openai"
	"github.com/BaSui01/colloquy/types"
)

// BuildLogger 按日志配置构造 zap logger。
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, types.NewConfigurationError(fmt.Sprintf("invalid log level %q", c.Log.Level)).WithCause(err)
	}

	zapCfg := zap.NewProductionConfig()
	if c.Log.Encoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, types.NewConfigurationError("build logger").WithCause(err)
	}
	return logger, nil
}

// BuildParticipants 把配置里的参与者落成可运行的 Participant。
// 同一供应商的参与者共享同一个适配器实例。
func (c *Config) BuildParticipants(logger *zap.Logger) ([]*conversation.Participant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	adapters := make(map[string]llm.Adapter, 3)
	adapterFor := func(provider string) (llm.Adapter, error) {
		if a, ok := adapters[provider]; ok {
			return a, nil
		}
		var a llm.Adapter
		switch provider {
		case "anthropic":
			a = anthropic.New(c.Providers.Anthropic, logger)
		case "openai":
			a = openai.New(c.Providers.OpenAI, logger)
		case "gemini":
			a = gemini.New(c.Providers.Gemini, logger)
		default:
			return nil, types.NewConfigurationError(fmt.Sprintf("unknown provider %q", provider))
		}
		adapters[provider] = a
		return a, nil
	}

	out := make([]*conversation.Participant, 0, len(c.Participants))
	for _, pc := range c.Participants {
		adapter, err := adapterFor(pc.Provider)
		if err != nil {
			return nil, err
		}

		p := conversation.NewParticipant(pc.Name, adapter, pc.Model, pc.SystemPrompts...)
		p.Temperature = pc.Temperature
		if pc.TopP > 0 {
			p.TopP = pc.TopP
		}
		p.Seed = pc.Seed
		out = append(out, p)
	}
	return out, nil
}

// RunOptions 把运行参数投影到 conversation.RunOptions。
func (c *Config) RunOptions() conversation.RunOptions {
	opts := conversation.RunOptions{
		StartingMessage:     c.Run.StartingMessage,
		StartingParticipant: c.Run.StartingParticipant,
		MaxTurns:            c.Run.MaxTurns,
		MaxToolSteps:        c.Run.MaxToolSteps,
		ToolChoice:          c.Run.ToolChoice,
	}
	if c.Run.StopSubstring != "" {
		opts.StopCondition = conversation.AnyMessageContains(c.Run.StopSubstring)
	}
	return opts
}
