package providers

import "github.com/BaSui01/colloquy/llm"

// ChooseModel selects the model to use based on priority:
// 1. Request model (the participant's RoleConfig)
// 2. Config model (the adapter configuration)
// 3. Default model (provider-specific fallback)
func ChooseModel(req *llm.ChatRequest, configModel string, defaultModel string) string {
	if req != nil && req.Config.Model != "" {
		return req.Config.Model
	}
	if configModel != "" {
		return configModel
	}
	return defaultModel
}
