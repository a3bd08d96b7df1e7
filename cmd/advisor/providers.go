package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/neboloop/nebo-advisor/internal/agent/ai"
	agentcfg "github.com/neboloop/nebo-advisor/internal/agent/config"
)

// createProvider builds the AI provider for a config entry
func createProvider(ctx context.Context, pcfg *agentcfg.ProviderConfig) (ai.Provider, error) {
	switch pcfg.Type {
	case "ollama":
		if !ai.CheckOllamaAvailable(pcfg.BaseURL) {
			return nil, fmt.Errorf("ollama provider %s: not available at %s", pcfg.Name, pcfg.BaseURL)
		}
		return ai.NewOllamaProvider(pcfg.BaseURL, pcfg.Model), nil

	case "api":
		if pcfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s has no API key", pcfg.Name)
		}
		switch {
		case strings.Contains(pcfg.Name, "anthropic") || pcfg.Name == "claude":
			return ai.NewAnthropicProvider(pcfg.APIKey, pcfg.Model), nil
		case strings.Contains(pcfg.Name, "openai") || pcfg.Name == "gpt":
			return ai.NewOpenAIProvider(pcfg.APIKey, pcfg.Model), nil
		case strings.Contains(pcfg.Name, "gemini") || strings.Contains(pcfg.Name, "google"):
			p, err := ai.NewGeminiProvider(ctx, pcfg.APIKey, pcfg.Model)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
		return nil, fmt.Errorf("unknown API provider %q (expected anthropic, openai or gemini)", pcfg.Name)
	}
	return nil, fmt.Errorf("unknown provider type %q for %s", pcfg.Type, pcfg.Name)
}
