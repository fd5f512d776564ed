package llm

import (
	"fmt"
	"strings"
)

// Supported provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Factory builds provider clients from configuration.
type Factory struct {
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
}

// Client returns the streaming client for the named provider.
func (f *Factory) Client(provider string) (StreamingClient, error) {
	switch strings.ToLower(provider) {
	case ProviderAnthropic:
		if f.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but no API key configured")
		}
		return NewAnthropic(f.AnthropicAPIKey, f.AnthropicModel), nil
	case ProviderOpenAI:
		if f.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but no API key configured")
		}
		return NewOpenAI(f.OpenAIAPIKey, f.OpenAIBaseURL, f.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
