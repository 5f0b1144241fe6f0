package providers

import (
	"fmt"

	"github.com/nextlevelbuilder/robun/internal/config"
)

// New builds the Provider named by name (falling back to cfg.Providers.Default)
// from the configured credentials.
func New(cfg *config.ProvidersConfig, name, model string) (Provider, error) {
	if name == "" {
		name = cfg.Default
	}
	creds, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("providers: no credentials configured for %q", name)
	}
	switch name {
	case "anthropic":
		return NewAnthropicProvider(creds.APIKey, creds.APIBase, model), nil
	case "openai":
		return NewOpenAIProvider(creds.APIKey, creds.APIBase, model), nil
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", name)
	}
}
