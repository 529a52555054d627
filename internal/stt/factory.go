package stt

import (
	"context"
	"fmt"
)

// ProviderConfig selects and configures an STT provider.
type ProviderConfig struct {
	Name          string // openai | google
	OpenAIKey     string
	GoogleAPIKey  string
	GoogleKeyFile string
}

// NewProvider creates the configured STT provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "", "openai":
		return NewOpenAIProvider(cfg.OpenAIKey)
	case "google":
		return NewGoogleProvider(ctx, cfg.GoogleAPIKey, cfg.GoogleKeyFile)
	default:
		return nil, fmt.Errorf("unknown STT provider: %q", cfg.Name)
	}
}
