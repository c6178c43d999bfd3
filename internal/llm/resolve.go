package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ResolveProvider selects a provider from the model flag, falling back to
// whichever API key is present in the environment.
func ResolveProvider(ctx context.Context, modelFlag string) (Provider, error) {
	if modelFlag != "" {
		lower := strings.ToLower(modelFlag)
		switch {
		case strings.HasPrefix(lower, "anthropic:"):
			return withModel(NewAnthropic())(modelFlag[len("anthropic:"):])
		case strings.HasPrefix(lower, "claude"):
			return withModel(NewAnthropic())(modelFlag)
		case strings.HasPrefix(lower, "openai:"):
			return withModel(NewOpenAI())(modelFlag[len("openai:"):])
		case strings.HasPrefix(lower, "gpt"):
			return withModel(NewOpenAI())(modelFlag)
		case strings.HasPrefix(lower, "gemini:"):
			return withModel(NewGemini(ctx))(modelFlag[len("gemini:"):])
		case strings.HasPrefix(lower, "gemini"):
			return withModel(NewGemini(ctx))(modelFlag)
		case lower == "mock":
			return &MockProvider{Err: fmt.Errorf("mock provider has no response configured")}, nil
		}
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return NewAnthropic()
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return NewOpenAI()
	}
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return NewGemini(ctx)
	}
	return nil, fmt.Errorf("no LLM provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY")
}

// withModel adapts a provider constructor so the result pins a model name.
func withModel(p Provider, err error) func(model string) (Provider, error) {
	return func(model string) (Provider, error) {
		if err != nil {
			return nil, err
		}
		return &modelOverride{Provider: p, model: model}, nil
	}
}

// modelOverride wraps a provider to override the model in settings.
type modelOverride struct {
	Provider
	model string
}

func (m *modelOverride) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	s.Model = m.model
	return m.Provider.Generate(ctx, prompt, s)
}
