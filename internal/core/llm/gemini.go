package llm

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var errNoGeminiKey = errors.New("gemini api key is empty")

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errNoGeminiKey
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}
