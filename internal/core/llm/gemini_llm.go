package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/markdave123-py/docrag/internal/core"
)

var _ core.TextGenerator = (*GeminiLLM)(nil)

// GeminiLLM serves the gemini model family.
type GeminiLLM struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	cl, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: cl, defaultModel: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	return g.client.Close()
}

func (g *GeminiLLM) Generate(ctx context.Context, modelID, prompt string, p core.GenerationParams) (string, error) {
	if modelID == "" {
		modelID = g.defaultModel
	}
	m := g.client.GenerativeModel(modelID)
	m.SetMaxOutputTokens(int32(p.MaxTokens))
	m.SetTemperature(float32(p.Temperature))
	m.SetTopP(float32(p.TopP))

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate %s: %w", modelID, err)
	}
	return candidateText(resp)
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("gemini blocked the prompt: %s", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			parts = append(parts, string(t))
		}
	}
	return strings.Join(parts, ""), nil
}
