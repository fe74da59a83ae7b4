package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/docrag/internal/core"
)

// Model families, matched by substring of the model id.
const (
	FamilyClaude  = "claude"
	FamilyTitan   = "titan"
	FamilyGemini  = "gemini"
	FamilyDefault = "default"
)

// ErrorPrefix starts the answer text of every failed generation.
const ErrorPrefix = "Error generating response: "

// Generation is the outcome of one model call. Degraded marks an error
// string standing in for a model answer.
type Generation struct {
	Text     string
	Family   string
	ModelID  string
	Degraded bool
}

// bodyCodec builds and parses the raw request shape of one family.
type bodyCodec interface {
	encode(prompt string, p core.GenerationParams) ([]byte, error)
	decode(raw []byte) (string, error)
}

var codecs = map[string]bodyCodec{
	FamilyClaude:  claudeCodec{},
	FamilyTitan:   titanCodec{},
	FamilyDefault: completionCodec{},
}

// Invoker dispatches prompts to the right request shape for a model id.
type Invoker struct {
	rt            core.ModelRuntime
	gemini        core.TextGenerator
	defaultModel  string
	defaultFamily string
}

// NewInvoker wires the raw runtime and, optionally, a Gemini generator.
// Ids that match no known family are replaced by defaultModel and sent in
// the defaultFamily shape.
func NewInvoker(rt core.ModelRuntime, gemini core.TextGenerator, defaultModel, defaultFamily string) *Invoker {
	defaultFamily = strings.ToLower(defaultFamily)
	if _, ok := codecs[defaultFamily]; !ok && defaultFamily != FamilyGemini {
		defaultFamily = FamilyClaude
	}
	return &Invoker{rt: rt, gemini: gemini, defaultModel: defaultModel, defaultFamily: defaultFamily}
}

// FamilyOf reports the family for modelID, or "" when none matches.
func FamilyOf(modelID string) string {
	id := strings.ToLower(modelID)
	for _, f := range []string{FamilyClaude, FamilyTitan, FamilyGemini} {
		if strings.Contains(id, f) {
			return f
		}
	}
	return ""
}

// Generate never returns an error: failures come back as a degraded
// Generation whose text starts with ErrorPrefix.
func (i *Invoker) Generate(ctx context.Context, prompt, modelID string, p core.GenerationParams) Generation {
	family := FamilyOf(modelID)
	if family == "" {
		family, modelID = i.defaultFamily, i.defaultModel
	}

	text, err := i.invoke(ctx, family, modelID, prompt, p)
	if err != nil {
		slog.Error("Invoker: generation failed", "model_id", modelID, "family", family, "error", err)
		return Generation{Text: ErrorPrefix + err.Error(), Family: family, ModelID: modelID, Degraded: true}
	}
	return Generation{Text: text, Family: family, ModelID: modelID}
}

func (i *Invoker) invoke(ctx context.Context, family, modelID, prompt string, p core.GenerationParams) (string, error) {
	if family == FamilyGemini {
		if i.gemini == nil {
			return "", errors.New("gemini generator not configured")
		}
		return i.gemini.Generate(ctx, modelID, prompt, p)
	}
	if i.rt == nil {
		return "", errors.New("model runtime not configured")
	}

	codec := codecs[family]
	body, err := codec.encode(prompt, p)
	if err != nil {
		return "", err
	}
	raw, err := i.rt.InvokeModel(ctx, modelID, body)
	if err != nil {
		return "", err
	}
	return codec.decode(raw)
}

type claudeCodec struct{}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"top_p"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (claudeCodec) encode(prompt string, p core.GenerationParams) ([]byte, error) {
	return json.Marshal(claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		Messages:         []claudeMessage{{Role: "user", Content: prompt}},
	})
}

func (claudeCodec) decode(raw []byte) (string, error) {
	var r claudeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("decode claude response: %w", err)
	}
	if len(r.Content) == 0 {
		return "", errors.New("claude response has no content")
	}
	return r.Content[0].Text, nil
}

type titanCodec struct{}

type titanTextConfig struct {
	MaxTokenCount int      `json:"maxTokenCount"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences"`
}

type titanTextRequest struct {
	InputText            string          `json:"inputText"`
	TextGenerationConfig titanTextConfig `json:"textGenerationConfig"`
}

type titanTextResponse struct {
	Results []struct {
		OutputText string `json:"outputText"`
	} `json:"results"`
}

func (titanCodec) encode(prompt string, p core.GenerationParams) ([]byte, error) {
	return json.Marshal(titanTextRequest{
		InputText: prompt,
		TextGenerationConfig: titanTextConfig{
			MaxTokenCount: p.MaxTokens,
			Temperature:   p.Temperature,
			TopP:          p.TopP,
			StopSequences: []string{},
		},
	})
}

func (titanCodec) decode(raw []byte) (string, error) {
	var r titanTextResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("decode titan response: %w", err)
	}
	if len(r.Results) == 0 {
		return "", errors.New("titan response has no results")
	}
	return r.Results[0].OutputText, nil
}

// completionCodec is the flat prompt/completion shape.
type completionCodec struct{}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

func (completionCodec) encode(prompt string, p core.GenerationParams) ([]byte, error) {
	return json.Marshal(completionRequest{Prompt: prompt, MaxTokens: p.MaxTokens, Temperature: p.Temperature, TopP: p.TopP})
}

func (completionCodec) decode(raw []byte) (string, error) {
	var r struct {
		Completion *string `json:"completion"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if r.Completion == nil {
		return "", errors.New("response has no completion field")
	}
	return *r.Completion, nil
}
