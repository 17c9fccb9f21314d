package dialogue

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName matches the deployed intake assistant.
const DefaultModelName = "gemini-2.0-flash-exp"

// Sampling is fixed and not user-configurable.
const (
	temperature float32 = 0.7
	topP        float32 = 0.95
	topK        float32 = 40
)

// Gemini talks to the Gemini API. One client per process; the backend is
// stateless, every call carries the full turn history.
type Gemini struct {
	client *genai.Client
	name   string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if modelName == "" {
		modelName = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, name: modelName}, nil
}

func (g *Gemini) Generate(ctx context.Context, system string, turns History) (string, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.name, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(temperature),
		TopP:              genai.Ptr(topP),
		TopK:              genai.Ptr(topK),
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return text, nil
}
