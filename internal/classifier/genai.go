package classifier

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGenAIModel is the Gemini model used when none is configured.
const DefaultGenAIModel = "gemini-2.5-flash"

// GenAIConfig configures a GenAIDetector.
type GenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini endpoint.
	BaseURL string
}

// GenAIDetector asks Gemini for the brand through the genai SDK.
type GenAIDetector struct {
	client *genai.Client
	model  string
}

// NewGenAIDetector creates a Gemini detector.
func NewGenAIDetector(ctx context.Context, cfg GenAIConfig) (*GenAIDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGenAIModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}

	return &GenAIDetector{client: client, model: cfg.Model}, nil
}

// DetectBrand generates a deterministic answer and cleans it.
func (g *GenAIDetector) DetectBrand(ctx context.Context, c Content) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(c.Prompt()), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   32,
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	return CleanResponse(resp.Text()), nil
}
