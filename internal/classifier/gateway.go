package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultGatewayURL is the OpenAI-compatible chat completions endpoint.
	DefaultGatewayURL   = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultGatewayModel = "google/gemini-2.5-flash"
)

// GatewayConfig configures a GatewayDetector.
type GatewayConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GatewayDetector asks an OpenAI-compatible chat completions API for the brand.
type GatewayDetector struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

// NewGatewayDetector creates a gateway detector.
func NewGatewayDetector(cfg GatewayConfig) (*GatewayDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key is required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultGatewayURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGatewayModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &GatewayDetector{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// DetectBrand sends the prompt and cleans the first choice.
func (g *GatewayDetector) DetectBrand(ctx context.Context, c Content) (brandName string, err error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: c.Prompt()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gateway error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return CleanResponse(""), nil
	}

	return CleanResponse(out.Choices[0].Message.Content), nil
}
