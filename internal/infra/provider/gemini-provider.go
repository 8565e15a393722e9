package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"voice-banking/internal/config"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/metrics"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	Logger *logger.Logger
	Client *genai.Client
	Model  string
}

// NewGeminiProvider builds a client for the Gemini API. It returns ErrNotConfigured when no API key is set.
func NewGeminiProvider(ctx context.Context, logger *logger.Logger, httpClient *http.Client, cfg config.GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to create Gemini client: %v", err))
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{Logger: logger, Client: client, Model: cfg.Model}, nil
}

// GenerateContent runs one deterministic completion with the given function declarations attached.
func (th *GeminiProvider) GenerateContent(ctx context.Context, contents []*genai.Content, tools []*genai.FunctionDeclaration) (*genai.GenerateContentResponse, error) {
	generateConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if len(tools) > 0 {
		generateConfig.Tools = []*genai.Tool{{FunctionDeclarations: tools}}
	}

	start := time.Now()
	resp, err := th.Client.Models.GenerateContent(ctx, th.Model, contents, generateConfig)
	metrics.UpstreamDuration.WithLabelValues("gemini", "generate_content").Observe(time.Since(start).Seconds())
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Gemini completion failed: %v", err))
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	return resp, nil
}
