package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
)

// geminiClient talks to the Gemini API through the official genai SDK.
type geminiClient struct {
	client *genai.Client
	cfg    config.LLMRouterConfig
	logger *zap.Logger
}

func newGeminiClient(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
		logger: logger.Named("gemini"),
	}, nil
}

func (c *geminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	model := modelFor(c.cfg, req.Tier)
	contents, err := buildGeminiContents(req)
	if err != nil {
		return "", err
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperatureFor(c.cfg, req.Options))),
		MaxOutputTokens: int32(maxTokensFor(c.cfg, req.Options)),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}

	c.logger.Debug("Invoking Gemini model.", zap.String("model", model))

	result, err := c.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("failed to invoke Gemini model %s: %w", model, err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty completion in Gemini response")
	}
	return text, nil
}

func (c *geminiClient) Close() error { return nil }

// buildGeminiContents converts a generation request into genai content turns.
// Screenshots become inline PNG parts preceding the turn's text.
func buildGeminiContents(req schemas.GenerationRequest) ([]*genai.Content, error) {
	messages := req.Messages
	if len(messages) == 0 {
		if req.UserPrompt == "" {
			return nil, fmt.Errorf("generation request has neither messages nor a user prompt")
		}
		messages = []schemas.Message{{Role: schemas.RoleUser, Text: req.UserPrompt}}
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == schemas.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(m.Images)+1)
		for _, img := range m.Images {
			parts = append(parts, genai.NewPartFromBytes(img, "image/png"))
		}
		if m.Text != "" || len(parts) == 0 {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, nil
}
