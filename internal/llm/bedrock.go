package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
)

const anthropicVersion = "bedrock-2023-05-31"

// bedrockInvoker is the slice of the Bedrock runtime API this client uses.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// bedrockClient talks to Anthropic models through the AWS Bedrock runtime.
type bedrockClient struct {
	invoker bedrockInvoker
	cfg     config.LLMRouterConfig
	logger  *zap.Logger
}

func newBedrockClient(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (*bedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &bedrockClient{
		invoker: bedrockruntime.NewFromConfig(awsCfg),
		cfg:     cfg,
		logger:  logger.Named("bedrock"),
	}, nil
}

// anthropicContentBlock is one element of a message's content array. Text
// blocks carry Text; image blocks carry Source.
type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Temperature      float64            `json:"temperature"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *bedrockClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	modelID := modelFor(c.cfg, req.Tier)
	payload, err := buildAnthropicRequest(c.cfg, req)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Invoking Bedrock model.",
		zap.String("model_id", modelID),
		zap.Int("payload_bytes", len(payload)),
	)

	output, err := c.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model %s: %w", modelID, err)
	}

	return parseAnthropicResponse(output.Body)
}

func (c *bedrockClient) Close() error { return nil }

// buildAnthropicRequest serializes a generation request into the Anthropic
// messages payload. Screenshots become base64 image blocks preceding the
// turn's text.
func buildAnthropicRequest(cfg config.LLMRouterConfig, req schemas.GenerationRequest) ([]byte, error) {
	messages := req.Messages
	if len(messages) == 0 {
		if req.UserPrompt == "" {
			return nil, fmt.Errorf("generation request has neither messages nor a user prompt")
		}
		messages = []schemas.Message{{Role: schemas.RoleUser, Text: req.UserPrompt}}
	}

	body := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokensFor(cfg, req.Options),
		System:           req.SystemPrompt,
		Temperature:      temperatureFor(cfg, req.Options),
		Messages:         make([]anthropicMessage, 0, len(messages)),
	}

	for _, m := range messages {
		blocks := make([]anthropicContentBlock, 0, len(m.Images)+1)
		for _, img := range m.Images {
			blocks = append(blocks, anthropicContentBlock{
				Type: "image",
				Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: "image/png",
					Data:      base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		if m.Text != "" || len(blocks) == 0 {
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Text})
		}
		body.Messages = append(body.Messages, anthropicMessage{
			Role:    string(m.Role),
			Content: blocks,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Bedrock request: %w", err)
	}
	return payload, nil
}

// parseAnthropicResponse extracts the completion text from a raw Bedrock
// response body.
func parseAnthropicResponse(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal Bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no content in Bedrock response")
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("empty completion in Bedrock response")
	}
	return text, nil
}
