package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
)

func testRouterConfig() config.LLMRouterConfig {
	return config.LLMRouterConfig{
		Provider:      config.ProviderBedrock,
		FastModel:     "eu.anthropic.claude-3-5-haiku-20241022-v1:0",
		PowerfulModel: "eu.anthropic.claude-sonnet-4-20250514-v1:0",
		Temperature:   0.1,
		MaxTokens:     4096,
	}
}

func TestBuildAnthropicRequestSingleShot(t *testing.T) {
	req := schemas.GenerationRequest{
		SystemPrompt: "You are a website quality evaluator.",
		UserPrompt:   "Rate the autocomplete experience.",
		Tier:         schemas.TierPowerful,
	}

	payload, err := buildAnthropicRequest(testRouterConfig(), req)
	require.NoError(t, err)

	var body anthropicRequest
	require.NoError(t, json.Unmarshal(payload, &body))

	assert.Equal(t, anthropicVersion, body.AnthropicVersion)
	assert.Equal(t, "You are a website quality evaluator.", body.System)
	assert.Equal(t, 4096, body.MaxTokens)
	assert.Equal(t, 0.1, body.Temperature)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "user", body.Messages[0].Role)
	require.Len(t, body.Messages[0].Content, 1)
	assert.Equal(t, "text", body.Messages[0].Content[0].Type)
	assert.Equal(t, "Rate the autocomplete experience.", body.Messages[0].Content[0].Text)
}

func TestBuildAnthropicRequestConversationWithImages(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	req := schemas.GenerationRequest{
		SystemPrompt: "system",
		Messages: []schemas.Message{
			{Role: schemas.RoleUser, Text: "Begin the session."},
			{Role: schemas.RoleAssistant, Text: `{"type": "screenshot"}`},
			{Role: schemas.RoleUser, Text: "Result of screenshot:", Images: [][]byte{png}},
		},
		Tier: schemas.TierPowerful,
	}

	payload, err := buildAnthropicRequest(testRouterConfig(), req)
	require.NoError(t, err)

	var body anthropicRequest
	require.NoError(t, json.Unmarshal(payload, &body))

	require.Len(t, body.Messages, 3)
	assert.Equal(t, "assistant", body.Messages[1].Role)

	last := body.Messages[2]
	require.Len(t, last.Content, 2, "image block plus text block")
	assert.Equal(t, "image", last.Content[0].Type)
	require.NotNil(t, last.Content[0].Source)
	assert.Equal(t, "base64", last.Content[0].Source.Type)
	assert.Equal(t, "image/png", last.Content[0].Source.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), last.Content[0].Source.Data)
	assert.Equal(t, "text", last.Content[1].Type)
}

func TestBuildAnthropicRequestOptionOverrides(t *testing.T) {
	req := schemas.GenerationRequest{
		UserPrompt: "hello",
		Options: schemas.GenerationOptions{
			Temperature: 0.7,
			MaxTokens:   512,
		},
	}

	payload, err := buildAnthropicRequest(testRouterConfig(), req)
	require.NoError(t, err)

	var body anthropicRequest
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, 0.7, body.Temperature)
	assert.Equal(t, 512, body.MaxTokens)
}

func TestBuildAnthropicRequestEmpty(t *testing.T) {
	_, err := buildAnthropicRequest(testRouterConfig(), schemas.GenerationRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither messages nor a user prompt")
}

func TestParseAnthropicResponse(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "The top listings "},
			{"type": "text", "text": "are relevant."}
		],
		"stop_reason": "end_turn"
	}`)

	text, err := parseAnthropicResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "The top listings are relevant.", text)
}

func TestParseAnthropicResponseErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `not json`, "failed to unmarshal"},
		{"no content", `{"content": [], "stop_reason": "end_turn"}`, "no content"},
		{"empty text", `{"content": [{"type": "text", "text": "  "}]}`, "empty completion"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseAnthropicResponse([]byte(tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

// stubInvoker returns a canned Bedrock response and records the request.
type stubInvoker struct {
	lastInput *bedrockruntime.InvokeModelInput
	response  []byte
	err       error
}

func (s *stubInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	s.lastInput = params
	if s.err != nil {
		return nil, s.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: s.response}, nil
}

func TestBedrockClientGenerate(t *testing.T) {
	stub := &stubInvoker{
		response: []byte(`{"content": [{"type": "text", "text": "done"}]}`),
	}
	client := &bedrockClient{invoker: stub, cfg: testRouterConfig(), logger: zap.NewNop()}

	text, err := client.Generate(context.Background(), schemas.GenerationRequest{
		UserPrompt: "go",
		Tier:       schemas.TierFast,
	})
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	require.NotNil(t, stub.lastInput)
	assert.Equal(t, "eu.anthropic.claude-3-5-haiku-20241022-v1:0", *stub.lastInput.ModelId)
	assert.Equal(t, "application/json", *stub.lastInput.ContentType)
}

func TestBedrockClientGenerateInvokeError(t *testing.T) {
	stub := &stubInvoker{err: errors.New("throttled")}
	client := &bedrockClient{invoker: stub, cfg: testRouterConfig(), logger: zap.NewNop()}

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
