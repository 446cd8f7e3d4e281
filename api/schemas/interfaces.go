package schemas

import (
	"context"
	"encoding/json"
	"time"
)

// -- Browser Interfaces --

// BrowserManager owns the connection to the remote browser and the registry
// of named sessions.
type BrowserManager interface {
	// NewSession opens a browsing session under the given name. Names are
	// unique; reusing a live name is an error.
	NewSession(ctx context.Context, name string) (SessionContext, error)
	// Session returns the live session registered under name, if any.
	Session(name string) (SessionContext, bool)
	// Shutdown closes every live session and waits for them, bounded by ctx.
	Shutdown(ctx context.Context) error
}

// SessionContext controls a single remote browsing session. Implementations
// track the session's tabs and keep one of them active; tab-less methods act
// on the active tab.
type SessionContext interface {
	Name() string
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	GetHTML(ctx context.Context) (string, error)
	GetText(ctx context.Context) (string, error)
	ClickSelector(ctx context.Context, selector string) error
	TypeIntoSelector(ctx context.Context, selector, text string) error
	PressKey(ctx context.Context, key string) error
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	Refresh(ctx context.Context) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	NewTab(ctx context.Context, url string) (*TabInfo, error)
	SwitchTab(ctx context.Context, tabID string) error
	CloseTab(ctx context.Context, tabID string) error
	// ListTabs reports tracked tabs after adopting any pages the site opened
	// on its own.
	ListTabs(ctx context.Context) ([]TabInfo, error)
	GetCookies(ctx context.Context) ([]*Cookie, error)
	SetCookies(ctx context.Context, cookies []*Cookie) error
	// ExecuteCDP sends a raw protocol call to the active tab.
	ExecuteCDP(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
	Close(ctx context.Context) error

	// Low-level primitives backing synthetic input.
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data MouseEventData) error
	SendKeys(ctx context.Context, keys string) error
	GetElementGeometry(ctx context.Context, selector string) (*ElementGeometry, error)
}

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a model conversation. Images carry raw PNG bytes
// (screenshots) for vision-capable models.
type Message struct {
	Role   Role     `json:"role"`
	Text   string   `json:"text"`
	Images [][]byte `json:"-"`
}

// GenerationOptions provides detailed parameters to control the text
// generation process of the LLM.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	MaxTokens       int     `json:"max_tokens"`        // Upper bound on the completion length.
}

// GenerationRequest encapsulates a complete request to the LLM. Single-shot
// callers set UserPrompt; the recorder passes its full conversation through
// Messages, in which case UserPrompt is ignored.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Messages     []Message         `json:"messages,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large
// Language Model, abstracting the specifics of the underlying provider
// (e.g., Bedrock, Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
