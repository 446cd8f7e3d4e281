package llmutil

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAction struct {
	Type     string  `json:"type"`
	URL      string  `json:"url,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Thinking string  `json:"thinking,omitempty"`
}

func TestParseJSONResponseBare(t *testing.T) {
	resp := `{"type": "navigate", "url": "https://www.booking.com"}`

	action, err := ParseJSONResponse[testAction](resp)
	require.NoError(t, err)
	assert.Equal(t, "navigate", action.Type)
	assert.Equal(t, "https://www.booking.com", action.URL)
}

func TestParseJSONResponseMarkdownFence(t *testing.T) {
	resp := "```json\n{\"type\": \"click_coordinate\", \"x\": 640, \"y\": 360}\n```"

	action, err := ParseJSONResponse[testAction](resp)
	require.NoError(t, err)
	assert.Equal(t, "click_coordinate", action.Type)
	assert.Equal(t, 640.0, action.X)
	assert.Equal(t, 360.0, action.Y)
}

func TestParseJSONResponseFenceWithoutLanguage(t *testing.T) {
	resp := "```\n{\"type\": \"screenshot\"}\n```"

	action, err := ParseJSONResponse[testAction](resp)
	require.NoError(t, err)
	assert.Equal(t, "screenshot", action.Type)
}

func TestParseJSONResponseConversationalPreamble(t *testing.T) {
	resp := `I will now take a screenshot to see the current state.

{"type": "screenshot", "thinking": "need to see the page"}

Let me know the result.`

	action, err := ParseJSONResponse[testAction](resp)
	require.NoError(t, err)
	assert.Equal(t, "screenshot", action.Type)
	assert.Equal(t, "need to see the page", action.Thinking)
}

func TestParseJSONResponseArray(t *testing.T) {
	resp := "```json\n[{\"type\": \"navigate\"}, {\"type\": \"screenshot\"}]\n```"

	actions, err := ParseJSONResponse[[]testAction](resp)
	require.NoError(t, err)
	require.Len(t, *actions, 2)
	assert.Equal(t, "navigate", (*actions)[0].Type)
}

func TestParseJSONResponseNestedBraces(t *testing.T) {
	resp := "Here: ```json\n{\"type\": \"evaluate\", \"thinking\": \"check {nested} braces\"}\n```"

	action, err := ParseJSONResponse[testAction](resp)
	require.NoError(t, err)
	assert.Equal(t, "evaluate", action.Type)
}

func TestParseJSONResponseInvalid(t *testing.T) {
	_, err := ParseJSONResponse[testAction]("the page looks fine to me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal LLM JSON response")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 50))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abcdef", 0))

	// Multi-byte characters are never split mid-rune.
	got := Truncate("Zürich Hauptbahnhof — Füßgängerzone", 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Zürich Hau...", got)
}

func TestParseJSONResponseTruncatesErrorSnippet(t *testing.T) {
	long := "{" + string(make([]byte, 2000))

	_, err := ParseJSONResponse[testAction](long)
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 1000)
}
