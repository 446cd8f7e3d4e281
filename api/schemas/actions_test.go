package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// The JSON action shapes are the wire contract with the model; replies like
// these must decode into the fields the dispatcher reads.
func TestActionWireContract(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		payload string
		check   func(t *testing.T, a schemas.Action)
	}{
		{
			name:    "Navigate",
			payload: `{"type": "navigate", "url": "https://www.booking.com", "wait_seconds": 2}`,
			check: func(t *testing.T, a schemas.Action) {
				assert.Equal(t, schemas.ActionNavigate, a.Type)
				assert.Equal(t, "https://www.booking.com", a.URL)
				assert.Equal(t, 2.0, a.WaitSeconds)
			},
		},
		{
			name:    "ClickCoordinate",
			payload: `{"type": "click_coordinate", "x": 640, "y": 412.5}`,
			check: func(t *testing.T, a schemas.Action) {
				assert.Equal(t, schemas.ActionClickCoordinate, a.Type)
				assert.Equal(t, 640.0, a.X)
				assert.Equal(t, 412.5, a.Y)
			},
		},
		{
			name:    "PressAndHold",
			payload: `{"type": "press_and_hold", "x": 100, "y": 200, "hold_seconds": 7}`,
			check: func(t *testing.T, a schemas.Action) {
				assert.Equal(t, schemas.ActionPressAndHold, a.Type)
				assert.Equal(t, 7.0, a.HoldSeconds)
			},
		},
		{
			name:    "HumanMouseMove",
			payload: `{"type": "human_mouse_move", "start_x": 10, "start_y": 20, "end_x": 300, "end_y": 400}`,
			check: func(t *testing.T, a schemas.Action) {
				assert.Equal(t, schemas.ActionHumanMouseMove, a.Type)
				assert.Equal(t, 300.0, a.EndX)
				assert.Equal(t, 400.0, a.EndY)
			},
		},
		{
			name:    "TypeIntoSelector",
			payload: `{"type": "type", "selector": "input[placeholder=\"Search\"]", "text": "Zurich"}`,
			check: func(t *testing.T, a schemas.Action) {
				assert.Equal(t, schemas.ActionTypeText, a.Type)
				assert.Equal(t, `input[placeholder="Search"]`, a.Selector)
				assert.Equal(t, "Zurich", a.Text)
			},
		},
		{
			name:    "SwitchTab",
			payload: `{"type": "switch_tab", "tab_id": "hotel_results"}`,
			check: func(t *testing.T, a schemas.Action) {
				assert.Equal(t, schemas.ActionSwitchTab, a.Type)
				assert.Equal(t, "hotel_results", a.TabID)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var action schemas.Action
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &action))
			tc.check(t, action)
		})
	}
}

func TestActionResultHidesScreenshotBytes(t *testing.T) {
	t.Parallel()
	result := schemas.ActionResult{
		SessionName: "booking_run",
		Type:        schemas.ActionScreenshot,
		Status:      schemas.StatusSuccess,
		Screenshot:  []byte{0x89, 0x50, 0x4e, 0x47},
	}

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "PNG")
	assert.Contains(t, string(encoded), `"session_name":"booking_run"`)
}
