package schemas

import "encoding/json"

// -- Browser Action Schemas --

// ActionType discriminates the tagged browser action payloads the agent can
// request. The dispatcher in internal/browser maps each type to a session
// operation.
type ActionType string

const (
	ActionInitSession      ActionType = "init_session"
	ActionNavigate         ActionType = "navigate"
	ActionClick            ActionType = "click"
	ActionClickCoordinate  ActionType = "click_coordinate"
	ActionPressAndHold     ActionType = "press_and_hold"
	ActionHumanMouseMove   ActionType = "human_mouse_move"
	ActionTypeWithKeyboard ActionType = "type_with_keyboard"
	ActionTypeText         ActionType = "type"
	ActionPressKey         ActionType = "press_key"
	ActionGetText          ActionType = "get_text"
	ActionGetHTML          ActionType = "get_html"
	ActionEvaluate         ActionType = "evaluate"
	ActionElementGeometry  ActionType = "get_element_geometry"
	ActionScreenshot       ActionType = "screenshot"
	ActionRefresh          ActionType = "refresh"
	ActionBack             ActionType = "back"
	ActionForward          ActionType = "forward"
	ActionNewTab           ActionType = "new_tab"
	ActionSwitchTab        ActionType = "switch_tab"
	ActionCloseTab         ActionType = "close_tab"
	ActionListTabs         ActionType = "list_tabs"
	ActionGetCookies       ActionType = "get_cookies"
	ActionSetCookies       ActionType = "set_cookies"
	ActionExecuteCDP       ActionType = "execute_cdp"
	ActionClose            ActionType = "close"
)

// Action is a single tagged browser action. Only the fields relevant to the
// action's type are populated; the rest stay at their zero values. The JSON
// shape doubles as the tool-call contract the LLM emits.
type Action struct {
	Type        ActionType `json:"type"`
	SessionName string     `json:"session_name,omitempty"`
	URL         string     `json:"url,omitempty"`
	Selector    string     `json:"selector,omitempty"`
	Text        string     `json:"text,omitempty"`
	Key         string     `json:"key,omitempty"`
	Script      string     `json:"script,omitempty"`
	// Coordinate targets for click_coordinate and press_and_hold.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	// Endpoints for human_mouse_move.
	StartX float64 `json:"start_x,omitempty"`
	StartY float64 `json:"start_y,omitempty"`
	EndX   float64 `json:"end_x,omitempty"`
	EndY   float64 `json:"end_y,omitempty"`
	// HoldSeconds is how long press_and_hold keeps the button down.
	HoldSeconds float64 `json:"hold_seconds,omitempty"`
	TabID       string  `json:"tab_id,omitempty"`
	// Raw CDP method and params for execute_cdp.
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Cookies []*Cookie `json:"cookies,omitempty"`
	// WaitSeconds adds a settle delay after the action completes.
	WaitSeconds float64 `json:"wait_seconds,omitempty"`
	Description string  `json:"description,omitempty"`
}

// ActionStatus reports whether an action succeeded.
type ActionStatus string

const (
	StatusSuccess ActionStatus = "success"
	StatusError   ActionStatus = "error"
)

// ActionResult is what the dispatcher hands back to the agent. Browser-level
// failures the model can recover from (element missing, timeout) surface here
// as StatusError with an ErrorCode; they are not Go errors.
type ActionResult struct {
	SessionName string          `json:"session_name"`
	Type        ActionType      `json:"type"`
	Status      ActionStatus    `json:"status"`
	Text        string          `json:"text,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	// Screenshot carries raw PNG bytes for vision-capable models. Kept out
	// of the JSON encoding; it travels as an image part instead.
	Screenshot   []byte `json:"-"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// TabInfo describes one tracked tab in a session.
type TabInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}
