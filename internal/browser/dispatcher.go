package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/humanoid"
)

// actionHandler executes one action against a resolved session.
type actionHandler func(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error)

// humanoidProvider is implemented by sessions that carry an input
// simulation. The dispatcher asserts to it for the synthetic input actions.
type humanoidProvider interface {
	Humanoid() humanoid.Controller
}

// Dispatcher routes tagged browser actions to session operations. Browser
// failures the model can recover from come back as error-status results, not
// Go errors; a Go error from Dispatch means the caller did something wrong.
type Dispatcher struct {
	manager  schemas.BrowserManager
	logger   *zap.Logger
	handlers map[schemas.ActionType]actionHandler
}

// NewDispatcher builds a dispatcher over the given session manager.
func NewDispatcher(manager schemas.BrowserManager, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		manager: manager,
		logger:  logger.Named("dispatcher"),
	}
	d.handlers = map[schemas.ActionType]actionHandler{
		schemas.ActionNavigate:         d.handleNavigate,
		schemas.ActionClick:            d.handleClick,
		schemas.ActionClickCoordinate:  d.handleClickCoordinate,
		schemas.ActionPressAndHold:     d.handlePressAndHold,
		schemas.ActionHumanMouseMove:   d.handleHumanMouseMove,
		schemas.ActionTypeWithKeyboard: d.handleTypeWithKeyboard,
		schemas.ActionTypeText:         d.handleTypeText,
		schemas.ActionPressKey:         d.handlePressKey,
		schemas.ActionGetText:          d.handleGetText,
		schemas.ActionGetHTML:          d.handleGetHTML,
		schemas.ActionEvaluate:         d.handleEvaluate,
		schemas.ActionElementGeometry:  d.handleElementGeometry,
		schemas.ActionScreenshot:       d.handleScreenshot,
		schemas.ActionRefresh:          d.handleRefresh,
		schemas.ActionBack:             d.handleBack,
		schemas.ActionForward:          d.handleForward,
		schemas.ActionNewTab:           d.handleNewTab,
		schemas.ActionSwitchTab:        d.handleSwitchTab,
		schemas.ActionCloseTab:         d.handleCloseTab,
		schemas.ActionListTabs:         d.handleListTabs,
		schemas.ActionGetCookies:       d.handleGetCookies,
		schemas.ActionSetCookies:       d.handleSetCookies,
		schemas.ActionExecuteCDP:       d.handleExecuteCDP,
	}
	return d
}

// Dispatch executes one action and returns its result. The result always
// carries the session name so multi-session transcripts stay unambiguous.
func (d *Dispatcher) Dispatch(ctx context.Context, action schemas.Action) *schemas.ActionResult {
	start := time.Now()
	result := d.dispatch(ctx, action)
	result.SessionName = action.SessionName
	result.Type = action.Type

	d.logger.Debug("Action dispatched.",
		zap.String("type", string(action.Type)),
		zap.String("session_name", action.SessionName),
		zap.String("status", string(result.Status)),
		zap.Duration("elapsed", time.Since(start)),
	)

	// A settle wait lets the page react before the agent looks again.
	if result.Status == schemas.StatusSuccess && action.WaitSeconds > 0 {
		wait := time.Duration(action.WaitSeconds * float64(time.Second))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, action schemas.Action) *schemas.ActionResult {
	// Session lifecycle actions resolve differently from per-tab actions.
	switch action.Type {
	case schemas.ActionInitSession:
		return d.handleInitSession(ctx, action)
	case schemas.ActionClose:
		return d.handleCloseSession(ctx, action)
	}

	handler, ok := d.handlers[action.Type]
	if !ok {
		return errorResult(ErrCodeInvalidAction, fmt.Sprintf("unknown action type %q", action.Type))
	}

	session, ok := d.manager.Session(action.SessionName)
	if !ok {
		return errorResult(ErrCodeSessionNotFound,
			fmt.Sprintf("no session named %q; create one with init_session first", action.SessionName))
	}

	result, err := handler(ctx, session, action)
	if err != nil {
		return errorResult(classifyError(err), err.Error())
	}
	return result
}

// -- Session lifecycle --

func (d *Dispatcher) handleInitSession(ctx context.Context, action schemas.Action) *schemas.ActionResult {
	session, err := d.manager.NewSession(ctx, action.SessionName)
	if err != nil {
		code := ErrCodeExecutionFailure
		if _, exists := d.manager.Session(action.SessionName); exists {
			code = ErrCodeSessionExists
		}
		return errorResult(code, err.Error())
	}
	if action.URL != "" {
		if err := session.Navigate(ctx, action.URL); err != nil {
			return errorResult(classifyError(err), err.Error())
		}
	}
	return textResult(fmt.Sprintf("session %q ready", action.SessionName))
}

func (d *Dispatcher) handleCloseSession(ctx context.Context, action schemas.Action) *schemas.ActionResult {
	session, ok := d.manager.Session(action.SessionName)
	if !ok {
		return errorResult(ErrCodeSessionNotFound, fmt.Sprintf("no session named %q", action.SessionName))
	}
	if err := session.Close(ctx); err != nil {
		return errorResult(ErrCodeExecutionFailure, err.Error())
	}
	return textResult(fmt.Sprintf("session %q closed", action.SessionName))
}

// -- Navigation and content --

func (d *Dispatcher) handleNavigate(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.URL == "" {
		return errorResult(ErrCodeInvalidAction, "navigate requires a url"), nil
	}
	if err := session.Navigate(ctx, action.URL); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("navigated to %s", action.URL)), nil
}

func (d *Dispatcher) handleGetText(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	text, err := session.GetText(ctx)
	if err != nil {
		return nil, err
	}
	return textResult(text), nil
}

func (d *Dispatcher) handleGetHTML(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	html, err := session.GetHTML(ctx)
	if err != nil {
		return nil, err
	}
	return textResult(html), nil
}

func (d *Dispatcher) handleScreenshot(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	png, err := session.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	return &schemas.ActionResult{
		Status:     schemas.StatusSuccess,
		Text:       "screenshot captured",
		Screenshot: png,
	}, nil
}

func (d *Dispatcher) handleEvaluate(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Script == "" {
		return errorResult(ErrCodeInvalidAction, "evaluate requires a script"), nil
	}
	raw, err := session.Evaluate(ctx, action.Script)
	if err != nil {
		return nil, err
	}
	return dataResult(raw), nil
}

func (d *Dispatcher) handleElementGeometry(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Selector == "" {
		return errorResult(ErrCodeInvalidAction, "get_element_geometry requires a selector"), nil
	}
	geom, err := session.GetElementGeometry(ctx, action.Selector)
	if err != nil {
		return nil, err
	}
	return jsonResult(geom)
}

func (d *Dispatcher) handleRefresh(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	if err := session.Refresh(ctx); err != nil {
		return nil, err
	}
	return textResult("page refreshed"), nil
}

func (d *Dispatcher) handleBack(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	if err := session.Back(ctx); err != nil {
		return nil, err
	}
	return textResult("navigated back"), nil
}

func (d *Dispatcher) handleForward(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	if err := session.Forward(ctx); err != nil {
		return nil, err
	}
	return textResult("navigated forward"), nil
}

// -- Interaction --

func (d *Dispatcher) handleClick(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Selector == "" {
		return errorResult(ErrCodeInvalidAction, "click requires a selector"), nil
	}
	if err := session.ClickSelector(ctx, action.Selector); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("clicked %s", action.Selector)), nil
}

func (d *Dispatcher) handleClickCoordinate(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	human, err := humanoidFor(session)
	if err != nil {
		return nil, err
	}
	if err := human.ClickAt(ctx, action.X, action.Y); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("clicked at (%.0f, %.0f)", action.X, action.Y)), nil
}

func (d *Dispatcher) handlePressAndHold(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	human, err := humanoidFor(session)
	if err != nil {
		return nil, err
	}
	hold := time.Duration(action.HoldSeconds * float64(time.Second))
	if hold <= 0 {
		hold = 3 * time.Second
	}
	if err := human.PressAndHold(ctx, action.X, action.Y, hold); err != nil {
		return nil, err
	}
	if action.X == 0 && action.Y == 0 {
		return textResult(fmt.Sprintf("pressed and held at the current position for %.1fs", hold.Seconds())), nil
	}
	return textResult(fmt.Sprintf("pressed and held at (%.0f, %.0f) for %.1fs", action.X, action.Y, hold.Seconds())), nil
}

func (d *Dispatcher) handleHumanMouseMove(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	human, err := humanoidFor(session)
	if err != nil {
		return nil, err
	}
	start := humanoid.Vector2D{X: action.StartX, Y: action.StartY}
	end := humanoid.Vector2D{X: action.EndX, Y: action.EndY}
	if err := human.MoveBetween(ctx, start, end); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("moved from (%.0f, %.0f) to (%.0f, %.0f)",
		action.StartX, action.StartY, action.EndX, action.EndY)), nil
}

func (d *Dispatcher) handleTypeWithKeyboard(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Text == "" {
		return errorResult(ErrCodeInvalidAction, "type_with_keyboard requires text"), nil
	}
	human, err := humanoidFor(session)
	if err != nil {
		return nil, err
	}
	if err := human.TypeText(ctx, action.Text); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("typed %d characters", len([]rune(action.Text)))), nil
}

func (d *Dispatcher) handleTypeText(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Selector == "" {
		return errorResult(ErrCodeInvalidAction, "type requires a selector"), nil
	}
	if action.Text == "" {
		return errorResult(ErrCodeInvalidAction, "type requires text"), nil
	}
	if err := session.TypeIntoSelector(ctx, action.Selector, action.Text); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("typed into %s", action.Selector)), nil
}

func (d *Dispatcher) handlePressKey(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Key == "" {
		return errorResult(ErrCodeInvalidAction, "press_key requires a key"), nil
	}
	if err := session.PressKey(ctx, action.Key); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("pressed %s", action.Key)), nil
}

// -- Tabs --

func (d *Dispatcher) handleNewTab(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	info, err := session.NewTab(ctx, action.URL)
	if err != nil {
		return nil, err
	}
	return jsonResult(info)
}

func (d *Dispatcher) handleSwitchTab(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.TabID == "" {
		return errorResult(ErrCodeInvalidAction, "switch_tab requires a tab_id"), nil
	}
	if err := session.SwitchTab(ctx, action.TabID); err != nil {
		return errorResult(ErrCodeTabNotFound, err.Error()), nil
	}
	return textResult(fmt.Sprintf("switched to tab %s", action.TabID)), nil
}

func (d *Dispatcher) handleCloseTab(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.TabID == "" {
		return errorResult(ErrCodeInvalidAction, "close_tab requires a tab_id"), nil
	}
	if err := session.CloseTab(ctx, action.TabID); err != nil {
		return errorResult(ErrCodeTabNotFound, err.Error()), nil
	}
	return textResult(fmt.Sprintf("closed tab %s", action.TabID)), nil
}

func (d *Dispatcher) handleListTabs(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	tabs, err := session.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(tabs)
}

// -- Cookies and raw protocol --

func (d *Dispatcher) handleGetCookies(ctx context.Context, session schemas.SessionContext, _ schemas.Action) (*schemas.ActionResult, error) {
	cookies, err := session.GetCookies(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(cookies)
}

func (d *Dispatcher) handleSetCookies(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if len(action.Cookies) == 0 {
		return errorResult(ErrCodeInvalidAction, "set_cookies requires cookies"), nil
	}
	if err := session.SetCookies(ctx, action.Cookies); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("set %d cookies", len(action.Cookies))), nil
}

func (d *Dispatcher) handleExecuteCDP(ctx context.Context, session schemas.SessionContext, action schemas.Action) (*schemas.ActionResult, error) {
	if action.Method == "" {
		return errorResult(ErrCodeInvalidAction, "execute_cdp requires a method"), nil
	}
	raw, err := session.ExecuteCDP(ctx, action.Method, action.Params)
	if err != nil {
		return nil, err
	}
	return dataResult(raw), nil
}

// -- Helpers --

func humanoidFor(session schemas.SessionContext) (humanoid.Controller, error) {
	provider, ok := session.(humanoidProvider)
	if !ok {
		return nil, fmt.Errorf("session does not support synthetic input")
	}
	return provider.Humanoid(), nil
}

func textResult(text string) *schemas.ActionResult {
	return &schemas.ActionResult{Status: schemas.StatusSuccess, Text: text}
}

func dataResult(data json.RawMessage) *schemas.ActionResult {
	return &schemas.ActionResult{Status: schemas.StatusSuccess, Data: data}
}

func jsonResult(v interface{}) (*schemas.ActionResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return dataResult(data), nil
}

func errorResult(code, details string) *schemas.ActionResult {
	return &schemas.ActionResult{
		Status:       schemas.StatusError,
		ErrorCode:    code,
		ErrorDetails: details,
	}
}
