package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
	"github.com/kmalloy/sitejudge/internal/humanoid"
)

// tab is one attached page target within a session.
type tab struct {
	id       string
	targetID string
	title    string
	url      string
	ctx      context.Context
	cancel   context.CancelFunc
}

// Session is a single remote browsing session. It tracks the tabs the agent
// (or the site itself) opens and keeps one active; tab-less operations act on
// the active tab. Session implements schemas.SessionContext and backs the
// humanoid executor with real CDP dispatch.
type Session struct {
	name   string
	logger *zap.Logger
	cfg    *config.Config

	// browserCtx is the first chromedp context created from the allocator.
	// It anchors the target chain; new tabs branch off it.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.RWMutex
	tabs     map[string]*tab
	tabOrder []string
	activeID string
	tabSeq   int

	human *humanoid.Humanoid

	onClose   func()
	closeOnce sync.Once
}

var _ schemas.SessionContext = (*Session)(nil)
var _ humanoid.Executor = (*Session)(nil)

func newSession(allocCtx context.Context, name string, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if allocCtx == nil {
		return nil, fmt.Errorf("allocator context is nil")
	}
	s := &Session{
		name:   name,
		logger: logger.With(zap.String("session_name", name)),
		cfg:    cfg,
		tabs:   make(map[string]*tab),
	}
	s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			s.logger.Sugar().Debugf(format, args...)
		}))
	return s, nil
}

// initialize attaches the first tab, applies the Chrome-on-Linux persona,
// and wires up the input simulation.
func (s *Session) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, s.cfg.Browser.NavigationTimeout)
	defer cancel()

	if err := runWith(initCtx, s.browserCtx, applyStealth(s.persona())); err != nil {
		return fmt.Errorf("failed to apply session persona: %w", err)
	}

	first := &tab{
		id:     s.nextTabID(""),
		ctx:    s.browserCtx,
		cancel: s.browserCancel,
	}
	if c := chromedp.FromContext(s.browserCtx); c != nil && c.Target != nil {
		first.targetID = string(c.Target.TargetID)
	}

	s.mu.Lock()
	s.tabs[first.id] = first
	s.tabOrder = append(s.tabOrder, first.id)
	s.activeID = first.id
	s.mu.Unlock()

	hcfg := s.cfg.Browser.Humanoid
	s.human = humanoid.New(hcfg, s.logger.Named("humanoid"), s)

	return nil
}

// Name returns the session name the agent addresses this session by.
func (s *Session) Name() string {
	return s.name
}

// Humanoid exposes the session's input simulation to the dispatcher.
func (s *Session) Humanoid() humanoid.Controller {
	return s.human
}

func (s *Session) persona() schemas.Persona {
	p := schemas.DefaultPersona
	if ua := s.cfg.Browser.UserAgent; ua != "" {
		p.UserAgent = ua
	}
	return p
}

// activeTab returns the context of the active tab.
func (s *Session) activeTab() (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[s.activeID]
	if !ok {
		return nil, fmt.Errorf("session %q has no active tab", s.name)
	}
	return t.ctx, nil
}

// run executes chromedp actions on the active tab, honoring the caller's
// context for cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, err := s.activeTab()
	if err != nil {
		return err
	}
	return runWith(ctx, tabCtx, actions...)
}

// runWith runs actions on tabCtx but returns early if opCtx is done. The
// chromedp context is long-lived per tab; the operation context bounds one
// call.
func runWith(opCtx, tabCtx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-opCtx.Done():
		return opCtx.Err()
	}
}

// -- Navigation and content --

func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Browser.NavigationTimeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.run(opCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *Session) Refresh(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Browser.NavigationTimeout)
	defer cancel()
	return s.run(opCtx, chromedp.Reload())
}

func (s *Session) Back(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateBack())
}

func (s *Session) Forward(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateForward())
}

func (s *Session) GetHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

// GetText returns the page's visible text, stripped of markup, scripts, and
// styles. This is the cheap alternative to a screenshot when the model only
// needs to read.
func (s *Session) GetText(ctx context.Context) (string, error) {
	html, err := s.GetHTML(ctx)
	if err != nil {
		return "", err
	}
	return extractVisibleText(strings.NewReader(html))
}

// Screenshot captures the active tab as PNG bytes for vision models.
// Animations are frozen first so the capture is stable, and the whole
// operation is bounded by the configured screenshot timeout.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Browser.ScreenshotTimeout)
	defer cancel()

	var buf []byte
	err := s.run(opCtx,
		chromedp.Evaluate(freezeAnimationsJS, nil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// freezeAnimationsJS suppresses CSS animations and transitions so screenshots
// do not catch elements mid-flight.
const freezeAnimationsJS = `(() => {
	const style = document.createElement('style');
	style.textContent = '*, *::before, *::after { animation: none !important; transition: none !important; }';
	document.head && document.head.appendChild(style);
})()`

// -- Interaction --

func (s *Session) ClickSelector(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.run(opCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// TypeIntoSelector clears the first visible element matching the selector and
// types the text into it.
func (s *Session) TypeIntoSelector(ctx context.Context, selector, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.run(opCtx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

// PressKey sends a named key (e.g. "Enter", "Escape", "Tab") to the focused
// element.
func (s *Session) PressKey(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.run(opCtx, chromedp.KeyEvent(namedKey(key)))
}

// namedKey maps human-readable key names onto the raw characters chromedp's
// key event builder understands. Unknown names pass through unchanged.
func namedKey(key string) string {
	switch strings.ToLower(key) {
	case "enter", "return":
		return "\r"
	case "tab":
		return "\t"
	case "escape", "esc":
		return "\x1b"
	case "backspace":
		return "\b"
	case "delete":
		return ""
	default:
		return key
	}
}

func (s *Session) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return raw, nil
}

// -- Cookies --

func (s *Session) GetCookies(ctx context.Context) ([]*schemas.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]*schemas.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			Session:  c.Session,
			SameSite: schemas.CookieSameSite(c.SameSite),
		})
	}
	return out, nil
}

func (s *Session) SetCookies(ctx context.Context, cookies []*schemas.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// -- Raw protocol access --

// ExecuteCDP sends a raw protocol call to the active tab. It exists for the
// rare site quirk where no higher-level operation fits.
func (s *Session) ExecuteCDP(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	var result json.RawMessage
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var p interface{}
		if len(params) > 0 {
			p = params
		}
		return cdp.Execute(ctx, method, p, &result)
	}))
	if err != nil {
		return nil, fmt.Errorf("cdp call %s failed: %w", method, err)
	}
	return result, nil
}

// -- Humanoid executor primitives --

// Sleep pauses for d, honoring context cancellation.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatchMouseEvent dispatches a single low-level mouse event.
func (s *Session) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))
	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.run(opCtx, p)
}

// SendKeys dispatches keystrokes into the focused element.
func (s *Session) SendKeys(ctx context.Context, keys string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.run(opCtx, chromedp.KeyEvent(keys))
}

// GetElementGeometry reports the bounding box of the first element matching
// the selector, in viewport coordinates.
func (s *Session) GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return {
			vertices: [r.left, r.top, r.right, r.top, r.right, r.bottom, r.left, r.bottom],
			width: Math.round(r.width),
			height: Math.round(r.height),
			tagName: el.tagName,
			type: el.getAttribute('type') || ''
		};
	})()`, selector)

	raw, err := s.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("could not find node for selector %q", selector)
	}
	var geom schemas.ElementGeometry
	if err := json.Unmarshal(raw, &geom); err != nil {
		return nil, fmt.Errorf("failed to decode element geometry: %w", err)
	}
	return &geom, nil
}

// -- Lifecycle --

// Close tears down every tab and deregisters from the manager. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")

		s.mu.Lock()
		tabs := make([]*tab, 0, len(s.tabs))
		for _, t := range s.tabs {
			tabs = append(tabs, t)
		}
		s.tabs = make(map[string]*tab)
		s.tabOrder = nil
		s.activeID = ""
		s.mu.Unlock()

		for _, t := range tabs {
			if t.cancel != nil {
				t.cancel()
			}
		}

		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
