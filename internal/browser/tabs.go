package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
)

const (
	// tabAdoptionRounds and tabAdoptionInterval bound how long ListTabs
	// waits for a page the site opened on its own to surface as a target.
	tabAdoptionRounds   = 5
	tabAdoptionInterval = time.Second
)

// NewTab opens a new tab, optionally navigating it, and makes it active.
func (s *Session) NewTab(ctx context.Context, url string) (*schemas.TabInfo, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	actions := []chromedp.Action{chromedp.Navigate("about:blank")}
	if url != "" {
		actions = []chromedp.Action{
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Browser.NavigationTimeout)
	defer cancel()
	if err := runWith(opCtx, tabCtx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open new tab: %w", err)
	}

	title, pageURL := describeTab(opCtx, tabCtx)

	t := &tab{
		id:     s.nextTabID(title),
		title:  title,
		url:    pageURL,
		ctx:    tabCtx,
		cancel: tabCancel,
	}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		t.targetID = string(c.Target.TargetID)
	}

	s.mu.Lock()
	s.tabs[t.id] = t
	s.tabOrder = append(s.tabOrder, t.id)
	s.activeID = t.id
	s.mu.Unlock()

	s.logger.Debug("Opened new tab.", zap.String("tab_id", t.id), zap.String("url", url))
	return &schemas.TabInfo{ID: t.id, Title: t.title, URL: t.url, Active: true}, nil
}

// SwitchTab makes the given tab the active one.
func (s *Session) SwitchTab(ctx context.Context, tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[tabID]; !ok {
		return fmt.Errorf("tab %q not found in session %q", tabID, s.name)
	}
	s.activeID = tabID
	return nil
}

// CloseTab detaches and removes a tab. Closing the active tab activates the
// oldest remaining one.
func (s *Session) CloseTab(ctx context.Context, tabID string) error {
	s.mu.Lock()
	t, ok := s.tabs[tabID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("tab %q not found in session %q", tabID, s.name)
	}
	delete(s.tabs, tabID)
	for i, id := range s.tabOrder {
		if id == tabID {
			s.tabOrder = append(s.tabOrder[:i], s.tabOrder[i+1:]...)
			break
		}
	}
	if s.activeID == tabID {
		s.activeID = ""
		if len(s.tabOrder) > 0 {
			s.activeID = s.tabOrder[0]
		}
	}
	s.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// ListTabs reports the session's tabs. Before reporting it polls the browser
// for page targets we are not tracking yet; sites open partner pages and
// payment flows in their own tabs, and the agent needs to see those.
func (s *Session) ListTabs(ctx context.Context) ([]schemas.TabInfo, error) {
	for round := 0; round < tabAdoptionRounds; round++ {
		adopted, err := s.adoptUntrackedTabs(ctx)
		if err != nil {
			return nil, err
		}
		if adopted > 0 {
			break
		}
		if round < tabAdoptionRounds-1 {
			if err := s.Sleep(ctx, tabAdoptionInterval); err != nil {
				return nil, err
			}
		}
	}
	return s.snapshotTabs(ctx), nil
}

// adoptUntrackedTabs attaches to page targets that exist in the browser but
// are not in our registry, returning how many were adopted.
func (s *Session) adoptUntrackedTabs(ctx context.Context) (int, error) {
	infos, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		return 0, fmt.Errorf("failed to list browser targets: %w", err)
	}

	s.mu.RLock()
	known := make(map[string]bool, len(s.tabs))
	for _, t := range s.tabs {
		known[t.targetID] = true
	}
	s.mu.RUnlock()

	adopted := 0
	for _, info := range infos {
		if info.Type != "page" || known[string(info.TargetID)] {
			continue
		}
		if strings.HasPrefix(info.URL, "devtools://") {
			continue
		}

		tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(info.TargetID))
		t := &tab{
			id:       s.nextTabID(info.Title),
			targetID: string(info.TargetID),
			title:    info.Title,
			url:      info.URL,
			ctx:      tabCtx,
			cancel:   tabCancel,
		}

		s.mu.Lock()
		s.tabs[t.id] = t
		s.tabOrder = append(s.tabOrder, t.id)
		s.mu.Unlock()

		s.logger.Info("Adopted tab opened by the page.",
			zap.String("tab_id", t.id), zap.String("url", info.URL))
		adopted++
	}
	return adopted, nil
}

// snapshotTabs refreshes title/URL for each tracked tab and returns the view.
func (s *Session) snapshotTabs(ctx context.Context) []schemas.TabInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]schemas.TabInfo, 0, len(s.tabOrder))
	for _, id := range s.tabOrder {
		t := s.tabs[id]
		if t == nil {
			continue
		}
		title, pageURL := describeTab(ctx, t.ctx)
		if title != "" {
			t.title = title
		}
		if pageURL != "" {
			t.url = pageURL
		}
		out = append(out, schemas.TabInfo{
			ID:     t.id,
			Title:  t.title,
			URL:    t.url,
			Active: t.id == s.activeID,
		})
	}
	return out
}

// describeTab reads a tab's current title and URL, tolerating failure; a tab
// mid-navigation simply reports what it had.
func describeTab(opCtx, tabCtx context.Context) (title, url string) {
	shortCtx, cancel := context.WithTimeout(opCtx, 3*time.Second)
	defer cancel()
	_ = runWith(shortCtx, tabCtx,
		chromedp.Title(&title),
		chromedp.Location(&url),
	)
	return title, url
}

// nextTabID derives a stable tab id from the page title, falling back to a
// sequence number for untitled pages. Assumes nothing about locking; it takes
// the session lock itself.
func (s *Session) nextTabID(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tabSeq++
	slug := slugifyTitle(title)
	if slug == "" {
		return fmt.Sprintf("tab_%d", s.tabSeq)
	}
	if _, taken := s.tabs[slug]; taken {
		return fmt.Sprintf("%s_%d", slug, s.tabSeq)
	}
	return slug
}

// slugifyTitle lowercases a page title and squeezes it into an identifier.
func slugifyTitle(title string) string {
	title = strings.TrimSpace(strings.ToLower(title))
	if title == "" {
		return ""
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= 32 {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}
