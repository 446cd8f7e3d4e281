package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the connection to the remote managed browser and the registry
// of named sessions. Connecting is deferred until the first session is
// requested so constructing a Manager never touches the network.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	// wg tracks live sessions so Shutdown can wait for them.
	wg sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

var _ schemas.BrowserManager = (*Manager)(nil)

// NewManager creates a browser manager. The CDP websocket endpoint comes from
// configuration; no connection is made yet.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.logger.Info("Browser manager created (connection deferred).")
	return m
}

// initialize attaches the allocator to the remote browser endpoint.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		endpoint := m.cfg.Browser.CDPEndpoint
		if endpoint == "" {
			m.initErr = fmt.Errorf("browser.cdp_endpoint is not configured")
			return
		}

		m.logger.Info("Connecting to remote browser.", zap.String("endpoint", endpoint))

		// The allocator context must outlive the caller's request context,
		// so it hangs off Background and is torn down in Shutdown.
		m.allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(context.Background(), endpoint)
	})
	return m.initErr
}

// NewSession opens a browsing session under the given name. Session names
// are the handle the agent uses in every action, so they must be unique
// among live sessions.
func (m *Manager) NewSession(ctx context.Context, name string) (schemas.SessionContext, error) {
	if name == "" {
		return nil, fmt.Errorf("session name must not be empty")
	}
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.sessions[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %q already exists", name)
	}
	// Reserve the name before the slow init so concurrent creates with the
	// same name fail fast.
	m.sessions[name] = nil
	m.mu.Unlock()

	session, err := newSession(m.allocCtx, name, m.cfg, m.logger)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, name)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to create session %q: %w", name, err)
	}

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, name)
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_name", name))
	}

	if err := session.initialize(ctx); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = session.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to initialize session %q: %w", name, err)
	}

	m.mu.Lock()
	m.sessions[name] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_name", name))
	return session, nil
}

// Session returns the live session registered under name.
func (m *Manager) Session(name string) (schemas.SessionContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

// SessionNames lists the names of all live sessions.
func (m *Manager) SessionNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sessions))
	for name, s := range m.sessions {
		if s != nil {
			names = append(names, name)
		}
	}
	return names
}

// Shutdown gracefully closes all sessions and detaches from the remote
// browser. The remote browser itself keeps running; it belongs to the
// managed service, not to us.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s != nil {
			sessionsToClose = append(sessionsToClose, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range sessionsToClose {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error during session close in shutdown.",
					zap.String("session_name", s.Name()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close.", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period elapsed waiting for sessions to close.")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
