package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/robotdriver/pkg/logging"
)

// SessionManager manages all active playwright sessions. Each session owns
// its own browser so concurrent goals never share a page.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	maxSessions int
	initialized bool
	logger      *logging.Logger
}

// NewSessionManager creates a new session manager. A nil logger discards output.
func NewSessionManager(logger *logging.Logger) *SessionManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		logger:      logger,
	}
}

// Initialize installs the playwright driver and browsers if needed and starts
// the driver. It must be called before creating any sessions.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	m.logger.Debugf("playwright driver started")
	return nil
}

// StartSession creates a new browser session with the given name and options.
func (m *SessionManager) StartSession(name string, opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[name]; exists {
		return nil, fmt.Errorf("session %q already exists", name)
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}
	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}

	opts = opts.withDefaults()

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(millis(opts.SlowMo))
	}
	browser, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	pg.SetDefaultTimeout(millis(opts.Timeout))

	session := &Session{
		Name:      name,
		Browser:   browser,
		Context:   bctx,
		Page:      pg,
		Headless:  opts.Headless,
		CreatedAt: time.Now(),
	}

	m.sessions[name] = session
	m.logger.Infof("started browser session %s (headless=%t)", name, opts.Headless)
	return session, nil
}

// CloseSession closes and removes a browser session.
func (m *SessionManager) CloseSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[name]
	if !exists {
		return fmt.Errorf("session %q not found", name)
	}
	delete(m.sessions, name)

	if err := session.close(); err != nil {
		m.logger.Warnf("closing session %s: %v", name, err)
	}
	m.logger.Debugf("closed browser session %s", name)
	return nil
}

func (m *SessionManager) closeAllLocked() error {
	var errs []error
	for name, session := range m.sessions {
		if err := session.close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", name, err))
		}
		delete(m.sessions, name)
	}
	return errors.Join(errs...)
}

// Shutdown closes all sessions and stops the playwright driver.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.closeAllLocked()

	if m.initialized && m.playwright != nil {
		if stopErr := m.playwright.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop playwright: %w", stopErr))
		}
		m.initialized = false
	}
	return err
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (m *SessionManager) SetMaxSessions(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxSessions = max
	}
}

