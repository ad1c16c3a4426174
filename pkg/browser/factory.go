// Package browser opens live browser pages for robotdriver. Two browser
// engines are supported: playwright-go (default) and go-rod. Both expose their
// pages as page.Navigator and read the accessibility tree with the CDP call
// Accessibility.getFullAXTree. The static engine skips the browser and serves
// plain HTTP documents through htmlpage.
package browser

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/htmlpage"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// Pool is a page.Factory backed by a running browser engine.
type Pool interface {
	page.Factory

	// Engine reports which backend serves the pages
	Engine() config.Engine

	// Sessions describes the pages opened and not yet released
	Sessions() []SessionInfo

	// Close releases every page and stops the engine
	Close() error
}

// NewPool starts the engine selected by cfg.
func NewPool(ctx context.Context, cfg config.BrowserConfig, logger *logging.Logger) (Pool, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	opts := OptionsFromConfig(cfg)

	switch cfg.Engine {
	case config.EnginePlaywright, "":
		m := NewSessionManager(logger)
		if cfg.MaxSessions > 0 {
			m.SetMaxSessions(cfg.MaxSessions)
		}
		if err := m.Initialize(); err != nil {
			return nil, err
		}
		return &playwrightPool{manager: m, opts: opts, open: newOpenPages(config.EnginePlaywright, opts.Headless)}, nil
	case config.EngineRod:
		b, err := LaunchRod(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return &rodPool{browser: b, open: newOpenPages(config.EngineRod, opts.Headless)}, nil
	case config.EngineStatic:
		return &staticPool{
			browser: htmlpage.NewBrowser(nil, opts.Timeout),
			open:    newOpenPages(config.EngineStatic, true),
		}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}

type playwrightPool struct {
	manager *SessionManager
	opts    SessionOptions
	open    *openPages
}

func (p *playwrightPool) Engine() config.Engine { return config.EnginePlaywright }

func (p *playwrightPool) Open(ctx context.Context) (page.Navigator, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	name := "session-" + uuid.NewString()
	s, err := p.manager.StartSession(name, p.opts)
	if err != nil {
		return nil, nil, err
	}
	return s, p.open.track(name, s, func() { _ = p.manager.CloseSession(name) }), nil
}

func (p *playwrightPool) Sessions() []SessionInfo { return p.open.list() }

func (p *playwrightPool) Close() error {
	return p.manager.Shutdown()
}

type rodPool struct {
	browser *RodBrowser
	open    *openPages
}

func (p *rodPool) Engine() config.Engine { return config.EngineRod }

func (p *rodPool) Open(ctx context.Context) (page.Navigator, func(), error) {
	pg, err := p.browser.NewPage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pg, p.open.track("", pg, func() {
		if err := pg.Close(); err != nil {
			p.browser.logger.Warnf("closing page: %v", err)
		}
	}), nil
}

func (p *rodPool) Sessions() []SessionInfo { return p.open.list() }

func (p *rodPool) Close() error {
	return p.browser.Close()
}

type staticPool struct {
	browser *htmlpage.Browser
	open    *openPages
}

func (p *staticPool) Engine() config.Engine { return config.EngineStatic }

func (p *staticPool) Open(ctx context.Context) (page.Navigator, func(), error) {
	nav, release, err := p.browser.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nav, p.open.track("", nav, release), nil
}

func (p *staticPool) Sessions() []SessionInfo { return p.open.list() }

func (p *staticPool) Close() error { return nil }
