package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// RodBrowser is a Chromium instance driven through go-rod. Pages opened from
// it share the process but not cookies: each page gets its own incognito
// context.
type RodBrowser struct {
	mu       sync.Mutex
	opts     SessionOptions
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *logging.Logger
}

// LaunchRod starts a local Chromium and connects to it.
func LaunchRod(ctx context.Context, opts SessionOptions, logger *logging.Logger) (*RodBrowser, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	opts = opts.withDefaults()

	l := launcher.New().Context(ctx).Headless(opts.Headless)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if opts.SlowMo > 0 {
		b = b.SlowMotion(opts.SlowMo)
	}
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Infof("launched rod browser (headless=%t)", opts.Headless)
	return &RodBrowser{opts: opts, launcher: l, browser: b, logger: logger}, nil
}

// NewPage opens a blank page in a fresh incognito context.
func (r *RodBrowser) NewPage(ctx context.Context) (*RodPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil, fmt.Errorf("browser is closed")
	}
	incognito, err := r.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	p, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	p = p.Context(context.Background())

	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  r.opts.Viewport.Width,
		Height: r.opts.Viewport.Height,
	})
	if err != nil {
		r.logger.Warnf("set viewport: %v", err)
	}
	return &RodPage{page: p, incognito: incognito, timeout: r.opts.Timeout}, nil
}

// Close disconnects from and kills the browser process.
func (r *RodBrowser) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Kill()
	r.launcher.Cleanup()
	r.browser = nil
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// RodPage is a rod page implementing page.Navigator.
type RodPage struct {
	page      *rod.Page
	incognito *rod.Browser
	timeout   time.Duration
}

var _ page.Navigator = (*RodPage)(nil)

// bound returns the page bound to ctx and, when timeout is positive, to it too.
func (p *RodPage) bound(ctx context.Context, timeout time.Duration) (*rod.Page, context.CancelFunc) {
	if timeout <= 0 {
		return p.page.Context(ctx), func() {}
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return p.page.Context(tctx), cancel
}

// URL implements page.Page.
func (p *RodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Goto implements page.Navigator.
func (p *RodPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	pg, cancel := p.bound(ctx, timeout)
	defer cancel()
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load failed: %w", err)
	}
	return nil
}

func (p *RodPage) element(ctx context.Context, selector string) (*rod.Element, context.CancelFunc, error) {
	pg, cancel := p.bound(ctx, p.timeout)
	el, err := pg.Element(selector)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el, cancel, nil
}

// Fill implements page.Navigator.
func (p *RodPage) Fill(ctx context.Context, selector, value string) error {
	el, cancel, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	defer cancel()
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Click implements page.Navigator.
func (p *RodPage) Click(ctx context.Context, selector string) error {
	el, cancel, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	defer cancel()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

var rodKeys = map[string]input.Key{
	"Enter":     input.Enter,
	"Tab":       input.Tab,
	"Escape":    input.Escape,
	"Backspace": input.Backspace,
}

// Press implements page.Navigator.
func (p *RodPage) Press(ctx context.Context, selector, key string) error {
	k, ok := rodKeys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	el, cancel, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	defer cancel()
	if err := el.Type(k); err != nil {
		return fmt.Errorf("press %s failed: %w", key, err)
	}
	return nil
}

// WaitFor implements page.Navigator.
func (p *RodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	pg, cancel := p.bound(ctx, timeout)
	defer cancel()
	if _, err := pg.Element(selector); err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

// QueryAll implements page.Page. It does not wait for matches.
func (p *RodPage) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	return wrapRodElements(els), nil
}

// AccessibilityTree implements page.Page.
func (p *RodPage) AccessibilityTree(ctx context.Context) (*page.AXNode, error) {
	res, err := proto.AccessibilityGetFullAXTree{}.Call(p.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", cdpFullAXTree, err)
	}
	return axTreeFromCDP(res)
}

// Close closes the page and its incognito context.
func (p *RodPage) Close() error {
	return errors.Join(p.page.Close(), p.incognito.Close())
}

type rodElement struct {
	el *rod.Element
}

func wrapRodElements(els rod.Elements) []page.Node {
	nodes := make([]page.Node, len(els))
	for i, el := range els {
		nodes[i] = rodElement{el: el}
	}
	return nodes
}

func (e rodElement) TagName(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", fmt.Errorf("read tag name: %w", err)
	}
	return res.Value.Str(), nil
}

func (e rodElement) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("read attribute %s: %w", name, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e rodElement) InnerText(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("read inner text: %w", err)
	}
	return text, nil
}

func (e rodElement) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	return wrapRodElements(els), nil
}
