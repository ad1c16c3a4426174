package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/robotdriver/pkg/page"
)

// Session represents an active playwright browser session with its
// associated resources. It implements page.Navigator.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Page is the current active page
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time
}

var _ page.Navigator = (*Session)(nil)

// alive fails fast on a finished context, since playwright calls cannot be
// interrupted once started.
func alive(ctx context.Context) error {
	return ctx.Err()
}

// URL implements page.Page.
func (s *Session) URL() string {
	return s.Page.URL()
}

// Goto implements page.Navigator.
func (s *Session) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := alive(ctx); err != nil {
		return err
	}
	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	if timeout > 0 {
		opts.Timeout = playwright.Float(millis(timeout))
	}
	if _, err := s.Page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Fill implements page.Navigator.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	if err := alive(ctx); err != nil {
		return err
	}
	if err := s.Page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Click implements page.Navigator.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := alive(ctx); err != nil {
		return err
	}
	if err := s.Page.Locator(selector).First().Click(); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// Press implements page.Navigator.
func (s *Session) Press(ctx context.Context, selector, key string) error {
	if err := alive(ctx); err != nil {
		return err
	}
	if err := s.Page.Locator(selector).First().Press(key); err != nil {
		return fmt.Errorf("press %s failed: %w", key, err)
	}
	return nil
}

// WaitFor implements page.Navigator.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := alive(ctx); err != nil {
		return err
	}
	opts := playwright.PageWaitForSelectorOptions{State: playwright.WaitForSelectorStateAttached}
	if timeout > 0 {
		opts.Timeout = playwright.Float(millis(timeout))
	}
	if _, err := s.Page.WaitForSelector(selector, opts); err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

// QueryAll implements page.Page.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	handles, err := s.Page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	return wrapHandles(handles), nil
}

// AccessibilityTree implements page.Page. The tree is read over a CDP session
// that lives only for this call.
func (s *Session) AccessibilityTree(ctx context.Context) (*page.AXNode, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	cdp, err := s.Context.NewCDPSession(s.Page)
	if err != nil {
		return nil, fmt.Errorf("failed to create CDP session: %w", err)
	}
	defer func() { _ = cdp.Detach() }()

	result, err := cdp.Send(cdpFullAXTree, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", cdpFullAXTree, err)
	}
	return axTreeFromCDP(result)
}

// close releases the page, context and browser, returning the first error.
func (s *Session) close() error {
	var first error
	for _, closeFn := range []func() error{
		func() error { return s.Page.Close() },
		func() error { return s.Context.Close() },
		func() error { return s.Browser.Close() },
	} {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// elementHandle adapts a playwright element handle to page.Node.
type elementHandle struct {
	h playwright.ElementHandle
}

func wrapHandles(handles []playwright.ElementHandle) []page.Node {
	nodes := make([]page.Node, len(handles))
	for i, h := range handles {
		nodes[i] = elementHandle{h: h}
	}
	return nodes
}

func (e elementHandle) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.h.Evaluate("el => el.tagName.toLowerCase()")
	if err != nil {
		return "", fmt.Errorf("read tag name: %w", err)
	}
	tag, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("read tag name: unexpected %T", v)
	}
	return tag, nil
}

func (e elementHandle) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.h.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("read attribute %s: %w", name, err)
	}
	return v, nil
}

func (e elementHandle) InnerText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.h.InnerText()
	if err != nil {
		return "", fmt.Errorf("read inner text: %w", err)
	}
	return text, nil
}

func (e elementHandle) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.h.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	return wrapHandles(handles), nil
}
