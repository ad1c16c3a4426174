package browser

import (
	"time"

	"github.com/entrhq/robotdriver/pkg/config"
)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// SlowMo delays every browser operation, useful when watching a run
	SlowMo time.Duration

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout is the default timeout for element operations
	Timeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// SessionInfo describes a page a pool has handed out and not yet released.
type SessionInfo struct {
	Name       string        `json:"name"`
	Engine     config.Engine `json:"engine"`
	CurrentURL string        `json:"current_url"`
	Headless   bool          `json:"headless"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Default values for sessions
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
)

// OptionsFromConfig converts browser configuration into session options.
func OptionsFromConfig(cfg config.BrowserConfig) SessionOptions {
	opts := SessionOptions{
		Headless: cfg.Headless,
		SlowMo:   cfg.SlowMo,
		Timeout:  cfg.Timeout,
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts.Viewport = &Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight}
	}
	return opts.withDefaults()
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Viewport == nil {
		o.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
