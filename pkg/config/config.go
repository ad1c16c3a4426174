package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv
const (
	EnvUsername       = "ROBOTDRIVER_USERNAME"
	EnvPassword       = "ROBOTDRIVER_PASSWORD"
	EnvContextService = "ROBOTDRIVER_CONTEXT_SERVICE"
)

// Config is the full robotdriver configuration.
type Config struct {
	Site           SiteConfig           `yaml:"site" json:"site"`
	Browser        BrowserConfig        `yaml:"browser" json:"browser"`
	ContextService ContextServiceConfig `yaml:"context_service" json:"context_service"`
	Snapshot       SnapshotConfig       `yaml:"snapshot" json:"snapshot"`
	Catalog        CatalogConfig        `yaml:"catalog" json:"catalog"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
	Report         ReportConfig         `yaml:"report" json:"report"`
	Server         ServerConfig         `yaml:"server" json:"server"`
}

// SiteConfig describes the retail site the robot logs into.
type SiteConfig struct {
	BaseURL      string `yaml:"base_url" json:"base_url"`
	LoginPath    string `yaml:"login_path" json:"login_path"`
	ProductsPath string `yaml:"products_path" json:"products_path"`

	// Credentials are usually supplied through the environment
	Username string `yaml:"username" json:"-"`
	Password string `yaml:"password" json:"-"`
}

// Engine selects the browser automation backend.
type Engine string

const (
	// EnginePlaywright drives Chromium through playwright-go
	EnginePlaywright Engine = "playwright"
	// EngineRod drives Chromium through go-rod
	EngineRod Engine = "rod"
	// EngineStatic fetches pages over plain HTTP without running scripts
	EngineStatic Engine = "static"
)

// BrowserConfig controls how pages are opened.
type BrowserConfig struct {
	Engine         Engine        `yaml:"engine" json:"engine"`
	Headless       bool          `yaml:"headless" json:"headless"`
	SlowMo         time.Duration `yaml:"slow_mo" json:"slow_mo"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	MaxSessions    int           `yaml:"max_sessions" json:"max_sessions"`
}

// ContextServiceConfig points at an optional remote context service.
type ContextServiceConfig struct {
	// URL is the service base URL; empty disables remote fetching
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SnapshotConfig tunes the local snapshot builder.
type SnapshotConfig struct {
	MaxDepth            int    `yaml:"max_depth" json:"max_depth"`
	InteractiveSelector string `yaml:"interactive_selector" json:"interactive_selector"`
}

// CatalogConfig holds matcher selectors and the multiple-match policy.
type CatalogConfig struct {
	Policy              string   `yaml:"policy" json:"policy"`
	EntrySelector       string   `yaml:"entry_selector" json:"entry_selector"`
	DisplayNameSelector string   `yaml:"display_name_selector" json:"display_name_selector"`
	NameSelectors       []string `yaml:"name_selectors" json:"name_selectors"`
	PriceSelectors      []string `yaml:"price_selectors" json:"price_selectors"`
	DescriptionSelector []string `yaml:"description_selectors" json:"description_selectors"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
	Dir       string `yaml:"dir" json:"dir"`
}

// ReportConfig controls run report generation.
type ReportConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	JSON      bool   `yaml:"json" json:"json"`
	Markdown  bool   `yaml:"markdown" json:"markdown"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string `yaml:"addr" json:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Default returns a configuration suitable for the AutomationExercise demo site.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:      "https://automationexercise.com",
			LoginPath:    "/login",
			ProductsPath: "/products",
		},
		Browser: BrowserConfig{
			Engine:         EnginePlaywright,
			Headless:       true,
			Timeout:        30 * time.Second,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			MaxSessions:    5,
		},
		ContextService: ContextServiceConfig{
			Timeout: 10 * time.Second,
		},
		Snapshot: SnapshotConfig{
			MaxDepth:            500,
			InteractiveSelector: "button, a, input, select, textarea, [role='button'], [role='link']",
		},
		Catalog: CatalogConfig{
			Policy:              "first",
			EntrySelector:       ".features_items .productinfo, .product-image-wrapper .productinfo",
			DisplayNameSelector: "p",
			NameSelectors:       []string{"h2", "h3", "h4"},
			PriceSelectors:      []string{".product-price", ".price", ".productinfo h2", "h2"},
			DescriptionSelector: []string{"p"},
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
		Report: ReportConfig{
			Enabled:   false,
			OutputDir: ".robotdriver/reports",
			JSON:      true,
			Markdown:  true,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 64 << 10,
		},
	}
}

// Load reads a YAML file layered over Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays credentials and the context service URL from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvUsername); v != "" {
		c.Site.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Site.Password = v
	}
	if v := os.Getenv(EnvContextService); v != "" {
		c.ContextService.URL = v
	}
}

// URL joins path onto the site's base URL.
func (s SiteConfig) URL(path string) string {
	if path == "" {
		return s.BaseURL
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}

	switch c.Browser.Engine {
	case EnginePlaywright, EngineRod, EngineStatic:
	default:
		return fmt.Errorf("invalid browser engine: %s (must be 'playwright', 'rod' or 'static')", c.Browser.Engine)
	}

	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser.timeout cannot be negative")
	}

	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("browser.max_sessions must be at least 1")
	}

	if c.ContextService.Timeout <= 0 {
		return fmt.Errorf("context_service.timeout must be positive")
	}

	if c.Snapshot.MaxDepth < 1 {
		return fmt.Errorf("snapshot.max_depth must be at least 1")
	}

	if c.Snapshot.InteractiveSelector == "" {
		return fmt.Errorf("snapshot.interactive_selector is required")
	}

	if c.Catalog.Policy != "first" && c.Catalog.Policy != "unique" {
		return fmt.Errorf("invalid catalog policy: %s (must be 'first' or 'unique')", c.Catalog.Policy)
	}

	if c.Catalog.EntrySelector == "" {
		return fmt.Errorf("catalog.entry_selector is required")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}
