// Package driver runs the end-to-end browser flows: logging into the store,
// searching its catalog, and pursuing free-text goals on arbitrary sites.
//
// Every flow reports its outcome as a catalog.Result. Only an unparseable goal
// is returned as an error; everything else, including failed logins and
// missing search controls, is a Result with StatusError.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// Selectors of the store's login form.
const (
	LoginEmailSelector    = `input[data-qa="login-email"]`
	LoginPasswordSelector = `input[data-qa="login-password"]`
	LoginButtonSelector   = `button[data-qa="login-button"]`
	LogoutLinkSelector    = `a[href='/logout']`
)

// Timeouts of the login step.
const (
	LoginPageTimeout  = 10 * time.Second
	LoginWaitTimeout  = 5 * time.Second
	loginFailedReason = "Invalid login credentials"
)

// ErrLoginFailed is returned when the site does not accept the credentials.
var ErrLoginFailed = errors.New("invalid login credentials")

// Credentials are passed explicitly to every login.
type Credentials struct {
	Username string
	Password string
}

// LoginHandler signs into the store.
type LoginHandler struct {
	LoginURL    string
	PageTimeout time.Duration
	WaitTimeout time.Duration
	logger      *logging.Logger
}

// NewLoginHandler creates a handler for the configured site.
func NewLoginHandler(site config.SiteConfig, logger *logging.Logger) *LoginHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LoginHandler{
		LoginURL:    site.URL(site.LoginPath),
		PageTimeout: LoginPageTimeout,
		WaitTimeout: LoginWaitTimeout,
		logger:      logger,
	}
}

// Login fills and submits the login form. A logout link appearing within
// WaitTimeout means success; its absence yields ErrLoginFailed.
func (h *LoginHandler) Login(ctx context.Context, nav page.Navigator, creds Credentials) error {
	h.logger.Infof("navigating to login page %s", h.LoginURL)
	if err := nav.Goto(ctx, h.LoginURL, h.PageTimeout); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	h.logger.Debugf("filling login credentials")
	if err := nav.Fill(ctx, LoginEmailSelector, creds.Username); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := nav.Fill(ctx, LoginPasswordSelector, creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := nav.Click(ctx, LoginButtonSelector); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	if err := nav.WaitFor(ctx, LogoutLinkSelector, h.WaitTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warnf("login failed: %v", err)
		return ErrLoginFailed
	}
	h.logger.Infof("logged in successfully")
	return nil
}
