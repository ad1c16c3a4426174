package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/robotdriver/pkg/catalog"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// RobotDriver logs into the store and searches it for one product, on a page
// of its own.
type RobotDriver struct {
	Pages    page.Factory
	Login    *LoginHandler
	Searcher *ProductSearcher
	logger   *logging.Logger
}

// NewRobotDriver wires a driver from configuration.
func NewRobotDriver(cfg *config.Config, pages page.Factory, logger *logging.Logger) (*RobotDriver, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	searcher, err := NewProductSearcher(cfg.Site, cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}
	return &RobotDriver{
		Pages:    pages,
		Login:    NewLoginHandler(cfg.Site, logger),
		Searcher: searcher,
		logger:   logger,
	}, nil
}

// Run logs in with creds and searches for product.
func (d *RobotDriver) Run(ctx context.Context, creds Credentials, product string) catalog.Result {
	d.logger.Infof("starting robot driver for product '%s'", product)

	nav, release, err := d.Pages.Open(ctx)
	if err != nil {
		return catalog.Failed(fmt.Sprintf("open browser page: %v", err))
	}
	defer release()

	if err := d.Login.Login(ctx, nav, creds); err != nil {
		if errors.Is(err, ErrLoginFailed) {
			return catalog.Failed(loginFailedReason)
		}
		return catalog.Failed(err.Error())
	}
	return d.Searcher.Search(ctx, nav, product)
}
