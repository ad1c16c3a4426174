package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/robotdriver/pkg/catalog"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// Selectors of the store's product search.
const (
	SearchInputSelector  = "input#search_product"
	SearchButtonSelector = "button#submit_search"
	ResultsWaitSelector  = ".features_items .productinfo, .product-image-wrapper"
)

// Timeouts of the search step.
const (
	ProductsPageTimeout = 30 * time.Second
	ResultsWaitTimeout  = 3 * time.Second
	searchMissingReason = "Search elements not found"
)

// ProductSearcher searches the store's catalog and matches the results.
type ProductSearcher struct {
	ProductsURL string
	Selectors   catalog.Selectors
	Matcher     *catalog.Matcher
	logger      *logging.Logger
}

// NewProductSearcher creates a searcher for the configured site and catalog.
func NewProductSearcher(site config.SiteConfig, cat config.CatalogConfig, logger *logging.Logger) (*ProductSearcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	policy, err := catalog.ParsePolicy(cat.Policy)
	if err != nil {
		return nil, err
	}
	selectors := catalog.SelectorsFromConfig(cat)
	return &ProductSearcher{
		ProductsURL: site.URL(site.ProductsPath),
		Selectors:   selectors,
		Matcher:     catalog.NewMatcher(selectors, policy, logger),
		logger:      logger,
	}, nil
}

// Search looks product up on the products page.
func (s *ProductSearcher) Search(ctx context.Context, nav page.Navigator, product string) catalog.Result {
	s.logger.Infof("navigating to products page %s", s.ProductsURL)
	if err := nav.Goto(ctx, s.ProductsURL, ProductsPageTimeout); err != nil {
		return catalog.Failed(fmt.Sprintf("open products page: %v", err))
	}

	s.logger.Infof("searching for product: %s", product)
	if err := nav.Fill(ctx, SearchInputSelector, product); err != nil {
		s.logger.Warnf("search input not usable: %v", err)
		return catalog.Failed(searchMissingReason)
	}
	if err := nav.Click(ctx, SearchButtonSelector); err != nil {
		s.logger.Warnf("search button not usable: %v", err)
		return catalog.Failed(searchMissingReason)
	}

	return collectAndMatch(ctx, nav, ResultsWaitSelector, s.Selectors, s.Matcher, product, s.logger)
}

// collectAndMatch waits briefly for results, then matches target against them.
// No results within the wait is a not-found outcome.
func collectAndMatch(ctx context.Context, nav page.Navigator, waitSelector string, selectors catalog.Selectors,
	matcher *catalog.Matcher, target string, logger *logging.Logger) catalog.Result {
	if err := nav.WaitFor(ctx, waitSelector, ResultsWaitTimeout); err != nil {
		if ctx.Err() != nil {
			return catalog.Failed(fmt.Sprintf("search interrupted: %v", ctx.Err()))
		}
		logger.Infof("no products found for '%s'", target)
		return catalog.NotFound(target)
	}

	entries, err := catalog.Collect(ctx, nav, selectors)
	if err != nil {
		return catalog.Failed(err.Error())
	}
	res := matcher.Match(ctx, entries, target)
	logger.Infof("search for '%s' finished: %s", target, res.Status)
	return res
}
