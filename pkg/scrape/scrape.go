// Package scrape resolves a product URL into a normalized product through
// per-site extraction strategies: the catalog API for the main fast-fashion
// sites, the storefront JSON endpoint for Shopify shops, DOM scraping for
// the riding-gear site, and an Open Graph fallback for everything else.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"daigo/pkg/config"
	"daigo/pkg/logger"
	"daigo/pkg/product"
)

var (
	// ErrUnsupportedSite marks a URL outside the allowed site list. The
	// dispatcher stays silent for these.
	ErrUnsupportedSite = errors.New("scrape: unsupported site")

	// ErrNotProductURL marks a category or landing page on an allowed
	// site. The dispatcher asks for a single product URL instead.
	ErrNotProductURL = errors.New("scrape: not a product page URL")
)

// Strategy extracts raw product data from one page URL.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, pageURL string) (*product.Raw, error)
}

var allowedSites = []string{
	"uniqlo.com",
	"gu-global.com",
	"56-design.com",
	"autorimessa.com",
	"hyod-products.com",
}

func siteAllowed(pageURL string) bool {
	for _, site := range allowedSites {
		if strings.Contains(pageURL, site) {
			return true
		}
	}
	return false
}

// isProductURL is a cheap pre-filter that rejects obvious category and
// landing pages before any network round trip.
func isProductURL(pageURL string) bool {
	if (strings.Contains(pageURL, "56-design.com") || strings.Contains(pageURL, "autorimessa.com")) &&
		!strings.Contains(pageURL, "/products/") {
		return false
	}
	if strings.Contains(pageURL, "hyod-products.com") &&
		!strings.Contains(pageURL, "/item/") &&
		!strings.Contains(pageURL, "ProductDetail") {
		return false
	}
	return true
}

// fetcher downloads page bodies for the DOM-based strategies.
type fetcher struct {
	http      *http.Client
	userAgent string
}

func newFetcher(cfg config.ScrapeConfig) *fetcher {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &fetcher{
		http:      &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

func (f *fetcher) get(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// Pipeline routes URLs to strategies and normalizes their output.
type Pipeline struct {
	catalog    *CatalogStrategy
	storefront *StorefrontStrategy
	document   *DocumentStrategy
	generic    *GenericStrategy
}

func NewPipeline(catalogStrategy *CatalogStrategy, scrapeCfg config.ScrapeConfig) *Pipeline {
	f := newFetcher(scrapeCfg)
	return &Pipeline{
		catalog:    catalogStrategy,
		storefront: NewStorefrontStrategy(scrapeCfg),
		document:   NewDocumentStrategy(f),
		generic:    NewGenericStrategy(f),
	}
}

// Route picks the strategy for a URL without touching the network.
func (p *Pipeline) Route(pageURL string) (Strategy, error) {
	if !siteAllowed(pageURL) {
		return nil, ErrUnsupportedSite
	}
	if !isProductURL(pageURL) {
		return nil, ErrNotProductURL
	}

	switch {
	case strings.Contains(pageURL, "uniqlo.com") || strings.Contains(pageURL, "gu-global.com"):
		return p.catalog, nil
	case strings.Contains(pageURL, "56-design.com") || strings.Contains(pageURL, "autorimessa.com"):
		return p.storefront, nil
	case strings.Contains(pageURL, "hyod-products.com"):
		return p.document, nil
	}
	return p.generic, nil
}

// Extract runs the routed strategy and returns the normalized product. A
// failed storefront extraction falls back to the Open Graph strategy so a
// temporarily broken JSON endpoint still yields a basic card.
func (p *Pipeline) Extract(ctx context.Context, pageURL string) (*product.Product, error) {
	strategy, err := p.Route(pageURL)
	if err != nil {
		return nil, err
	}

	raw, err := strategy.Extract(ctx, pageURL)
	if err != nil && strategy == p.storefront {
		logger.WarnCF("scrape", "storefront extraction failed, falling back", map[string]interface{}{
			logger.FieldURL:   pageURL,
			logger.FieldError: err.Error(),
		})
		strategy = p.generic
		raw, err = strategy.Extract(ctx, pageURL)
	}
	if err != nil {
		return nil, err
	}

	logger.InfoCF("scrape", "product extracted", map[string]interface{}{
		logger.FieldURL:      pageURL,
		logger.FieldStrategy: strategy.Name(),
		logger.FieldCount:    len(raw.Variants),
	})
	return product.Normalize(raw), nil
}
