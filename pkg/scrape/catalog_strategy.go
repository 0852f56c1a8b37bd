package scrape

import (
	"context"
	"fmt"
	"regexp"

	"daigo/pkg/catalog"
	"daigo/pkg/logger"
	"daigo/pkg/product"
)

// Matches product URLs like /products/E472735-000/00. The trailing segment
// is the price group and defaults to "00" when absent.
var productCodeRE = regexp.MustCompile(`products/(E\d+-\d+)(?:/(\d+))?`)

// CatalogStrategy builds products from the commerce API instead of the HTML
// page: details for the price group, then the stock union, then exact
// per-(color, size) probes for everything the union did not rule out.
type CatalogStrategy struct {
	client     *catalog.Client
	reconciler *catalog.Reconciler
}

func NewCatalogStrategy(client *catalog.Client, reconciler *catalog.Reconciler) *CatalogStrategy {
	return &CatalogStrategy{client: client, reconciler: reconciler}
}

func (s *CatalogStrategy) Name() string { return "catalog" }

func (s *CatalogStrategy) Extract(ctx context.Context, pageURL string) (*product.Raw, error) {
	m := productCodeRE.FindStringSubmatch(pageURL)
	if m == nil {
		return nil, fmt.Errorf("no product code in URL %s", pageURL)
	}
	code := m[1]
	priceGroup := m[2]
	if priceGroup == "" {
		priceGroup = "00"
	}

	details, err := s.client.Details(ctx, code, priceGroup)
	if err != nil {
		return nil, err
	}

	// A failed union lookup means zero probes: every size reads as out of
	// stock, which is the safe direction for a purchasing bot.
	union, err := s.client.StockUnion(ctx, code)
	if err != nil {
		logger.WarnCF("scrape", "stock union lookup failed", map[string]interface{}{
			logger.FieldProductCode: code,
			logger.FieldError:       err.Error(),
		})
		union = map[string]bool{}
	}

	colorCodes := make([]string, 0, len(details.Colors))
	for _, c := range details.Colors {
		colorCodes = append(colorCodes, c.Code)
	}
	sizeCodes := make([]string, 0, len(details.Sizes))
	for _, sz := range details.Sizes {
		sizeCodes = append(sizeCodes, sz.Code)
	}

	probes := catalog.BuildProbeSet(colorCodes, sizeCodes, union)
	stock := s.reconciler.Run(ctx, code, probes)

	limited, promoEnd := details.LimitedOffer()
	price := details.DisplayPrice()

	raw := &product.Raw{
		Title:        details.Name,
		Code:         code,
		PriceGroup:   priceGroup,
		Category:     details.Category,
		LimitedOffer: limited,
		PromoEndTS:   promoEnd,
		SourceURL:    pageURL,
	}

	for _, c := range details.Colors {
		colorStock := stock[c.Code]
		sizes := make([]product.SizeOption, 0, len(details.Sizes))
		for _, sz := range details.Sizes {
			sizes = append(sizes, product.SizeOption{
				Name:    sz.Name,
				InStock: colorStock[sz.Code],
			})
		}
		raw.Variants = append(raw.Variants, product.RawVariant{
			Color: c.Code + " " + c.Name,
			Image: details.Images[c.Code],
			Price: price,
			Sizes: sizes,
		})
	}

	return raw, nil
}
