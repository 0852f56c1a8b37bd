// Package checkout covers the pre-order flow: re-validating cart rows
// against live catalog data, submitting orders, and the notifications
// around both.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"daigo/pkg/catalog"
	"daigo/pkg/logger"
)

// SyncItem is one cart row to re-validate before checkout.
type SyncItem struct {
	ProductCode string `json:"product_code"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Price       string `json:"price"`
}

type SyncResult struct {
	ProductCode  string `json:"product_code"`
	Color        string `json:"color"`
	Size         string `json:"size"`
	CurrentPrice string `json:"currentPrice"`
	InStock      bool   `json:"inStock"`
	IsPromo      bool   `json:"isPromo"`
	PriceChanged bool   `json:"priceChanged"`
	StockChanged bool   `json:"stockChanged"`
}

// SyncChecker re-validates price and stock for cart rows. Each distinct
// product is fetched once no matter how many rows reference it.
type SyncChecker struct {
	client      *catalog.Client
	concurrency int
}

func NewSyncChecker(client *catalog.Client, concurrency int) *SyncChecker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncChecker{client: client, concurrency: concurrency}
}

// Check returns one result per item with a resolvable product code, plus
// whether anything changed. Catalog failures degrade to "possibly
// delisted": the row reads out of stock and flagged, never an error.
func (c *SyncChecker) Check(ctx context.Context, items []SyncItem) ([]SyncResult, bool) {
	var codes []string
	grouped := make(map[string][]SyncItem)
	for _, item := range items {
		if item.ProductCode == "" {
			continue
		}
		if _, seen := grouped[item.ProductCode]; !seen {
			codes = append(codes, item.ProductCode)
		}
		grouped[item.ProductCode] = append(grouped[item.ProductCode], item)
	}

	byCode := make(map[string][]SyncResult, len(codes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			res := c.checkProduct(gctx, code, grouped[code])
			mu.Lock()
			byCode[code] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var results []SyncResult
	hasChanges := false
	for _, code := range codes {
		for _, r := range byCode[code] {
			if r.PriceChanged || r.StockChanged {
				hasChanges = true
			}
			results = append(results, r)
		}
	}

	logger.InfoCF("checkout", "cart sync complete", map[string]interface{}{
		logger.FieldCount: len(results),
		"has_changes":     hasChanges,
	})
	return results, hasChanges
}

func (c *SyncChecker) checkProduct(ctx context.Context, code string, items []SyncItem) []SyncResult {
	// A product can span two price groups with different prices per color.
	var details []*catalog.Details
	for _, pg := range []string{"00", "01"} {
		d, err := c.client.Details(ctx, code, pg)
		if err != nil {
			continue
		}
		details = append(details, d)
	}

	if len(details) == 0 {
		logger.WarnCF("checkout", "product details unavailable, marking delisted", map[string]interface{}{
			logger.FieldProductCode: code,
		})
		results := make([]SyncResult, 0, len(items))
		for _, item := range items {
			results = append(results, SyncResult{
				ProductCode:  code,
				Color:        item.Color,
				Size:         item.Size,
				CurrentPrice: item.Price,
				InStock:      false,
				StockChanged: true,
			})
		}
		return results
	}

	// Color display code -> the price group that carries it, first match
	// wins. Size name -> display code merges across price groups.
	colorToPG := make(map[string]*catalog.Details)
	sizeCodes := make(map[string]string)
	for _, d := range details {
		for _, col := range d.Colors {
			if _, ok := colorToPG[col.Code]; !ok {
				colorToPG[col.Code] = d
			}
		}
		for _, sz := range d.Sizes {
			sizeCodes[sz.Name] = sz.Code
		}
	}

	results := make([]SyncResult, len(items))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			colorDC := firstToken(item.Color)
			sizeDC, sizeKnown := sizeCodes[item.Size]

			inStock := false
			if sizeKnown {
				inStock = c.client.HasStock(ctx, code, colorDC, sizeDC)
			}

			d := colorToPG[colorDC]
			if d == nil {
				d = details[0]
			}
			currentPrice := item.Price
			if d.BasePrice > 0 {
				currentPrice = fmt.Sprintf("¥%d", d.BasePrice)
			}
			isPromo, _ := d.LimitedOffer()

			results[i] = SyncResult{
				ProductCode:  code,
				Color:        item.Color,
				Size:         item.Size,
				CurrentPrice: currentPrice,
				InStock:      inStock,
				IsPromo:      isPromo,
				PriceChanged: currentPrice != item.Price,
				StockChanged: !inStock,
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// firstToken extracts the color display code from a stored color label like
// "08 DARK GRAY".
func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
