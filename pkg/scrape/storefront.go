package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"daigo/pkg/config"
	"daigo/pkg/product"
)

// Helmet routing is exclude-then-include: anything on the exclusion list is
// never a helmet regardless of model keywords, so an "Arai T-shirt" stays a
// normal product while an "Arai RX-7X" gets routed to a human quote.
var helmetExcludeKeywords = []string{
	"tee", "t-shirt", "shirt", "hoodie", "jacket", "pants", "glove",
	"bag", "sack", "case", "cover", "holder", "key",
	"visor", "shield", "pad", "interior", "cheek",
	"sticker", "decal",
	"cap", "hat",
}

var helmetModelKeywords = []string{
	"arai", "rx-7x", "vz-ram", "classic air", "rapide",
}

var colorOptionKeywords = []string{"color", "clr", "色", "カラー"}
var sizeOptionKeywords = []string{"size", "サイズ"}

const singleStyleColor = "單一款式"

// StorefrontStrategy reads the Shopify product JSON endpoint: the page URL
// with a ".js" suffix returns the full variant matrix without any HTML
// parsing.
type StorefrontStrategy struct {
	http      *http.Client
	userAgent string
}

func NewStorefrontStrategy(cfg config.ScrapeConfig) *StorefrontStrategy {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &StorefrontStrategy{
		http:      &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

func (s *StorefrontStrategy) Name() string { return "storefront" }

type storefrontPayload struct {
	Title         string   `json:"title"`
	FeaturedImage string   `json:"featured_image"`
	Type          string   `json:"type"`
	ProductType   string   `json:"product_type"`
	Tags          []string `json:"tags"`
	Options       []struct {
		Name string `json:"name"`
	} `json:"options"`
	Variants []struct {
		Option1       string `json:"option1"`
		Option2       string `json:"option2"`
		Option3       string `json:"option3"`
		Available     bool   `json:"available"`
		Price         int64  `json:"price"` // minor units
		FeaturedImage *struct {
			Src string `json:"src"`
		} `json:"featured_image"`
	} `json:"variants"`
}

func (s *StorefrontStrategy) Extract(ctx context.Context, pageURL string) (*product.Raw, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	baseURL := strings.TrimSuffix(u.Scheme+"://"+u.Host+u.Path, "/")
	jsonURL := baseURL + ".js"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch storefront JSON: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storefront JSON: status %d", resp.StatusCode)
	}

	var payload storefrontPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode storefront JSON: %w", err)
	}
	if payload.Title == "" {
		return nil, fmt.Errorf("storefront JSON has no title")
	}

	productType := payload.Type
	if productType == "" {
		productType = payload.ProductType
	}

	raw := &product.Raw{
		Title:           payload.Title,
		Tags:            payload.Tags,
		ProductType:     productType,
		SpecialHandling: isHelmet(payload.Title),
		SourceURL:       pageURL,
	}

	// Group variants by color, one card per color with its size row.
	order := make([]string, 0, len(payload.Variants))
	byColor := make(map[string]*product.RawVariant)

	for _, v := range payload.Variants {
		color := singleStyleColor
		size := "F"

		optionValues := []string{v.Option1, v.Option2, v.Option3}
		for i, opt := range payload.Options {
			if i >= len(optionValues) {
				break
			}
			name := strings.ToLower(opt.Name)
			switch {
			case containsAny(name, colorOptionKeywords):
				color = optionValues[i]
			case containsAny(name, sizeOptionKeywords):
				size = optionValues[i]
			}
		}
		// Single-option products without a recognized color option still
		// get the option value as the card label.
		if color == singleStyleColor && len(payload.Options) == 1 && v.Option1 != "" {
			color = v.Option1
		}

		img := payload.FeaturedImage
		if v.FeaturedImage != nil && v.FeaturedImage.Src != "" {
			img = v.FeaturedImage.Src
		}

		existing, ok := byColor[color]
		if !ok {
			existing = &product.RawVariant{
				Color: color,
				Image: product.FixURL(img, baseURL),
				Price: formatYen(v.Price),
			}
			byColor[color] = existing
			order = append(order, color)
		}
		existing.Sizes = append(existing.Sizes, product.SizeOption{
			Name:    size,
			InStock: v.Available,
		})
	}

	for _, color := range order {
		raw.Variants = append(raw.Variants, *byColor[color])
	}
	return raw, nil
}

func isHelmet(title string) bool {
	lower := strings.ToLower(title)
	if containsAny(lower, helmetExcludeKeywords) {
		return false
	}
	return containsAny(lower, helmetModelKeywords)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// formatYen renders a minor-unit price as a grouped yen amount, e.g.
// 1210000 -> "¥12,100".
func formatYen(minorUnits int64) string {
	yen := strconv.FormatInt(minorUnits/100, 10)
	if len(yen) <= 3 {
		return "¥" + yen
	}
	var groups []string
	lead := len(yen) % 3
	if lead > 0 {
		groups = append(groups, yen[:lead])
	}
	for i := lead; i < len(yen); i += 3 {
		groups = append(groups, yen[i:i+3])
	}
	return "¥" + strings.Join(groups, ",")
}
