// Package catalog talks to the upstream commerce API: product details per
// price group, the cross-color stock union, and exact per-(color,size)
// availability probes.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"daigo/pkg/config"
)

const (
	PriceFlagLimitedOffer = "limitedOffer"
	PriceFlagDiscount     = "discount"
)

type Client struct {
	base      string
	userAgent string
	referer   string
	http      *http.Client
	limiter   *rate.Limiter
}

func NewClient(cfg config.CatalogConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := cfg.ProbeRatePerSec
	if perSec <= 0 {
		perSec = 20
	}
	return &Client{
		base:      cfg.BaseURL,
		userAgent: cfg.UserAgent,
		referer:   cfg.Referer,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(perSec), int(perSec)),
	}
}

type Option struct {
	Code string // display code, e.g. "08" for colors, "004" for sizes
	Name string
}

type PriceFlag struct {
	Code  string
	EndTS int64 // unix seconds, 0 when the flag has no cutoff
}

// Details is the subset of a price-group detail payload the bot consumes.
type Details struct {
	Name       string
	BasePrice  int
	PriceFlags []PriceFlag
	Category   string
	Colors     []Option
	Sizes      []Option
	Images     map[string]string // color display code -> image URL
}

func (d *Details) DisplayPrice() string {
	if d.BasePrice <= 0 {
		return "請洽官網"
	}
	return fmt.Sprintf("¥%d", d.BasePrice)
}

func (d *Details) LimitedOffer() (bool, int64) {
	for _, f := range d.PriceFlags {
		if f.Code == PriceFlagLimitedOffer {
			return true, f.EndTS
		}
	}
	return false, 0
}

type detailPayload struct {
	Result struct {
		Name   string `json:"name"`
		Prices struct {
			Base struct {
				Value float64 `json:"value"`
			} `json:"base"`
		} `json:"prices"`
		Representative struct {
			Flags struct {
				PriceFlags []struct {
					Code        string `json:"code"`
					NameWording struct {
						Substitutions struct {
							Date string `json:"date"`
						} `json:"substitutions"`
					} `json:"nameWording"`
				} `json:"priceFlags"`
			} `json:"flags"`
		} `json:"representative"`
		Breadcrumbs struct {
			Class struct {
				Name string `json:"name"`
			} `json:"class"`
		} `json:"breadcrumbs"`
		Images struct {
			Main map[string]struct {
				Image string `json:"image"`
			} `json:"main"`
		} `json:"images"`
		Colors []optionPayload `json:"colors"`
		Sizes  []optionPayload `json:"sizes"`
	} `json:"result"`
}

type optionPayload struct {
	DisplayCode string `json:"displayCode"`
	Name        string `json:"name"`
	Display     struct {
		ShowFlag *bool `json:"showFlag"`
	} `json:"display"`
}

func (o optionPayload) visible() bool {
	return o.Display.ShowFlag == nil || *o.Display.ShowFlag
}

// Details fetches the per-price-group product detail document.
func (c *Client) Details(ctx context.Context, code, priceGroup string) (*Details, error) {
	endpoint := fmt.Sprintf("%s/products/%s/price-groups/%s/details?httpFailure=true", c.base, code, priceGroup)

	var payload detailPayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	r := payload.Result
	if r.Name == "" && len(r.Colors) == 0 {
		return nil, fmt.Errorf("catalog: empty detail result for %s/%s", code, priceGroup)
	}

	d := &Details{
		Name:      r.Name,
		BasePrice: int(r.Prices.Base.Value),
		Category:  r.Breadcrumbs.Class.Name,
		Images:    make(map[string]string, len(r.Images.Main)),
	}
	for _, f := range r.Representative.Flags.PriceFlags {
		flag := PriceFlag{Code: f.Code}
		if ts, err := strconv.ParseInt(f.NameWording.Substitutions.Date, 10, 64); err == nil {
			flag.EndTS = ts
		}
		d.PriceFlags = append(d.PriceFlags, flag)
	}
	for colorCode, img := range r.Images.Main {
		d.Images[colorCode] = img.Image
	}
	for _, cOpt := range r.Colors {
		if cOpt.visible() {
			d.Colors = append(d.Colors, Option{Code: cOpt.DisplayCode, Name: cOpt.Name})
		}
	}
	for _, sOpt := range r.Sizes {
		if sOpt.visible() {
			d.Sizes = append(d.Sizes, Option{Code: sOpt.DisplayCode, Name: sOpt.Name})
		}
	}
	return d, nil
}

type searchPayload struct {
	Result struct {
		Items []struct {
			Sizes []struct {
				DisplayCode string `json:"displayCode"`
			} `json:"sizes"`
		} `json:"items"`
	} `json:"result"`
}

// StockUnion returns the size display codes that have stock in at least one
// color. Sizes outside the union are out of stock everywhere and never need
// an exact probe.
func (c *Client) StockUnion(ctx context.Context, code string) (map[string]bool, error) {
	endpoint := fmt.Sprintf("%s/products?productIds=%s&offset=0&limit=1&httpFailure=true", c.base, url.QueryEscape(code))

	var payload searchPayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	union := make(map[string]bool)
	if len(payload.Result.Items) > 0 {
		for _, s := range payload.Result.Items[0].Sizes {
			union[s.DisplayCode] = true
		}
	}
	return union, nil
}

// HasStock probes one (color, size) combination. Any failure reads as "no
// stock": a probe must never abort a reconciliation batch.
func (c *Client) HasStock(ctx context.Context, code, colorCode, sizeCode string) bool {
	endpoint := fmt.Sprintf("%s/products?productIds=%s&colorCodes=COL%s&sizeCodes=SMA%s&offset=0&limit=1&httpFailure=true",
		c.base, url.QueryEscape(code), url.QueryEscape(colorCode), url.QueryEscape(sizeCode))

	var payload searchPayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return false
	}
	return len(payload.Result.Items) > 0
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("catalog: status %d from %s", resp.StatusCode, endpoint)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
