package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"daigo/pkg/product"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// GenericStrategy is the last-resort extractor for allowed sites without a
// dedicated strategy: Open Graph metadata plus a best-effort price sweep,
// always a single variant with no size row.
type GenericStrategy struct {
	fetcher *fetcher
}

func NewGenericStrategy(f *fetcher) *GenericStrategy {
	return &GenericStrategy{fetcher: f}
}

func (s *GenericStrategy) Name() string { return "generic" }

func (s *GenericStrategy) Extract(ctx context.Context, pageURL string) (*product.Raw, error) {
	body, err := s.fetcher.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	title := metaProperty(doc, "og:title")
	if title == "" {
		if t := findFirst(doc, func(n *html.Node) bool { return isElem(n, "title") }); t != nil {
			title = textContent(t)
		}
	}
	if title == "" {
		return nil, fmt.Errorf("no title on page %s", pageURL)
	}

	image := product.FixURL(metaProperty(doc, "og:image"), pageURL)

	price := metaProperty(doc, "og:price:amount")
	for _, class := range []string{"price", "money", "product-price"} {
		if price != "" {
			break
		}
		if n := findFirst(doc, func(n *html.Node) bool { return hasClass(n, class) }); n != nil {
			price = textContent(n)
		}
	}
	if price == "" {
		price = "請點擊查看"
	}
	price = strings.TrimSpace(whitespaceRE.ReplaceAllString(price, " "))

	return &product.Raw{
		Title:     title,
		SourceURL: pageURL,
		Variants: []product.RawVariant{{
			Color: singleStyleColor,
			Image: image,
			Price: price,
		}},
	}, nil
}

func metaProperty(doc *html.Node, property string) string {
	n := findFirst(doc, func(n *html.Node) bool {
		return isElem(n, "meta") && attr(n, "property") == property
	})
	if n == nil {
		return ""
	}
	return attr(n, "content")
}
