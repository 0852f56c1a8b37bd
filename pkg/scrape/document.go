package scrape

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"daigo/pkg/logger"
	"daigo/pkg/product"
)

const (
	soldOutNote   = "已售完"
	selectOnSite  = "請前往官網選擇尺寸"
	fallbackPrice = "價格請見官網"
)

var stockNoteRE = regexp.MustCompile(`在庫.*`)

// DocumentStrategy scrapes the riding-gear site's product pages. The site
// renders three different page shapes, so extraction is tiered: the stock
// table when present, color thumbnails when the table is empty, and a
// single synthetic variant as the last resort.
type DocumentStrategy struct {
	fetcher *fetcher
}

func NewDocumentStrategy(f *fetcher) *DocumentStrategy {
	return &DocumentStrategy{fetcher: f}
}

func (s *DocumentStrategy) Name() string { return "document" }

func (s *DocumentStrategy) Extract(ctx context.Context, pageURL string) (*product.Raw, error) {
	body, err := s.fetcher.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	base := pageOrigin(pageURL)
	title := documentTitle(doc)
	price := documentPrice(doc)
	mainImage := documentMainImage(doc, base)
	globalSoldOut := documentSoldOut(doc)

	raw := &product.Raw{
		Title:       title,
		ProductType: "Riding Gear",
		SourceURL:   pageURL,
	}

	raw.Variants = stockTableVariants(doc, base, mainImage, price)
	if len(raw.Variants) == 0 {
		logger.DebugC("scrape", "stock table empty, reading color thumbnails")
		raw.Variants = thumbnailVariants(doc, base, mainImage, price, globalSoldOut)
	}
	if len(raw.Variants) == 0 {
		raw.Variants = []product.RawVariant{singleVariant(mainImage, price, globalSoldOut)}
	}
	return raw, nil
}

func documentTitle(doc *html.Node) string {
	if n := findFirst(doc, func(n *html.Node) bool { return isElem(n, "h2") && hasClass(n, "product_name") }); n != nil {
		if t := textContent(n); t != "" {
			return t
		}
	}
	if wrap := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "mainImageTitle") }); wrap != nil {
		if h1 := findFirst(wrap, func(n *html.Node) bool { return isElem(n, "h1") }); h1 != nil {
			if t := textContent(h1); t != "" {
				return t
			}
		}
	}
	if h1 := findFirst(doc, func(n *html.Node) bool { return isElem(n, "h1") }); h1 != nil {
		return textContent(h1)
	}
	return ""
}

func documentPrice(doc *html.Node) string {
	price := ""
	if n := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "taxPrice") }); n != nil {
		price = textContent(n)
	}
	if price == "" {
		if wrap := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "price") }); wrap != nil {
			if n := findFirst(wrap, func(n *html.Node) bool { return hasClass(n, "sell") }); n != nil {
				price = textContent(n)
			}
		}
	}
	if price == "" {
		if n := findFirst(doc, func(n *html.Node) bool { return isElem(n, "span") && attr(n, "itemprop") == "price" }); n != nil {
			price = textContent(n)
		}
	}
	if price != "" && !strings.Contains(price, "¥") {
		price = "¥" + price
	}
	if price == "" {
		price = fallbackPrice
	}
	return price
}

func documentMainImage(doc *html.Node, base string) string {
	if n := findFirst(doc, func(n *html.Node) bool { return attr(n, "id") == "zoomPicture" }); n != nil {
		if src := attr(n, "src"); src != "" {
			return product.FixURL(src, base)
		}
	}
	if wrap := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "main_image_link") }); wrap != nil {
		if img := findFirst(wrap, func(n *html.Node) bool { return isElem(n, "img") }); img != nil {
			if src := attr(img, "src"); src != "" {
				return product.FixURL(src, base)
			}
		}
	}
	return ""
}

func documentSoldOut(doc *html.Node) bool {
	if findFirst(doc, func(n *html.Node) bool { return hasClass(n, "soldout") }) != nil {
		return true
	}
	if n := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "productPrice") }); n != nil {
		return strings.Contains(strings.ToUpper(textContent(n)), "SOLDOUT")
	}
	return false
}

// stockTableVariants reads the per-size stock table. A row counts as in
// stock when it carries an add-to-cart link; rows for the same color merge
// into one variant.
func stockTableVariants(doc *html.Node, base, mainImage, price string) []product.RawVariant {
	table := findFirst(doc, func(n *html.Node) bool { return attr(n, "id") == "divMultiVariation" })
	if table == nil {
		return nil
	}
	rows := findAll(table, func(n *html.Node) bool { return isElem(n, "tr") })

	order := make([]string, 0, len(rows))
	byColor := make(map[string]*product.RawVariant)

	for _, tr := range rows {
		cells := findAll(tr, func(n *html.Node) bool { return isElem(n, "td") })
		if len(cells) < 2 {
			continue
		}

		color := ""
		if p := findFirst(cells[1], func(n *html.Node) bool { return isElem(n, "p") }); p != nil {
			color = textContent(p)
		}

		size := ""
		pcCells := findAll(tr, func(n *html.Node) bool { return isElem(n, "td") && hasClass(n, "pc") })
		if len(pcCells) > 0 {
			size = stockNoteRE.ReplaceAllString(textContent(pcCells[len(pcCells)-1]), "")
			size = strings.TrimSpace(size)
		}
		if size == "" && len(cells) > 3 {
			size = strings.TrimSpace(stockNoteRE.ReplaceAllString(textContent(cells[3]), ""))
		}
		if color == "" || size == "" {
			continue
		}

		img := ""
		if imgNode := findFirst(cells[0], func(n *html.Node) bool { return isElem(n, "img") }); imgNode != nil {
			img = product.FixURL(attr(imgNode, "src"), base)
		}
		if img == "" {
			img = mainImage
		}

		inStock := false
		if cart := findFirst(tr, func(n *html.Node) bool { return hasClass(n, "addCart") }); cart != nil {
			inStock = findFirst(cart, func(n *html.Node) bool { return isElem(n, "a") }) != nil
		}

		v, ok := byColor[color]
		if !ok {
			v = &product.RawVariant{Color: color, Image: img, Price: price}
			byColor[color] = v
			order = append(order, color)
		}
		v.Sizes = append(v.Sizes, product.SizeOption{Name: size, InStock: inStock})
	}

	variants := make([]product.RawVariant, 0, len(order))
	for _, color := range order {
		variants = append(variants, *byColor[color])
	}
	return variants
}

// thumbnailVariants reads the color thumbnail list. These pages never show
// sizes, so each color carries a single note entry instead of size buttons.
func thumbnailVariants(doc *html.Node, base, mainImage, price string, soldOut bool) []product.RawVariant {
	list := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "variationImage") })
	if list == nil {
		return nil
	}

	var variants []product.RawVariant
	for _, li := range findAll(list, func(n *html.Node) bool { return isElem(n, "li") }) {
		color := "One Color"
		if t := findFirst(li, func(n *html.Node) bool { return hasClass(n, "subItemTitle") }); t != nil {
			if name := textContent(t); name != "" {
				color = name
			}
		}

		img := mainImage
		if imgNode := findFirst(li, func(n *html.Node) bool { return isElem(n, "img") }); imgNode != nil {
			src := attr(imgNode, "src")
			if src == "" {
				src = attr(imgNode, "data-image")
			}
			if src != "" {
				img = product.FixURL(src, base)
			}
		}

		variants = append(variants, product.RawVariant{
			Color: color,
			Image: img,
			Price: price,
			Sizes: []product.SizeOption{noteSize(soldOut)},
		})
	}
	return variants
}

func singleVariant(mainImage, price string, soldOut bool) product.RawVariant {
	return product.RawVariant{
		Color: singleStyleColor,
		Image: mainImage,
		Price: price,
		Sizes: []product.SizeOption{noteSize(soldOut)},
	}
}

func noteSize(soldOut bool) product.SizeOption {
	if soldOut {
		return product.SizeOption{Name: soldOutNote, NoteOnly: true}
	}
	return product.SizeOption{Name: selectOnSite, NoteOnly: true}
}

func pageOrigin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	return u.Scheme + "://" + u.Host
}

// findFirst walks the tree depth first and returns the first node the
// matcher accepts.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isElem(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
