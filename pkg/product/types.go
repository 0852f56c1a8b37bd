// Package product holds the canonical product model shared by the
// extraction strategies, the card builder and the checkout flow.
package product

// Raw is the output of one extraction strategy before normalization. The
// shape is the union of what the heterogeneous sources can provide; absent
// fields stay zero.
type Raw struct {
	Title      string
	Code       string // upstream product code (catalog strategy only)
	PriceGroup string
	Category   string // upstream breadcrumb class, e.g. "tops"

	ProductType string
	Tags        []string

	LimitedOffer bool
	PromoEndTS   int64 // unix seconds, 0 when the source gives no cutoff

	// SpecialHandling flags regulated product lines (helmets) that must be
	// quoted manually instead of added to the cart.
	SpecialHandling bool

	SourceURL string
	Variants  []RawVariant
}

type RawVariant struct {
	Color string
	Image string // as found in the source, not yet sanitized
	Price string
	Sizes []SizeOption
}

// Product is the normalized card-ready model.
type Product struct {
	Title      string
	Code       string
	PriceGroup string
	Category   string

	LimitedOffer bool
	PromoEndTS   int64

	Restricted       bool
	RestrictedReason string
	SpecialHandling  bool

	SourceURL string
	Variants  []Variant
}

type Variant struct {
	Color string
	Image string // always a valid HTTPS URL or the placeholder
	Price string
	Sizes []SizeOption
}

type SizeOption struct {
	Name    string
	InStock bool
	// NoteOnly marks synthetic entries ("please select size on the
	// official site") that link out instead of ordering.
	NoteOnly bool
}
