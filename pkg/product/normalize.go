package product

// Card decks are capped so one product cannot blow past the platform's
// carousel limit.
const maxVariants = 10

// Normalize maps a strategy's Raw output into the canonical Product:
// variants capped, every image forced to a renderable HTTPS URL, and the
// restriction policy applied once so downstream layers only read flags.
func Normalize(raw *Raw) *Product {
	p := &Product{
		Title:           raw.Title,
		Code:            raw.Code,
		PriceGroup:      raw.PriceGroup,
		Category:        raw.Category,
		LimitedOffer:    raw.LimitedOffer,
		PromoEndTS:      raw.PromoEndTS,
		SpecialHandling: raw.SpecialHandling,
		SourceURL:       raw.SourceURL,
	}

	restriction := CheckRestriction(raw.Title, raw.ProductType, raw.Tags, raw.SourceURL)
	p.Restricted = restriction.Restricted
	p.RestrictedReason = restriction.Reason

	variants := raw.Variants
	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}

	p.Variants = make([]Variant, 0, len(variants))
	for _, rv := range variants {
		sizes := make([]SizeOption, len(rv.Sizes))
		copy(sizes, rv.Sizes)
		p.Variants = append(p.Variants, Variant{
			Color: rv.Color,
			Image: SanitizeImageURL(rv.Image),
			Price: rv.Price,
			Sizes: sizes,
		})
	}

	return p
}
