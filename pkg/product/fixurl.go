package product

import (
	"net/url"
	"strings"
)

const (
	PlaceholderNoImage = "https://placehold.co/600x600.png?text=No+Image"
	PlaceholderGeneric = "https://placehold.co/600x600.png?text=Product"
)

// FixURL repairs the image references the sources hand out: protocol-relative
// gets https, root-relative resolves against the source origin, plain http is
// upgraded. Anything else passes through.
func FixURL(raw, base string) string {
	if raw == "" {
		return PlaceholderNoImage
	}
	clean := strings.TrimSpace(raw)

	if strings.HasPrefix(clean, "//") {
		return "https:" + clean
	}
	if strings.HasPrefix(clean, "/") {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return clean
		}
		return u.Scheme + "://" + u.Host + clean
	}
	if strings.HasPrefix(clean, "http:") {
		return "https:" + strings.TrimPrefix(clean, "http:")
	}
	return clean
}

// SanitizeImageURL enforces what the card renderer accepts: HTTPS and a
// jpg/jpeg/png path. Everything else becomes the placeholder rather than a
// broken card.
func SanitizeImageURL(raw string) string {
	if raw == "" {
		return PlaceholderNoImage
	}
	normalized := strings.TrimSpace(raw)
	if strings.HasPrefix(normalized, "//") {
		normalized = "https:" + normalized
	}
	if strings.HasPrefix(normalized, "http://") {
		normalized = "https://" + strings.TrimPrefix(normalized, "http://")
	}

	withoutQuery := strings.ToLower(strings.SplitN(normalized, "?", 2)[0])
	supported := strings.HasSuffix(withoutQuery, ".jpg") ||
		strings.HasSuffix(withoutQuery, ".jpeg") ||
		strings.HasSuffix(withoutQuery, ".png")

	if !strings.HasPrefix(normalized, "https://") || !supported {
		return PlaceholderGeneric
	}
	return normalized
}
