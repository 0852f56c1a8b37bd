package product

import (
	"regexp"
	"strconv"
	"strings"
)

// Category labels keyed by the catalog API breadcrumb class.
var categoryLabels = map[string]string{
	"tops":        "上衣",
	"bottoms":     "褲子",
	"outerwear":   "外套",
	"innerwear":   "內衣",
	"homewear":    "居家服",
	"loungewear":  "居家服",
	"accessories": "配件",
	"socks":       "配件",
	"shoes":       "鞋子",
	"bags":        "包包",
}

const defaultCategoryLabel = "其他"

func CategoryLabel(apiCategory string) string {
	if label, ok := categoryLabels[strings.ToLower(apiCategory)]; ok {
		return label
	}
	return defaultCategoryLabel
}

// Estimated packed weight per category, grams.
var weightPerCategory = map[string]int{
	"上衣":  300,
	"褲子":  400,
	"外套":  600,
	"內衣":  150,
	"居家服": 350,
	"配件":  100,
	"鞋子":  700,
	"包包":  500,
	"其他":  350,
}

// EMS Japan→Taiwan rate table: [max grams, yen].
var emsRates = [][2]int{
	{500, 1450},
	{1000, 1900},
	{2000, 3150},
	{3000, 4400},
	{4000, 5400},
	{5000, 6400},
	{6000, 7400},
	{8000, 9200},
	{10000, 11000},
	{15000, 15500},
	{20000, 20000},
}

func EMSShipping(weightGrams int) int {
	for _, rate := range emsRates {
		if weightGrams <= rate[0] {
			return rate[1]
		}
	}
	// Above the table maximum the parcel gets split; quote the top bracket.
	return emsRates[len(emsRates)-1][1]
}

const (
	serviceFeeRate = 0.08
	minServiceFee  = 500
)

func ServiceFee(subtotalYen int) int {
	fee := int(float64(subtotalYen)*serviceFeeRate + 0.5)
	if fee < minServiceFee {
		return minServiceFee
	}
	return fee
}

var nonDigits = regexp.MustCompile(`[^\d]`)

// ParsePriceYen extracts the integer yen amount from a display price like
// "¥5,990". Returns 0 when no digits are present.
func ParsePriceYen(price string) int {
	digits := nonDigits.ReplaceAllString(price, "")
	if digits == "" {
		return 0
	}
	val, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return val
}

type QuoteItem struct {
	Price    string // display price, e.g. "¥1990"
	Quantity int
	Category string // catalog API category
}

type QuoteResult struct {
	Subtotal       int
	TotalWeight    int
	ShippingFee    int
	ServiceFee     int
	Total          int
	CategoryCounts map[string]int
}

// Quote computes the full estimate: merchandise subtotal, weight-based EMS
// shipping and the service fee.
func Quote(items []QuoteItem) QuoteResult {
	var subtotal, totalWeight int
	counts := make(map[string]int)

	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		subtotal += ParsePriceYen(item.Price) * qty

		label := CategoryLabel(item.Category)
		weight, ok := weightPerCategory[label]
		if !ok {
			weight = weightPerCategory[defaultCategoryLabel]
		}
		totalWeight += weight * qty
		counts[label] += qty
	}

	shipping := EMSShipping(totalWeight)
	fee := ServiceFee(subtotal)

	return QuoteResult{
		Subtotal:       subtotal,
		TotalWeight:    totalWeight,
		ShippingFee:    shipping,
		ServiceFee:     fee,
		Total:          subtotal + shipping + fee,
		CategoryCounts: counts,
	}
}
