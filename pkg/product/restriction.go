package product

import "strings"

// Keyword blacklist against the product title. Liquids, chemicals,
// batteries and oversized items cannot be forwarded.
var prohibitedKeywords = []string{
	// Manufacturer chemical brands
	"ECSTAR", "エクスター",
	"M.MOWBRAY", "M.モゥブレィ", "モゥブレィ",
	"Yamalube", "ヤマルーブ",
	"ホンダ純正オイル",
	"カワサキ純正オイル",

	// Batteries
	"バッテリー", "電池", "Battery",

	// Liquids and oils
	"オイル", "Oil",
	"フルード", "Fluid", "Liquid",
	"ガソリン", "Fuel", "Gasoline",
	"クーラント", "Coolant", "冷却水",
	"アドブルー", "AdBlue",
	"防水スプレー", "Waterproof Spray",

	// Chemicals and care products
	"グリス", "Grease", "グリース",
	"クリーナー", "Cleaner", "洗浄",
	"スプレー", "Spray",
	"ケミカル", "Chemical",
	"ワックス", "Wax", "コーティング", "Coating",
	"シャンプー", "Shampoo",
	"添加剤", "Additive",
	"セット", "Set", "Kit", // bundles get manual review when contents unknown

	// Repair supplies
	"ペイント", "Paint", "塗料", "タッチペン",
	"パテ", "Putty",
	"接着剤", "Adhesive", "ボンド",
	"シーリング", "Sealing",

	// Oversized or regulated
	"車両", "Vehicle",
	"タイヤ", "Tire",
	"ホイール", "Wheel",
	"エンジン", "Engine",
}

// Type/tag blacklist against the storefront's own classification.
var prohibitedTypes = []string{
	"Oil", "Chemical", "Maintenance", "Liquid", "Battery", "Fluids",
	"Grease", "Lubricant", "Paint", "Repair",
	"オイル", "ケミカル", "メンテナンス", "グリス", "バッテリー",
}

// URL path blacklist.
var prohibitedURLs = []string{
	"collections/ecstar_oil_chemical",
	"collections/batteries",
	"collections/maintenance",
	"collections/chemicals",
}

// Exemptions: merchandise that brushes against the blacklist but is fine to
// ship (an ECSTAR ballpoint pen is not engine oil).
var safeKeywords = []string{
	"ステッカー", "Sticker", "デカール", "Decal",
	"キーホルダー", "Key Holder", "Keyring",
	"フィギュア", "Figure", "模型", "Model",
	"Tシャツ", "T-shirt", "Apparel", "Hoodie",
	"エンブレム", "Emblem",
	"キャップ", "Cap", "Hat",
	"グローブ", "Glove",
	"バッグ", "Bag", "Tote", "Wallet",
	"カバー", "Cover", "Case",
	"カップ", "Cup", "Mug", "Tumbler",
	"タオル", "Towel", "Handkerchief",
	"ペン", "Pen", "Stationery", "Notebook",
}

type Restriction struct {
	Restricted bool
	Reason     string
}

func containsAnyFold(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// CheckRestriction decides whether a product needs manual confirmation
// before it can be ordered. Pure table lookup, no I/O.
func CheckRestriction(title, productType string, tags []string, sourceURL string) Restriction {
	badURL := containsAnyFold(sourceURL, prohibitedURLs)
	badKeyword := containsAnyFold(title, prohibitedKeywords)

	badType := productType != "" && containsAnyFold(productType, prohibitedTypes)
	for _, tag := range tags {
		if containsAnyFold(tag, prohibitedTypes) {
			badType = true
			break
		}
	}

	exempt := containsAnyFold(title, safeKeywords)

	restricted := (badURL || badKeyword || badType) && !exempt
	if !restricted {
		return Restriction{}
	}

	reason := "restricted keyword"
	switch {
	case badURL:
		reason = "restricted collection URL"
	case badType:
		reason = "restricted product type"
	}
	return Restriction{Restricted: true, Reason: reason}
}
