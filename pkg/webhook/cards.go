package webhook

import (
	"fmt"
	"net/url"
	"strings"

	"daigo/pkg/chat"
	"daigo/pkg/product"
)

const maxSizeButtons = 7

// BuildDeck renders one carousel bubble per variant: full-bleed image, a
// translucent overlay with title and price, and a size button row whose
// affordance depends on stock, restriction, and special-handling state.
func BuildDeck(prod *product.Product, pageURL string) chat.FlexMessage {
	bubbles := make([]chat.Bubble, 0, len(prod.Variants))
	for _, v := range prod.Variants {
		bubbles = append(bubbles, buildBubble(prod, v, pageURL))
	}
	return chat.NewFlexCarousel(fmt.Sprintf("推薦商品：%s", prod.Title), bubbles)
}

func buildBubble(prod *product.Product, v product.Variant, pageURL string) chat.Bubble {
	buttons := make([]chat.FlexNode, 0, len(v.Sizes))
	for _, s := range v.Sizes {
		buttons = append(buttons, sizeButton(prod, v, s, pageURL))
		if len(buttons) == maxSizeButtons {
			break
		}
	}
	if len(buttons) == 0 {
		buttons = append(buttons, chat.FlexNode{
			Type:   "text",
			Text:   "請前往官網選擇尺寸",
			Size:   "xs",
			Color:  "#cccccc",
			Align:  "center",
			Margin: "md",
		})
	}

	overlay := []chat.FlexNode{
		{
			Type:   "text",
			Text:   prod.Title,
			Weight: "bold",
			Size:   "md",
			Color:  "#ffffff",
			Wrap:   true,
		},
		{
			Type:   "text",
			Text:   fmt.Sprintf("%s %s", v.Color, v.Price),
			Size:   "xs",
			Color:  "#dddddd",
			Margin: "xs",
		},
	}
	if prod.Restricted {
		overlay = append(overlay, chat.FlexNode{
			Type:   "text",
			Text:   "⚠️ 此商品含有禁運成分，無法直接結帳。",
			Size:   "xs",
			Color:  "#ff8888",
			Wrap:   true,
			Margin: "md",
		})
	}
	if prod.SpecialHandling {
		overlay = append(overlay, chat.FlexNode{
			Type:   "text",
			Text:   "⚠️ 此商品請務必點擊下方「專人報價回覆」，感謝你的配合。",
			Size:   "xs",
			Color:  "#ff8888",
			Weight: "bold",
			Wrap:   true,
			Margin: "md",
		})
	}
	overlay = append(overlay, chat.FlexNode{
		Type:     "box",
		Layout:   "vertical",
		Margin:   "md",
		Contents: buttons,
	})

	return chat.Bubble{
		Type: "bubble",
		Size: "mega",
		Body: &chat.FlexNode{
			Type:       "box",
			Layout:     "vertical",
			PaddingAll: "0px",
			Contents: []chat.FlexNode{
				{
					Type:        "image",
					URL:         v.Image,
					Size:        "full",
					AspectRatio: "3:4",
					AspectMode:  "cover",
				},
				{
					Type:            "box",
					Layout:          "vertical",
					Position:        "absolute",
					OffsetBottom:    "0px",
					OffsetStart:     "0px",
					OffsetEnd:       "0px",
					BackgroundColor: "#00000066",
					PaddingAll:      "lg",
					Contents:        overlay,
				},
			},
		},
		Footer: &chat.FlexNode{
			Type:            "box",
			Layout:          "vertical",
			PaddingAll:      "0px",
			BackgroundColor: "#111111ee",
			Contents: []chat.FlexNode{
				{
					Type:           "box",
					Layout:         "vertical",
					JustifyContent: "center",
					AlignItems:     "center",
					Height:         "40px",
					Action:         &chat.Action{Type: "uri", Label: "查看詳情", URI: pageURL},
					Contents: []chat.FlexNode{
						{
							Type:  "text",
							Text:  "查看官網詳情",
							Color: "#ffffff",
							Size:  "xs",
							Align: "center",
						},
					},
				},
			},
		},
	}
}

func sizeButton(prod *product.Product, v product.Variant, s product.SizeOption, pageURL string) chat.FlexNode {
	switch {
	case prod.SpecialHandling:
		return quoteButton(s.Name+" | 需專人報價", s.Name,
			"此商品請務必點擊下方「專人報價回覆」，感謝你的配合。")

	case prod.Restricted:
		return quoteButton(s.Name+" | 需人工確認", s.Name, fmt.Sprintf(
			"🙋‍♂️ 您好！我想詢問這款「特殊商品」的報價：\n\n商品：%s\n顏色：%s\n尺寸：%s\n\n系統提示此商品可能含有禁運成分，請協助確認。",
			prod.Title, v.Color, s.Name))

	case s.NoteOnly:
		// Informational entry, links back to the product page.
		return chat.FlexNode{
			Type:           "box",
			Layout:         "vertical",
			JustifyContent: "center",
			AlignItems:     "center",
			Height:         "32px",
			Margin:         "sm",
			CornerRadius:   "sm",
			BorderWidth:    "1px",
			BorderColor:    "#aaaaaa",
			Action:         &chat.Action{Type: "uri", Label: s.Name, URI: pageURL},
			Contents: []chat.FlexNode{
				{Type: "text", Text: s.Name, Color: "#dddddd", Align: "center", Size: "xxs"},
			},
		}

	case !s.InStock:
		return chat.FlexNode{
			Type:            "box",
			Layout:          "vertical",
			JustifyContent:  "center",
			AlignItems:      "center",
			Height:          "32px",
			Margin:          "sm",
			CornerRadius:    "sm",
			BorderWidth:     "1px",
			BorderColor:     "#00000000",
			BackgroundColor: "#3f3f3f8e",
			Action: &chat.Action{
				Type:  "postback",
				Label: s.Name,
				Data:  "action=soldout&s=" + url.QueryEscape(s.Name),
			},
			Contents: []chat.FlexNode{
				{Type: "text", Text: s.Name + " 完售", Color: "#888888", Align: "center", Weight: "bold", Size: "xxs"},
			},
		}
	}

	return chat.FlexNode{
		Type:            "box",
		Layout:          "vertical",
		JustifyContent:  "center",
		AlignItems:      "center",
		Height:          "32px",
		Margin:          "sm",
		CornerRadius:    "sm",
		BorderWidth:     "1px",
		BorderColor:     "#ffffff",
		BackgroundColor: "#00000000",
		Action: &chat.Action{
			Type:  "postback",
			Label: s.Name,
			Data:  buyPostbackData(prod, v, s),
		},
		Contents: []chat.FlexNode{
			{Type: "text", Text: "加入購物車 | " + s.Name, Color: "#ffffff", Align: "center", Weight: "bold", Size: "xxs"},
		},
	}
}

// quoteButton is the red affordance that turns a size tap into a message
// for a human instead of a cart postback.
func quoteButton(label, size, messageText string) chat.FlexNode {
	return chat.FlexNode{
		Type:            "box",
		Layout:          "vertical",
		JustifyContent:  "center",
		AlignItems:      "center",
		Height:          "32px",
		Margin:          "sm",
		CornerRadius:    "sm",
		BorderWidth:     "1px",
		BorderColor:     "#ff5555",
		BackgroundColor: "#fff0f0",
		Action:          &chat.Action{Type: "message", Label: size, Text: messageText},
		Contents: []chat.FlexNode{
			{Type: "text", Text: label, Color: "#ff5555", Align: "center", Weight: "bold", Size: "xxs"},
		},
	}
}

// buyPostbackData packs everything the cart upsert needs into the postback
// payload. The platform caps postback data at 300 bytes, so the title is
// truncated and the image keeps only its path under the shared host.
func buyPostbackData(prod *product.Product, v product.Variant, s product.SizeOption) string {
	title := prod.Title
	if runes := []rune(title); len(runes) > 5 {
		title = string(runes[:5])
	}
	imgPath := strings.SplitN(strings.TrimPrefix(v.Image, imageHostPrefix), "?", 2)[0]

	data := fmt.Sprintf("action=buy&t=%s&c=%s&s=%s&p=%s&code=%s&img=%s&cat=%s&pg=%s",
		url.QueryEscape(title),
		url.QueryEscape(v.Color),
		url.QueryEscape(s.Name),
		url.QueryEscape(v.Price),
		prod.Code,
		imgPath,
		prod.Category,
		prod.PriceGroup)
	if prod.LimitedOffer {
		pd := ""
		if prod.PromoEndTS > 0 {
			pd = fmt.Sprintf("%d", prod.PromoEndTS)
		}
		data += "&pm=1&pd=" + pd
	}
	return data
}
