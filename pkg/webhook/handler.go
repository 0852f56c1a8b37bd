package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"daigo/pkg/chat"
	"daigo/pkg/delivery"
	"daigo/pkg/logger"
	"daigo/pkg/scrape"
	"daigo/pkg/store"
)

const (
	escalationPrefix = "🙋‍♂️"
	lookupCommand    = "查ID"

	loadingSeconds = 30

	imageHostPrefix = "https://image.uniqlo.com/"
)

// Handler processes one inbound event end to end. All outbound messages go
// through a per-event delivery channel so the reply token is spent at most
// once and everything after falls back to push.
type Handler struct {
	sender     chat.Sender
	store      *store.Store
	pipeline   *scrape.Pipeline
	operatorID string
}

func NewHandler(sender chat.Sender, st *store.Store, pipeline *scrape.Pipeline, operatorID string) *Handler {
	return &Handler{sender: sender, store: st, pipeline: pipeline, operatorID: operatorID}
}

func (h *Handler) Handle(ctx context.Context, ev InboundEvent) {
	// Redelivered events already ran once; reacting again would double
	// cart quantities and duplicate pushes.
	if ev.IsRedelivery {
		logger.WarnCF("webhook", "skipping redelivered event", map[string]interface{}{
			logger.FieldUserID: ev.UserID,
		})
		return
	}

	ch := delivery.New(h.sender, ev.ReplyToken, ev.UserID)

	switch ev.Type {
	case EventTypePostback:
		h.handlePostback(ctx, ch, ev)
	case EventTypeMessage:
		h.handleText(ctx, ch, ev)
	}
}

func (h *Handler) handlePostback(ctx context.Context, ch *delivery.Channel, ev InboundEvent) {
	if ev.UserID == "" {
		return
	}
	switch ev.PostbackData.Get("action") {
	case "buy":
		h.handleBuy(ctx, ch, ev)
	case "soldout":
		size := ev.PostbackData.Get("s")
		h.send(ctx, ch, chat.NewText(fmt.Sprintf(
			"❌ 抱歉，尺寸 %s 目前無庫存，暫時無法下單唷！\n\n建議稍後再查看，或選擇其他有庫存的尺寸 🙏", size)))
	}
}

func (h *Handler) handleBuy(ctx context.Context, ch *delivery.Channel, ev InboundEvent) {
	data := ev.PostbackData

	title := data.Get("t")
	if title == "" {
		title = "未知商品"
	}
	color := orDefault(data.Get("c"), "F")
	size := orDefault(data.Get("s"), "F")
	price := orDefault(data.Get("p"), "¥0")
	code := data.Get("code")
	category := data.Get("cat")
	priceGroup := orDefault(data.Get("pg"), "00")

	imageURL := ""
	if imgPath := data.Get("img"); imgPath != "" {
		imageURL = imageHostPrefix + imgPath
	}
	productURL := ""
	if code != "" {
		productURL = fmt.Sprintf("https://www.uniqlo.com/jp/ja/products/%s/%s", code, priceGroup)
	}

	var promoEnd int64
	if pd := data.Get("pd"); pd != "" {
		promoEnd, _ = strconv.ParseInt(pd, 10, 64)
	}

	quantity, err := h.store.UpsertCartItem(ctx, store.CartItem{
		UserID:       ev.UserID,
		ProductTitle: title,
		ProductCode:  code,
		Category:     category,
		Color:        color,
		Size:         size,
		Price:        price,
		ImageURL:     imageURL,
		ProductURL:   productURL,
		PromoEndTS:   promoEnd,
	})
	if err != nil {
		logger.ErrorCF("webhook", "cart upsert failed", map[string]interface{}{
			logger.FieldUserID: ev.UserID,
			logger.FieldError:  err.Error(),
		})
		h.send(ctx, ch, chat.NewText(fmt.Sprintf("抱歉，加入失敗。原因：%s", err.Error())))
		return
	}

	qtyText := ""
	if quantity > 1 {
		qtyText = fmt.Sprintf("（已累計 %d 件）", quantity)
	}
	codeText := ""
	if code != "" {
		codeText = fmt.Sprintf("\n代號：%s", code)
	}

	h.send(ctx, ch, chat.NewText(fmt.Sprintf(
		"✅ 已成功加入購物車！%s\n\n商品：%s%s\n顏色：%s\n尺寸：%s\n\n🛒 點擊選單「查看購物車」即可查看所有商品。%s",
		qtyText, title, codeText, color, size, promoWarning(data))))
}

// promoWarning builds the limited-offer deadline note. The displayed
// cutoff is epoch shifted +7h, one hour ahead of the shop's real UTC+8
// cutoff, so customers see an earlier deadline than the actual one.
func promoWarning(data url.Values) string {
	if data.Get("pm") != "1" {
		return ""
	}
	pd := data.Get("pd")
	ts, err := strconv.ParseInt(pd, 10, 64)
	if pd == "" || err != nil {
		return "\n\n⚠️ 此商品目前為期間限定特價。系統非即時下單，每日採購時間約為 22:00。如遇價格變動或庫存完售，將另行通知。"
	}

	local := time.Unix(ts, 0).UTC().Add(7 * time.Hour)
	label := fmt.Sprintf("%d/%d %02d:%02d", int(local.Month()), local.Day(), local.Hour(), local.Minute())
	return fmt.Sprintf("\n\n⏰ 此商品為期間限定特價，台灣截止時間為 %s。\n系統每日採購時間約為 22:00，請盡早提交訂單以確保特價。如遇價格變動或庫存完售，將另行通知。", label)
}

func (h *Handler) handleText(ctx context.Context, ch *delivery.Channel, ev InboundEvent) {
	text := strings.TrimSpace(ev.Text)

	if text == lookupCommand {
		h.send(ctx, ch, chat.NewText(fmt.Sprintf("您的 User ID 是：\n%s", ev.UserID)))
		return
	}

	if strings.HasPrefix(text, escalationPrefix) {
		h.handleEscalation(ctx, ch, ev, text)
		return
	}

	h.handleProductURL(ctx, ch, ev, text)
}

// handleEscalation acknowledges the customer and forwards the request to
// the operator. Both steps are best effort and independent.
func (h *Handler) handleEscalation(ctx context.Context, ch *delivery.Channel, ev InboundEvent, text string) {
	h.send(ctx, ch, chat.NewText("收到您的詢問！👩‍💻\n專員正在確認日本庫存與今日匯率，請稍候，我們會盡快以人工回覆您！"))

	if h.operatorID == "" {
		return
	}

	name := "未知客戶"
	if ev.UserID != "" {
		if profile, err := h.sender.Profile(ctx, ev.UserID); err == nil && profile.DisplayName != "" {
			name = profile.DisplayName
		}
	}
	forward := chat.NewText(fmt.Sprintf("🔔 新的報價請求！\n------------------\n👤 客人：%s\n\n📝 內容：\n%s", name, text))
	if err := h.sender.Push(ctx, h.operatorID, forward); err != nil {
		logger.WarnCF("webhook", "operator forward failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

func (h *Handler) handleProductURL(ctx context.Context, ch *delivery.Channel, ev InboundEvent, text string) {
	if _, err := h.pipeline.Route(text); err != nil {
		if errors.Is(err, scrape.ErrNotProductURL) {
			h.send(ctx, ch, chat.NewText("💡 這是「分類頁」或「首頁」喔！請貼單一商品的網址～"))
		}
		// Anything that is not an allowed product URL stays silent.
		return
	}

	// The typing indicator is free and does not consume the reply token.
	// When it is unavailable, fall back to a reply-only text ack so the
	// token is still preserved for the card deck whenever possible.
	ackByText := ev.UserID == ""
	if !ackByText {
		if err := h.sender.Loading(ctx, ev.UserID, loadingSeconds); err != nil {
			logger.DebugCF("webhook", "loading indicator failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			ackByText = true
		}
	}
	if ackByText {
		if err := ch.Ack(ctx, chat.NewText("收到網址，正在讀取商品資料，完成後會再傳結果給你 👀")); err != nil {
			logger.WarnCF("webhook", "text ack failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}

	logger.InfoCF("webhook", "product URL received", map[string]interface{}{
		logger.FieldUserID: ev.UserID,
		logger.FieldURL:    text,
	})

	prod, err := h.pipeline.Extract(ctx, text)
	if err != nil {
		logger.ErrorCF("webhook", "product extraction failed", map[string]interface{}{
			logger.FieldURL:   text,
			logger.FieldError: err.Error(),
		})
		h.send(ctx, ch, chat.NewText("抱歉，讀取網頁發生錯誤 > <"))
		return
	}

	h.send(ctx, ch, BuildDeck(prod, text))
}

func (h *Handler) send(ctx context.Context, ch *delivery.Channel, msgs ...chat.Message) {
	if err := ch.Send(ctx, msgs...); err != nil {
		logger.ErrorCF("webhook", "send failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
