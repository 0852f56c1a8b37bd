package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"daigo/pkg/chat"
	"daigo/pkg/logger"
	"daigo/pkg/product"
	"daigo/pkg/store"
)

// ErrMissingFields rejects submissions without the required contact and
// payment details.
var ErrMissingFields = errors.New("checkout: missing required fields")

type SubmitRequest struct {
	UserID        string           `json:"userId"`
	LineName      string           `json:"lineName"`
	CustomerName  string           `json:"customerName"`
	Phone         string           `json:"phone"`
	Address       string           `json:"address"`
	PaymentMethod string           `json:"paymentMethod"`
	AccountLast5  string           `json:"accountLast5"`
	Items         []store.CartItem `json:"items"`
	TotalJPY      int              `json:"totalJpy"`
}

// Submitter persists orders and sends the confirmation messages.
type Submitter struct {
	store      *store.Store
	sender     chat.Sender
	operatorID string
}

func NewSubmitter(st *store.Store, sender chat.Sender, operatorID string) *Submitter {
	return &Submitter{store: st, sender: sender, operatorID: operatorID}
}

// Submit stores the order, clears the cart, and notifies the customer and
// the operator. The two notifications are independent and best effort: a
// failed push never rolls back a stored order.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.UserID == "" || req.CustomerName == "" || req.Phone == "" ||
		req.Address == "" || req.PaymentMethod == "" || len(req.Items) == 0 {
		return "", ErrMissingFields
	}

	order := &store.Order{
		UserID:        req.UserID,
		LineName:      req.LineName,
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		AccountLast5:  req.AccountLast5,
		Items:         req.Items,
		TotalJPY:      req.TotalJPY,
	}
	if err := s.store.InsertOrder(ctx, order); err != nil {
		return "", err
	}

	if err := s.store.ClearCart(ctx, req.UserID); err != nil {
		logger.WarnCF("checkout", "cart clear failed after order", map[string]interface{}{
			logger.FieldOrderID: order.ID,
			logger.FieldError:   err.Error(),
		})
	}

	s.pushOrNote(ctx, req.UserID, customerConfirmation(req), "customer confirmation")
	if s.operatorID != "" && s.operatorID != req.UserID {
		s.pushOrNote(ctx, s.operatorID, operatorNotification(req, order.ID), "operator notification")
	}

	logger.InfoCF("checkout", "order submitted", map[string]interface{}{
		logger.FieldOrderID: order.ID,
		logger.FieldUserID:  req.UserID,
		logger.FieldCount:   len(req.Items),
	})
	return order.ID, nil
}

// ForwardQuote pushes a checkout summary the client-side flow failed to
// send itself, with a copy to the operator.
func (s *Submitter) ForwardQuote(ctx context.Context, userID, message string) error {
	if userID == "" || message == "" {
		return ErrMissingFields
	}
	if err := s.sender.Push(ctx, userID, chat.NewText(message)); err != nil {
		return err
	}

	if s.operatorID != "" && s.operatorID != userID {
		name := "客戶"
		if profile, err := s.sender.Profile(ctx, userID); err == nil && profile.DisplayName != "" {
			name = profile.DisplayName
		}
		copyText := fmt.Sprintf("🔔 新的報價請求！\n------------------\n👤 客人：%s\n\n📝 內容：\n%s", name, message)
		s.pushOrNote(ctx, s.operatorID, copyText, "quote copy")
	}
	return nil
}

func (s *Submitter) pushOrNote(ctx context.Context, to, text, what string) {
	if err := s.sender.Push(ctx, to, chat.NewText(text)); err != nil {
		logger.WarnCF("checkout", what+" push failed", map[string]interface{}{
			logger.FieldUserID: to,
			logger.FieldError:  err.Error(),
		})
	}
}

func paymentLabel(method string) string {
	if method == "bank_transfer" {
		return "銀行轉帳"
	}
	return "綠界付款（+2.23% 手續費）"
}

func customerConfirmation(req SubmitRequest) string {
	return strings.Join([]string{
		"✅ 訂單已成功提交！",
		"",
		"我們會盡快確認庫存與報價，請留意 LINE 訊息通知。",
		"",
		"📋 訂單摘要",
		fmt.Sprintf("商品 %d 件 | 預估總額 ¥%s", len(req.Items), groupDigits(req.TotalJPY)),
		fmt.Sprintf("付款方式：%s", paymentLabel(req.PaymentMethod)),
		"",
		"如有任何疑問，請隨時向我們詢問 🙏",
	}, "\n")
}

func operatorNotification(req SubmitRequest, orderID string) string {
	lines := []string{
		"🔔 新訂單通知！",
		"━━━━━━━━━━━━━━━━━",
		fmt.Sprintf("👤 LINE：%s", orDefault(req.LineName, "未知")),
		fmt.Sprintf("📝 姓名：%s", req.CustomerName),
		fmt.Sprintf("📱 電話：%s", req.Phone),
		fmt.Sprintf("📍 地址：%s", req.Address),
		fmt.Sprintf("💳 付款：%s", paymentLabel(req.PaymentMethod)),
	}
	if req.PaymentMethod == "bank_transfer" && req.AccountLast5 != "" {
		lines = append(lines, fmt.Sprintf("🔢 帳號末五碼：%s", req.AccountLast5))
	}

	lines = append(lines, "", "📦 商品明細：")
	quoteItems := make([]product.QuoteItem, 0, len(req.Items))
	for i, item := range req.Items {
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s / %s ×%d %s",
			i+1, item.ProductTitle, item.Color, item.Size, item.Quantity, item.Price))
		quoteItems = append(quoteItems, product.QuoteItem{
			Price:    item.Price,
			Quantity: item.Quantity,
			Category: item.Category,
		})
	}

	quote := product.Quote(quoteItems)
	lines = append(lines,
		"",
		fmt.Sprintf("💴 商品小計：¥%s", groupDigits(quote.Subtotal)),
		fmt.Sprintf("📦 預估重量：%dg | EMS 運費：¥%s", quote.TotalWeight, groupDigits(quote.ShippingFee)),
		fmt.Sprintf("🧾 服務費：¥%s", groupDigits(quote.ServiceFee)),
		fmt.Sprintf("💰 預估總額：¥%s", groupDigits(req.TotalJPY)),
		fmt.Sprintf("🆔 訂單 ID：%s", orderID),
	)
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func groupDigits(n int) string {
	digits := strconv.Itoa(n)
	if len(digits) <= 3 {
		return digits
	}
	var groups []string
	lead := len(digits) % 3
	if lead > 0 {
		groups = append(groups, digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		groups = append(groups, digits[i:i+3])
	}
	return strings.Join(groups, ",")
}
