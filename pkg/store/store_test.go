package store

import (
	"context"
	"testing"

	"daigo/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StoreConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertCartItemAccumulates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	item := CartItem{
		UserID:       "U1",
		ProductTitle: "Fleece Jacket",
		ProductCode:  "E472735-000",
		Category:     "outerwear",
		Color:        "69 NAVY",
		Size:         "M",
		Price:        "¥2990",
		ProductURL:   "https://shop.example.com/products/E472735-000/00",
	}

	for want := 1; want <= 3; want++ {
		qty, err := s.UpsertCartItem(ctx, item)
		if err != nil {
			t.Fatalf("upsert %d: %v", want, err)
		}
		if qty != want {
			t.Fatalf("quantity = %d, want %d", qty, want)
		}
	}

	items, err := s.CartItems(ctx, "U1")
	if err != nil {
		t.Fatalf("cart items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("repeated add must never create a second row, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("quantity = %d", items[0].Quantity)
	}
}

func TestUpsertCartItemDistinctSizes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	base := CartItem{UserID: "U1", ProductTitle: "Fleece Jacket", Color: "69 NAVY", Size: "M"}
	if _, err := s.UpsertCartItem(ctx, base); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	other := base
	other.Size = "L"
	if _, err := s.UpsertCartItem(ctx, other); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	items, err := s.CartItems(ctx, "U1")
	if err != nil {
		t.Fatalf("cart items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("different sizes are separate rows, got %d", len(items))
	}
}

func TestUpsertRefreshesURLAndPromo(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	item := CartItem{UserID: "U1", ProductTitle: "Parka", Color: "09 BLACK", Size: "S"}
	if _, err := s.UpsertCartItem(ctx, item); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item.ProductURL = "https://shop.example.com/products/E9/01"
	item.PromoEndTS = 1767150000
	if _, err := s.UpsertCartItem(ctx, item); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	items, _ := s.CartItems(ctx, "U1")
	if items[0].ProductURL != item.ProductURL || items[0].PromoEndTS != 1767150000 {
		t.Fatalf("row not refreshed: %+v", items[0])
	}

	// Another add without a deadline keeps the stored one.
	item.PromoEndTS = 0
	if _, err := s.UpsertCartItem(ctx, item); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	items, _ = s.CartItems(ctx, "U1")
	if items[0].PromoEndTS != 1767150000 {
		t.Fatalf("stored deadline lost: %+v", items[0])
	}
}

func TestClearCart(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	for _, user := range []string{"U1", "U2"} {
		if _, err := s.UpsertCartItem(ctx, CartItem{UserID: user, ProductTitle: "Tee", Color: "00", Size: "M"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := s.ClearCart(ctx, "U1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if items, _ := s.CartItems(ctx, "U1"); len(items) != 0 {
		t.Fatalf("U1 cart not cleared: %+v", items)
	}
	if items, _ := s.CartItems(ctx, "U2"); len(items) != 1 {
		t.Fatalf("U2 cart must be untouched: %+v", items)
	}
}

func TestInsertAndListOrders(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	order := &Order{
		UserID:        "U1",
		CustomerName:  "王小明",
		Phone:         "0912345678",
		Address:       "台北市信義區",
		PaymentMethod: "bank_transfer",
		AccountLast5:  "12345",
		Items: []CartItem{
			{ProductTitle: "Fleece Jacket", Color: "69 NAVY", Size: "M", Price: "¥2990", Quantity: 2},
		},
		TotalJPY: 10430,
	}
	if err := s.InsertOrder(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if order.ID == "" || order.Status != OrderStatusPending {
		t.Fatalf("defaults not applied: %+v", order)
	}

	pending, err := s.PendingOrders(ctx)
	if err != nil {
		t.Fatalf("pending orders: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d", len(pending))
	}
	got := pending[0]
	if got.ID != order.ID || got.TotalJPY != 10430 {
		t.Fatalf("order = %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("items round trip failed: %+v", got.Items)
	}
}
