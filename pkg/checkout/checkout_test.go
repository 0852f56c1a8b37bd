package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"daigo/pkg/catalog"
	"daigo/pkg/chat"
	"daigo/pkg/config"
	"daigo/pkg/store"
)

type fakeSender struct {
	mu       sync.Mutex
	pushes   []string
	pushTo   []string
	pushErr  error
	profiles map[string]string
}

func (f *fakeSender) Reply(ctx context.Context, replyToken string, msgs ...chat.Message) error {
	return nil
}

func (f *fakeSender) Push(ctx context.Context, to string, msgs ...chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	for _, m := range msgs {
		if t, ok := m.(chat.TextMessage); ok {
			f.pushes = append(f.pushes, t.Text)
			f.pushTo = append(f.pushTo, to)
		}
	}
	return nil
}

func (f *fakeSender) Profile(ctx context.Context, userID string) (chat.Profile, error) {
	if name, ok := f.profiles[userID]; ok {
		return chat.Profile{UserID: userID, DisplayName: name}, nil
	}
	return chat.Profile{}, errors.New("no profile")
}

func (f *fakeSender) Loading(ctx context.Context, chatID string, seconds int) error {
	return nil
}

func newTestChecker(baseURL string) *SyncChecker {
	cfg := config.DefaultConfig().Catalog
	cfg.BaseURL = baseURL
	cfg.ProbeRatePerSec = 1000
	return NewSyncChecker(catalog.NewClient(cfg), 4)
}

func TestSyncCheckPriceAndStockChanges(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/price-groups/01/") {
			http.NotFound(w, r)
			return
		}
		if strings.Contains(r.URL.Path, "/price-groups/00/") {
			// Price went up and size M disappeared from the size chart.
			w.Write([]byte(`{"result": {
				"name": "Fleece Jacket",
				"prices": {"base": {"value": 6990}},
				"breadcrumbs": {"class": {"name": "outerwear"}},
				"colors": [{"displayCode": "69", "name": "NAVY"}],
				"sizes": [{"displayCode": "003", "name": "S"}]
			}}`))
			return
		}
		// Probes: S in navy has stock.
		q := r.URL.Query()
		if q.Get("colorCodes") == "COL69" && q.Get("sizeCodes") == "SMA003" {
			w.Write([]byte(`{"result": {"items": [{"sizes": []}]}}`))
			return
		}
		w.Write([]byte(`{"result": {"items": []}}`))
	}))
	defer srv.Close()

	items := []SyncItem{
		{ProductCode: "E472735-000", Color: "69 NAVY", Size: "M", Price: "¥5990"},
		{ProductCode: "E472735-000", Color: "69 NAVY", Size: "S", Price: "¥5990"},
	}
	results, hasChanges := newTestChecker(srv.URL).Check(context.Background(), items)

	if !hasChanges {
		t.Fatalf("expected changes")
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}

	m := results[0]
	if m.CurrentPrice != "¥6990" || !m.PriceChanged {
		t.Fatalf("price change not detected: %+v", m)
	}
	if m.InStock || !m.StockChanged {
		t.Fatalf("vanished size must read out of stock without probing: %+v", m)
	}

	s := results[1]
	if !s.InStock || s.StockChanged {
		t.Fatalf("size S should be in stock: %+v", s)
	}
	if !s.PriceChanged {
		t.Fatalf("price change applies to every row: %+v", s)
	}
}

func TestSyncCheckDelistedProduct(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	items := []SyncItem{{ProductCode: "E000000-000", Color: "00 WHITE", Size: "M", Price: "¥1990"}}
	results, hasChanges := newTestChecker(srv.URL).Check(context.Background(), items)

	if !hasChanges || len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	r := results[0]
	if r.InStock || !r.StockChanged || r.PriceChanged {
		t.Fatalf("delisted row = %+v", r)
	}
	if r.CurrentPrice != "¥1990" {
		t.Fatalf("delisted row keeps the stored price: %+v", r)
	}
}

func TestSyncCheckFetchesEachProductOnce(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	detailCalls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/price-groups/") {
			mu.Lock()
			detailCalls++
			mu.Unlock()
			w.Write([]byte(`{"result": {
				"name": "Tee",
				"prices": {"base": {"value": 990}},
				"colors": [{"displayCode": "00", "name": "WHITE"}],
				"sizes": [{"displayCode": "004", "name": "M"}]
			}}`))
			return
		}
		w.Write([]byte(`{"result": {"items": [{"sizes": []}]}}`))
	}))
	defer srv.Close()

	items := []SyncItem{
		{ProductCode: "E111111-000", Color: "00 WHITE", Size: "M", Price: "¥990"},
		{ProductCode: "E111111-000", Color: "00 WHITE", Size: "M", Price: "¥990"},
		{ProductCode: "E111111-000", Color: "00 WHITE", Size: "M", Price: "¥990"},
	}
	newTestChecker(srv.URL).Check(context.Background(), items)

	// Two price groups per product, regardless of the row count.
	if detailCalls != 2 {
		t.Fatalf("detail calls = %d, want 2", detailCalls)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(config.StoreConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		UserID:        "U1",
		LineName:      "小明",
		CustomerName:  "王小明",
		Phone:         "0912345678",
		Address:       "台北市信義區",
		PaymentMethod: "bank_transfer",
		AccountLast5:  "12345",
		Items: []store.CartItem{
			{ProductTitle: "Fleece Jacket", Category: "outerwear", Color: "69 NAVY", Size: "M", Price: "¥2990", Quantity: 2},
		},
		TotalJPY: 10430,
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	sub := NewSubmitter(newTestStore(t), &fakeSender{}, "Uop")

	broken := validRequest()
	broken.Phone = ""
	if _, err := sub.Submit(context.Background(), broken); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}

	empty := validRequest()
	empty.Items = nil
	if _, err := sub.Submit(context.Background(), empty); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestSubmitStoresClearsAndNotifies(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()
	if _, err := st.UpsertCartItem(ctx, store.CartItem{UserID: "U1", ProductTitle: "Fleece Jacket", Color: "69 NAVY", Size: "M"}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	sender := &fakeSender{}
	sub := NewSubmitter(st, sender, "Uop")

	orderID, err := sub.Submit(ctx, validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if orderID == "" {
		t.Fatalf("empty order ID")
	}

	pending, err := st.PendingOrders(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %+v, err = %v", pending, err)
	}
	if items, _ := st.CartItems(ctx, "U1"); len(items) != 0 {
		t.Fatalf("cart not cleared: %+v", items)
	}

	if len(sender.pushes) != 2 {
		t.Fatalf("expected customer and operator pushes, got %d", len(sender.pushes))
	}
	if sender.pushTo[0] != "U1" || sender.pushTo[1] != "Uop" {
		t.Fatalf("push recipients = %v", sender.pushTo)
	}
	if !strings.Contains(sender.pushes[1], orderID) {
		t.Fatalf("operator message must carry the order ID: %q", sender.pushes[1])
	}
	if !strings.Contains(sender.pushes[1], "EMS 運費") {
		t.Fatalf("operator message must carry the shipping estimate: %q", sender.pushes[1])
	}
	if !strings.Contains(sender.pushes[1], "帳號末五碼：12345") {
		t.Fatalf("bank transfer details missing: %q", sender.pushes[1])
	}
}

func TestSubmitSurvivesNotificationFailure(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	sender := &fakeSender{pushErr: errors.New("push down")}
	sub := NewSubmitter(st, sender, "Uop")

	orderID, err := sub.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("failed push must not fail the order: %v", err)
	}
	pending, _ := st.PendingOrders(context.Background())
	if len(pending) != 1 || pending[0].ID != orderID {
		t.Fatalf("order not persisted: %+v", pending)
	}
}

func TestForwardQuote(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{profiles: map[string]string{"U1": "小明"}}
	sub := NewSubmitter(newTestStore(t), sender, "Uop")

	if err := sub.ForwardQuote(context.Background(), "U1", "結帳明細..."); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(sender.pushes) != 2 {
		t.Fatalf("pushes = %v", sender.pushes)
	}
	if !strings.Contains(sender.pushes[1], "小明") {
		t.Fatalf("operator copy must name the customer: %q", sender.pushes[1])
	}

	if err := sub.ForwardQuote(context.Background(), "", "x"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v", err)
	}
}

func TestGroupDigits(t *testing.T) {
	t.Parallel()

	cases := map[int]string{990: "990", 6990: "6,990", 10430: "10,430", 1234567: "1,234,567"}
	for n, want := range cases {
		if got := groupDigits(n); got != want {
			t.Fatalf("groupDigits(%d) = %q, want %q", n, got, want)
		}
	}
}
