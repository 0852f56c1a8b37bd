package remind

import (
	"context"
	"strings"
	"testing"

	"daigo/pkg/chat"
	"daigo/pkg/config"
	"daigo/pkg/store"
)

type nopSender struct{}

func (nopSender) Reply(ctx context.Context, replyToken string, msgs ...chat.Message) error {
	return nil
}
func (nopSender) Push(ctx context.Context, to string, msgs ...chat.Message) error { return nil }
func (nopSender) Profile(ctx context.Context, userID string) (chat.Profile, error) {
	return chat.Profile{}, nil
}
func (nopSender) Loading(ctx context.Context, chatID string, seconds int) error { return nil }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(config.StoreConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDigestEmpty(t *testing.T) {
	t.Parallel()

	r := New(newTestStore(t), nopSender{}, "Uop", "30 21 * * *")
	_, ok, err := r.Digest(context.Background())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if ok {
		t.Fatalf("empty store must produce no digest")
	}
}

func TestDigestSummarizesPendingOrders(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	orders := []*store.Order{
		{
			UserID: "U1", CustomerName: "王小明", Phone: "0912", Address: "台北", PaymentMethod: "bank_transfer",
			Items:    []store.CartItem{{ProductTitle: "Tee", Color: "00", Size: "M", Quantity: 2}},
			TotalJPY: 4930,
		},
		{
			UserID: "U2", CustomerName: "陳大文", Phone: "0923", Address: "台中", PaymentMethod: "ecpay",
			Items:    []store.CartItem{{ProductTitle: "Parka", Color: "09", Size: "L", Quantity: 1}},
			TotalJPY: 10430,
		},
	}
	for _, o := range orders {
		if err := st.InsertOrder(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	r := New(st, nopSender{}, "Uop", "30 21 * * *")
	digest, ok, err := r.Digest(ctx)
	if err != nil || !ok {
		t.Fatalf("digest: ok=%v err=%v", ok, err)
	}

	for _, want := range []string{"待處理訂單 2 筆", "王小明", "陳大文", "¥15360"} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q:\n%s", want, digest)
		}
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	r := New(newTestStore(t), nopSender{}, "Uop", "not a cron spec")
	if err := r.Start(); err == nil {
		t.Fatalf("invalid spec must fail")
	}
}
