// Package store persists carts and orders in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"daigo/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS cart_items (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        TEXT NOT NULL,
	product_title  TEXT NOT NULL,
	product_code   TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	color          TEXT NOT NULL,
	size           TEXT NOT NULL,
	price          TEXT NOT NULL DEFAULT '',
	image_url      TEXT NOT NULL DEFAULT '',
	product_url    TEXT NOT NULL DEFAULT '',
	promo_end      INTEGER NOT NULL DEFAULT 0,
	quantity       INTEGER NOT NULL DEFAULT 1,
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_cart_items_user ON cart_items(user_id);

CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	line_name      TEXT NOT NULL DEFAULT '',
	customer_name  TEXT NOT NULL,
	phone          TEXT NOT NULL,
	address        TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	account_last5  TEXT NOT NULL DEFAULT '',
	items_json     TEXT NOT NULL,
	total_jpy      INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`

const OrderStatusPending = "pending"

type Store struct {
	db *sql.DB
}

func Open(cfg config.StoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// SQLite handles one writer; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type CartItem struct {
	ID           int64  `json:"id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	ProductTitle string `json:"product_title"`
	ProductCode  string `json:"product_code,omitempty"`
	Category     string `json:"category,omitempty"`
	Color        string `json:"color"`
	Size         string `json:"size"`
	Price        string `json:"price"`
	ImageURL     string `json:"image_url,omitempty"`
	ProductURL   string `json:"product_url,omitempty"`
	PromoEndTS   int64  `json:"promo_end,omitempty"`
	Quantity     int    `json:"quantity"`
}

// UpsertCartItem adds one unit of the item. An existing row for the same
// (user, title, color, size) gets its quantity bumped and its product URL
// and promo deadline refreshed; otherwise a new row starts at quantity 1.
// Returns the accumulated quantity.
func (s *Store) UpsertCartItem(ctx context.Context, item CartItem) (int, error) {
	var id int64
	var quantity int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, quantity FROM cart_items
		 WHERE user_id = ? AND product_title = ? AND color = ? AND size = ?`,
		item.UserID, item.ProductTitle, item.Color, item.Size,
	).Scan(&id, &quantity)

	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO cart_items
			 (user_id, product_title, product_code, category, color, size,
			  price, image_url, product_url, promo_end, quantity)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			item.UserID, item.ProductTitle, item.ProductCode, item.Category,
			item.Color, item.Size, item.Price, item.ImageURL, item.ProductURL,
			item.PromoEndTS)
		if err != nil {
			return 0, fmt.Errorf("insert cart item: %w", err)
		}
		return 1, nil

	case err != nil:
		return 0, fmt.Errorf("lookup cart item: %w", err)
	}

	newQuantity := quantity + 1
	promoEnd := item.PromoEndTS
	if promoEnd == 0 {
		// Keep the stored deadline when the new postback has none.
		_, err = s.db.ExecContext(ctx,
			`UPDATE cart_items SET quantity = ?, product_url = ? WHERE id = ?`,
			newQuantity, item.ProductURL, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE cart_items SET quantity = ?, product_url = ?, promo_end = ? WHERE id = ?`,
			newQuantity, item.ProductURL, promoEnd, id)
	}
	if err != nil {
		return 0, fmt.Errorf("update cart item: %w", err)
	}
	return newQuantity, nil
}

func (s *Store) CartItems(ctx context.Context, userID string) ([]CartItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, product_title, product_code, category, color, size,
		        price, image_url, product_url, promo_end, quantity
		 FROM cart_items WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductTitle, &it.ProductCode,
			&it.Category, &it.Color, &it.Size, &it.Price, &it.ImageURL,
			&it.ProductURL, &it.PromoEndTS, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

type Order struct {
	ID            string
	UserID        string
	LineName      string
	CustomerName  string
	Phone         string
	Address       string
	PaymentMethod string
	AccountLast5  string
	Items         []CartItem
	TotalJPY      int
	Status        string
	CreatedAt     time.Time
}

// InsertOrder persists a new order. A missing ID gets a fresh UUID and a
// missing status defaults to pending; both are written back to the value.
func (s *Store) InsertOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders
		 (id, user_id, line_name, customer_name, phone, address,
		  payment_method, account_last5, items_json, total_jpy, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.LineName, o.CustomerName, o.Phone, o.Address,
		o.PaymentMethod, o.AccountLast5, string(itemsJSON), o.TotalJPY, o.Status)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) PendingOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, line_name, customer_name, phone, address,
		        payment_method, account_last5, items_json, total_jpy, status, created_at
		 FROM orders WHERE status = ? ORDER BY created_at`, OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		var itemsJSON string
		if err := rows.Scan(&o.ID, &o.UserID, &o.LineName, &o.CustomerName,
			&o.Phone, &o.Address, &o.PaymentMethod, &o.AccountLast5,
			&itemsJSON, &o.TotalJPY, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
