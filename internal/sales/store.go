package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// StatusPending is the status of a sale created from an order.
const StatusPending = "pending"

var (
	// ErrSaleExists is returned when the order already has a sale.
	ErrSaleExists = errors.New("sale already exists for order")
)

// Schema creates the sales table. order_id is unique: at most one sale per order.
const Schema = `
CREATE TABLE IF NOT EXISTS sales (
	sale_id      uuid PRIMARY KEY,
	order_id     text NOT NULL UNIQUE,
	user_id      text NOT NULL,
	client_id    text NOT NULL,
	client_name  text NOT NULL DEFAULT '',
	total_amount numeric(14,2) NOT NULL,
	status       text NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now()
)`

// Sale is a sale record created from a released order.
type Sale struct {
	SaleID      string          `json:"sale_id"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	ClientID    string          `json:"client_id"`
	ClientName  string          `json:"client_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists sales in Postgres.
type PGStore struct {
	db      DB
	timeout time.Duration
}

// NewPGStore creates a sale store over db.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db, timeout: 2 * time.Second}
}

// EnsureSchema creates the sales table if needed.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create sales schema: %w", err)
	}
	return nil
}

// CreateSale inserts a sale and returns its id.
func (s *PGStore) CreateSale(ctx context.Context, sale Sale) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO sales (sale_id, order_id, user_id, client_id, client_name, total_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		 RETURNING sale_id`,
		sale.SaleID, sale.OrderID, sale.UserID, sale.ClientID, sale.ClientName,
		sale.TotalAmount.StringFixed(2), sale.Status, sale.CreatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrSaleExists, sale.OrderID)
		}
		return "", fmt.Errorf("insert sale: %w", err)
	}
	return id, nil
}

// GetByOrder returns the sale of an order, or (nil, nil) if there is none.
func (s *PGStore) GetByOrder(ctx context.Context, orderID string) (*Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		sale  Sale
		total string
	)
	err := s.db.QueryRow(ctx,
		`SELECT sale_id, order_id, user_id, client_id, client_name, total_amount::text, status, created_at
		 FROM sales WHERE order_id = $1`, orderID,
	).Scan(&sale.SaleID, &sale.OrderID, &sale.UserID, &sale.ClientID, &sale.ClientName, &total, &sale.Status, &sale.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if sale.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse sale total: %w", err)
	}
	return &sale, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
