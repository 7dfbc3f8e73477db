package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(dsn string) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, order *domain.Order, conf *domain.Confirmation) error {
	return r.Insert(ctx, NewPlacedEvent(order, conf))
}

func (r *PostgresRecorder) Insert(ctx context.Context, ev PlacedEvent) error {
	itemsJSON, err := json.Marshal(ev.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(ev.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping info: %w", err)
	}

	query := `INSERT INTO orders (order_number, email, payment_method, currency, subtotal, shipping_cost,
	              tax_amount, promo_code, promo_discount, grand_total, items, shipping_info, redirect_url, placed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, insertErr := r.db.ExecContext(ctx, query,
		ev.OrderNumber,
		ev.Email,
		string(ev.PaymentMethod),
		ev.Currency,
		ev.Totals.Subtotal,
		ev.Totals.ShippingCost,
		ev.Totals.TaxAmount,
		nullString(ev.Totals.PromoCode),
		ev.Totals.PromoDiscount,
		ev.Totals.GrandTotal,
		itemsJSON,
		shippingJSON,
		nullString(ev.RedirectURL),
		ev.PlacedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *PostgresRecorder) GetOrder(ctx context.Context, orderNumber string) (*PlacedEvent, error) {
	query := `SELECT order_number, email, payment_method, currency, subtotal, shipping_cost, tax_amount,
	              promo_code, promo_discount, grand_total, items, shipping_info, redirect_url, placed_at
	          FROM orders WHERE order_number = $1`

	var (
		ev           PlacedEvent
		method       string
		promoCode    sql.NullString
		redirectURL  sql.NullString
		itemsJSON    []byte
		shippingJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, orderNumber).Scan(
		&ev.OrderNumber,
		&ev.Email,
		&method,
		&ev.Currency,
		&ev.Totals.Subtotal,
		&ev.Totals.ShippingCost,
		&ev.Totals.TaxAmount,
		&promoCode,
		&ev.Totals.PromoDiscount,
		&ev.Totals.GrandTotal,
		&itemsJSON,
		&shippingJSON,
		&redirectURL,
		&ev.PlacedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	ev.PaymentMethod = domain.PaymentMethod(method)
	ev.Totals.PromoCode = promoCode.String
	ev.RedirectURL = redirectURL.String
	if err := json.Unmarshal(itemsJSON, &ev.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &ev.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping info: %w", err)
	}
	return &ev, nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
