// Package catalogdb is the SQLite-backed development catalog. Each product
// is listed at the price of its best vendor offering: the lowest price, with
// ties going to the vendor with the higher priority.
package catalogdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const maxReviews = 10

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
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

const productSelect = `
	WITH best AS (
		SELECT product_id, vendor, price, stock,
			ROW_NUMBER() OVER (
				PARTITION BY product_id
				ORDER BY price IS NULL, CAST(price AS REAL) ASC, priority DESC, id ASC
			) AS rn
		FROM vendor_offerings
	),
	ratings AS (
		SELECT product_id, AVG(rating) AS average, COUNT(*) AS total
		FROM reviews
		GROUP BY product_id
	)
	SELECT p.id, p.name, p.brand, p.description, p.categories, p.images, p.attributes, p.created_at,
		b.vendor, b.price, COALESCE(b.stock, 0),
		COALESCE(r.average, 0), COALESCE(r.total, 0)
	FROM products p
	LEFT JOIN best b ON b.product_id = p.id AND b.rn = 1
	LEFT JOIN ratings r ON r.product_id = p.id
`

const productCount = `
	WITH best AS (
		SELECT product_id, price,
			ROW_NUMBER() OVER (
				PARTITION BY product_id
				ORDER BY price IS NULL, CAST(price AS REAL) ASC, priority DESC, id ASC
			) AS rn
		FROM vendor_offerings
	),
	ratings AS (
		SELECT product_id, AVG(rating) AS average, COUNT(*) AS total
		FROM reviews
		GROUP BY product_id
	)
	SELECT COUNT(*)
	FROM products p
	LEFT JOIN best b ON b.product_id = p.id AND b.rn = 1
	LEFT JOIN ratings r ON r.product_id = p.id
`

var orderBy = map[catalog.SortKey]string{
	catalog.SortNewest:     "p.created_at DESC, p.id DESC",
	catalog.SortPriceAsc:   "b.price IS NULL, CAST(b.price AS REAL) ASC, p.id ASC",
	catalog.SortPriceDesc:  "b.price IS NULL, CAST(b.price AS REAL) DESC, p.id ASC",
	catalog.SortRating:     "COALESCE(r.average, 0) DESC, COALESCE(r.total, 0) DESC, p.id ASC",
	catalog.SortPopularity: "COALESCE(r.total, 0) DESC, COALESCE(r.average, 0) DESC, p.id ASC",
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, productSelect+" WHERE p.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	defer rows.Close()

	var product *domain.Product
	for rows.Next() {
		if product, err = scanProduct(rows); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if product == nil {
		return nil, catalog.ErrProductNotFound
	}

	if product.Reviews, err = r.reviews(ctx, id); err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) ListProducts(ctx context.Context, f catalog.Filters) (*catalog.Page, error) {
	f = f.Normalize()
	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, productCount+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	order, ok := orderBy[f.Sort]
	if !ok {
		return nil, fmt.Errorf("%w: sort_by %q", catalog.ErrInvalidFilter, f.Sort)
	}
	query := productSelect + where + " ORDER BY " + order + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	page := catalog.EmptyPage()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	page.Total = total
	page.HasMore = f.Offset+len(page.Items) < total
	return page, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func whereClause(f catalog.Filters) (string, []any) {
	var conds []string
	var args []any

	if f.Search != "" {
		like := "%" + f.Search + "%"
		conds = append(conds, "(p.name LIKE ? OR p.brand LIKE ? OR p.description LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(f.Categories) > 0 {
		var or []string
		for _, c := range f.Categories {
			or = append(or, "(',' || p.categories || ',') LIKE ?")
			args = append(args, "%,"+c+",%")
		}
		conds = append(conds, "("+strings.Join(or, " OR ")+")")
	}
	if len(f.Brands) > 0 {
		conds = append(conds, "p.brand IN ("+placeholders(len(f.Brands))+")")
		for _, b := range f.Brands {
			args = append(args, b)
		}
	}
	if f.PriceMin.Valid {
		conds = append(conds, "CAST(b.price AS REAL) >= ?")
		args = append(args, f.PriceMin.Decimal.InexactFloat64())
	}
	if f.PriceMax.Valid {
		conds = append(conds, "CAST(b.price AS REAL) <= ?")
		args = append(args, f.PriceMax.Decimal.InexactFloat64())
	}
	if f.MinRating > 0 {
		conds = append(conds, "COALESCE(r.average, 0) >= ?")
		args = append(args, f.MinRating)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p          domain.Product
		categories string
		images     string
		attributes string
		vendor     sql.NullString
		price      decimal.NullDecimal
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Brand,
		&p.Description,
		&categories,
		&images,
		&attributes,
		&p.CreatedAt,
		&vendor,
		&price,
		&p.Stock,
		&p.Rating.Average,
		&p.Rating.Count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	p.Vendor = vendor.String
	p.Price = price
	p.Categories = splitCategories(categories)
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("product %d images: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(attributes), &p.Attributes); err != nil {
		return nil, fmt.Errorf("product %d attributes: %w", p.ID, err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func splitCategories(s string) []string {
	out := []string{}
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (r *Repository) reviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT author, rating, body, created_at
		FROM reviews
		WHERE product_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, productID, maxReviews)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.Author, &rv.Rating, &rv.Body, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
