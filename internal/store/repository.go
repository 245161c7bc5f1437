package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Reader is the read-only view of the price-change store consumed by the
// cache, the analyzer and the handlers. This service has no write path;
// ingestion is a separate process.
type Reader interface {
	FindAll(ctx context.Context) ([]PriceChange, error)
	FindByItem(ctx context.Context, itemID int64) ([]PriceChange, error)
	DistinctItemIDs(ctx context.Context) ([]int64, error)
}

type Repository struct {
	db *pgxpool.Pool
}

// Connect creates the pool and verifies connectivity with a bounded ping.
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{db: pool}, nil
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() {
	r.db.Close()
}

// Prices travel as text and are parsed into decimals on scan, so amounts
// like 4.50 stay exact.
const selectColumns = `
item_id, item_brand, item_name, image_url,
(price_before::text) AS price_before,
(price_after::text)  AS price_after,
date`

// FindAll returns every record, most recent first (the store's natural
// retrieval order; consumers that need another order re-sort themselves).
func (r *Repository) FindAll(ctx context.Context) ([]PriceChange, error) {
	q := `SELECT ` + selectColumns + ` FROM price_changes ORDER BY date DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPriceChanges(rows)
}

// FindByItem returns one item's records in chronological order, the order
// the history analyzer expects.
func (r *Repository) FindByItem(ctx context.Context, itemID int64) ([]PriceChange, error) {
	q := `SELECT ` + selectColumns + ` FROM price_changes WHERE item_id = $1 ORDER BY date ASC`
	rows, err := r.db.Query(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPriceChanges(rows)
}

func (r *Repository) DistinctItemIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT item_id FROM price_changes ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPriceChanges(rows pgxRows) ([]PriceChange, error) {
	var out []PriceChange
	for rows.Next() {
		var (
			rec          PriceChange
			brand, name  sql.NullString
			image        sql.NullString
			before, post sql.NullString
		)
		if err := rows.Scan(&rec.ItemID, &brand, &name, &image, &before, &post, &rec.Date); err != nil {
			return nil, err
		}
		rec.ItemBrand = stringOr(brand, UnknownValue)
		rec.ItemName = stringOr(name, UnknownValue)
		rec.ImageURL = stringOr(image, "")
		rec.PriceBefore = decimalOrZero(before)
		rec.PriceAfter = decimalOrZero(post)
		rec.Date = rec.Date.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func stringOr(s sql.NullString, def string) string {
	if s.Valid && s.String != "" {
		return s.String
	}
	return def
}

func decimalOrZero(s sql.NullString) decimal.Decimal {
	if !s.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}
