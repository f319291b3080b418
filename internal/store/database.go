package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"shopdesk-backend/internal/support"
	"shopdesk-backend/internal/types"
)

const catalogQueryTimeout = 5 * time.Second

// DatabaseCatalog serves recommendations from the Postgres products table.
type DatabaseCatalog struct {
	db         *sqlx.DB
	categories []string
}

// NewDatabaseCatalog reads the category list once; categories are reference data.
func NewDatabaseCatalog(ctx context.Context, db *sqlx.DB) (*DatabaseCatalog, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogQueryTimeout)
	defer cancel()

	var categories []string
	query := `SELECT DISTINCT category FROM products ORDER BY category`
	if err := db.SelectContext(ctx, &categories, query); err != nil {
		return nil, errors.Wrap(err, "failed to load catalog categories")
	}
	return &DatabaseCatalog{db: db, categories: categories}, nil
}

func (dc *DatabaseCatalog) Categories() []string {
	return append([]string(nil), dc.categories...)
}

// Recommend mirrors MemoryCatalog ranking: word overlap, featured, then price.
func (dc *DatabaseCatalog) Recommend(ctx context.Context, q support.RecommendationQuery) ([]types.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogQueryTimeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	words := wordPattern.FindAllString(strings.ToLower(q.FreeText), -1)
	if words == nil {
		words = []string{}
	}

	query := `
		SELECT id, slug, title, description, category, price, inventory, featured
		FROM products
		WHERE ($1::text = '' OR lower(category) = lower($1::text))
		  AND ($2::numeric <= 0 OR price <= $2::numeric)
		ORDER BY (
			SELECT count(*) FROM unnest($3::text[]) AS w
			WHERE lower(title || ' ' || description || ' ' || category) LIKE '%' || w || '%'
		) DESC, featured DESC, price ASC
		LIMIT $4
	`
	var products []types.Product
	if err := dc.db.SelectContext(ctx, &products, query, q.Category, q.Budget, pq.Array(words), limit); err != nil {
		return nil, errors.Wrap(err, "failed to query recommendations")
	}
	return products, nil
}

// Count returns the number of catalog rows.
func (dc *DatabaseCatalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := dc.db.GetContext(ctx, &n, `SELECT count(*) FROM products`); err != nil {
		return 0, errors.Wrap(err, "failed to count products")
	}
	return n, nil
}
