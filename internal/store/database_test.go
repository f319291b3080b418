package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk-backend/internal/support"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return sqlx.NewDb(conn, "postgres"), mock
}

var productColumns = []string{"id", "slug", "title", "description", "category", "price", "inventory", "featured"}

func TestDatabaseCatalog(t *testing.T) {
	categoriesQuery := regexp.QuoteMeta(`SELECT DISTINCT category FROM products ORDER BY category`)

	t.Run("Should load categories on construction", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(categoriesQuery).
			WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Electronics").AddRow("Fitness"))

		dc, err := NewDatabaseCatalog(context.Background(), db)
		require.NoError(t, err)
		assert.Equal(t, []string{"Electronics", "Fitness"}, dc.Categories())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should fail when categories cannot be read", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(categoriesQuery).WillReturnError(errors.New("relation does not exist"))

		_, err := NewDatabaseCatalog(context.Background(), db)
		assert.ErrorContains(t, err, "failed to load catalog categories")
	})

	t.Run("Should query recommendations with filters and limit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(categoriesQuery).
			WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Fitness"))
		mock.ExpectQuery(`SELECT id, slug, title, description, category, price, inventory, featured\s+FROM products`).
			WithArgs("Fitness", 150.0, sqlmock.AnyArg(), 5).
			WillReturnRows(sqlmock.NewRows(productColumns).
				AddRow(31, "fitness-31", "Fitness Item 1", "desc", "Fitness", 27.5, 11, true).
				AddRow(40, "fitness-40", "Fitness Item 10", "desc", "Fitness", 20.0, 10, false))

		dc, err := NewDatabaseCatalog(context.Background(), db)
		require.NoError(t, err)
		got, err := dc.Recommend(context.Background(), support.RecommendationQuery{
			FreeText: "something under $150 in Fitness",
			Category: "Fitness",
			Budget:   150,
			Limit:    5,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "fitness-31", got[0].Slug)
		assert.True(t, got[0].Featured)
		assert.Equal(t, 20.0, got[1].Price)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should default the limit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(categoriesQuery).WillReturnRows(sqlmock.NewRows([]string{"category"}))
		mock.ExpectQuery(`FROM products`).
			WithArgs("", 0.0, sqlmock.AnyArg(), 5).
			WillReturnRows(sqlmock.NewRows(productColumns))

		dc, err := NewDatabaseCatalog(context.Background(), db)
		require.NoError(t, err)
		got, err := dc.Recommend(context.Background(), support.RecommendationQuery{})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should wrap query errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(categoriesQuery).WillReturnRows(sqlmock.NewRows([]string{"category"}))
		mock.ExpectQuery(`FROM products`).WillReturnError(errors.New("timeout"))

		dc, err := NewDatabaseCatalog(context.Background(), db)
		require.NoError(t, err)
		_, err = dc.Recommend(context.Background(), support.RecommendationQuery{Limit: 3})
		assert.ErrorContains(t, err, "failed to query recommendations")
	})

	t.Run("Should count products", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(categoriesQuery).WillReturnRows(sqlmock.NewRows([]string{"category"}))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM products`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(50))

		dc, err := NewDatabaseCatalog(context.Background(), db)
		require.NoError(t, err)
		n, err := dc.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 50, n)
	})
}
