package store

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"shopdesk-backend/internal/support"
	"shopdesk-backend/internal/types"
)

// CatalogCategories are the storefront's product categories in display order.
var CatalogCategories = []string{"Electronics", "Accessories", "Home", "Fitness", "Footwear"}

const perCategory = 10

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)
	wordPattern = regexp.MustCompile(`[a-z0-9]{3,}`)
)

// MemoryCatalog is the in-process product catalog used when no database is configured.
type MemoryCatalog struct {
	products []types.Product
}

// NewMemoryCatalog builds the deterministic demo catalog: ten products per category.
func NewMemoryCatalog() *MemoryCatalog {
	products := make([]types.Product, 0, len(CatalogCategories)*perCategory)
	id := 1
	for _, cat := range CatalogCategories {
		for i := 0; i < perCategory; i++ {
			products = append(products, makeProduct(id, cat))
			id++
		}
	}
	return &MemoryCatalog{products: products}
}

// NewMemoryCatalogFrom wraps an explicit product list.
func NewMemoryCatalogFrom(products []types.Product) *MemoryCatalog {
	return &MemoryCatalog{products: append([]types.Product(nil), products...)}
}

func makeProduct(id int, category string) types.Product {
	n := id % 10
	if n == 0 {
		n = 10
	}
	return types.Product{
		ID:          id,
		Slug:        fmt.Sprintf("%s-%d", toSlug(category), id),
		Title:       fmt.Sprintf("%s Item %d", category, n),
		Description: fmt.Sprintf("High-quality %s product crafted for everyday use and reliability.", strings.ToLower(category)),
		Category:    category,
		Price:       math.Round((20+float64(id%10)*7.5)*100) / 100,
		Inventory:   10 + id%15,
		Featured:    id%10 == 1,
	}
}

func toSlug(title string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

func (c *MemoryCatalog) Products() []types.Product {
	return append([]types.Product(nil), c.products...)
}

func (c *MemoryCatalog) Categories() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(CatalogCategories))
	for _, p := range c.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Recommend filters by category and budget, then ranks by word overlap with the
// free text, featured products, and price.
func (c *MemoryCatalog) Recommend(_ context.Context, q support.RecommendationQuery) ([]types.Product, error) {
	words := wordPattern.FindAllString(strings.ToLower(q.FreeText), -1)

	type scored struct {
		p     types.Product
		score int
	}
	var matches []scored
	for _, p := range c.products {
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.Budget > 0 && p.Price > q.Budget {
			continue
		}
		text := strings.ToLower(p.Title + " " + p.Description + " " + p.Category)
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		matches = append(matches, scored{p: p, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.p.Featured != b.p.Featured {
			return a.p.Featured
		}
		return a.p.Price < b.p.Price
	})

	limit := q.Limit
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	out := make([]types.Product, 0, limit)
	for _, m := range matches[:limit] {
		out = append(out, m.p)
	}
	return out, nil
}
