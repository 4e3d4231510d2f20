package catalog

import (
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

// Catalog is a read-only product listing held in memory.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

func New(products []Product) *Catalog {
	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// NewDefault returns the storefront's built-in product set.
func NewDefault() *Catalog {
	return New(defaultProducts())
}

func (c *Catalog) Get(id string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// List returns products ordered by id.
func (c *Catalog) List() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	products := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func defaultProducts() []Product {
	return []Product{
		{
			ID:          "1",
			Name:        "Wireless Headphones",
			Description: "High-quality wireless headphones with noise cancellation",
			Price:       decimal.RequireFromString("99.99"),
			Image:       "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=500",
			Category:    "Electronics",
			Stock:       50,
		},
		{
			ID:          "2",
			Name:        "Smart Watch",
			Description: "Fitness tracking smartwatch with heart rate monitor",
			Price:       decimal.RequireFromString("199.99"),
			Image:       "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=500",
			Category:    "Electronics",
			Stock:       30,
		},
		{
			ID:          "3",
			Name:        "Laptop Stand",
			Description: "Adjustable aluminum laptop stand for better ergonomics",
			Price:       decimal.RequireFromString("49.99"),
			Image:       "https://images.unsplash.com/photo-1527864550417-7fd91fc51a46?w=500",
			Category:    "Accessories",
			Stock:       75,
		},
		{
			ID:          "4",
			Name:        "Coffee Mug",
			Description: "Premium ceramic coffee mug with thermal insulation",
			Price:       decimal.RequireFromString("24.99"),
			Image:       "https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=500&q=80",
			Category:    "Kitchen",
			Stock:       100,
		},
		{
			ID:          "5",
			Name:        "Backpack",
			Description: "Waterproof travel backpack with multiple compartments",
			Price:       decimal.RequireFromString("79.99"),
			Image:       "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?w=500",
			Category:    "Travel",
			Stock:       40,
		},
		{
			ID:          "6",
			Name:        "Desk Lamp",
			Description: "LED desk lamp with adjustable brightness and color",
			Price:       decimal.RequireFromString("34.99"),
			Image:       "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=500",
			Category:    "Home",
			Stock:       60,
		},
	}
}
