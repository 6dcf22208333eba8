package memstore

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// Catalog is a fixed product list for local runs and tests.
type Catalog struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]models.Product
}

func NewCatalog(products ...models.Product) *Catalog {
	c := &Catalog{products: make(map[primitive.ObjectID]models.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *Catalog) Put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) FindProducts(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
