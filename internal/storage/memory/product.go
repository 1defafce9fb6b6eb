// Package memory provides in-process implementations of the catalog stores.
// They back unit and handler tests and the "memory" blob driver used for
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xenking/product-catalog/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

type ownership struct {
	userID, productID int64
}

// ProductRepository is a product.Repository held in memory.
type ProductRepository struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]product.Product
	owners   map[ownership]struct{}
	now      func() time.Time
}

// NewProductRepository returns an empty repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[int64]product.Product),
		owners:   make(map[ownership]struct{}),
		now:      time.Now,
	}
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, clone(p))
	}
	sortByID(out)
	return out, nil
}

// GetByID returns a copy of the stored product.
func (r *ProductRepository) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p = clone(p)
	return &p, nil
}

// Create stores a new product with the next sequential ID.
func (r *ProductRepository) Create(_ context.Context, f product.Fields) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := r.now()
	p := product.Product{
		ID:          r.nextID,
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.products[p.ID] = p
	p = clone(p)
	return &p, nil
}

// Update overwrites the writable fields of an existing product.
func (r *ProductRepository) Update(_ context.Context, id int64, f product.Fields) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.Name = f.Name
	p.Description = f.Description
	p.Price = f.Price
	p.UpdatedAt = r.now()
	r.products[id] = p
	p = clone(p)
	return &p, nil
}

// SetImage replaces the image path of an existing product.
func (r *ProductRepository) SetImage(_ context.Context, id int64, image string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.Image = &image
	p.UpdatedAt = r.now()
	r.products[id] = p
	p = clone(p)
	return &p, nil
}

// Delete removes the product and its ownership edges.
func (r *ProductRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.products, id)
	for o := range r.owners {
		if o.productID == id {
			delete(r.owners, o)
		}
	}
	return nil
}

// Attach adds an ownership edge. Repeated calls are idempotent.
func (r *ProductRepository) Attach(_ context.Context, userID, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[productID]; !ok {
		return product.ErrNotFound
	}
	r.owners[ownership{userID: userID, productID: productID}] = struct{}{}
	return nil
}

// Detach removes an ownership edge if present.
func (r *ProductRepository) Detach(_ context.Context, userID, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.owners, ownership{userID: userID, productID: productID})
	return nil
}

// ListByUser returns the products owned by userID ordered by ID.
func (r *ProductRepository) ListByUser(_ context.Context, userID int64) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []product.Product
	for o := range r.owners {
		if o.userID != userID {
			continue
		}
		if p, ok := r.products[o.productID]; ok {
			out = append(out, clone(p))
		}
	}
	sortByID(out)
	return out, nil
}

func clone(p product.Product) product.Product {
	if p.Image != nil {
		img := *p.Image
		p.Image = &img
	}
	return p
}

func sortByID(ps []product.Product) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
