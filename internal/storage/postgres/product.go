package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/product-catalog/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, image, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (name, description, price)
		VALUES ($1, $2, $3)
		RETURNING ` + productColumns

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, price = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns

	setProductImageSQL = `UPDATE products
		SET image = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	attachProductSQL = `INSERT INTO product_user (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	detachProductSQL = `DELETE FROM product_user WHERE user_id = $1 AND product_id = $2`

	listProductsByUserSQL = `SELECT p.id, p.name, p.description, p.price, p.image, p.created_at, p.updated_at
		FROM products p
		JOIN product_user pu ON pu.product_id = p.id
		WHERE pu.user_id = $1
		ORDER BY p.id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db DB
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return r.one(ctx, "getting", id, getProductByIDSQL, id)
}

// Create inserts a product without an image.
func (r *ProductRepository) Create(ctx context.Context, f product.Fields) (*product.Product, error) {
	rows, err := r.db.Query(ctx, createProductSQL, f.Name, f.Description, f.Price)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return &p, nil
}

// Update overwrites name, description and price.
func (r *ProductRepository) Update(ctx context.Context, id int64, f product.Fields) (*product.Product, error) {
	return r.one(ctx, "updating", id, updateProductSQL, id, f.Name, f.Description, f.Price)
}

// SetImage replaces the stored image path.
func (r *ProductRepository) SetImage(ctx context.Context, id int64, image string) (*product.Product, error) {
	return r.one(ctx, "setting image of", id, setProductImageSQL, id, image)
}

// Delete removes the product; ownership rows cascade.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Attach inserts an ownership edge; an existing edge is left as is.
func (r *ProductRepository) Attach(ctx context.Context, userID, productID int64) error {
	if _, err := r.db.Exec(ctx, attachProductSQL, userID, productID); err != nil {
		return fmt.Errorf("attaching product %d to user %d: %w", productID, userID, err)
	}
	return nil
}

// Detach removes an ownership edge if present.
func (r *ProductRepository) Detach(ctx context.Context, userID, productID int64) error {
	if _, err := r.db.Exec(ctx, detachProductSQL, userID, productID); err != nil {
		return fmt.Errorf("detaching product %d from user %d: %w", productID, userID, err)
	}
	return nil
}

// ListByUser returns the products owned by userID ordered by ID.
func (r *ProductRepository) ListByUser(ctx context.Context, userID int64) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing products of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// BulkInsert copies products into the table with the COPY protocol and
// returns the number of rows written.
func (r *ProductRepository) BulkInsert(ctx context.Context, fields []product.Fields) (int64, error) {
	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{"name", "description", "price"},
		pgx.CopyFromSlice(len(fields), func(i int) ([]any, error) {
			f := fields[i]
			return []any{f.Name, f.Description, f.Price}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying %d products: %w", len(fields), err)
	}
	return n, nil
}

func (r *ProductRepository) one(ctx context.Context, op string, id int64, sql string, args ...any) (*product.Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s product %d: %w", op, id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("%s product %d: %w", op, id, err)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Image,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
