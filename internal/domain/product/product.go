package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ImageDir is the blob namespace product images are stored under.
const ImageDir = "products"

// Product represents a catalog item. Image is nil until an image is uploaded.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Image       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fields is the allow-list of attributes a client may write on create or
// update. Image is deliberately absent: it is only set by UploadImage.
type Fields struct {
	Name        string
	Description string
	Price       decimal.Decimal
}

// Repository defines persistence operations for products and the
// user-product ownership relation.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, f Fields) (*Product, error)
	Update(ctx context.Context, id int64, f Fields) (*Product, error)
	SetImage(ctx context.Context, id int64, image string) (*Product, error)
	Delete(ctx context.Context, id int64) error

	Attach(ctx context.Context, userID, productID int64) error
	Detach(ctx context.Context, userID, productID int64) error
	ListByUser(ctx context.Context, userID int64) ([]Product, error)
}
