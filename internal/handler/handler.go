// Package handler exposes the product catalog over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/product-catalog/internal/domain/product"
)

// ProductService is the set of catalog operations served over HTTP.
// It is implemented by *product.Service.
type ProductService interface {
	List(ctx context.Context) ([]product.Product, error)
	Create(ctx context.Context, in product.Input) (*product.Product, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
	Update(ctx context.Context, id int64, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, id int64, u product.Upload) (*product.Product, error)
	AttachToUser(ctx context.Context, userID, id int64) error
	DetachFromUser(ctx context.Context, userID, id int64) error
	ListOwnedByUser(ctx context.Context, userID int64) ([]product.Product, error)
}

var _ ProductService = (*product.Service)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is joined with the stored image path to build image_url.
	// When empty, image_url is omitted.
	ImageBaseURL string
	// MaxUploadBytes caps the product_image file. Zero disables the cap.
	MaxUploadBytes int64
}

// Handler serves the /api/products routes.
type Handler struct {
	products     ProductService
	imageBaseURL string
	maxUpload    int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, products ProductService) *Handler {
	return &Handler{
		products:     products,
		imageBaseURL: cfg.ImageBaseURL,
		maxUpload:    cfg.MaxUploadBytes,
	}
}

// Mount registers the product routes on r under /api/products. Every route
// requires authentication through sec; authenticated middlewares run after it
// and can rely on the caller's auth.Identity.
func (h *Handler) Mount(r chi.Router, sec *SecurityHandler, authenticated ...func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(sec.Authenticate)
		r.Use(authenticated...)

		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/belongs-to-user", h.ListOwnedProducts)

		r.Get("/{id}", h.GetProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Patch("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)

		r.Patch("/{id}/upload-image", h.UploadImage)
		r.Patch("/{id}/attach-to-user", h.AttachToUser)
		r.Patch("/{id}/detach-from-user", h.DetachFromUser)
	})
}
