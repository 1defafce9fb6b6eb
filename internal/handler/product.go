package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/product-catalog/internal/domain/product"
)

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeProducts(w, products)
}

// CreateProduct validates the body and stores a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusCreated, p)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

// UpdateProduct overwrites name, description and price.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	in, err := decodeInput(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

// DeleteProduct removes a product and its image.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w)
}

// UploadImage replaces the product image with the multipart product_image file.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	upload, err := h.readUpload(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.products.UploadImage(r.Context(), id, upload)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

// AttachToUser makes the caller an owner of the product.
func (h *Handler) AttachToUser(w http.ResponseWriter, r *http.Request) {
	h.ownership(w, r, h.products.AttachToUser)
}

// DetachFromUser removes the caller's ownership of the product.
func (h *Handler) DetachFromUser(w http.ResponseWriter, r *http.Request) {
	h.ownership(w, r, h.products.DetachFromUser)
}

// ListOwnedProducts returns the products owned by the caller.
func (h *Handler) ListOwnedProducts(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	products, err := h.products.ListOwnedByUser(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeProducts(w, products)
}

func (h *Handler) ownership(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID, id int64) error,
) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	userID, err := currentUser(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := op(r.Context(), userID, id); err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w)
}

// productID parses the {id} path parameter. Anything that is not a positive
// integer cannot name a product and gets 404.
func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "product not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeProduct(w http.ResponseWriter, status int, p *product.Product) {
	var e jx.Encoder
	h.encodeProduct(&e, *p)
	writeJSON(w, status, &e)
}

func (h *Handler) writeProducts(w http.ResponseWriter, ps []product.Product) {
	var e jx.Encoder
	h.encodeProducts(&e, ps)
	writeJSON(w, http.StatusOK, &e)
}
