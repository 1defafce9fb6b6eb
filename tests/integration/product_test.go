//go:build integration

package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestProducts_RequireToken(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)

	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "unauthenticated" {
		t.Errorf("message: got %q, want %q", body.Message, "unauthenticated")
	}
}

func TestProducts_WrongToken(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products", nil, "", "not-a-token")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestProducts_CRUD(t *testing.T) {
	created := createProduct(t, "Integration Lamp")
	if created.ID <= 0 {
		t.Fatalf("expected positive id, got %d", created.ID)
	}
	if created.Image != nil || created.ImageURL != nil {
		t.Errorf("new product should have no image, got %v / %v", created.Image, created.ImageURL)
	}
	if created.CreatedAt == "" || created.UpdatedAt == "" {
		t.Error("timestamps missing")
	}

	resp := doAuth(t, http.MethodGet, productPath(created.ID, ""), nil)
	got := decodeJSON[productResponse](t, resp)
	resp.Body.Close()
	if got.Name != "Integration Lamp" || got.Price != 19.99 {
		t.Errorf("unexpected product: %+v", got)
	}

	resp = doAuth(t, http.MethodPut, productPath(created.ID, ""), map[string]any{
		"name":        "Renamed Lamp",
		"description": "Brighter",
		"price":       "25",
	})
	expectStatus(t, resp, http.StatusOK)
	updated := decodeJSON[productResponse](t, resp)
	resp.Body.Close()
	if updated.Name != "Renamed Lamp" || updated.Price != 25 {
		t.Errorf("unexpected update: %+v", updated)
	}

	resp = doAuth(t, http.MethodGet, "/api/products", nil)
	list := decodeJSON[[]productResponse](t, resp)
	resp.Body.Close()
	found := false
	for _, p := range list {
		found = found || p.ID == created.ID
	}
	if !found {
		t.Errorf("product %d missing from list", created.ID)
	}

	resp = doAuth(t, http.MethodDelete, productPath(created.ID, ""), nil)
	expectStatus(t, resp, http.StatusOK)
	if !decodeJSON[successResponse](t, resp).Success {
		t.Error("expected success: true")
	}
	resp.Body.Close()

	resp = doAuth(t, http.MethodGet, productPath(created.ID, ""), nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestCreateProduct_Validation(t *testing.T) {
	resp := doAuth(t, http.MethodPost, "/api/products", map[string]any{
		"name":  "",
		"price": "cheap",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	body := decodeJSON[validationResponse](t, resp)
	for _, field := range []string{"name", "description", "price"} {
		if len(body.Errors[field]) == 0 {
			t.Errorf("expected an error for %s, got %v", field, body.Errors)
		}
	}
}

func TestCreateProduct_MalformedJSON(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/products",
		strings.NewReader(`{"name":`), "application/json", testToken)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGetProduct_NotFound(t *testing.T) {
	for _, id := range []string{"999999999", "abc", "0"} {
		resp := doAuth(t, http.MethodGet, "/api/products/"+id, nil)
		expectStatus(t, resp, http.StatusNotFound)
		resp.Body.Close()
	}
}

func TestUploadImage(t *testing.T) {
	p := createProduct(t, "Integration Poster")

	resp := doUpload(t, productPath(p.ID, "/upload-image"), "product_image", "poster.bin", pngHeader)
	expectStatus(t, resp, http.StatusOK)
	first := decodeJSON[productResponse](t, resp)
	resp.Body.Close()
	if first.Image == nil || !strings.HasSuffix(*first.Image, ".png") {
		t.Fatalf("expected a .png image path, got %v", first.Image)
	}
	if first.ImageURL == nil || !strings.HasSuffix(*first.ImageURL, *first.Image) {
		t.Errorf("image_url %v does not end with %s", first.ImageURL, *first.Image)
	}

	resp = doUpload(t, productPath(p.ID, "/upload-image"), "product_image", "poster.png", pngHeader)
	expectStatus(t, resp, http.StatusOK)
	second := decodeJSON[productResponse](t, resp)
	resp.Body.Close()
	if *second.Image == *first.Image {
		t.Error("replacement upload kept the old path")
	}

	resp = doAuth(t, http.MethodPut, productPath(p.ID, ""), map[string]any{
		"name": "Poster", "description": "Updated", "price": 5, "image": "hijack.png",
	})
	expectStatus(t, resp, http.StatusOK)
	updated := decodeJSON[productResponse](t, resp)
	resp.Body.Close()
	if updated.Image == nil || *updated.Image != *second.Image {
		t.Errorf("update changed the image: %v", updated.Image)
	}
}

func TestUploadImage_Rejected(t *testing.T) {
	p := createProduct(t, "Integration Flyer")

	resp := doUpload(t, productPath(p.ID, "/upload-image"), "product_image", "doc.pdf", []byte("%PDF-1.4\n"))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	body := decodeJSON[validationResponse](t, resp)
	if len(body.Errors["product_image"]) == 0 {
		t.Errorf("expected product_image errors, got %v", body.Errors)
	}

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 3<<20)...)
	resp2 := doUpload(t, productPath(p.ID, "/upload-image"), "product_image", "big.png", big)
	defer resp2.Body.Close()
	expectStatus(t, resp2, http.StatusUnprocessableEntity)
}

func TestOwnership(t *testing.T) {
	p := createProduct(t, "Integration Mug")

	for range 2 {
		resp := doAuth(t, http.MethodPatch, productPath(p.ID, "/attach-to-user"), nil)
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp := doAuth(t, http.MethodGet, "/api/products/belongs-to-user", nil)
	owned := decodeJSON[[]productResponse](t, resp)
	resp.Body.Close()
	count := 0
	for _, o := range owned {
		if o.ID == p.ID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected product %d once in owned list, got %d", p.ID, count)
	}

	resp = doAuth(t, http.MethodPatch, productPath(p.ID, "/detach-from-user"), nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doAuth(t, http.MethodGet, "/api/products/belongs-to-user", nil)
	owned = decodeJSON[[]productResponse](t, resp)
	resp.Body.Close()
	for _, o := range owned {
		if o.ID == p.ID {
			t.Errorf("product %d still owned after detach", p.ID)
		}
	}

	resp = doAuth(t, http.MethodPatch, productPath(999999999, "/attach-to-user"), nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}
