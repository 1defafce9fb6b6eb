package handler

import (
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/product-catalog/internal/domain/product"
)

// errMalformedBody marks request bodies that could not be parsed.
var errMalformedBody = errors.New("malformed request body")

// maxBodyBytes caps JSON and form bodies of create and update requests.
const maxBodyBytes = 1 << 20

// decodeInput reads the product attributes from a JSON or form body. Only
// name, description and price are read; every other key is ignored.
func decodeInput(w http.ResponseWriter, r *http.Request) (product.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return decodeForm(r)
	default:
		// JSON, including requests that omit the content type.
		return decodeJSON(r.Body)
	}
}

func decodeJSON(body io.Reader) (product.Input, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return product.Input{}, errors.Wrap(errMalformedBody, err.Error())
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return product.Input{}, nil
	}
	return decodeJSONBytes(data)
}

func decodeJSONBytes(data []byte) (product.Input, error) {
	in, err := product.DecodeInput(data)
	if err != nil {
		return product.Input{}, errors.Wrap(errMalformedBody, err.Error())
	}
	return in, nil
}

func decodeForm(r *http.Request) (product.Input, error) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return product.Input{}, errors.Wrap(errMalformedBody, err.Error())
	}
	attr := func(key string) product.Attr {
		if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
			return product.StringAttr(vs[0])
		}
		return product.Attr{}
	}
	return product.Input{
		Name:        attr(product.FieldName),
		Description: attr(product.FieldDescription),
		Price:       attr(product.FieldPrice),
	}, nil
}

// encodeProduct writes p as a JSON object.
func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart("image")
	if p.Image != nil {
		e.Str(*p.Image)
	} else {
		e.Null()
	}
	if h.imageBaseURL != "" && p.Image != nil {
		e.FieldStart("image_url")
		e.Str(strings.TrimRight(h.imageBaseURL, "/") + "/" + *p.Image)
	}
	e.FieldStart("created_at")
	e.Str(formatTime(p.CreatedAt))
	e.FieldStart("updated_at")
	e.Str(formatTime(p.UpdatedAt))
	e.ObjEnd()
}

func (h *Handler) encodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for _, p := range ps {
		h.encodeProduct(e, p)
	}
	e.ArrEnd()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeSuccess(w http.ResponseWriter) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
