package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/product-catalog/internal/domain/product"
)

// multipartOverhead is the allowance for boundaries, part headers and other
// form fields on top of the image itself.
const multipartOverhead = 64 << 10

// readUpload extracts the product_image part of a multipart request.
//
// A missing part, or a request that is not multipart at all, yields an empty
// Upload so that validation reports the field as required. Oversized files
// are flagged instead of failing the request.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (product.Upload, error) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return product.Upload{}, nil
	}

	var upload product.Upload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return upload, nil
		}
		if err != nil {
			if tooLarge(err) {
				return product.Upload{TooLarge: true}, nil
			}
			return product.Upload{}, errors.Wrap(errMalformedBody, err.Error())
		}

		if part.FormName() != product.FieldImage || part.FileName() == "" {
			_, err = io.Copy(io.Discard, part)
		} else {
			upload, err = h.readFile(part)
		}
		_ = part.Close()
		if err != nil {
			if tooLarge(err) {
				return product.Upload{TooLarge: true}, nil
			}
			return product.Upload{}, errors.Wrap(errMalformedBody, err.Error())
		}
		if upload.TooLarge {
			return upload, nil
		}
	}
}

func (h *Handler) readFile(part *multipart.Part) (product.Upload, error) {
	filename := part.FileName()

	var src io.Reader = part
	if h.maxUpload > 0 {
		src = io.LimitReader(part, h.maxUpload+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return product.Upload{}, err
	}
	if h.maxUpload > 0 && int64(len(data)) > h.maxUpload {
		return product.Upload{Filename: filename, TooLarge: true}, nil
	}
	return product.Upload{Filename: filename, Data: data}, nil
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
