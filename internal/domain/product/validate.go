package product

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/shopspring/decimal"
)

// Request attribute names.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldImage       = "product_image"
)

// ValidationError lists the failed rules per request attribute.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, " ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Attr is a single raw request attribute as decoded from the wire.
type Attr struct {
	Value   string
	Present bool
	// Text reports whether the attribute was supplied as a string, as opposed
	// to a JSON number, boolean, array or object.
	Text bool
}

// StringAttr returns a present, textual attribute.
func StringAttr(v string) Attr { return Attr{Value: v, Present: true, Text: true} }

// NumberAttr returns a present attribute decoded from a JSON number.
func NumberAttr(v string) Attr { return Attr{Value: v, Present: true} }

func (a Attr) blank() bool {
	return !a.Present || strings.TrimSpace(a.Value) == ""
}

// Input carries the untrusted attributes of a create or update request.
type Input struct {
	Name        Attr
	Description Attr
	Price       Attr
}

// Validate applies the required|string rules to name and description and the
// required|numeric rule to price, returning the accepted Fields.
func (in Input) Validate() (Fields, error) {
	var (
		verr ValidationError
		f    Fields
	)

	f.Name = requiredString(&verr, FieldName, in.Name)
	f.Description = requiredString(&verr, FieldDescription, in.Description)

	switch {
	case in.Price.blank():
		verr.add(FieldPrice, requiredMsg(FieldPrice))
	default:
		price, err := decimal.NewFromString(strings.TrimSpace(in.Price.Value))
		if err != nil || !storableNumeric(price) {
			verr.add(FieldPrice, fmt.Sprintf("The %s must be a number.", FieldPrice))
		}
		f.Price = price
	}

	if err := verr.orNil(); err != nil {
		return Fields{}, err
	}
	return f, nil
}

// PostgreSQL NUMERIC limits on digits before and after the decimal point.
const (
	maxIntegerDigits  = 131072
	maxFractionDigits = 16383
)

// storableNumeric reports whether d fits an unconstrained NUMERIC column.
func storableNumeric(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -maxFractionDigits {
		return false
	}
	digits := int64(len(new(big.Int).Abs(d.Coefficient()).String()))
	return digits+exp <= maxIntegerDigits
}

func requiredString(verr *ValidationError, field string, a Attr) string {
	if a.blank() {
		verr.add(field, requiredMsg(field))
		return ""
	}
	if !a.Text {
		verr.add(field, fmt.Sprintf("The %s must be a string.", field))
		return ""
	}
	return strings.TrimSpace(a.Value)
}

func requiredMsg(field string) string {
	return fmt.Sprintf("The %s field is required.", field)
}

// imageTypes maps accepted image MIME types to the extension blobs are stored
// with.
var imageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/webp": "webp",
}

// Upload is an uploaded image file.
type Upload struct {
	// Filename is the client-supplied name, recorded for tracing only.
	Filename string
	Data     []byte
	// TooLarge is set by the transport when the file exceeded the size limit
	// and Data was discarded.
	TooLarge bool
}

// Image is a validated upload with its sniffed type.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Validate checks that the upload is present, within maxBytes, and that its
// content is a recognized image type. The client-supplied filename is never
// trusted for type detection.
func (u Upload) Validate(maxBytes int64) (Image, error) {
	var verr ValidationError

	if u.TooLarge || (maxBytes > 0 && int64(len(u.Data)) > maxBytes) {
		verr.add(FieldImage, fmt.Sprintf("The %s may not be greater than %d kilobytes.", FieldImage, maxBytes/1024))
		return Image{}, &verr
	}
	if len(u.Data) == 0 {
		verr.add(FieldImage, requiredMsg(FieldImage))
		return Image{}, &verr
	}

	kind, err := filetype.Match(u.Data)
	if err != nil || kind == filetype.Unknown {
		verr.add(FieldImage, fmt.Sprintf("The %s must be an image.", FieldImage))
		return Image{}, &verr
	}
	ext, ok := imageTypes[kind.MIME.Value]
	if !ok {
		verr.add(FieldImage, fmt.Sprintf("The %s must be an image.", FieldImage))
		return Image{}, &verr
	}

	return Image{
		Data:        u.Data,
		ContentType: kind.MIME.Value,
		Extension:   ext,
	}, nil
}
