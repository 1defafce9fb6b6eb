package product

import (
	"strconv"

	"github.com/go-faster/jx"
)

// DecodeInput reads name, description and price from a JSON object. Other
// keys are skipped.
func DecodeInput(data []byte) (Input, error) {
	var in Input
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var (
			attr *Attr
			err  error
		)
		switch string(key) {
		case FieldName:
			attr = &in.Name
		case FieldDescription:
			attr = &in.Description
		case FieldPrice:
			attr = &in.Price
		default:
			return d.Skip()
		}
		*attr, err = decodeAttr(d)
		return err
	})
	if err != nil {
		return Input{}, err
	}
	return in, nil
}

// decodeAttr records the JSON type of a value along with its text, so that
// validation can tell "42" from 42.
func decodeAttr(d *jx.Decoder) (Attr, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		return StringAttr(s), err
	case jx.Number:
		n, err := d.Num()
		return NumberAttr(n.String()), err
	case jx.Null:
		return Attr{}, d.Null()
	case jx.Bool:
		b, err := d.Bool()
		return Attr{Value: strconv.FormatBool(b), Present: true}, err
	default:
		raw, err := d.Raw()
		if err != nil {
			return Attr{}, err
		}
		v := raw.String()
		if v == "[]" || v == "{}" {
			v = ""
		}
		return Attr{Value: v, Present: true}, nil
	}
}
