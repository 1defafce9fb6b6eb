package product_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/product-catalog/internal/domain/product"
)

func TestDecodeInput(t *testing.T) {
	in, err := product.DecodeInput([]byte(`{"id":7,"name":"Lamp","description":null,"price":12.50,"image":"x.png","tags":["a"]}`))
	require.NoError(t, err)

	assert.Equal(t, product.StringAttr("Lamp"), in.Name)
	assert.False(t, in.Description.Present)
	assert.Equal(t, product.NumberAttr("12.50"), in.Price)
}

func TestDecodeInput_NonTextValues(t *testing.T) {
	in, err := product.DecodeInput([]byte(`{"name":true,"description":[],"price":"9"}`))
	require.NoError(t, err)

	assert.Equal(t, product.Attr{Value: "true", Present: true}, in.Name)
	assert.Equal(t, product.Attr{Value: "", Present: true}, in.Description)
	assert.Equal(t, product.StringAttr("9"), in.Price)

	_, err = in.Validate()
	var verr *product.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, product.FieldName)
	assert.Contains(t, verr.Fields, product.FieldDescription)
}

func TestDecodeInput_Malformed(t *testing.T) {
	for _, data := range []string{`{"name":`, `[1,2]`, `"text"`} {
		_, err := product.DecodeInput([]byte(data))
		assert.Error(t, err, data)
	}
}
