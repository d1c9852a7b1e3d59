package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cartSchema = `{
  "type": "object",
  "required": ["items", "shipping_address"],
  "properties": {
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["product_id", "quantity"],
        "properties": {
          "product_id": {"type": "integer", "minimum": 1},
          "quantity": {"type": "integer", "minimum": 1, "maximum": 10}
        }
      }
    },
    "shipping_address": {"type": "string", "minLength": 10},
    "paid_at": {"type": "string", "format": "date-time"}
  }
}`

func TestValidateBytes(t *testing.T) {
	s := MustCompile("cart", cartSchema)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{name: "valid", body: `{"items":[{"product_id":1,"quantity":2}],"shipping_address":"Jl. Sudirman No. 1"}`},
		{name: "not json", body: `{"items":`, fields: []string{"body"}},
		{name: "trailing data", body: `{} {}`, fields: []string{"body"}},
		{name: "missing fields", body: `{}`, fields: []string{"items", "shipping_address"}},
		{name: "oversized quantity", body: `{"items":[{"product_id":1,"quantity":11}],"shipping_address":"Jl. Sudirman No. 1"}`, fields: []string{"items.0.quantity"}},
		{name: "nested required", body: `{"items":[{"quantity":1}],"shipping_address":"Jl. Sudirman No. 1"}`, fields: []string{"items.0.product_id"}},
		{name: "bad date", body: `{"items":[{"product_id":1,"quantity":1}],"shipping_address":"Jl. Sudirman No. 1","paid_at":"yesterday"}`, fields: []string{"paid_at"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateBytes([]byte(tt.body))
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			var se *Error
			require.ErrorAs(t, err, &se)
			for _, f := range tt.fields {
				assert.Contains(t, se.Fields, f)
			}
		})
	}
}

func TestCompileRejectsBrokenSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
}

func TestQuoted(t *testing.T) {
	assert.Equal(t, []string{"id", "status"}, quoted("missing properties: 'id', 'status'"))
	assert.Nil(t, quoted("no names here"))
}
