package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {"type": "array", "items": {"type": "object", "required": ["id"]}},
		"name": {"type": "string"}
	}
}`

func TestSchema_Validate(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		field     string
		errorCode string
	}{
		{name: "valid", doc: `{"items": [{"id": 1}]}`, valid: true},
		{name: "missing required", doc: `{"name": "x"}`, field: "(root)", errorCode: "REQUIRED"},
		{name: "wrong type", doc: `{"items": {}}`, field: "items", errorCode: "INVALID_TYPE"},
		{name: "nested required", doc: `{"items": [{}]}`, field: "items.0", errorCode: "REQUIRED"},
		{name: "not json", doc: `{"items": [`, field: "(root)", errorCode: "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Validate([]byte(tt.doc))
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.Errors)
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.True(t, res.HasErrors(tt.field), "errors: %v", res.GetErrorMessages())
			assert.Equal(t, tt.errorCode, res.Errors[0].Code)
			assert.NotEmpty(t, res.Summary())
		})
	}
}

func TestSchema_ValidateInput(t *testing.T) {
	s := MustCompile(testSchema)

	res := s.ValidateInput(map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a"}}})
	assert.True(t, res.Valid)

	res = s.ValidateInput(map[string]interface{}{"name": 3})
	assert.False(t, res.Valid)
	assert.Len(t, res.GetErrorsForField("name"), 1)
}

func TestCompile_RejectsBadSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not json`) })
}
