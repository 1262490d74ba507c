package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)
	return v
}

func TestParseTags(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"csv", "sunset, beach ,,sunset", []string{"sunset", "beach"}},
		{"json", `["cats","dogs"]`, []string{"cats", "dogs"}},
		{"json empty", `[]`, []string{}},
		{"single", "solo", []string{"solo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ParseTags(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTags_Rejects(t *testing.T) {
	v := newValidator(t)

	tooMany := make([]string, MaxTags+1)
	for i := range tooMany {
		tooMany[i] = "t"
	}

	for name, raw := range map[string]string{
		"object item":   `[{"a":1}]`,
		"number item":   `[1, 2]`,
		"malformed":     `["unterminated`,
		"comma in json": `["a,b"]`,
		"long tag":      strings.Repeat("x", MaxTagLength+1),
		"too many":      strings.Join(tooMany, ","),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ParseTags(raw)
			require.Error(t, err)
			var ve *Error
			assert.True(t, errors.As(err, &ve), "got %T: %v", err, err)
		})
	}
}

func TestValidate_CachesCompiledSchema(t *testing.T) {
	v := newValidator(t)
	schema := `{"type":"string"}`

	require.NoError(t, v.Validate(schema, "ok"))
	assert.Equal(t, 1, v.schemaCache.Len())

	err := v.Validate(schema, []any{})
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "$", ve.Path)
	assert.Equal(t, 1, v.schemaCache.Len())

	err = v.Validate(`{"type":`, "x")
	assert.Error(t, err)
	assert.False(t, errors.As(err, &ve))
}
