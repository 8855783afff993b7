package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****5678", MaskSecret("+2012345678"))
}

func TestMaskSensitive(t *testing.T) {
	got := MaskSensitive(map[string]any{
		"phone":      "+2012345678",
		"package_id": "42",
		"nested":     map[string]any{"token": "tok_abcdefgh"},
		"":           "dropped",
	})
	assert.Equal(t, map[string]any{
		"phone":      "****5678",
		"package_id": "42",
		"nested":     map[string]any{"token": "****efgh"},
	}, got)
}
