package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@x.com", maskEmail("jo@x.com"))
	assert.Equal(t, "a***@example.com", maskEmail("alice@example.com"))

	// The whole first rune is kept, not its first byte.
	assert.Equal(t, "é***@x.com", maskEmail("émile@x.com"))

	// Degenerate inputs pass through unmasked.
	assert.Equal(t, "", maskEmail(""))
	assert.Equal(t, "no-at-sign", maskEmail("no-at-sign"))
	assert.Equal(t, "@x.com", maskEmail("@x.com"))
}
