package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownSafe(t *testing.T) {
	assert.True(t, IsKnownSafe([]string{"ls"}))
	assert.False(t, IsKnownSafe([]string{"rm", "-rf", "/"}))
	assert.False(t, IsKnownSafe([]string{"curl", "https://example.com"}))
	assert.False(t, IsKnownSafe(nil))
}
