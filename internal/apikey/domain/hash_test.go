package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAPIKey(t *testing.T) {
	digest := HashAPIKey("sk_test_abc")

	assert.Len(t, digest, 64)
	assert.Equal(t, digest, HashAPIKey("sk_test_abc"))
	assert.NotEqual(t, digest, HashAPIKey("sk_test_abd"))
	assert.NotContains(t, digest, "sk_test")
}
