package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsUnknownLabels(t *testing.T) {
	filtered := FilterAttributes(
		attribute.String("api_id", "api-1"),
		attribute.String("user_email", "leaky@example.com"),
		attribute.String("reason", "quota_exceeded"),
	)

	assert.Len(t, filtered, 2)
	for _, attr := range filtered {
		assert.NotEqual(t, attribute.Key("user_email"), attr.Key)
	}
}
