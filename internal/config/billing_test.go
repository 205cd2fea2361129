package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateBillingConfig(t *testing.T) {
	valid := DefaultBillingConfig()
	assert.NoError(t, validateBillingConfig(valid))

	tests := []struct {
		name   string
		mutate func(*BillingConfig)
	}{
		{"zero interval", func(c *BillingConfig) { c.RunInterval = 0 }},
		{"negative jitter", func(c *BillingConfig) { c.RunJitter = -time.Second }},
		{"zero timeout", func(c *BillingConfig) { c.RunTimeout = 0 }},
		{"blank currency", func(c *BillingConfig) { c.Currency = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			tt.mutate(&cfg)
			assert.Error(t, validateBillingConfig(cfg))
		})
	}
}

func TestStaticHolder(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.RunInterval = 30 * time.Minute

	holder := NewStaticBillingConfigHolder(cfg)
	assert.Equal(t, 30*time.Minute, holder.Get().RunInterval)
}
