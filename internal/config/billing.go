package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the billing engine knobs that operators tune at runtime.
type BillingConfig struct {
	RunInterval time.Duration `mapstructure:"runInterval"`
	RunJitter   time.Duration `mapstructure:"runJitter"`
	RunTimeout  time.Duration `mapstructure:"runTimeout"`
	Currency    string        `mapstructure:"currency"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		RunInterval: time.Hour,
		RunJitter:   5 * time.Minute,
		RunTimeout:  10 * time.Minute,
		Currency:    "usd",
	}
}

// BillingConfigHolder exposes the latest billing configuration. Reads are
// lock-free so the scheduler can consult it on every tick.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/monetizeit/config") // Volume-mounted config
	v.AddConfigPath("/etc/monetizeit")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("MONETIZEIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.runInterval", defaults.RunInterval)
	v.SetDefault("billing.runJitter", defaults.RunJitter)
	v.SetDefault("billing.runTimeout", defaults.RunTimeout)
	v.SetDefault("billing.currency", defaults.Currency)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed configuration, with no file
// watching behind it.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.RunInterval <= 0 {
		return errors.New("billing.runInterval must be positive")
	}
	if cfg.RunJitter < 0 {
		return errors.New("billing.runJitter cannot be negative")
	}
	if cfg.RunTimeout <= 0 {
		return errors.New("billing.runTimeout must be positive")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	return nil
}
