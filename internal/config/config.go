package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds everything the service reads from the environment. It is
// constructed once in main and passed into the components that need it, so
// nothing reaches for os.Getenv at call time.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	MongoURI      string `env:"MONGOURI,required"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"paystackdb"`

	PaystackBaseURL string `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	TestMode        bool   `env:"PAYSTACK_TEST_MODE" envDefault:"true"`
	TestSecretKey   string `env:"PAYSTACK_TEST_SECRET_KEY"`
	TestPublicKey   string `env:"PAYSTACK_TEST_PUBLIC_KEY"`
	LiveSecretKey   string `env:"PAYSTACK_LIVE_SECRET_KEY"`
	LivePublicKey   string `env:"PAYSTACK_LIVE_PUBLIC_KEY"`

	// CallbackURL is the public URL of the payment callback endpoint; it is
	// handed to Paystack at initialization so the browser is redirected back
	// to us after the hosted payment page.
	CallbackURL        string `env:"PAYSTACK_CALLBACK_URL"`
	SuccessRedirectURL string `env:"CHECKOUT_SUCCESS_URL" envDefault:"/checkout/success"`
	FailureRedirectURL string `env:"CHECKOUT_FAILURE_URL" envDefault:"/checkout/failure"`

	// Order status names written into history entries.
	CompletedOrderStatus string `env:"ORDER_STATUS_COMPLETED" envDefault:"completed"`
	FailedOrderStatus    string `env:"ORDER_STATUS_FAILED" envDefault:"failed"`
	PendingOrderStatus   string `env:"ORDER_STATUS_PENDING" envDefault:"pending"`
	RefundedOrderStatus  string `env:"ORDER_STATUS_REFUNDED" envDefault:"refunded"`

	PendingCleanupDays     int           `env:"PENDING_CLEANUP_DAYS" envDefault:"7"`
	PendingCleanupInterval time.Duration `env:"PENDING_CLEANUP_INTERVAL" envDefault:"6h"`
}

// Load parses the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the keys for the active mode are present.
func (c *Config) Validate() error {
	if c.SecretKey() == "" {
		if c.TestMode {
			return fmt.Errorf("PAYSTACK_TEST_SECRET_KEY is required in test mode")
		}
		return fmt.Errorf("PAYSTACK_LIVE_SECRET_KEY is required in live mode")
	}
	if c.PendingCleanupDays <= 0 {
		return fmt.Errorf("PENDING_CLEANUP_DAYS must be positive")
	}
	if c.PendingCleanupInterval <= 0 {
		return fmt.Errorf("PENDING_CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// SecretKey returns the Paystack secret key for the active mode.
func (c *Config) SecretKey() string {
	if c.TestMode {
		return c.TestSecretKey
	}
	return c.LiveSecretKey
}

// PublicKey returns the Paystack public key for the active mode.
func (c *Config) PublicKey() string {
	if c.TestMode {
		return c.TestPublicKey
	}
	return c.LivePublicKey
}
