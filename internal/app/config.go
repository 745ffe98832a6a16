package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (CARTEL_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string   `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string   `usage:"PostgreSQL connection URL (CARTEL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TokenPepper string   `usage:"HMAC pepper for session token hashing" flag:"token-pepper"`
	AdminEmails []string `usage:"Emails granted admin access in addition to the user flag" flag:"admin-emails"`

	Checkout  CheckoutConfig
	Paystack  PaystackConfig
	Resend    ResendConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CheckoutConfig controls order pricing.
type CheckoutConfig struct {
	TaxRate  string `default:"0.075" usage:"Tax rate applied to the discounted subtotal" flag:"tax-rate"`
	Currency string `default:"NGN" usage:"Currency code for payments"`
}

// TaxRateDecimal parses the configured tax rate.
func (c CheckoutConfig) TaxRateDecimal() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("tax rate %q is negative", c.TaxRate)
	}
	return rate, nil
}

// PaystackConfig configures the payment gateway client.
type PaystackConfig struct {
	SecretKey string `usage:"Paystack secret key; payments are disabled when empty" flag:"paystack-secret"`
	BaseURL   string `default:"" usage:"Paystack API base URL override" flag:"paystack-url"`
}

// ResendConfig configures the transactional mailer. Without an API key
// receipts degrade to log lines.
type ResendConfig struct {
	APIKey string `usage:"Resend API key" flag:"resend-key"`
	From   string `default:"Gadget Cartel <orders@gadgetcartel.example>" usage:"Receipt sender address" flag:"resend-from"`
}

// RedisConfig configures the coupon read cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `default:"" usage:"Redis address for the coupon cache" flag:"redis-addr"`
	CouponTTL time.Duration `default:"5m" usage:"Coupon cache entry TTL" flag:"coupon-ttl"`
}

// KafkaConfig configures the order event stream. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses for order events" flag:"kafka-brokers"`
	Topic   string   `default:"order-events" usage:"Kafka topic for order events" flag:"kafka-topic"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CARTEL",
		Files:     []string{"config.yaml", "/etc/cartel/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CARTEL_DATABASE_URL or DATABASE_URL")
	}
	if cfg.TokenPepper == "" {
		return nil, errors.New("token pepper is required: set CARTEL_TOKEN_PEPPER")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CARTEL_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
