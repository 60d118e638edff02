package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SPAY_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SPAY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing" flag:"api-key-pepper"`
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// GatewayConfig holds the SecurionPay connection settings. An empty secret
// key is valid: both payment flows short-circuit without charging.
type GatewayConfig struct {
	SecretKey string        `usage:"SecurionPay API secret key" flag:"gateway-secret-key"`
	BaseURL   string        `default:"https://api.securionpay.com" usage:"SecurionPay API base URL" flag:"gateway-base-url"`
	Timeout   time.Duration `default:"30s" usage:"Gateway request timeout" flag:"gateway-timeout"`
}

// CheckoutConfig controls the buyer-facing redirect destinations and the
// one-time token scheme.
type CheckoutConfig struct {
	SuccessURL  string        `default:"/checkout/success" usage:"Redirect destination after a successful purchase" flag:"success-url"`
	FailureURL  string        `default:"/checkout/failed" usage:"Redirect destination after a failed purchase" flag:"failure-url"`
	CheckoutURL string        `default:"/checkout" usage:"Redirect destination for checkout retries" flag:"checkout-url"`
	TokenSecret string        `usage:"HMAC secret for one-time checkout tokens" flag:"token-secret"`
	TokenTTL    time.Duration `default:"15m" usage:"Checkout token lifetime" flag:"token-ttl"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SPAY",
		Files:     []string{"config.yaml", "/etc/securionpay-checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SPAY_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Checkout.TokenSecret == "" {
		return nil, errors.New("checkout token secret is required: set SPAY_CHECKOUT_TOKEN_SECRET")
	}
	if cfg.APIKeyPepper == "" {
		return nil, errors.New("api key pepper is required: set SPAY_API_KEY_PEPPER")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SPAY_-prefixed configuration.
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
