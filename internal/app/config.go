package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	RemoteTimeout time.Duration `default:"10s" usage:"Bound on every Shopify and Razorpay call" flag:"remote-timeout"`
	Shopify       ShopifyConfig
	Razorpay      RazorpayConfig
	Booking       BookingConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// ShopifyConfig locates the store Admin GraphQL API.
type ShopifyConfig struct {
	StoreURL   string `usage:"Store domain, e.g. my-temple.myshopify.com (SHOPIFY_STORE_URL)"`
	AdminToken string `usage:"Admin API access token (SHOPIFY_ADMIN_API_TOKEN)"`
	APIVersion string `default:"2024-01" usage:"Admin API version"`
}

// RazorpayConfig holds the payment gateway credentials.
type RazorpayConfig struct {
	KeyID         string `usage:"API key id (RAZORPAY_KEY_ID)"`
	KeySecret     string `usage:"API key secret, also the payment signature key (RAZORPAY_KEY_SECRET)"`
	BaseURL       string `default:"https://api.razorpay.com" usage:"API base URL"`
	Currency      string `default:"INR" usage:"Payment currency"`
	ReceiptPrefix string `default:"puja_" usage:"Prefix of gateway order receipts"`
}

// BookingConfig holds the booking pricing policy.
type BookingConfig struct {
	PrasadPrice string   `default:"101.00" usage:"Price of the prasad add-on"`
	Tags        []string `default:"puja-booking,razorpay" usage:"Tags attached to every order"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	Rate  float64 `default:"2" usage:"Sustained requests per second per client"`
	Burst int     `default:"20" usage:"Requests a client may burst"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "CHECKOUT"
	if !base.SkipFiles {
		base.Files = []string{"config.yaml", "/etc/checkout/config.yaml"}
		base.FileDecoders = map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		}
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variable names used by hosting
// platforms and the storefront deployment onto the CHECKOUT_ configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst != "" {
			return
		}
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	fallback(&c.Shopify.StoreURL, "SHOPIFY_STORE_URL")
	fallback(&c.Shopify.AdminToken, "SHOPIFY_ADMIN_API_TOKEN")
	fallback(&c.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	fallback(&c.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")

	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports missing credentials and malformed policy values. Secret
// values never appear in the returned errors.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"shopify store URL (CHECKOUT_SHOPIFY_STORE_URL or SHOPIFY_STORE_URL)", c.Shopify.StoreURL},
		{"shopify admin token (CHECKOUT_SHOPIFY_ADMIN_TOKEN or SHOPIFY_ADMIN_API_TOKEN)", c.Shopify.AdminToken},
		{"razorpay key id (CHECKOUT_RAZORPAY_KEY_ID or RAZORPAY_KEY_ID)", c.Razorpay.KeyID},
		{"razorpay key secret (CHECKOUT_RAZORPAY_KEY_SECRET or RAZORPAY_KEY_SECRET)", c.Razorpay.KeySecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.Errorf("%s is required", r.name)
		}
	}

	price, err := c.PrasadPrice()
	if err != nil {
		return err
	}
	if price.IsNegative() {
		return errors.Errorf("prasad price %s is negative", price)
	}
	if c.RemoteTimeout <= 0 {
		return errors.New("remote timeout must be positive")
	}
	return nil
}

// PrasadPrice parses Booking.PrasadPrice.
func (c *Config) PrasadPrice() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Booking.PrasadPrice))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse prasad price %q", c.Booking.PrasadPrice)
	}
	return d, nil
}

// Tags returns the configured order tags without blanks.
func (c *Config) Tags() []string {
	tags := make([]string, 0, len(c.Booking.Tags))
	for _, t := range c.Booking.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
