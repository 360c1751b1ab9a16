// Package config loads server configuration from CLI flags and environment
// variables, validates required fields, and provides defaults.
//
// CLI flags control which services are mocked (--no-email, --no-s3,
// --no-oidc, --no-stripe, --test). Environment variables, optionally read
// from a .env file, provide secrets and service configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/ratelimit"
)

const (
	defaultTigrisRegion = "auto"
	defaultListenAddr   = ":8080"
	defaultBucket       = "notesaas-exports"

	// MockWebhookSecret signs webhooks when Stripe is mocked and no secret
	// is configured.
	MockWebhookSecret = "whsec_notesaas_mock"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	BaseURL    string
	LogLevel   string

	// Database and encryption
	MasterKey    string // 64 hex characters (32 bytes)
	DatabasePath string

	RateLimitConfig ratelimit.Config

	// Mock service flags (controlled by CLI flags, not env vars)
	NoOIDC   bool
	NoEmail  bool
	NoS3     bool
	NoStripe bool

	// Google OIDC
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Resend Email
	ResendAPIKey    string
	ResendFromEmail string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceMonthly  string
	StripePriceAnnual   string

	// S3/Tigris storage for exports (AWS_ env vars as set by `fly storage create`)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Flags are the server's command-line switches.
type Flags struct {
	NoEmail  bool
	NoS3     bool
	NoOIDC   bool
	NoStripe bool
	Addr     string
	EnvFile  string
}

// ParseFlags parses the server flags from args (without the program name).
// --test is shorthand for every --no-* flag.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	var testMode bool
	set := flag.NewFlagSet("server", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	set.BoolVar(&f.NoEmail, "no-email", false, "Use mock email service (logs emails to console)")
	set.BoolVar(&f.NoS3, "no-s3", false, "Use an in-process fake S3 for exports")
	set.BoolVar(&f.NoOIDC, "no-oidc", false, "Use the local mock OIDC provider")
	set.BoolVar(&f.NoStripe, "no-stripe", false, "Use mock billing (checkout activates immediately)")
	set.BoolVar(&testMode, "test", false, "Shorthand for --no-email --no-s3 --no-oidc --no-stripe")
	set.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	set.StringVar(&f.EnvFile, "env-file", ".env", "Optional env file loaded before reading the environment")
	if err := set.Parse(args); err != nil {
		return Flags{}, err
	}
	if testMode {
		f.NoEmail, f.NoS3, f.NoOIDC, f.NoStripe = true, true, true, true
	}
	return f, nil
}

// LoadEnvFile loads path into the process environment. Variables that are
// already set win, and a missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables and flag values.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{
		NoEmail:  f.NoEmail,
		NoS3:     f.NoS3,
		NoOIDC:   f.NoOIDC,
		NoStripe: f.NoStripe,
	}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", defaultListenAddr)
	if f.Addr != "" {
		cfg.ListenAddr = f.Addr
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_URL")), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database and encryption
	cfg.MasterKey = strings.TrimSpace(os.Getenv("MASTER_KEY"))
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", db.DefaultPath)

	def := ratelimit.DefaultConfig
	cfg.RateLimitConfig = ratelimit.Config{
		FreeRPS:         parseFloat64OrDefault("RATE_LIMIT_FREE_RPS", def.FreeRPS),
		FreeBurst:       parseIntOrDefault("RATE_LIMIT_FREE_BURST", def.FreeBurst),
		PaidRPS:         parseFloat64OrDefault("RATE_LIMIT_PAID_RPS", def.PaidRPS),
		PaidBurst:       parseIntOrDefault("RATE_LIMIT_PAID_BURST", def.PaidBurst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", def.CleanupInterval),
	}

	// Google OIDC
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.BaseURL + "/auth/google/callback"
	}

	// Resend Email
	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.ResendFromEmail = getEnvOrDefault("RESEND_FROM_EMAIL", "notes@notesaas.app")

	// Stripe
	cfg.StripeSecretKey = strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY"))
	cfg.StripeWebhookSecret = strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET"))
	cfg.StripePriceMonthly = strings.TrimSpace(os.Getenv("STRIPE_PRICE_MONTHLY"))
	cfg.StripePriceAnnual = strings.TrimSpace(os.Getenv("STRIPE_PRICE_ANNUAL"))
	if cfg.NoStripe && cfg.StripeWebhookSecret == "" {
		cfg.StripeWebhookSecret = MockWebhookSecret
	}

	// S3/Tigris
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultTigrisRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = getEnvOrDefault("BUCKET_NAME", defaultBucket)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
// Secrets for a service are required only when that service is not mocked.
func (c *Config) Validate() error {
	var errs []string

	if !c.NoOIDC {
		if c.GoogleClientID == "" {
			errs = append(errs, "GOOGLE_CLIENT_ID is required (set env var or use --no-oidc)")
		}
		if c.GoogleClientSecret == "" {
			errs = append(errs, "GOOGLE_CLIENT_SECRET is required (set env var or use --no-oidc)")
		}
	}

	if !c.NoEmail && c.ResendAPIKey == "" {
		errs = append(errs, "RESEND_API_KEY is required (set env var or use --no-email)")
	}

	if !c.NoStripe {
		if c.StripeSecretKey == "" {
			errs = append(errs, "STRIPE_SECRET_KEY is required (set env var or use --no-stripe)")
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, "STRIPE_WEBHOOK_SECRET is required (set env var or use --no-stripe)")
		}
		if c.StripePriceMonthly == "" || c.StripePriceAnnual == "" {
			errs = append(errs, "STRIPE_PRICE_MONTHLY and STRIPE_PRICE_ANNUAL are required (set env vars or use --no-stripe)")
		}
	}

	if !c.NoS3 {
		if c.AWSEndpointS3 == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 is required (set env var or use --no-s3)")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required (set env var or use --no-s3)")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required (set env var or use --no-s3)")
		}
	}

	// Losing MASTER_KEY makes the database unreadable, so there is no mock.
	if c.MasterKey == "" {
		errs = append(errs, "MASTER_KEY is required (generate with: openssl rand -hex 32)")
	} else if len(c.MasterKey) != 64 {
		errs = append(errs, "MASTER_KEY must be 64 hex characters (32 bytes)")
	}

	if c.RateLimitConfig.FreeRPS <= 0 {
		errs = append(errs, "RATE_LIMIT_FREE_RPS must be positive")
	}
	if c.RateLimitConfig.FreeBurst <= 0 {
		errs = append(errs, "RATE_LIMIT_FREE_BURST must be positive")
	}
	if c.RateLimitConfig.CleanupInterval <= 0 {
		errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// IsProduction returns true if all mock services are disabled.
func (c *Config) IsProduction() bool {
	return !c.NoOIDC && !c.NoEmail && !c.NoS3 && !c.NoStripe
}

// RequireSecureCookies returns false for localhost development URLs.
func (c *Config) RequireSecureCookies() bool {
	return !strings.HasPrefix(c.BaseURL, "http://localhost") &&
		!strings.HasPrefix(c.BaseURL, "http://127.0.0.1")
}

// PrintStartupSummary writes a human-readable summary of the configuration.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "notesaas server starting...")

	if c.NoOIDC {
		fmt.Fprintln(w, "  Auth:    Mock OIDC (--no-oidc)")
	} else {
		fmt.Fprintln(w, "  Auth:    Google OIDC (real)")
	}

	if c.NoEmail {
		fmt.Fprintln(w, "  Email:   Mock (--no-email)")
	} else {
		fmt.Fprintf(w, "  Email:   Resend (real, from: %s)\n", c.ResendFromEmail)
	}

	if c.NoStripe {
		fmt.Fprintln(w, "  Billing: Mock (--no-stripe)")
	} else {
		fmt.Fprintln(w, "  Billing: Stripe (real)")
	}

	if c.NoS3 {
		fmt.Fprintf(w, "  Exports: Fake S3 (--no-s3, bucket: %s)\n", c.AWSBucketName)
	} else {
		fmt.Fprintf(w, "  Exports: S3 (real, endpoint: %s, bucket: %s)\n", c.AWSEndpointS3, c.AWSBucketName)
	}

	fmt.Fprintf(w, "  DB:      %s\n", c.DatabasePath)
	fmt.Fprintf(w, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintf(w, "  Base:    %s\n", c.BaseURL)
	fmt.Fprintln(w, "")
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
