package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/notesaas/internal/ratelimit"
)

func validTestConfig() Config {
	return Config{
		NoOIDC:          true,
		NoEmail:         true,
		NoS3:            true,
		NoStripe:        true,
		MasterKey:       strings.Repeat("a", 64),
		RateLimitConfig: ratelimit.DefaultConfig,
	}
}

func TestValidate_TestModeMinimalConfigPasses(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid test-mode config, got error: %v", err)
	}
}

func TestValidate_RequiresServiceSecretsWhenNotMocked(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.NoOIDC = false
	cfg.NoEmail = false
	cfg.NoS3 = false
	cfg.NoStripe = false

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when real services are enabled without secrets")
	}
	msg := err.Error()
	for _, expected := range []string{
		"GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET",
		"RESEND_API_KEY",
		"STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET",
		"STRIPE_PRICE_MONTHLY",
		"AWS_ENDPOINT_URL_S3",
		"AWS_ACCESS_KEY_ID",
	} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func testValidate_RejectsInvalidMasterKeyLength(t *rapid.T) {
	cfg := validTestConfig()
	n := rapid.IntRange(0, 200).Filter(func(n int) bool { return n != 64 }).Draw(t, "master_key_len")
	cfg.MasterKey = strings.Repeat("a", n)

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error for %d-char master key", n)
	}
	if !strings.Contains(err.Error(), "MASTER_KEY") {
		t.Fatalf("expected key-length error mentioning MASTER_KEY, got: %v", err)
	}
}

func TestValidate_RejectsInvalidMasterKeyLength(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsInvalidMasterKeyLength)
}

func FuzzValidate_RejectsInvalidMasterKeyLength(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testValidate_RejectsInvalidMasterKeyLength))
}

func TestParseFlags_TestModeMocksEverything(t *testing.T) {
	t.Parallel()
	f, err := ParseFlags([]string{"--test", "--addr", ":9999"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !f.NoEmail || !f.NoS3 || !f.NoOIDC || !f.NoStripe {
		t.Fatalf("expected --test to enable every mock, got %+v", f)
	}
	if f.Addr != ":9999" {
		t.Fatalf("addr mismatch: got=%q", f.Addr)
	}

	f, err = ParseFlags([]string{"--no-stripe"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !f.NoStripe || f.NoEmail || f.NoS3 || f.NoOIDC {
		t.Fatalf("expected only --no-stripe, got %+v", f)
	}
	if f.EnvFile != ".env" {
		t.Fatalf("env file default mismatch: got=%q", f.EnvFile)
	}

	if _, err := ParseFlags([]string{"--bogus"}); err == nil {
		t.Fatal("expected unknown flag to fail")
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("MASTER_KEY", strings.Repeat("f", 64))
	t.Setenv("BASE_URL", "https://notes.example.com/")
	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("RATE_LIMIT_FREE_BURST", "5")

	cfg, err := LoadConfig(Flags{NoEmail: true, NoS3: true, NoOIDC: true, NoStripe: true, Addr: ":7100"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":7100" {
		t.Fatalf("--addr should override LISTEN_ADDR: got=%q", cfg.ListenAddr)
	}
	if cfg.BaseURL != "https://notes.example.com" {
		t.Fatalf("base url mismatch: got=%q", cfg.BaseURL)
	}
	if cfg.GoogleRedirectURL != "https://notes.example.com/auth/google/callback" {
		t.Fatalf("redirect url mismatch: got=%q", cfg.GoogleRedirectURL)
	}
	if cfg.StripeWebhookSecret != MockWebhookSecret {
		t.Fatalf("mock billing should default the webhook secret, got=%q", cfg.StripeWebhookSecret)
	}
	if cfg.RateLimitConfig.FreeBurst != 5 {
		t.Fatalf("free burst mismatch: got=%d", cfg.RateLimitConfig.FreeBurst)
	}
	if !cfg.RequireSecureCookies() {
		t.Fatal("https base url should require secure cookies")
	}
	if cfg.IsProduction() {
		t.Fatal("mocked config is not production")
	}
}

func TestLoadConfig_MissingMasterKey(t *testing.T) {
	t.Setenv("MASTER_KEY", "")
	_, err := LoadConfig(Flags{NoEmail: true, NoS3: true, NoOIDC: true, NoStripe: true})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 1 || !strings.Contains(verr.Errors[0], "MASTER_KEY") {
		t.Fatalf("unexpected errors: %v", verr.Errors)
	}
}

func TestLoadEnvFile_ExistingVarsWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "CFG_DOTENV_NEW=from-file\nCFG_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("CFG_DOTENV_SET", "from-env")
	t.Setenv("CFG_DOTENV_NEW", "")
	os.Unsetenv("CFG_DOTENV_NEW")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("CFG_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got := os.Getenv("CFG_DOTENV_SET"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}
}

func TestPrintStartupSummary_NamesMocks(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.ListenAddr = ":8080"
	cfg.AWSBucketName = "b"
	var buf bytes.Buffer
	cfg.PrintStartupSummary(&buf)
	out := buf.String()
	for _, want := range []string{"--no-oidc", "--no-email", "--no-stripe", "--no-s3", ":8080"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseFloat64OrDefault("CFG_TEST_FLOAT", 3.5); got != 3.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=3.5", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "   value   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
}
