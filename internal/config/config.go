package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage drivers.
const (
	StorageDynamo = "dynamo"
	StorageMemory = "memory"
)

// SMS providers.
const (
	SMSProviderLog    = "log"
	SMSProviderSNS    = "sns"
	SMSProviderTwilio = "twilio"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `envconfig:"APP_PORT" default:"3000"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	LogPath string `envconfig:"LOG_PATH" default:"logs/"`

	StorageDriver  string       `envconfig:"STORAGE_DRIVER" default:"dynamo"`
	AWSRegion      string       `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpointURL string       `envconfig:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string       `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string       `envconfig:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables `envconfig:"DYNAMO_TABLE"`

	AccessTokenSecret  string        `envconfig:"ACCESS_TOKEN_SECRET" required:"true"`
	AccessExpiry       time.Duration `envconfig:"ACCESS_EXPIRE_IN" required:"true"`
	RefreshTokenSecret string        `envconfig:"REFRESH_TOKEN_SECRET" required:"true"`
	RefreshExpiry      time.Duration `envconfig:"REFRESH_EXPIRE_IN" required:"true"`
	RefreshRecordTTL   time.Duration `envconfig:"REFRESH_RECORD_TTL" default:"168h"`

	OTP OTPConfig `envconfig:"OTP"`

	SMSProvider           string `envconfig:"SMS_PROVIDER" default:"log"`
	SMSDefaultCountryCode string `envconfig:"SMS_DEFAULT_COUNTRY_CODE" default:"+91"`
	SNSRegion             string `envconfig:"SNS_REGION" default:"us-east-1"`
	TwilioAccountSID      string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken       string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFrom            string `envconfig:"TWILIO_FROM"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"` // CORS allowed origins
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For the
	// rate limiter believes. Empty means the limiter keys on the peer address.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users  string `envconfig:"USERS" default:"users"`
	OTPs   string `envconfig:"OTPS" default:"otps"`
	Tokens string `envconfig:"TOKENS" default:"refresh_tokens"`
}

// OTPConfig holds the abuse-prevention limits of the OTP flow.
type OTPConfig struct {
	CodeTTL         time.Duration `envconfig:"CODE_TTL" default:"10m"`
	MaxIssues       int           `envconfig:"MAX_ISSUES" default:"3"`
	BlockDuration   time.Duration `envconfig:"BLOCK_DURATION" default:"10m"`
	DeliveryTimeout time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"5s"`
	// DeliveryRequired makes a failed SMS fail the send-otp request.
	DeliveryRequired bool `envconfig:"DELIVERY_REQUIRED" default:"false"`
}

// Load reads a .env file when present, then decodes the environment.
// Missing token secrets or expiries are an error: the API must not start without them.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv decodes and validates the current environment without touching .env.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether stack traces and debug logging must be suppressed.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must not be empty")
	}
	switch c.StorageDriver {
	case StorageDynamo, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.SMSProvider {
	case SMSProviderLog, SMSProviderSNS, SMSProviderTwilio:
	default:
		return fmt.Errorf("unknown SMS_PROVIDER %q", c.SMSProvider)
	}
	if c.IsProduction() && c.SMSProvider == SMSProviderLog {
		return fmt.Errorf("SMS_PROVIDER %q writes codes to the log and is not allowed in production", SMSProviderLog)
	}
	if c.AccessExpiry <= 0 || c.RefreshExpiry <= 0 {
		return fmt.Errorf("ACCESS_EXPIRE_IN and REFRESH_EXPIRE_IN must be positive")
	}
	if c.OTP.MaxIssues < 1 {
		return fmt.Errorf("OTP_MAX_ISSUES must be at least 1")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}
