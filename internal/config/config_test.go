package config

import (
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownKeys = []string{
	"APP_PORT", "APP_ENV", "LOG_PATH",
	"STORAGE_DRIVER", "AWS_REGION", "AWS_ENDPOINT_URL",
	"DYNAMO_TABLE_USERS", "DYNAMO_TABLE_OTPS", "DYNAMO_TABLE_TOKENS",
	"ACCESS_TOKEN_SECRET", "ACCESS_EXPIRE_IN", "REFRESH_TOKEN_SECRET", "REFRESH_EXPIRE_IN", "REFRESH_RECORD_TTL",
	"OTP_CODE_TTL", "OTP_MAX_ISSUES", "OTP_BLOCK_DURATION", "OTP_DELIVERY_TIMEOUT", "OTP_DELIVERY_REQUIRED",
	"SMS_PROVIDER", "SMS_DEFAULT_COUNTRY_CODE", "SNS_REGION",
	"ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TRUSTED_PROXIES",
}

// cleanEnv unsets every key the config reads, then sets the required ones.
// t.Setenv restores the previous values when the test ends.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("ACCESS_EXPIRE_IN", "15m")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
	t.Setenv("REFRESH_EXPIRE_IN", "168h")
}

func unset(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, os.Unsetenv(key))
}

func TestFromEnv_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, StorageDynamo, cfg.StorageDriver)
	assert.Equal(t, DynamoTables{Users: "users", OTPs: "otps", Tokens: "refresh_tokens"}, cfg.DynamoTables)

	assert.Equal(t, 15*time.Minute, cfg.AccessExpiry)
	assert.Equal(t, 168*time.Hour, cfg.RefreshExpiry)
	assert.Equal(t, 168*time.Hour, cfg.RefreshRecordTTL)

	assert.Equal(t, OTPConfig{
		CodeTTL:         10 * time.Minute,
		MaxIssues:       3,
		BlockDuration:   10 * time.Minute,
		DeliveryTimeout: 5 * time.Second,
	}, cfg.OTP)

	assert.Equal(t, SMSProviderLog, cfg.SMSProvider)
	assert.Equal(t, "+91", cfg.SMSDefaultCountryCode)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestFromEnv_NestedOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("DYNAMO_TABLE_USERS", "prod_users")
	t.Setenv("DYNAMO_TABLE_TOKENS", "prod_tokens")
	t.Setenv("OTP_MAX_ISSUES", "5")
	t.Setenv("OTP_CODE_TTL", "2m")
	t.Setenv("OTP_DELIVERY_REQUIRED", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "prod_users", cfg.DynamoTables.Users)
	assert.Equal(t, "otps", cfg.DynamoTables.OTPs)
	assert.Equal(t, "prod_tokens", cfg.DynamoTables.Tokens)
	assert.Equal(t, 5, cfg.OTP.MaxIssues)
	assert.Equal(t, 2*time.Minute, cfg.OTP.CodeTTL)
	assert.True(t, cfg.OTP.DeliveryRequired)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromEnv_Rejects(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"missing access secret":   func(t *testing.T) { unset(t, "ACCESS_TOKEN_SECRET") },
		"missing refresh secret":  func(t *testing.T) { unset(t, "REFRESH_TOKEN_SECRET") },
		"empty access secret":     func(t *testing.T) { t.Setenv("ACCESS_TOKEN_SECRET", "") },
		"empty refresh secret":    func(t *testing.T) { t.Setenv("REFRESH_TOKEN_SECRET", "") },
		"missing access expiry":   func(t *testing.T) { unset(t, "ACCESS_EXPIRE_IN") },
		"missing refresh expiry":  func(t *testing.T) { unset(t, "REFRESH_EXPIRE_IN") },
		"zero access expiry":      func(t *testing.T) { t.Setenv("ACCESS_EXPIRE_IN", "0s") },
		"negative refresh expiry": func(t *testing.T) { t.Setenv("REFRESH_EXPIRE_IN", "-1h") },
		"unparsable expiry":       func(t *testing.T) { t.Setenv("ACCESS_EXPIRE_IN", "soon") },
		"unknown driver":          func(t *testing.T) { t.Setenv("STORAGE_DRIVER", "postgres") },
		"unknown sms provider":    func(t *testing.T) { t.Setenv("SMS_PROVIDER", "pigeon") },
		"zero otp max issues":     func(t *testing.T) { t.Setenv("OTP_MAX_ISSUES", "0") },
		"bad trusted proxy":       func(t *testing.T) { t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,not-an-ip") },
		"log sms in production":   func(t *testing.T) { t.Setenv("APP_ENV", "production") },
	}
	for name, breakEnv := range cases {
		t.Run(name, func(t *testing.T) {
			cleanEnv(t)
			breakEnv(t)

			cfg, err := FromEnv()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestFromEnv_ProductionWithRealProvider(t *testing.T) {
	cleanEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("SMS_PROVIDER", SMSProviderSNS)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestTrustedProxyPrefixes(t *testing.T) {
	cfg := &Config{TrustedProxies: []string{"10.1.2.3/8", " 192.0.2.7 ", "", "::ffff:198.51.100.1", "2001:db8::/32"}}

	got, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
		netip.MustParsePrefix("198.51.100.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, got)

	_, err = (&Config{TrustedProxies: []string{"10.0.0.0/33"}}).TrustedProxyPrefixes()
	assert.Error(t, err)
}
