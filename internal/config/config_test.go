package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sandbox", cfg.Payment.Driver)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, "postgres://stakes:pw@localhost:5432/stakes?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PAYMENT_TIMEOUT", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("PAYMENT_DRIVER", "stripe")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")
	t.Setenv("PAYMENT_SANDBOX_AUTO_SUCCEED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 90*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, "stripe", cfg.Payment.Driver)
	assert.False(t, cfg.Payment.SandboxAutoSucceed)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			JWT:         JWTConfig{Secret: "x"},
			Payment:     PaymentConfig{Driver: "sandbox", Timeout: time.Second},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"missing jwt secret":    func(c *Config) { c.JWT.Secret = "" },
		"sandbox in production": func(c *Config) { c.Environment = "production" },
		"stripe without key":    func(c *Config) { c.Payment.Driver = "stripe" },
		"unknown driver":        func(c *Config) { c.Payment.Driver = "paypal" },
		"zero timeout":          func(c *Config) { c.Payment.Timeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
