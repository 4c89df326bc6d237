package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flexprice/retainer/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())

	rate, err := cfg.Billing.GetTaxRate()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.1")))

	loc, err := cfg.Billing.GetLocation()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoadFromFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
billing:
  tax_rate: "0.08"
  cutoff_mode: "current_month"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.08", cfg.Billing.TaxRate)
	assert.Equal(t, types.CutoffModeCurrentMonth, cfg.Billing.CutoffMode)
	assert.Equal(t, "JPY", cfg.Billing.Currency)
	assert.Equal(t, 5, cfg.Postgres.MaxTxRetries)
	assert.Equal(t, types.PublisherBackendMemory, cfg.Event.Backend)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	t.Setenv("RETAINER_POSTGRES_HOST", "db.internal")
	t.Setenv("RETAINER_BILLING_PAYMENT_TERM_DAYS", "14")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 14, cfg.Billing.PaymentTermDays)
	assert.Equal(t, types.LogLevelInfo, cfg.Logging.Level)
}

func TestValidateRejectsBadBillingSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"tax rate above one", func(c *Configuration) { c.Billing.TaxRate = "1.5" }},
		{"negative tax rate", func(c *Configuration) { c.Billing.TaxRate = "-0.1" }},
		{"unparsable tax rate", func(c *Configuration) { c.Billing.TaxRate = "ten percent" }},
		{"unknown cutoff mode", func(c *Configuration) { c.Billing.CutoffMode = "next_month" }},
		{"unknown timezone", func(c *Configuration) { c.Billing.Timezone = "Mars/Olympus" }},
		{"kafka without brokers", func(c *Configuration) { c.Event.Backend = types.PublisherBackendKafka }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
