package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 100000.0, cfg.Cash)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"negative cash", func(c *Config) { c.Cash = -1 }, ErrInvalidCapital},
		{"zero cash", func(c *Config) { c.Cash = 0 }, ErrInvalidCapital},
		{"negative commission", func(c *Config) { c.CommissionRate = -0.01 }, ErrInvalidCommission},
		{"negative slippage", func(c *Config) { c.SlippageBps = -1 }, ErrInvalidSlippage},
		{"negative stamp tax", func(c *Config) { c.StampTaxRate = -1 }, ErrInvalidStampTax},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.wantErr)
		})
	}
}

func TestConfigIsT0(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T0Symbols = []string{"ETF1"}

	assert.True(t, cfg.isT0("ETF1"))
	assert.False(t, cfg.isT0("AAPL"))
}
