package backtest

// Config holds the run parameters for a single backtest. Time bounds
// (Start/End/Period) are informational only; the actual simulated range is
// determined entirely by the benchmark data supplied to the DataFeed.
type Config struct {
	Cash            float64
	CommissionRate  float64
	MinCommission   float64
	SlippageBps     float64
	StampTaxRate    float64
	T0Symbols       []string
	Start           string
	End             string
	Period          string
}

// DefaultConfig returns the engine's baseline run parameters.
func DefaultConfig() *Config {
	return &Config{
		Cash:           100000.0,
		CommissionRate: 0.0005,
		MinCommission:  5.0,
		SlippageBps:    1.0,
		StampTaxRate:   0.001,
		T0Symbols:      nil,
	}
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.Cash <= 0 {
		return ErrInvalidCapital
	}
	if c.CommissionRate < 0 {
		return ErrInvalidCommission
	}
	if c.SlippageBps < 0 {
		return ErrInvalidSlippage
	}
	if c.StampTaxRate < 0 {
		return ErrInvalidStampTax
	}
	return nil
}

// isT0 reports whether symbol is exempt from T+1 settlement blocking.
func (c *Config) isT0(symbol string) bool {
	for _, s := range c.T0Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
