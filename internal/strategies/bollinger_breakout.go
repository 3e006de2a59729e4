package strategies

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
	"github.com/bikeshrana/pi5-trading-system-go/pkg/indicators"
)

// BollingerBreakout buys when price closes below the lower Bollinger band
// while MACD is bullish (a mean-reversion entry confirmed by momentum), and
// sizes the position off ATR so wider-volatility symbols get smaller
// positions. It exits when price crosses back above the middle band or ATR
// flags a volatility spike.
//
// Entry: close < lower band AND MACD histogram > 0.
// Exit:  close > middle band OR ATR signals high volatility.
type BollingerBreakout struct {
	backtest.BaseStrategy

	Symbols         []string
	BandPeriod      int
	BandStdDev      float64
	ATRPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	RiskPerTrade    float64
	VolatilityLimit float64

	logger zerolog.Logger

	bands       map[string]*indicators.BollingerBands
	atr         map[string]*indicators.ATR
	macd        map[string]*indicators.MACD
	vwap        map[string]*indicators.VWAP
	hasPosition map[string]bool
}

// NewBollingerBreakout builds a mean-reversion strategy over symbols using
// Bollinger Bands for entries/exits, MACD to confirm momentum, ATR to size
// positions and guard against volatility spikes, and VWAP as a fair-value
// reference logged with each buy signal.
func NewBollingerBreakout(symbols []string, bandPeriod int, bandStdDev float64, atrPeriod, macdFast, macdSlow, macdSignal int, riskPerTrade, volatilityLimit float64, logger zerolog.Logger) *BollingerBreakout {
	if bandPeriod < 2 {
		bandPeriod = 20
	}
	if bandStdDev <= 0 {
		bandStdDev = 2.0
	}
	if atrPeriod < 1 {
		atrPeriod = 14
	}
	if riskPerTrade <= 0 {
		riskPerTrade = 0.01
	}
	if volatilityLimit <= 0 {
		volatilityLimit = 3.0
	}

	s := &BollingerBreakout{
		Symbols:         symbols,
		BandPeriod:      bandPeriod,
		BandStdDev:      bandStdDev,
		ATRPeriod:       atrPeriod,
		MACDFast:        macdFast,
		MACDSlow:        macdSlow,
		MACDSignal:      macdSignal,
		RiskPerTrade:    riskPerTrade,
		VolatilityLimit: volatilityLimit,
		logger:          logger.With().Str("component", "bollinger_breakout").Logger(),
		bands:           make(map[string]*indicators.BollingerBands, len(symbols)),
		atr:             make(map[string]*indicators.ATR, len(symbols)),
		macd:            make(map[string]*indicators.MACD, len(symbols)),
		vwap:            make(map[string]*indicators.VWAP, len(symbols)),
		hasPosition:     make(map[string]bool, len(symbols)),
	}
	for _, symbol := range symbols {
		s.bands[symbol] = indicators.NewBollingerBands(bandPeriod, bandStdDev)
		s.atr[symbol] = indicators.NewATR(atrPeriod)
		s.macd[symbol] = indicators.NewMACD(macdFast, macdSlow, macdSignal)
		s.vwap[symbol] = indicators.NewVWAP()
	}
	return s
}

// OnStart logs the configured parameters.
func (s *BollingerBreakout) OnStart(ctx *backtest.Context) error {
	s.logger.Info().
		Strs("symbols", s.Symbols).
		Int("band_period", s.BandPeriod).
		Float64("band_std_dev", s.BandStdDev).
		Int("atr_period", s.ATRPeriod).
		Msg("starting Bollinger breakout strategy")
	return nil
}

// OnBar feeds every indicator from the current bar, then evaluates entries
// and exits for each tracked symbol.
func (s *BollingerBreakout) OnBar(ctx *backtest.Context) error {
	now, ok := ctx.Now()
	if !ok {
		return nil
	}

	for _, symbol := range s.Symbols {
		bar, ok := ctx.Bar(symbol)
		if !ok {
			continue
		}

		bands := s.bands[symbol]
		atr := s.atr[symbol]
		macd := s.macd[symbol]
		vwap := s.vwap[symbol]

		if err := bands.UpdateBar(bar); err != nil {
			return fmt.Errorf("failed to update Bollinger bands for %s: %w", symbol, err)
		}
		if err := atr.UpdateBar(bar); err != nil {
			return fmt.Errorf("failed to update ATR for %s: %w", symbol, err)
		}
		if err := macd.Update(bar.Close, now); err != nil {
			return fmt.Errorf("failed to update MACD for %s: %w", symbol, err)
		}
		if err := vwap.UpdateBar(bar); err != nil {
			return fmt.Errorf("failed to update VWAP for %s: %w", symbol, err)
		}

		if !bands.IsReady() || !atr.IsReady() || !macd.IsReady() {
			continue
		}

		switch {
		case !s.hasPosition[symbol] && bands.IsBelowLowerBand(bar.Close) && macd.IsBullish():
			if atr.IsHighVolatility(s.VolatilityLimit) {
				s.logger.Debug().Str("symbol", symbol).Msg("breakout entry suppressed by ATR volatility guard")
				continue
			}
			cash := ctx.Cash()
			riskAmount := cash * s.RiskPerTrade
			shares := atr.GetPositionSize(riskAmount, 2.0)
			lots := shares / 100
			if lots <= 0 {
				continue
			}
			ctx.Order(symbol, backtest.Buy, float64(lots), backtest.QuantityCount)
			s.hasPosition[symbol] = true
			s.logger.Info().
				Str("symbol", symbol).
				Float64("close", bar.Close).
				Float64("lower_band", bands.Lower()).
				Float64("vwap", vwap.Value()).
				Int("shares", shares).
				Msg("Bollinger breakout buy")

		case s.hasPosition[symbol] && (bar.Close > bands.Middle() || atr.IsHighVolatility(s.VolatilityLimit)):
			if pos, ok := ctx.Position(symbol); ok && pos.Available > 0 {
				ctx.Order(symbol, backtest.Sell, pos.Available, backtest.QuantityCount)
			}
			s.hasPosition[symbol] = false
			s.logger.Info().
				Str("symbol", symbol).
				Float64("close", bar.Close).
				Float64("middle_band", bands.Middle()).
				Msg("Bollinger breakout exit")
		}
	}

	return nil
}

// OnTrade records a fill confirmation.
func (s *BollingerBreakout) OnTrade(fill backtest.Fill, ctx *backtest.Context) error {
	s.logger.Debug().
		Str("symbol", fill.Symbol).
		Str("side", string(fill.Side)).
		Float64("quantity", fill.Quantity).
		Float64("price", fill.Price).
		Msg("fill recorded")
	return nil
}
