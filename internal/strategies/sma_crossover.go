// Package strategies holds example backtest.Strategy implementations
// exercised by cmd/backtest and internal/api.
package strategies

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
	"github.com/bikeshrana/pi5-trading-system-go/pkg/indicators"
)

// SMACrossover buys when a short simple moving average crosses above a
// longer one and RSI confirms the move isn't already overbought; it exits
// on the reverse crossover or an overbought RSI reading.
//
// Entry: sma_short crosses above sma_long AND RSI < overboughtThreshold.
// Exit:  sma_short crosses below sma_long OR RSI > overboughtThreshold.
type SMACrossover struct {
	backtest.BaseStrategy

	Symbols             []string
	ShortPeriod         int
	LongPeriod          int
	RSIPeriod           int
	OverboughtThreshold float64

	logger zerolog.Logger

	rsi          map[string]*indicators.RSI
	wasAboveLong map[string]bool
	hasPosition  map[string]bool
}

// NewSMACrossover builds a strategy over symbols with the given moving
// average windows and an RSI overbought guard on entries.
func NewSMACrossover(symbols []string, shortPeriod, longPeriod, rsiPeriod int, overboughtThreshold float64, logger zerolog.Logger) *SMACrossover {
	if shortPeriod < 1 {
		shortPeriod = 10
	}
	if longPeriod <= shortPeriod {
		longPeriod = 30
	}
	if overboughtThreshold <= 0 {
		overboughtThreshold = 70
	}

	s := &SMACrossover{
		Symbols:             symbols,
		ShortPeriod:         shortPeriod,
		LongPeriod:          longPeriod,
		RSIPeriod:           rsiPeriod,
		OverboughtThreshold: overboughtThreshold,
		logger:              logger.With().Str("component", "sma_crossover").Logger(),
		rsi:                 make(map[string]*indicators.RSI, len(symbols)),
		wasAboveLong:        make(map[string]bool, len(symbols)),
		hasPosition:         make(map[string]bool, len(symbols)),
	}
	for _, symbol := range symbols {
		s.rsi[symbol] = indicators.NewRSI(rsiPeriod)
	}
	return s
}

// ShortName is the builtin indicator name registered for the short SMA.
func (s *SMACrossover) ShortName() string { return fmt.Sprintf("sma_%d", s.ShortPeriod) }

// LongName is the builtin indicator name registered for the long SMA.
func (s *SMACrossover) LongName() string { return fmt.Sprintf("sma_%d", s.LongPeriod) }

// Register adds this strategy's builtin SMA series to ind. Call before
// Driver.Run, since indicator registration happens ahead of precomputation.
func (s *SMACrossover) Register(ind *backtest.IndicatorEngine) error {
	if err := ind.Register(backtest.IndicatorDefinition{
		Kind:           backtest.KindBuiltin,
		Name:           s.ShortName(),
		Params:         map[string]string{"period": fmt.Sprintf("%d", s.ShortPeriod), "field": "close"},
		LookbackPeriod: s.ShortPeriod,
	}); err != nil {
		return err
	}
	return ind.Register(backtest.IndicatorDefinition{
		Kind:           backtest.KindBuiltin,
		Name:           s.LongName(),
		Params:         map[string]string{"period": fmt.Sprintf("%d", s.LongPeriod), "field": "close"},
		LookbackPeriod: s.LongPeriod,
	})
}

// OnStart logs the configured parameters.
func (s *SMACrossover) OnStart(ctx *backtest.Context) error {
	s.logger.Info().
		Strs("symbols", s.Symbols).
		Int("short_period", s.ShortPeriod).
		Int("long_period", s.LongPeriod).
		Int("rsi_period", s.RSIPeriod).
		Float64("overbought_threshold", s.OverboughtThreshold).
		Msg("starting SMA crossover strategy")
	return nil
}

// OnBar updates each symbol's RSI from the current bar and trades on
// crossovers confirmed by the RSI guard.
func (s *SMACrossover) OnBar(ctx *backtest.Context) error {
	now, ok := ctx.Now()
	if !ok {
		return nil
	}

	for _, symbol := range s.Symbols {
		bar, ok := ctx.Bar(symbol)
		if !ok {
			continue
		}

		rsi := s.rsi[symbol]
		if err := rsi.Update(bar.Close, now); err != nil {
			return fmt.Errorf("failed to update RSI for %s: %w", symbol, err)
		}

		short, shortOK := ctx.Indicator(s.ShortName(), symbol)
		long, longOK := ctx.Indicator(s.LongName(), symbol)
		if !shortOK || !longOK {
			continue
		}

		aboveLong := short > long
		wasAbove, seen := s.wasAboveLong[symbol]
		s.wasAboveLong[symbol] = aboveLong

		if !seen {
			continue
		}

		crossedUp := !wasAbove && aboveLong
		crossedDown := wasAbove && !aboveLong

		switch {
		case crossedUp && !s.hasPosition[symbol]:
			if rsi.IsReady() && rsi.IsOverboughtCustom(s.OverboughtThreshold) {
				s.logger.Debug().Str("symbol", symbol).Float64("rsi", rsi.Value()).Msg("crossover buy suppressed by RSI guard")
				continue
			}
			ctx.Order(symbol, backtest.Buy, 0.1, backtest.QuantityWeight)
			s.hasPosition[symbol] = true
			s.logger.Info().Str("symbol", symbol).Float64("short", short).Float64("long", long).Msg("golden cross buy")

		case crossedDown && s.hasPosition[symbol]:
			if pos, ok := ctx.Position(symbol); ok && pos.Available > 0 {
				ctx.Order(symbol, backtest.Sell, pos.Available, backtest.QuantityCount)
			}
			s.hasPosition[symbol] = false
			s.logger.Info().Str("symbol", symbol).Float64("short", short).Float64("long", long).Msg("death cross sell")

		case rsi.IsReady() && rsi.IsOverboughtCustom(s.OverboughtThreshold) && s.hasPosition[symbol]:
			if pos, ok := ctx.Position(symbol); ok && pos.Available > 0 {
				ctx.Order(symbol, backtest.Sell, pos.Available, backtest.QuantityCount)
			}
			s.hasPosition[symbol] = false
			s.logger.Info().Str("symbol", symbol).Float64("rsi", rsi.Value()).Msg("RSI overbought exit")
		}
	}

	return nil
}

// OnTrade records a fill confirmation.
func (s *SMACrossover) OnTrade(fill backtest.Fill, ctx *backtest.Context) error {
	s.logger.Debug().
		Str("symbol", fill.Symbol).
		Str("side", string(fill.Side)).
		Float64("quantity", fill.Quantity).
		Float64("price", fill.Price).
		Msg("fill recorded")
	return nil
}
