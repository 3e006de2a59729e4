package backtest

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// IndicatorKind distinguishes a built-in indicator (computed by this
// package) from one whose series is computed externally and written in
// via Set.
type IndicatorKind string

const (
	KindBuiltin  IndicatorKind = "builtin"
	KindExternal IndicatorKind = "external"
)

// IndicatorDefinition registers a named indicator. Name is the lookup key
// a strategy later passes to Context.Indicator, so two differently
// parameterized instances of the same builtin (e.g. a 5- and 10-period
// SMA) register under distinct names. For builtins, Params["type"]
// selects the recognized computation, defaulting to "sma" (the only one
// currently implemented) when omitted; Params also carries "period" and
// "field" for that computation.
type IndicatorDefinition struct {
	Kind           IndicatorKind
	Name           string
	Params         map[string]string
	LookbackPeriod int
}

// fieldOf extracts the chosen OHLCV field from a bar, defaulting to Close.
func fieldOf(b Bar, field string) (float64, bool) {
	switch field {
	case "", "close":
		return b.Close, true
	case "open":
		return b.Open, true
	case "high":
		return b.High, true
	case "low":
		return b.Low, true
	case "volume":
		return b.Volume, true
	default:
		return 0, false
	}
}

// indicatorSeries is the precomputed, timeline-aligned value series for a
// single (indicator, symbol) pair. Absence is encoded as NaN.
type indicatorSeries struct {
	values []float64
}

// IndicatorEngine registers indicator definitions and precomputes, for
// every (indicator, symbol) pair, a value series aligned to the DataFeed's
// canonical timeline: position i holds the value computable from bars of
// the symbol with datetime <= T[i].
type IndicatorEngine struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	defs        map[string]IndicatorDefinition
	series      map[string]map[string]*indicatorSeries // name -> symbol -> series
	currentIdx  int
}

// NewIndicatorEngine builds an empty engine.
func NewIndicatorEngine(logger zerolog.Logger) *IndicatorEngine {
	return &IndicatorEngine{
		logger: logger.With().Str("component", "indicator_engine").Logger(),
		defs:   make(map[string]IndicatorDefinition),
		series: make(map[string]map[string]*indicatorSeries),
	}
}

// Register adds an indicator definition. Call during on_start, before
// PrecomputeAll.
func (e *IndicatorEngine) Register(def IndicatorDefinition) error {
	if def.Kind != KindBuiltin && def.Kind != KindExternal {
		return ErrInvalidIndicatorKind
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[def.Name] = def
	return nil
}

// HasIndicators reports whether any indicator has been registered.
func (e *IndicatorEngine) HasIndicators() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.defs) > 0
}

// PrecomputeAll computes every registered indicator's series for every
// symbol known to feed. The (indicator, symbol) pairs are independent, so
// they are computed concurrently via errgroup; the canonical alignment
// rule is preserved regardless of completion order because each goroutine
// only ever writes its own series.
func (e *IndicatorEngine) PrecomputeAll(feed *DataFeed) error {
	start := time.Now()
	e.mu.Lock()
	defs := make([]IndicatorDefinition, 0, len(e.defs))
	for _, d := range e.defs {
		defs = append(defs, d)
	}
	e.series = make(map[string]map[string]*indicatorSeries, len(defs))
	for _, d := range defs {
		e.series[d.Name] = make(map[string]*indicatorSeries)
	}
	e.mu.Unlock()

	symbols := feed.Symbols()
	timelineLen := feed.Len()

	var g errgroup.Group
	var mu sync.Mutex
	for _, def := range defs {
		def := def
		if def.Kind != KindBuiltin {
			// External series are populated by the caller via Set; allocate
			// NaN-filled storage so writes have somewhere to land.
			for _, symbol := range symbols {
				values := make([]float64, timelineLen)
				for i := range values {
					values[i] = math.NaN()
				}
				e.series[def.Name][symbol] = &indicatorSeries{values: values}
			}
			continue
		}
		for _, symbol := range symbols {
			def, symbol := def, symbol
			g.Go(func() error {
				series, err := computeBuiltinSeries(def, feed.AllBars(symbol), feed, timelineLen)
				if err != nil {
					return err
				}
				mu.Lock()
				e.series[def.Name][symbol] = series
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.logger.Info().Int("indicators", len(defs)).Int("symbols", len(symbols)).Dur("duration", time.Since(start)).Msg("precomputed indicator series")
	return nil
}

// computeBuiltinSeries implements the SMA recurrence and timeline alignment
// described by the canonical alignment rule: walk a joint cursor j counting
// bars of the symbol with datetime <= T[i]; at position i write
// series[j-1] if j >= period, else NaN.
func computeBuiltinSeries(def IndicatorDefinition, bars []Bar, feed *DataFeed, timelineLen int) (*indicatorSeries, error) {
	out := &indicatorSeries{values: make([]float64, timelineLen)}
	for i := range out.values {
		out.values[i] = math.NaN()
	}

	builtinType := def.Params["type"]
	if builtinType == "" {
		builtinType = "sma"
	}
	if builtinType != "sma" {
		return nil, ErrUnknownBuiltin
	}

	period := def.LookbackPeriod
	if p, ok := def.Params["period"]; ok && p != "" {
		if parsed, ok := parseIntParam(p); ok {
			period = parsed
		}
	}
	if period <= 0 {
		period = 1
	}
	field := def.Params["field"]

	if len(bars) == 0 {
		return out, nil
	}

	// Per-input-bar raw SMA series via a trailing-sum streaming recurrence.
	raw := make([]float64, len(bars))
	var sum float64
	for i, b := range bars {
		v, ok := fieldOf(b, field)
		if !ok {
			return out, nil // unknown field tag: series stays all NaN
		}
		sum += v
		if i >= period {
			v0, _ := fieldOf(bars[i-period], field)
			sum -= v0
		}
		if i+1 >= period {
			raw[i] = sum / float64(period)
		} else {
			raw[i] = math.NaN()
		}
	}

	j := 0
	for i := 0; i < timelineLen; i++ {
		t := feed.timeline[i]
		for j < len(bars) && !bars[j].Datetime.After(t) {
			j++
		}
		if j >= period {
			out.values[i] = raw[j-1]
		}
	}

	return out, nil
}

func parseIntParam(s string) (int, bool) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Value returns the indicator's value at the engine's current index, or
// false if it is NaN (absent) or unknown.
func (e *IndicatorEngine) Value(name, symbol string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bySymbol, ok := e.series[name]
	if !ok {
		return 0, false
	}
	s, ok := bySymbol[symbol]
	if !ok || e.currentIdx >= len(s.values) {
		return 0, false
	}
	v := s.values[e.currentIdx]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Values fetches several indicators for one symbol in a single call.
func (e *IndicatorEngine) Values(symbol string, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		if v, ok := e.Value(name, symbol); ok {
			out[name] = v
		}
	}
	return out
}

// Window returns values at indices [current-count+1, current], clamped to
// [0, N-1]. count==1 returns the raw value including NaN; count>1 filters
// NaN and returns nil if the result is empty.
func (e *IndicatorEngine) Window(name, symbol string, count int) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bySymbol, ok := e.series[name]
	if !ok {
		return nil
	}
	s, ok := bySymbol[symbol]
	if !ok {
		return nil
	}

	if count == 1 {
		if e.currentIdx < 0 || e.currentIdx >= len(s.values) {
			return nil
		}
		return []float64{s.values[e.currentIdx]}
	}

	start := e.currentIdx - count + 1
	if start < 0 {
		start = 0
	}
	end := e.currentIdx
	if end >= len(s.values) {
		end = len(s.values) - 1
	}
	if end < start {
		return nil
	}

	out := make([]float64, 0, end-start+1)
	for i := start; i <= end; i++ {
		if !math.IsNaN(s.values[i]) {
			out = append(out, s.values[i])
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Set writes a single externally computed indicator value at index, for
// indicators registered with KindExternal.
func (e *IndicatorEngine) Set(name, symbol string, index int, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bySymbol, ok := e.series[name]
	if !ok {
		bySymbol = make(map[string]*indicatorSeries)
		e.series[name] = bySymbol
	}
	s, ok := bySymbol[symbol]
	if !ok {
		return
	}
	if index < 0 || index >= len(s.values) {
		return
	}
	s.values[index] = value
}

// UpdateIndex syncs the engine's read cursor. Call whenever DataFeed
// advances.
func (e *IndicatorEngine) UpdateIndex(i int) {
	e.mu.Lock()
	e.currentIdx = i
	e.mu.Unlock()
}
