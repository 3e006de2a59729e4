package backtest

import "time"

// Portfolio owns cash, positions, and buy records, and enforces the
// availability and accounting invariants (P1-P3). It is mutated only by
// ExecutionEngine during order execution and by its own sweep at the start
// of each new trading day.
type Portfolio struct {
	Cash       float64
	Positions  map[string]*Position
	BuyRecords map[string][]BuyRecord
	config     *Config
}

// NewPortfolio builds a portfolio seeded with the config's initial cash and
// T+0 symbol set.
func NewPortfolio(cfg *Config) *Portfolio {
	return &Portfolio{
		Cash:       cfg.Cash,
		Positions:  make(map[string]*Position),
		BuyRecords: make(map[string][]BuyRecord),
		config:     cfg,
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddPosition records a Buy fill: average cost is additive in shares,
// new_avg = (old_qty*old_avg + qty*price)*100 / (new_qty*100). A BuyRecord
// is appended unless symbol is in the T+0 set.
func (p *Portfolio) AddPosition(symbol string, qtyLots, price float64, tradeDate time.Time) {
	pos, ok := p.Positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		p.Positions[symbol] = pos
	}

	totalCost := pos.Quantity*pos.AvgCost*100 + qtyLots*price*100
	newQty := pos.Quantity + qtyLots
	pos.Quantity = newQty
	if newQty > 0 {
		pos.AvgCost = totalCost / (newQty * 100)
	} else {
		pos.AvgCost = 0
	}
	pos.MarketValue = pos.Quantity * price * 100

	if !p.config.isT0(symbol) {
		p.BuyRecords[symbol] = append(p.BuyRecords[symbol], BuyRecord{
			Date:     dayOf(tradeDate),
			Quantity: qtyLots,
			Price:    price,
		})
	}
}

// ReducePosition records a Sell fill, decreasing quantity and removing the
// position once it reaches zero. AvgCost is left unchanged: per-share basis
// is invariant under a partial sell. Returns the cash released, or 0 if
// qtyLots exceeds the held quantity (the caller is expected to have already
// validated this via Available).
func (p *Portfolio) ReducePosition(symbol string, qtyLots, price float64) float64 {
	pos, ok := p.Positions[symbol]
	if !ok || qtyLots > pos.Quantity {
		return 0
	}

	pos.Quantity -= qtyLots
	if pos.Quantity <= 0 {
		delete(p.Positions, symbol)
	} else {
		pos.MarketValue = pos.Quantity * price * 100
	}

	return qtyLots * price * 100
}

// Available returns the sellable quantity of symbol on date, applying the
// T+1 rule: T+0 symbols can sell the full position; otherwise today's buys
// are withheld.
func (p *Portfolio) Available(symbol string, date time.Time) float64 {
	pos, ok := p.Positions[symbol]
	if !ok {
		return 0
	}
	if p.config.isT0(symbol) {
		return pos.Quantity
	}

	d := dayOf(date)
	var todayBuys float64
	for _, r := range p.BuyRecords[symbol] {
		if r.Date.Equal(d) {
			todayBuys += r.Quantity
		}
	}

	avail := pos.Quantity - todayBuys
	if avail < 0 {
		return 0
	}
	return avail
}

// Equity returns cash plus the mark-to-market value of every position,
// falling back to the last known MarketValue when currentPrices lacks a
// quote for that symbol.
func (p *Portfolio) Equity(currentPrices map[string]float64) float64 {
	total := p.Cash
	for symbol, pos := range p.Positions {
		if price, ok := currentPrices[symbol]; ok {
			total += pos.Quantity * price * 100
		} else {
			total += pos.MarketValue
		}
	}
	return total
}

// SweepT1 implements P3: on advancing to the new current date, buy records
// dated strictly before it are discarded; same-date records are retained
// (they continue to block sales on that date).
func (p *Portfolio) SweepT1(currentDate time.Time) {
	d := dayOf(currentDate)
	for symbol, records := range p.BuyRecords {
		kept := records[:0]
		for _, r := range records {
			if !r.Date.Before(d) {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(p.BuyRecords, symbol)
		} else {
			p.BuyRecords[symbol] = kept
		}
	}
}
