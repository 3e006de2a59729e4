package backtest

import "errors"

var (
	// Configuration errors.
	ErrInvalidCapital       = errors.New("initial cash must be positive")
	ErrInvalidCommission    = errors.New("commission_rate must be non-negative")
	ErrInvalidSlippage      = errors.New("slippage_bps must be non-negative")
	ErrInvalidStampTax      = errors.New("stamp_tax_rate must be non-negative")
	ErrInvalidSide          = errors.New("order side must be BUY or SELL")
	ErrInvalidQuantityType  = errors.New("quantity_type must be COUNT, CASH, or WEIGHT")
	ErrInvalidIndicatorKind = errors.New("indicator kind must be builtin or external")
	ErrUnknownBuiltin       = errors.New("unrecognized builtin indicator name")

	// Data errors.
	ErrUnparseableDatetime = errors.New("bar datetime is not RFC3339 or \"2006-01-02 15:04:05\"")
	ErrDuplicateBar        = errors.New("duplicate bar datetime for symbol")
	ErrNonMonotonicBar     = errors.New("bar datetime is not strictly increasing")
	ErrInvalidSymbol       = errors.New("symbol must be non-empty")
	ErrNoBenchmark         = errors.New("no benchmark data has been set")
)
