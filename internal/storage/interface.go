package storage

import "github.com/jcallahan4/optiondesk/internal/backtest"

// Interface defines the contract for trade and backtest persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe.
//
// The provided Store implementation uses sync.RWMutex to serialize access.
type Interface interface {
	AddTrade(trade Trade) error
	Trades(limit int) []Trade

	AddBacktestResult(result backtest.Result) error
	BacktestResults(limit int) []backtest.Result
}

// Ensure Store implements Interface
var _ Interface = (*Store)(nil)
