package storage

import (
	"sync"

	"github.com/jcallahan4/optiondesk/internal/backtest"
)

// MockStore implements Interface in memory for testing.
type MockStore struct {
	mu          sync.RWMutex
	trades      []Trade
	results     []backtest.Result
	tradeErr    error
	backtestErr error
}

// NewMockStore creates a new in-memory store for testing.
func NewMockStore() *MockStore {
	return &MockStore{}
}

var _ Interface = (*MockStore)(nil)

// FailTrades makes subsequent AddTrade calls return err.
func (m *MockStore) FailTrades(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradeErr = err
}

// FailBacktests makes subsequent AddBacktestResult calls return err.
func (m *MockStore) FailBacktests(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backtestErr = err
}

func (m *MockStore) AddTrade(trade Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tradeErr != nil {
		return m.tradeErr
	}
	m.trades = append([]Trade{trade}, m.trades...)
	return nil
}

func (m *MockStore) Trades(limit int) []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > maxRecords {
		limit = maxRecords
	}
	if limit > len(m.trades) {
		limit = len(m.trades)
	}
	out := make([]Trade, limit)
	copy(out, m.trades[:limit])
	return out
}

func (m *MockStore) AddBacktestResult(result backtest.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backtestErr != nil {
		return m.backtestErr
	}
	m.results = append([]backtest.Result{result}, m.results...)
	return nil
}

func (m *MockStore) BacktestResults(limit int) []backtest.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > maxRecords {
		limit = maxRecords
	}
	if limit > len(m.results) {
		limit = len(m.results)
	}
	out := make([]backtest.Result, limit)
	copy(out, m.results[:limit])
	return out
}
