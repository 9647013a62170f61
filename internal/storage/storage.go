// Package storage persists submitted trades and backtest results in a JSON
// file. Writes go through a temp file and atomic rename so a crash mid-save
// never corrupts the store.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jcallahan4/optiondesk/internal/backtest"
	"github.com/jcallahan4/optiondesk/internal/builder"
)

// maxRecords caps how many trades and backtest results list calls return.
const maxRecords = 100

// Trade is a submitted strategy order. Execution is not wired to a broker,
// so every trade lands with status "simulated".
type Trade struct {
	ID         string        `json:"id"`
	StrategyID string        `json:"strategy_id"`
	Symbol     string        `json:"symbol"`
	Legs       []builder.Leg `json:"legs"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

type storeData struct {
	Trades          []Trade           `json:"trades"`
	BacktestResults []backtest.Result `json:"backtest_results"`
	LastUpdated     time.Time         `json:"last_updated"`
}

// Store is a file-backed record of trades and backtest runs.
type Store struct {
	mu       sync.RWMutex
	filepath string
	data     *storeData
}

// NewStore opens the store at filepath, loading existing data if present.
func NewStore(filepath string) (*Store, error) {
	s := &Store{
		filepath: filepath,
		data:     &storeData{},
	}

	if _, err := os.Stat(filepath); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, s.data)
}

// save writes the store to disk. Callers must hold the write lock.
func (s *Store) save() error {
	s.data.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filepath)
}

// AddTrade records a trade, newest first.
func (s *Store) AddTrade(trade Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Trades = append([]Trade{trade}, s.data.Trades...)
	return s.save()
}

// Trades returns up to limit trades, newest first. A non-positive limit
// uses the store cap.
func (s *Store) Trades(limit int) []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > maxRecords {
		limit = maxRecords
	}
	if limit > len(s.data.Trades) {
		limit = len(s.data.Trades)
	}
	out := make([]Trade, limit)
	copy(out, s.data.Trades[:limit])
	return out
}

// AddBacktestResult records a completed backtest run, newest first.
func (s *Store) AddBacktestResult(result backtest.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.BacktestResults = append([]backtest.Result{result}, s.data.BacktestResults...)
	return s.save()
}

// BacktestResults returns up to limit results, newest first. A non-positive
// limit uses the store cap.
func (s *Store) BacktestResults(limit int) []backtest.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > maxRecords {
		limit = maxRecords
	}
	if limit > len(s.data.BacktestResults) {
		limit = len(s.data.BacktestResults)
	}
	out := make([]backtest.Result, limit)
	copy(out, s.data.BacktestResults[:limit])
	return out
}
