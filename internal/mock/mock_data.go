// Package mock provides a synthetic market data provider so the dashboard
// can run without an API key.
package mock

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/jcallahan4/optiondesk/internal/feed"
	"github.com/jcallahan4/optiondesk/internal/util"
)

// Provider generates plausible quotes, chains, and history in memory.
type Provider struct {
	mu           sync.Mutex
	currentPrice float64
	midIV        float64 // actual IV level for pricing
}

var _ feed.Provider = (*Provider)(nil)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// secureInt63n generates a cryptographically secure random int64 between 0 and n-1
func secureInt63n(n int64) int64 {
	r, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return n / 2
	}
	return r.Int64()
}

// NewProvider creates a synthetic provider priced around SPY levels.
func NewProvider() *Provider {
	return &Provider{
		currentPrice: 450.0 + secureFloat64()*10, // SPY around 450-460
		midIV:        12.0 + secureFloat64()*18,  // 12-30% volatility
	}
}

// GetQuote returns the current synthetic quote with a small random walk.
func (p *Provider) GetQuote(_ context.Context, symbol string) (*feed.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentPrice += (secureFloat64() - 0.5) * 2

	spread := 0.02 // 2 cent spread
	return &feed.Quote{
		Symbol: symbol,
		Last:   p.currentPrice,
		Bid:    p.currentPrice - spread/2,
		Ask:    p.currentPrice + spread/2,
		Close:  p.currentPrice,
		Volume: secureInt63n(100000000),
	}, nil
}

// GetExpirations returns four synthetic monthly expirations.
func (p *Provider) GetExpirations(_ context.Context, _ string) ([]string, error) {
	dates := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		dates = append(dates, time.Now().AddDate(0, 0, 30*i).Format("2006-01-02"))
	}
	return dates, nil
}

// GetOptionChain generates a chain of strikes around the current price with
// approximate greeks.
func (p *Provider) GetOptionChain(_ context.Context, symbol, expiration string, greeks bool) ([]feed.Option, error) {
	expDate, err := time.Parse("2006-01-02", expiration)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration format: %w", err)
	}
	dte := int(time.Until(expDate).Hours() / 24)
	if dte < 0 {
		dte = 0
	}

	p.mu.Lock()
	price := p.currentPrice
	midIV := p.midIV
	p.mu.Unlock()

	var options []feed.Option

	strikeInterval := 5.0
	startStrike := util.RoundToTick(price, strikeInterval) - 50
	endStrike := startStrike + 100

	for strike := startStrike; strike <= endStrike; strike += strikeInterval {
		// Approximate delta from distance to spot
		distance := math.Abs(strike - price)
		deltaDecay := math.Exp(-distance * 0.02)

		putDelta := -0.5 * deltaDecay
		if strike > price {
			putDelta = -0.5 * (1 - deltaDecay)
		}
		callDelta := 0.5 * deltaDecay
		if strike < price {
			callDelta = 0.5 * (1 - deltaDecay)
		}

		timeValue := math.Max(0, float64(dte)/365.0)
		vol := midIV / 100.0
		putPrice := math.Max(0.5, vol*math.Sqrt(timeValue)*price*0.01*math.Abs(putDelta))
		callPrice := math.Max(0.5, vol*math.Sqrt(timeValue)*price*0.01*math.Abs(callDelta))

		putOption := feed.Option{
			Symbol:         fmt.Sprintf("%s%sP%08d", symbol, expDate.Format("060102"), int(strike*1000)),
			Strike:         strike,
			OptionType:     "put",
			ExpirationDate: expiration,
			Bid:            putPrice - 0.05,
			Ask:            putPrice + 0.05,
			Last:           util.Mid(putPrice-0.05, putPrice+0.05, putPrice),
			Volume:         secureInt63n(10000),
			OpenInterest:   secureInt63n(50000),
		}
		callOption := feed.Option{
			Symbol:         fmt.Sprintf("%s%sC%08d", symbol, expDate.Format("060102"), int(strike*1000)),
			Strike:         strike,
			OptionType:     "call",
			ExpirationDate: expiration,
			Bid:            callPrice - 0.05,
			Ask:            callPrice + 0.05,
			Last:           util.Mid(callPrice-0.05, callPrice+0.05, callPrice),
			Volume:         secureInt63n(10000),
			OpenInterest:   secureInt63n(50000),
		}

		if greeks {
			// Gamma peaks at the money
			gamma := 0.02 * deltaDecay
			putOption.Greeks = &feed.Greeks{
				Delta: putDelta,
				Gamma: gamma,
				MidIV: midIV / 100.0,
				Theta: -0.05 * vol,
				Vega:  0.10 * vol,
			}
			callOption.Greeks = &feed.Greeks{
				Delta: callDelta,
				Gamma: gamma,
				MidIV: midIV / 100.0,
				Theta: -0.05 * vol,
				Vega:  0.10 * vol,
			}
		}

		options = append(options, putOption, callOption)
	}

	return options, nil
}

// GetHistory generates a random walk of daily bars over the window.
func (p *Provider) GetHistory(_ context.Context, _ string, _ string, start, end time.Time) ([]feed.Candle, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("history window inverted: %s after %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	p.mu.Lock()
	price := p.currentPrice
	p.mu.Unlock()

	var candles []feed.Candle
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		move := (secureFloat64() - 0.5) * price * 0.02
		open := price
		price += move
		high := math.Max(open, price) + secureFloat64()*price*0.005
		low := math.Min(open, price) - secureFloat64()*price*0.005
		candles = append(candles, feed.Candle{
			Date:   d,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: secureInt63n(100000000),
		})
	}
	return candles, nil
}
