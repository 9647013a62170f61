// Package backtest replays a strategy over historical daily bars and reports
// simplified performance metrics. The simulations are deliberately coarse:
// they model the cash flows typical of each strategy family rather than
// repricing every leg per bar.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/jcallahan4/optiondesk/internal/catalog"
	"github.com/jcallahan4/optiondesk/internal/feed"
)

const (
	sharesPerLot    = 100
	premiumYield    = 0.02 // monthly covered call premium as a fraction of spot
	condorCycleDays = 30
	condorRangePct  = 5.0  // price move beyond this busts the condor
	condorWinRate   = 0.03 // profit fraction of capital per winning cycle
	condorLossRate  = 0.05 // loss fraction of capital per busted cycle
	riskFreeRate    = 0.02
	tradingDaysYear = 252
)

// ErrNotEnoughData is returned when the history window has fewer than two bars.
var ErrNotEnoughData = errors.New("not enough historical data for backtest")

// Trade is one entry in the simulated trade log. Optional fields stay zero
// for the strategies that do not produce them.
type Trade struct {
	Date       string  `json:"date"`
	Action     string  `json:"action"`
	Price      float64 `json:"price,omitempty"`
	Premium    float64 `json:"premium,omitempty"`
	EntryPrice float64 `json:"entry_price,omitempty"`
	ExitPrice  float64 `json:"exit_price,omitempty"`
	Profit     float64 `json:"profit,omitempty"`
	Capital    float64 `json:"capital"`
}

// Metrics summarizes backtest performance.
type Metrics struct {
	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
}

// PricePoint is one bar of the underlying used for charting.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Result is a completed backtest run.
type Result struct {
	ID             string       `json:"id"`
	StrategyID     string       `json:"strategy_id"`
	StrategyName   string       `json:"strategy_name"`
	Symbol         string       `json:"symbol"`
	StartDate      string       `json:"start_date"`
	EndDate        string       `json:"end_date"`
	InitialCapital float64      `json:"initial_capital"`
	FinalCapital   float64      `json:"final_capital"`
	TradeHistory   []Trade      `json:"trade_history"`
	Metrics        Metrics      `json:"metrics"`
	PriceHistory   []PricePoint `json:"price_history"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Run simulates the template over the supplied daily bars.
func Run(tpl catalog.Template, symbol string, candles []feed.Candle, initialCapital float64) (*Result, error) {
	if len(candles) < 2 {
		return nil, ErrNotEnoughData
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", initialCapital)
	}

	var (
		finalCapital float64
		trades       []Trade
	)
	switch tpl.ID {
	case catalog.CoveredCall:
		finalCapital, trades = simulateCoveredCall(candles, initialCapital)
	case catalog.IronCondor:
		finalCapital, trades = simulateIronCondor(candles, initialCapital)
	default:
		finalCapital, trades = simulateBuyHold(tpl, candles, initialCapital)
	}

	totalReturn := (finalCapital - initialCapital) / initialCapital * 100
	days := len(candles)
	annualized := totalReturn * (365.0 / float64(days))

	metrics := Metrics{
		TotalReturnPct:      totalReturn,
		AnnualizedReturnPct: annualized,
	}
	returns := dailyReturns(candles)
	if sd, err := stats.StandardDeviationSample(stats.Float64Data(returns)); err == nil && sd > 0 {
		metrics.SharpeRatio = (annualized - riskFreeRate) / (sd * math.Sqrt(tradingDaysYear))
	}
	metrics.MaxDrawdownPct = maxDrawdown(returns) * 100

	history := make([]PricePoint, len(candles))
	for i, c := range candles {
		history[i] = PricePoint{Date: c.Date.Format("2006-01-02"), Price: c.Close}
	}

	return &Result{
		ID:             uuid.New().String(),
		StrategyID:     tpl.ID,
		StrategyName:   tpl.Name,
		Symbol:         symbol,
		StartDate:      candles[0].Date.Format("2006-01-02"),
		EndDate:        candles[len(candles)-1].Date.Format("2006-01-02"),
		InitialCapital: initialCapital,
		FinalCapital:   finalCapital,
		TradeHistory:   trades,
		Metrics:        metrics,
		PriceHistory:   history,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// simulateCoveredCall buys as many full shares as capital allows, then
// collects a 2% premium on the position every 30 bars.
func simulateCoveredCall(candles []feed.Candle, capital float64) (float64, []Trade) {
	buyPrice := candles[0].Close
	positionSize := float64(sharesPerLot)
	investment := buyPrice * positionSize
	if investment > capital {
		positionSize = math.Floor(capital / buyPrice)
		investment = buyPrice * positionSize
	}
	capital -= investment

	var trades []Trade
	for i := 1; i < len(candles); i++ {
		if i%condorCycleDays != 0 {
			continue
		}
		premium := candles[i].Close * premiumYield * positionSize
		capital += premium
		trades = append(trades, Trade{
			Date:    candles[i].Date.Format("2006-01-02"),
			Action:  "Sell Call",
			Price:   candles[i].Close,
			Premium: premium,
			Capital: capital + candles[i].Close*positionSize,
		})
	}

	final := capital + candles[len(candles)-1].Close*positionSize
	return final, trades
}

// simulateIronCondor runs 30-bar cycles: small moves collect a 3% credit,
// larger moves take a 5% loss.
func simulateIronCondor(candles []feed.Candle, capital float64) (float64, []Trade) {
	var trades []Trade
	for i := 0; i+condorCycleDays < len(candles); i += condorCycleDays {
		entry := candles[i].Close
		exit := candles[i+condorCycleDays].Close
		changePct := (exit - entry) / entry * 100

		var profit float64
		if math.Abs(changePct) < condorRangePct {
			profit = capital * condorWinRate
		} else {
			profit = -capital * condorLossRate
		}
		capital += profit

		trades = append(trades, Trade{
			Date:       candles[i+condorCycleDays].Date.Format("2006-01-02"),
			Action:     "Iron Condor Cycle",
			EntryPrice: entry,
			ExitPrice:  exit,
			Profit:     profit,
			Capital:    capital,
		})
	}
	return capital, trades
}

// simulateBuyHold is the fallback for the remaining templates: hold for the
// window, with a tilt applied to directional strategies.
func simulateBuyHold(tpl catalog.Template, candles []feed.Candle, capital float64) (float64, []Trade) {
	buyPrice := candles[0].Close
	sellPrice := candles[len(candles)-1].Close
	pnl := capital * (sellPrice - buyPrice) / buyPrice

	switch tpl.ID {
	case catalog.BullCallSpread:
		pnl *= 1.2
	case catalog.BearPutSpread:
		pnl *= 0.8
	}
	final := capital + pnl

	trades := []Trade{
		{
			Date:    candles[0].Date.Format("2006-01-02"),
			Action:  "Entry",
			Price:   buyPrice,
			Capital: capital,
		},
		{
			Date:    candles[len(candles)-1].Date.Format("2006-01-02"),
			Action:  "Exit",
			Price:   sellPrice,
			Capital: final,
		},
	}
	return final, trades
}

func dailyReturns(candles []feed.Candle) []float64 {
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}
	return returns
}

// maxDrawdown returns the worst peak-to-trough decline of the cumulative
// return series as a negative fraction.
func maxDrawdown(returns []float64) float64 {
	cum := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := cum/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}
