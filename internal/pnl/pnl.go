// Package pnl projects a priced leg list into its profit/loss at expiration
// across a price range around the underlying.
package pnl

import (
	"fmt"
	"math"
)

const (
	// curvePoints is the number of samples in the P&L curve.
	curvePoints = 50
	// contractMultiplier is the share count one option contract controls.
	contractMultiplier = 100
	// DefaultRangePct is the price range around the underlying when the
	// caller does not specify one.
	DefaultRangePct = 20
)

// Leg is one component of the position in the signed-quantity form this
// service expects: buys carry positive quantity, sells negative. Option legs
// are counted in contracts, stock legs in shares-per-lot units of 100.
type Leg struct {
	Type       string  `json:"type"` // "stock" | "option"
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Strike     float64 `json:"strike,omitempty"`
	OptionType string  `json:"option_type,omitempty"` // "call" | "put"
}

// Point is one sample of the P&L curve.
type Point struct {
	Price float64 `json:"price"`
	PnL   float64 `json:"pnl"`
}

// Result summarizes the payoff of a position held to expiration.
type Result struct {
	UnderlyingPrice float64   `json:"underlying_price"`
	Curve           []Point   `json:"pnl_curve"`
	MaxProfit       float64   `json:"max_profit"`
	MaxLoss         float64   `json:"max_loss"`
	InitialCost     float64   `json:"initial_cost"`
	BreakevenPoints []float64 `json:"breakeven_points"`
}

// intrinsic returns an option's value at expiration.
func intrinsic(optionType string, strike, underlying float64) float64 {
	switch optionType {
	case "call":
		return math.Max(0, underlying-strike)
	case "put":
		return math.Max(0, strike-underlying)
	default:
		return 0
	}
}

// legCost is the upfront cost (debit positive, credit negative) of one leg.
func legCost(leg Leg) float64 {
	if leg.Type == "stock" {
		return leg.Price * leg.Quantity
	}
	return leg.Price * leg.Quantity * contractMultiplier
}

// legValueAt is one leg's value at expiration with the underlying at price.
func legValueAt(leg Leg, price float64) float64 {
	if leg.Type == "stock" {
		return price * leg.Quantity
	}
	return intrinsic(leg.OptionType, leg.Strike, price) * leg.Quantity * contractMultiplier
}

// Compute samples the position's expiration P&L across
// underlying*(1±rangePct/100) and derives max profit, max loss, the initial
// cost, and the breakeven crossings (linearly interpolated).
func Compute(underlyingPrice float64, legs []Leg, rangePct float64) (*Result, error) {
	if underlyingPrice <= 0 {
		return nil, fmt.Errorf("invalid underlying price %.4f: must be > 0", underlyingPrice)
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("no legs to evaluate")
	}
	if rangePct <= 0 {
		rangePct = DefaultRangePct
	}

	var initialCost float64
	for _, leg := range legs {
		initialCost += legCost(leg)
	}

	minPrice := underlyingPrice * (1 - rangePct/100)
	maxPrice := underlyingPrice * (1 + rangePct/100)
	step := (maxPrice - minPrice) / float64(curvePoints-1)

	curve := make([]Point, curvePoints)
	for i := 0; i < curvePoints; i++ {
		price := minPrice + step*float64(i)
		total := -initialCost
		for _, leg := range legs {
			total += legValueAt(leg, price)
		}
		curve[i] = Point{Price: price, PnL: total}
	}

	result := &Result{
		UnderlyingPrice: underlyingPrice,
		Curve:           curve,
		MaxProfit:       curve[0].PnL,
		MaxLoss:         curve[0].PnL,
		InitialCost:     initialCost,
	}
	for _, p := range curve[1:] {
		result.MaxProfit = math.Max(result.MaxProfit, p.PnL)
		result.MaxLoss = math.Min(result.MaxLoss, p.PnL)
	}
	result.BreakevenPoints = breakevens(curve)

	return result, nil
}

// breakevens finds the zero crossings of the curve by linear interpolation
// between adjacent samples.
func breakevens(curve []Point) []float64 {
	points := make([]float64, 0, 2)
	for i := 1; i < len(curve); i++ {
		prev, cur := curve[i-1], curve[i]
		crosses := (prev.PnL <= 0 && cur.PnL >= 0) || (prev.PnL >= 0 && cur.PnL <= 0)
		if !crosses || cur.PnL == prev.PnL {
			continue
		}
		price := prev.Price + (cur.Price-prev.Price)*(-prev.PnL)/(cur.PnL-prev.PnL)
		points = append(points, price)
	}
	return points
}
