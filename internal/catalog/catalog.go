// Package catalog holds the static registry of options strategy templates.
package catalog

import "fmt"

// Template ids. The builder switches over this closed set; adding a template
// means adding a constant, a catalog entry, and a leg-generation case.
const (
	CoveredCall     = "covered-call"
	CashSecuredPut  = "cash-secured-put"
	IronCondor      = "iron-condor"
	BullCallSpread  = "bull-call-spread"
	BearPutSpread   = "bear-put-spread"
	CalendarSpread  = "calendar-spread"
	ButterflySpread = "butterfly-spread"
	Straddle        = "straddle"
	Strangle        = "strangle"
	DiagonalSpread  = "diagonal-spread"
)

// Template is an immutable catalog entry describing one strategy and its
// named numeric parameters.
type Template struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Params      map[string]float64 `json:"parameters"`
}

// Param reads a named parameter. A missing parameter is a construction
// error for the strategy being built, not a recoverable condition.
func (t Template) Param(name string) (float64, error) {
	v, ok := t.Params[name]
	if !ok {
		return 0, fmt.Errorf("template %q: missing parameter %q", t.ID, name)
	}
	return v, nil
}

var templates = []Template{
	{
		ID:          CoveredCall,
		Name:        "Covered Call",
		Description: "A strategy where you own the underlying stock and sell call options against it to generate income.",
		Params: map[string]float64{
			"stock_allocation":   100,
			"option_strike_pct":  5,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          CashSecuredPut,
		Name:        "Cash-Secured Put",
		Description: "A strategy where you sell a put option and set aside enough cash to buy the stock if the option is exercised.",
		Params: map[string]float64{
			"cash_allocation":    100,
			"option_strike_pct":  -5,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          IronCondor,
		Name:        "Iron Condor",
		Description: "A neutral options strategy that profits from low volatility and time decay.",
		Params: map[string]float64{
			"call_spread_width":  10,
			"put_spread_width":   10,
			"call_wing_otm_pct":  10,
			"put_wing_otm_pct":   10,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          BullCallSpread,
		Name:        "Bull Call Spread",
		Description: "A bullish, defined risk strategy that profits from a rise in the underlying asset's price.",
		Params: map[string]float64{
			"width":              5,
			"lower_strike_pct":   0,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          BearPutSpread,
		Name:        "Bear Put Spread",
		Description: "A bearish, defined risk strategy that profits from a fall in the underlying asset's price.",
		Params: map[string]float64{
			"width":              5,
			"upper_strike_pct":   0,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          CalendarSpread,
		Name:        "Calendar Spread",
		Description: "A strategy that involves selling short-term options and buying longer-term options at the same strike price.",
		Params: map[string]float64{
			"strike_pct":               0,
			"short_days_to_expiration": 30,
			"long_days_to_expiration":  60,
		},
	},
	{
		ID:          ButterflySpread,
		Name:        "Butterfly Spread",
		Description: "A neutral strategy with limited risk and profit potential, created with three strikes.",
		Params: map[string]float64{
			"width":              5,
			"center_strike_pct":  0,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          Straddle,
		Name:        "Straddle",
		Description: "Buying calls and puts at the same strike price to profit from high volatility.",
		Params: map[string]float64{
			"strike_pct":         0,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          Strangle,
		Name:        "Strangle",
		Description: "Buying OTM calls and puts to profit from high volatility at a lower cost than a straddle.",
		Params: map[string]float64{
			"call_strike_pct":    5,
			"put_strike_pct":     -5,
			"days_to_expiration": 30,
		},
	},
	{
		ID:          DiagonalSpread,
		Name:        "Diagonal Spread",
		Description: "A strategy similar to a calendar spread but with different strike prices.",
		Params: map[string]float64{
			"strike_diff_pct":          5,
			"short_days_to_expiration": 30,
			"long_days_to_expiration":  60,
		},
	},
}

var byID = func() map[string]Template {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	return m
}()

// All returns every template in catalog order.
func All() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// Lookup finds a template by id.
func Lookup(id string) (Template, bool) {
	t, ok := byID[id]
	return t, ok
}
