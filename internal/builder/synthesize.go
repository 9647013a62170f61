// Package builder expands strategy templates into concrete option and stock
// legs against a live chain, and resolves each leg's execution price.
package builder

import (
	"fmt"
	"math"

	"github.com/jcallahan4/optiondesk/internal/catalog"
	"github.com/jcallahan4/optiondesk/internal/chain"
)

// LegKind distinguishes stock from option legs.
type LegKind string

const (
	// Stock is an underlying share leg.
	Stock LegKind = "stock"
	// Option is an option contract leg.
	Option LegKind = "option"
)

// Action is the side a leg is executed on.
type Action string

const (
	// Buy opens a long leg; it resolves against the ask.
	Buy Action = "buy"
	// Sell opens a short leg; it resolves against the bid.
	Sell Action = "sell"
)

// sharesPerLot is the stock quantity equivalent to one option contract.
const sharesPerLot = 100

// Leg is one component of a multi-leg position. Stock legs never carry
// Strike/Side; option legs always do. An option leg's Price stays 0 and
// Resolved stays false until the pricer finds its quote in the chain.
type Leg struct {
	ID       int        `json:"id"`
	Kind     LegKind    `json:"kind"`
	Action   Action     `json:"action"`
	Quantity int        `json:"quantity"`
	Strike   float64    `json:"strike,omitempty"`
	Side     chain.Side `json:"option_type,omitempty"`
	Price    float64    `json:"price"`
	Resolved bool       `json:"resolved"`
}

// SignedQuantity returns the quantity signed by side: buys positive, sells
// negative. This is the convention the P&L curve service expects.
func (l Leg) SignedQuantity() int {
	if l.Action == Sell {
		return -l.Quantity
	}
	return l.Quantity
}

// roundStrike applies the uniform strike rounding rule: the percentage offset
// is applied to the current price and the result rounded to the nearest whole
// strike. Width offsets are added to an already-rounded sibling afterwards,
// without re-rounding.
func roundStrike(price, pct float64) float64 {
	return math.Round(price * (1 + pct/100))
}

// Synthesize expands a template at the given underlying price into draft
// legs. It is a pure function: no I/O, deterministic for identical inputs.
// An unsupported template id yields an empty leg list and nil error; a
// missing required parameter fails the whole call with no partial output.
func Synthesize(tpl catalog.Template, currentPrice float64) ([]Leg, error) {
	if currentPrice <= 0 {
		return nil, fmt.Errorf("invalid current price %.4f: must be > 0", currentPrice)
	}

	switch tpl.ID {
	case catalog.CoveredCall:
		return coveredCallLegs(tpl, currentPrice)
	case catalog.CashSecuredPut:
		return cashSecuredPutLegs(tpl, currentPrice)
	case catalog.IronCondor:
		return ironCondorLegs(tpl, currentPrice)
	case catalog.BullCallSpread:
		return bullCallSpreadLegs(tpl, currentPrice)
	case catalog.BearPutSpread:
		return bearPutSpreadLegs(tpl, currentPrice)
	case catalog.Straddle:
		return straddleLegs(tpl, currentPrice)
	case catalog.Strangle:
		return strangleLegs(tpl, currentPrice)
	case catalog.ButterflySpread:
		return butterflyLegs(tpl, currentPrice)
	default:
		// Calendar and diagonal spreads need legs across two expirations,
		// which a single-expiration session cannot price. They fall through
		// here together with unknown ids: no legs, no error.
		return nil, nil
	}
}

func stockLeg(action Action, price float64) Leg {
	return Leg{
		Kind:     Stock,
		Action:   action,
		Quantity: sharesPerLot,
		Price:    price,
		Resolved: true,
	}
}

func optionLeg(action Action, side chain.Side, strike float64) Leg {
	return Leg{
		Kind:     Option,
		Action:   action,
		Quantity: 1,
		Strike:   strike,
		Side:     side,
	}
}

func coveredCallLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	pct, err := tpl.Param("option_strike_pct")
	if err != nil {
		return nil, err
	}
	return []Leg{
		stockLeg(Buy, price),
		optionLeg(Sell, chain.Call, roundStrike(price, pct)),
	}, nil
}

func cashSecuredPutLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	pct, err := tpl.Param("option_strike_pct")
	if err != nil {
		return nil, err
	}
	return []Leg{
		optionLeg(Sell, chain.Put, roundStrike(price, pct)),
	}, nil
}

func ironCondorLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	putWingPct, err := tpl.Param("put_wing_otm_pct")
	if err != nil {
		return nil, err
	}
	putWidth, err := tpl.Param("put_spread_width")
	if err != nil {
		return nil, err
	}
	callWingPct, err := tpl.Param("call_wing_otm_pct")
	if err != nil {
		return nil, err
	}
	callWidth, err := tpl.Param("call_spread_width")
	if err != nil {
		return nil, err
	}

	lowerPut := roundStrike(price, -putWingPct)
	upperPut := lowerPut + putWidth
	lowerCall := roundStrike(price, callWingPct)
	upperCall := lowerCall + callWidth

	return []Leg{
		optionLeg(Sell, chain.Put, upperPut),
		optionLeg(Buy, chain.Put, lowerPut),
		optionLeg(Sell, chain.Call, lowerCall),
		optionLeg(Buy, chain.Call, upperCall),
	}, nil
}

func bullCallSpreadLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	pct, err := tpl.Param("lower_strike_pct")
	if err != nil {
		return nil, err
	}
	width, err := tpl.Param("width")
	if err != nil {
		return nil, err
	}

	lower := roundStrike(price, pct)
	return []Leg{
		optionLeg(Buy, chain.Call, lower),
		optionLeg(Sell, chain.Call, lower+width),
	}, nil
}

func bearPutSpreadLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	pct, err := tpl.Param("upper_strike_pct")
	if err != nil {
		return nil, err
	}
	width, err := tpl.Param("width")
	if err != nil {
		return nil, err
	}

	upper := roundStrike(price, pct)
	return []Leg{
		optionLeg(Buy, chain.Put, upper),
		optionLeg(Sell, chain.Put, upper-width),
	}, nil
}

func straddleLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	pct, err := tpl.Param("strike_pct")
	if err != nil {
		return nil, err
	}

	atm := roundStrike(price, pct)
	return []Leg{
		optionLeg(Buy, chain.Call, atm),
		optionLeg(Buy, chain.Put, atm),
	}, nil
}

func strangleLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	callPct, err := tpl.Param("call_strike_pct")
	if err != nil {
		return nil, err
	}
	putPct, err := tpl.Param("put_strike_pct")
	if err != nil {
		return nil, err
	}

	return []Leg{
		optionLeg(Buy, chain.Call, roundStrike(price, callPct)),
		optionLeg(Buy, chain.Put, roundStrike(price, putPct)),
	}, nil
}

func butterflyLegs(tpl catalog.Template, price float64) ([]Leg, error) {
	pct, err := tpl.Param("center_strike_pct")
	if err != nil {
		return nil, err
	}
	width, err := tpl.Param("width")
	if err != nil {
		return nil, err
	}

	center := roundStrike(price, pct)
	body := optionLeg(Sell, chain.Call, center)
	body.Quantity = 2

	return []Leg{
		optionLeg(Buy, chain.Call, center-width),
		body,
		optionLeg(Buy, chain.Call, center+width),
	}, nil
}
