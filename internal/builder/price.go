package builder

import "github.com/jcallahan4/optiondesk/internal/chain"

// PriceLeg resolves a single leg's execution price from the aggregated
// chain. Stock legs pass through untouched. Option legs look up
// (strike, side): buys resolve to the ask, sells to the bid. A leg whose
// strike has no matching quote keeps its current price (typically 0) and
// stays unresolved so it cannot be mistaken for a free option.
// The matrix is never mutated.
func PriceLeg(leg Leg, m *chain.Matrix) Leg {
	if leg.Kind != Option || m == nil {
		return leg
	}

	quote, ok := m.Lookup(leg.Strike, leg.Side)
	if !ok {
		leg.Resolved = false
		return leg
	}

	if leg.Action == Buy {
		leg.Price = quote.Ask
	} else {
		leg.Price = quote.Bid
	}
	leg.Resolved = true
	return leg
}

// PriceLegs resolves every leg in the batch against the same matrix.
// Unresolvable legs never block the others.
func PriceLegs(legs []Leg, m *chain.Matrix) []Leg {
	out := make([]Leg, len(legs))
	for i, leg := range legs {
		out[i] = PriceLeg(leg, m)
	}
	return out
}
