// Package exposure aggregates dealer gamma and delta exposure by strike from
// feed-supplied greeks. It never computes greeks itself.
package exposure

import (
	"sort"

	"github.com/jcallahan4/optiondesk/internal/chain"
)

// contractMultiplier is the share count one option contract controls.
const contractMultiplier = 100

// Record carries the per-contract inputs for exposure aggregation.
type Record struct {
	Strike       float64
	Side         chain.Side
	Gamma        float64
	Delta        float64
	OpenInterest int64
}

// Profile is an exposure aggregate keyed by ascending strike.
type Profile struct {
	Strikes []float64 `json:"strikes"`
	Values  []float64 `json:"values"`
	Total   float64   `json:"total"`
}

// GEX aggregates gamma exposure per strike:
// gamma * open interest * 100, positive for calls and negative for puts.
func GEX(records []Record) Profile {
	return aggregate(records, func(r Record) float64 {
		sign := 1.0
		if r.Side == chain.Put {
			sign = -1.0
		}
		return r.Gamma * float64(r.OpenInterest) * contractMultiplier * sign
	})
}

// DEX aggregates delta exposure per strike:
// delta * open interest * 100. Put deltas arrive negative from the feed, so
// no sign flip is applied.
func DEX(records []Record) Profile {
	return aggregate(records, func(r Record) float64 {
		return r.Delta * float64(r.OpenInterest) * contractMultiplier
	})
}

func aggregate(records []Record, value func(Record) float64) Profile {
	byStrike := make(map[float64]float64, len(records))
	for _, r := range records {
		byStrike[r.Strike] += value(r)
	}

	strikes := make([]float64, 0, len(byStrike))
	for strike := range byStrike {
		strikes = append(strikes, strike)
	}
	sort.Float64s(strikes)

	p := Profile{
		Strikes: strikes,
		Values:  make([]float64, len(strikes)),
	}
	for i, strike := range strikes {
		p.Values[i] = byStrike[strike]
		p.Total += byStrike[strike]
	}
	return p
}
