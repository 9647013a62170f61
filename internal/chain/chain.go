// Package chain normalizes raw option quotes and aggregates them into a
// strike-indexed call/put matrix with nearest-to-money selection helpers.
package chain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// StrikeMatchEpsilon defines the precision tolerance for matching strike prices
// when an exact map hit fails due to float noise.
const StrikeMatchEpsilon = 1e-4

// DefaultNearestCount is the nearest-to-money selection size when the caller
// passes n <= 0.
const DefaultNearestCount = 5

// Side identifies which half of the chain a contract belongs to.
type Side string

const (
	// Call represents a call option contract.
	Call Side = "call"
	// Put represents a put option contract.
	Put Side = "put"
)

// Valid returns true if the Side is one of the defined constants.
func (s Side) Valid() bool {
	return s == Call || s == Put
}

// Quote is one tradable option contract from a single chain snapshot.
// Contracts are uniquely identified by (Strike, Side, Expiration) within
// one snapshot; quotes are discarded wholesale on the next fetch.
type Quote struct {
	Strike       float64 `json:"strike"`
	Side         Side    `json:"option_type"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	Expiration   string  `json:"expiration_date"`
}

// Raw is one quote record as delivered by the chain feed, before shaping.
type Raw struct {
	Strike       float64
	Type         string
	Bid          float64
	Ask          float64
	Last         float64
	Volume       int64
	OpenInterest int64
	Expiration   string
}

// Normalize validates and shapes a raw feed record into a Quote.
// Strike must be positive, the type must be "call" or "put", and the
// expiration must be an ISO date. Negative prices and sizes are clamped to
// zero; an inverted bid/ask is tolerated as-is.
func Normalize(raw Raw) (Quote, error) {
	if raw.Strike <= 0 {
		return Quote{}, fmt.Errorf("invalid strike %.4f: must be > 0", raw.Strike)
	}
	side := Side(raw.Type)
	if !side.Valid() {
		return Quote{}, fmt.Errorf("invalid option type %q: must be 'call' or 'put'", raw.Type)
	}
	if _, err := time.Parse("2006-01-02", raw.Expiration); err != nil {
		return Quote{}, fmt.Errorf("invalid expiration date %q: %w", raw.Expiration, err)
	}

	return Quote{
		Strike:       raw.Strike,
		Side:         side,
		Bid:          math.Max(0, raw.Bid),
		Ask:          math.Max(0, raw.Ask),
		Last:         math.Max(0, raw.Last),
		Volume:       maxInt64(0, raw.Volume),
		OpenInterest: maxInt64(0, raw.OpenInterest),
		Expiration:   raw.Expiration,
	}, nil
}

// NormalizeAll shapes a full snapshot, failing on the first invalid record so
// a partially usable chain never reaches the aggregator.
func NormalizeAll(raws []Raw) ([]Quote, error) {
	quotes := make([]Quote, 0, len(raws))
	for i, raw := range raws {
		q, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("quote %d: %w", i, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Entry pairs the call and put quotes at one strike. Either side may be nil,
// but never both.
type Entry struct {
	Strike float64 `json:"strike"`
	Call   *Quote  `json:"call,omitempty"`
	Put    *Quote  `json:"put,omitempty"`
}

// Matrix is the strike-indexed aggregation of one expiration's quotes.
// Strikes are strictly ascending with no duplicates.
type Matrix struct {
	strikes  []float64
	byStrike map[float64]*Entry
}

// BuildMatrix partitions quotes by side and pairs them per strike. A later
// quote for the same (strike, side) overwrites the earlier one: last
// occurrence wins. Quotes with an unrecognized side are skipped so every
// entry keeps at least one populated side. Empty input yields an empty
// matrix, never an error.
func BuildMatrix(quotes []Quote) *Matrix {
	m := &Matrix{byStrike: make(map[float64]*Entry, len(quotes))}

	for i := range quotes {
		q := quotes[i]
		if !q.Side.Valid() {
			continue
		}
		entry, ok := m.byStrike[q.Strike]
		if !ok {
			entry = &Entry{Strike: q.Strike}
			m.byStrike[q.Strike] = entry
		}
		switch q.Side {
		case Call:
			entry.Call = &q
		case Put:
			entry.Put = &q
		}
	}

	m.strikes = make([]float64, 0, len(m.byStrike))
	for strike := range m.byStrike {
		m.strikes = append(m.strikes, strike)
	}
	sort.Float64s(m.strikes)

	return m
}

// Strikes returns the ascending strike sequence.
func (m *Matrix) Strikes() []float64 {
	out := make([]float64, len(m.strikes))
	copy(out, m.strikes)
	return out
}

// Len returns the number of distinct strikes in the matrix.
func (m *Matrix) Len() int {
	return len(m.strikes)
}

// At returns the call/put pairing for an exact strike.
func (m *Matrix) At(strike float64) (Entry, bool) {
	entry, ok := m.byStrike[strike]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Entries returns all pairings in ascending strike order.
func (m *Matrix) Entries() []Entry {
	out := make([]Entry, 0, len(m.strikes))
	for _, strike := range m.strikes {
		out = append(out, *m.byStrike[strike])
	}
	return out
}

// Lookup finds the quote for (strike, side). An exact map hit is tried first,
// then an epsilon scan to absorb float noise in computed strikes.
func (m *Matrix) Lookup(strike float64, side Side) (*Quote, bool) {
	if entry, ok := m.byStrike[strike]; ok {
		if q := entry.side(side); q != nil {
			return q, true
		}
		return nil, false
	}
	for _, s := range m.strikes {
		if math.Abs(s-strike) <= StrikeMatchEpsilon {
			if q := m.byStrike[s].side(side); q != nil {
				return q, true
			}
			return nil, false
		}
	}
	return nil, false
}

func (e *Entry) side(s Side) *Quote {
	if s == Call {
		return e.Call
	}
	return e.Put
}

// UniqueExpirations returns the distinct expiration dates across the full
// quote list, deduplicated by first occurrence with input order preserved.
func UniqueExpirations(quotes []Quote) []string {
	seen := make(map[string]struct{}, len(quotes))
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		if _, ok := seen[q.Expiration]; ok {
			continue
		}
		seen[q.Expiration] = struct{}{}
		out = append(out, q.Expiration)
	}
	return out
}

// NearestToPrice returns the n quotes of the given side closest to refPrice,
// ordered by ascending |strike - refPrice|. The sort is stable, so ties keep
// their original order.
func NearestToPrice(quotes []Quote, side Side, refPrice float64, n int) []Quote {
	if n <= 0 {
		n = DefaultNearestCount
	}

	filtered := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Side == side {
			filtered = append(filtered, q)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return math.Abs(filtered[i].Strike-refPrice) < math.Abs(filtered[j].Strike-refPrice)
	})

	if len(filtered) > n {
		filtered = filtered[:n]
	}
	return filtered
}
