package chain

import (
	"math"
	"testing"
)

func quote(strike float64, side Side) Quote {
	return Quote{
		Strike:     strike,
		Side:       side,
		Bid:        1.00,
		Ask:        1.10,
		Expiration: "2026-09-18",
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     Raw
		wantErr bool
	}{
		{
			name: "valid call",
			raw:  Raw{Strike: 450, Type: "call", Bid: 1.2, Ask: 1.35, Expiration: "2026-09-18"},
		},
		{
			name:    "zero strike",
			raw:     Raw{Strike: 0, Type: "call", Expiration: "2026-09-18"},
			wantErr: true,
		},
		{
			name:    "negative strike",
			raw:     Raw{Strike: -5, Type: "put", Expiration: "2026-09-18"},
			wantErr: true,
		},
		{
			name:    "bad type",
			raw:     Raw{Strike: 450, Type: "warrant", Expiration: "2026-09-18"},
			wantErr: true,
		},
		{
			name:    "bad expiration",
			raw:     Raw{Strike: 450, Type: "call", Expiration: "09/18/2026"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("Normalize(%+v) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeClampsNegatives(t *testing.T) {
	q, err := Normalize(Raw{
		Strike: 100, Type: "put", Bid: -0.5, Ask: -0.1, Last: -1,
		Volume: -10, OpenInterest: -3, Expiration: "2026-09-18",
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if q.Bid != 0 || q.Ask != 0 || q.Last != 0 || q.Volume != 0 || q.OpenInterest != 0 {
		t.Errorf("negative fields not clamped: %+v", q)
	}
}

func TestNormalizeKeepsInvertedSpread(t *testing.T) {
	q, err := Normalize(Raw{Strike: 100, Type: "call", Bid: 2.0, Ask: 1.5, Expiration: "2026-09-18"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if q.Bid != 2.0 || q.Ask != 1.5 {
		t.Errorf("inverted spread was altered: bid=%v ask=%v", q.Bid, q.Ask)
	}
}

func TestBuildMatrixSortedAscendingNoDuplicates(t *testing.T) {
	quotes := []Quote{
		quote(450, Call),
		quote(440, Put),
		quote(445, Call),
		quote(440, Call),
		quote(455, Put),
		quote(445, Put),
	}

	m := BuildMatrix(quotes)
	strikes := m.Strikes()

	if len(strikes) != 4 {
		t.Fatalf("expected 4 strikes, got %d: %v", len(strikes), strikes)
	}
	for i := 1; i < len(strikes); i++ {
		if strikes[i] <= strikes[i-1] {
			t.Errorf("strikes not strictly ascending at %d: %v", i, strikes)
		}
	}
}

func TestBuildMatrixPairing(t *testing.T) {
	quotes := []Quote{
		quote(450, Call),
		quote(440, Put),
		quote(450, Put),
	}

	m := BuildMatrix(quotes)

	entry, ok := m.At(450)
	if !ok {
		t.Fatal("strike 450 missing from matrix")
	}
	if entry.Call == nil || entry.Put == nil {
		t.Errorf("expected both sides at 450, got call=%v put=%v", entry.Call, entry.Put)
	}

	entry, ok = m.At(440)
	if !ok {
		t.Fatal("strike 440 missing from matrix")
	}
	if entry.Call != nil {
		t.Error("expected no call at 440")
	}
	if entry.Put == nil {
		t.Error("expected put at 440")
	}
}

func TestBuildMatrixDuplicateLastWins(t *testing.T) {
	first := quote(450, Call)
	first.Bid = 1.00
	second := quote(450, Call)
	second.Bid = 2.00

	m := BuildMatrix([]Quote{first, second})

	q, ok := m.Lookup(450, Call)
	if !ok {
		t.Fatal("lookup failed for 450 call")
	}
	if q.Bid != 2.00 {
		t.Errorf("expected later duplicate to win, got bid=%v", q.Bid)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 strike, got %d", m.Len())
	}
}

func TestBuildMatrixSkipsInvalidSide(t *testing.T) {
	bad := quote(455, Side("straddle"))
	m := BuildMatrix([]Quote{quote(450, Call), bad})

	if m.Len() != 1 {
		t.Fatalf("expected 1 strike, got %d: %v", m.Len(), m.Strikes())
	}
	if _, ok := m.At(455); ok {
		t.Error("invalid-side quote should not create an entry")
	}
	for _, entry := range m.Entries() {
		if entry.Call == nil && entry.Put == nil {
			t.Errorf("entry at %v has neither side populated", entry.Strike)
		}
	}
}

func TestBuildMatrixEmptyInput(t *testing.T) {
	m := BuildMatrix(nil)
	if m.Len() != 0 {
		t.Errorf("expected empty matrix, got %d strikes", m.Len())
	}
	if _, ok := m.Lookup(100, Call); ok {
		t.Error("lookup on empty matrix should miss")
	}
}

func TestMatrixCoverage(t *testing.T) {
	quotes := []Quote{
		quote(440, Call), quote(440, Put),
		quote(445, Call),
		quote(450, Put),
	}

	m := BuildMatrix(quotes)

	// Every input quote appears in exactly one (strike, side) slot.
	for _, q := range quotes {
		got, ok := m.Lookup(q.Strike, q.Side)
		if !ok {
			t.Errorf("quote %v %s missing from matrix", q.Strike, q.Side)
			continue
		}
		if got.Strike != q.Strike || got.Side != q.Side {
			t.Errorf("slot mismatch: want %v %s, got %v %s", q.Strike, q.Side, got.Strike, got.Side)
		}
	}
}

func TestLookupEpsilon(t *testing.T) {
	m := BuildMatrix([]Quote{quote(450, Call)})

	if _, ok := m.Lookup(450.00000001, Call); !ok {
		t.Error("epsilon lookup should match 450")
	}
	if _, ok := m.Lookup(450.5, Call); ok {
		t.Error("lookup should not match a strike half a dollar away")
	}
}

func TestUniqueExpirations(t *testing.T) {
	quotes := []Quote{
		{Strike: 100, Side: Call, Expiration: "2026-09-18"},
		{Strike: 100, Side: Put, Expiration: "2026-09-18"},
		{Strike: 100, Side: Call, Expiration: "2026-10-16"},
		{Strike: 105, Side: Call, Expiration: "2026-09-18"},
		{Strike: 100, Side: Call, Expiration: "2026-08-21"},
	}

	got := UniqueExpirations(quotes)
	want := []string{"2026-09-18", "2026-10-16", "2026-08-21"}

	if len(got) != len(want) {
		t.Fatalf("expected %d expirations, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expiration[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUniqueExpirationsEmpty(t *testing.T) {
	if got := UniqueExpirations(nil); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestNearestToPriceMonotonic(t *testing.T) {
	quotes := []Quote{
		quote(430, Call), quote(435, Call), quote(440, Call),
		quote(445, Call), quote(450, Call), quote(455, Call),
		quote(460, Call), quote(440, Put), quote(445, Put),
	}

	got := NearestToPrice(quotes, Call, 446, 5)

	if len(got) != 5 {
		t.Fatalf("expected 5 quotes, got %d", len(got))
	}
	prev := -1.0
	for _, q := range got {
		if q.Side != Call {
			t.Errorf("expected only calls, got %s@%v", q.Side, q.Strike)
		}
		dist := math.Abs(q.Strike - 446)
		if dist < prev {
			t.Errorf("distances not non-decreasing: %v after %v", dist, prev)
		}
		prev = dist
	}
}

func TestNearestToPriceStableTies(t *testing.T) {
	a := quote(440, Put)
	a.Bid = 1.0
	b := quote(450, Put)
	b.Bid = 2.0

	// Both strikes are 5 away from 445; input order must be preserved.
	got := NearestToPrice([]Quote{a, b}, Put, 445, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(got))
	}
	if got[0].Strike != 440 || got[1].Strike != 450 {
		t.Errorf("tie order not stable: %v, %v", got[0].Strike, got[1].Strike)
	}
}

func TestNearestToPriceDefaultsAndTruncation(t *testing.T) {
	var quotes []Quote
	for s := 400.0; s <= 500; s += 5 {
		quotes = append(quotes, quote(s, Call))
	}

	if got := NearestToPrice(quotes, Call, 450, 0); len(got) != DefaultNearestCount {
		t.Errorf("n<=0 should default to %d, got %d", DefaultNearestCount, len(got))
	}
	if got := NearestToPrice(quotes[:2], Call, 450, 5); len(got) != 2 {
		t.Errorf("expected truncation to available quotes, got %d", len(got))
	}
	if got := NearestToPrice(nil, Call, 450, 5); len(got) != 0 {
		t.Errorf("empty input should yield empty output, got %d", len(got))
	}
}
