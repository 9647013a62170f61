package mock

import (
	"context"
	"testing"
	"time"

	"github.com/jcallahan4/optiondesk/internal/chain"
	"github.com/jcallahan4/optiondesk/internal/feed"
)

func TestGetOptionChain_InvalidExpiration(t *testing.T) {
	provider := NewProvider()

	_, err := provider.GetOptionChain(context.Background(), "SPY", "invalid-date", true)
	if err == nil {
		t.Error("Expected error for invalid expiration format, got nil")
	}

	// Past expirations should still produce a chain
	pastDate := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	options, err := provider.GetOptionChain(context.Background(), "SPY", pastDate, true)
	if err != nil {
		t.Errorf("Unexpected error for past expiration: %v", err)
	}
	if len(options) == 0 {
		t.Error("Expected some options even for past expiration")
	}
}

func TestGetOptionChain_Normalizes(t *testing.T) {
	provider := NewProvider()
	exp := time.Now().AddDate(0, 0, 30).Format("2006-01-02")

	options, err := provider.GetOptionChain(context.Background(), "SPY", exp, true)
	if err != nil {
		t.Fatalf("GetOptionChain: %v", err)
	}

	quotes, err := feed.Normalize(options)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	matrix := chain.BuildMatrix(quotes)
	if matrix.Len() == 0 {
		t.Fatal("empty matrix from synthetic chain")
	}
	// Every strike should carry both sides
	for _, entry := range matrix.Entries() {
		if entry.Call == nil || entry.Put == nil {
			t.Errorf("strike %v missing a side", entry.Strike)
		}
	}
}

func TestGetQuoteMoves(t *testing.T) {
	provider := NewProvider()
	q1, err := provider.GetQuote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if q1.Last <= 0 {
		t.Errorf("last = %v, want positive", q1.Last)
	}
	if q1.Bid >= q1.Ask {
		t.Errorf("bid %v >= ask %v", q1.Bid, q1.Ask)
	}
}

func TestGetExpirations(t *testing.T) {
	provider := NewProvider()
	dates, err := provider.GetExpirations(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetExpirations: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("len = %d, want 4", len(dates))
	}
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			t.Errorf("bad date %q: %v", d, err)
		}
	}
}

func TestGetHistory(t *testing.T) {
	provider := NewProvider()
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // a Monday
	end := start.AddDate(0, 0, 11)

	candles, err := provider.GetHistory(context.Background(), "SPY", "daily", start, end)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	// Two full trading weeks
	if len(candles) != 10 {
		t.Errorf("len = %d, want 10 weekday bars", len(candles))
	}
	for _, c := range candles {
		if c.Date.Weekday() == time.Saturday || c.Date.Weekday() == time.Sunday {
			t.Errorf("weekend bar at %s", c.Date)
		}
		if c.High < c.Low {
			t.Errorf("high %v < low %v", c.High, c.Low)
		}
	}

	if _, err := provider.GetHistory(context.Background(), "SPY", "daily", end, start); err == nil {
		t.Error("expected error for inverted window")
	}
}
