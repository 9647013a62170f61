package builder

import (
	"testing"

	"github.com/jcallahan4/optiondesk/internal/catalog"
	"github.com/jcallahan4/optiondesk/internal/chain"
)

func sessionChain() []chain.Quote {
	var quotes []chain.Quote
	for strike := 90.0; strike <= 120; strike += 5 {
		quotes = append(quotes,
			chain.Quote{Strike: strike, Side: chain.Call, Bid: 1.00, Ask: 1.10, Expiration: "2026-09-18"},
			chain.Quote{Strike: strike, Side: chain.Put, Bid: 0.90, Ask: 1.05, Expiration: "2026-09-18"},
		)
	}
	return quotes
}

func newTestSession(t *testing.T, templateID string) *Session {
	t.Helper()
	s := NewSession("SPY")
	if err := s.SetChain("2026-09-18", sessionChain()); err != nil {
		t.Fatalf("SetChain: %v", err)
	}
	if err := s.SetPrice(100); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	tpl, ok := catalog.Lookup(templateID)
	if !ok {
		t.Fatalf("template %q not found", templateID)
	}
	if err := s.SelectTemplate(tpl); err != nil {
		t.Fatalf("SelectTemplate: %v", err)
	}
	return s
}

func TestSessionSynthesizesAndPrices(t *testing.T) {
	s := newTestSession(t, catalog.BullCallSpread) // lower 0%, width 5

	legs := s.Legs()
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if legs[0].Strike != 100 || legs[0].Price != 1.10 {
		t.Errorf("long leg = %+v, want buy @100 priced at ask 1.10", legs[0])
	}
	if legs[1].Strike != 105 || legs[1].Price != 1.00 {
		t.Errorf("short leg = %+v, want sell @105 priced at bid 1.00", legs[1])
	}
	if ids := s.Unresolved(); len(ids) != 0 {
		t.Errorf("all strikes are on the chain, unresolved = %v", ids)
	}
}

func TestSessionResetDiscardsManualEdits(t *testing.T) {
	s := newTestSession(t, catalog.BullCallSpread)

	legs := s.Legs()
	if err := s.SetLegQuantity(legs[0].ID, 7); err != nil {
		t.Fatalf("SetLegQuantity: %v", err)
	}

	// A price change triggers full re-synthesis and the edit is gone.
	if err := s.SetPrice(101); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	for _, leg := range s.Legs() {
		if leg.Quantity != 1 {
			t.Errorf("manual quantity survived re-synthesis: %+v", leg)
		}
	}
}

func TestSessionLegIDsMonotonic(t *testing.T) {
	s := newTestSession(t, catalog.Straddle)

	first := s.Legs()
	if err := s.SetPrice(102); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	second := s.Legs()

	for _, newLeg := range second {
		for _, oldLeg := range first {
			if newLeg.ID == oldLeg.ID {
				t.Errorf("leg id %d reused across re-synthesis", newLeg.ID)
			}
		}
	}
}

func TestSessionStrikeEditRepricesSingleLeg(t *testing.T) {
	s := newTestSession(t, catalog.BullCallSpread)
	legs := s.Legs()

	if err := s.SetLegStrike(legs[0].ID, 110); err != nil {
		t.Fatalf("SetLegStrike: %v", err)
	}

	after := s.Legs()
	if after[0].Strike != 110 || after[0].Price != 1.10 {
		t.Errorf("edited leg = %+v, want @110 repriced to 1.10", after[0])
	}
	if after[1] != legs[1] {
		t.Errorf("other leg was touched: %+v vs %+v", after[1], legs[1])
	}
}

func TestSessionStrikeEditOffChain(t *testing.T) {
	s := newTestSession(t, catalog.Straddle)
	legs := s.Legs()

	if err := s.SetLegStrike(legs[0].ID, 237); err != nil {
		t.Fatalf("SetLegStrike: %v", err)
	}

	after := s.Legs()
	if after[0].Price != 0 || after[0].Resolved {
		t.Errorf("off-chain strike must leave the leg unresolved at 0: %+v", after[0])
	}
	if ids := s.Unresolved(); len(ids) != 1 || ids[0] != after[0].ID {
		t.Errorf("Unresolved() = %v, want [%d]", ids, after[0].ID)
	}
}

func TestSessionSideEditReprices(t *testing.T) {
	s := newTestSession(t, catalog.CashSecuredPut) // sell put @95
	legs := s.Legs()
	if legs[0].Price != 0.90 {
		t.Fatalf("put leg price = %v, want bid 0.90", legs[0].Price)
	}

	if err := s.SetLegSide(legs[0].ID, chain.Call); err != nil {
		t.Fatalf("SetLegSide: %v", err)
	}
	after := s.Legs()
	if after[0].Side != chain.Call || after[0].Price != 1.00 {
		t.Errorf("leg = %+v, want sell call repriced to bid 1.00", after[0])
	}
}

func TestSessionActionEditReprices(t *testing.T) {
	s := newTestSession(t, catalog.CashSecuredPut)
	legs := s.Legs()

	if err := s.SetLegAction(legs[0].ID, Buy); err != nil {
		t.Fatalf("SetLegAction: %v", err)
	}
	after := s.Legs()
	if after[0].Price != 1.05 {
		t.Errorf("flipped leg price = %v, want ask 1.05", after[0].Price)
	}
}

func TestSessionPriceOverride(t *testing.T) {
	s := newTestSession(t, catalog.CashSecuredPut)
	legs := s.Legs()

	if err := s.OverrideLegPrice(legs[0].ID, 0.42); err != nil {
		t.Fatalf("OverrideLegPrice: %v", err)
	}
	after := s.Legs()
	if after[0].Price != 0.42 || !after[0].Resolved {
		t.Errorf("override not applied: %+v", after[0])
	}
}

func TestSessionRejectsMixedExpirationChain(t *testing.T) {
	s := newTestSession(t, catalog.BullCallSpread)
	before := s.Legs()

	mixed := append(sessionChain(),
		chain.Quote{Strike: 100, Side: chain.Call, Bid: 2.00, Ask: 2.10, Expiration: "2026-10-16"})
	if err := s.SetChain("2026-09-18", mixed); err == nil {
		t.Fatal("expected error for a snapshot carrying a second expiration")
	}

	// The previous snapshot keeps pricing the legs.
	after := s.Legs()
	if len(after) != len(before) {
		t.Fatalf("legs changed after rejected snapshot: %d vs %d", len(after), len(before))
	}
	if s.Expiration() != "2026-09-18" {
		t.Errorf("expiration = %q, want previous snapshot's", s.Expiration())
	}
}

func TestSessionSynthesisErrorKeepsPreviousLegs(t *testing.T) {
	s := newTestSession(t, catalog.BullCallSpread)
	before := s.Legs()

	broken := catalog.Template{ID: catalog.IronCondor, Name: "Iron Condor", Params: map[string]float64{}}
	if err := s.SelectTemplate(broken); err == nil {
		t.Fatal("expected synthesis error for missing parameters")
	}

	after := s.Legs()
	if len(after) != len(before) {
		t.Fatalf("previous legs not preserved: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("leg %d changed after failed synthesis: %+v vs %+v", i, after[i], before[i])
		}
	}
}

func TestSessionUnknownLegID(t *testing.T) {
	s := newTestSession(t, catalog.Straddle)
	if err := s.SetLegQuantity(999, 2); err == nil {
		t.Error("editing a nonexistent leg should error")
	}
}

func TestSessionStockLegGuards(t *testing.T) {
	s := newTestSession(t, catalog.CoveredCall)
	legs := s.Legs()

	var stockID int
	for _, leg := range legs {
		if leg.Kind == Stock {
			stockID = leg.ID
		}
	}
	if err := s.SetLegStrike(stockID, 100); err == nil {
		t.Error("setting a strike on a stock leg should error")
	}
	if err := s.SetLegSide(stockID, chain.Call); err == nil {
		t.Error("setting an option type on a stock leg should error")
	}
}

func TestSessionPnLLegsSignedQuantities(t *testing.T) {
	s := newTestSession(t, catalog.IronCondor)

	legs := s.PnLLegs()
	if len(legs) != 4 {
		t.Fatalf("expected 4 legs, got %d", len(legs))
	}
	wantSigns := []float64{-1, 1, -1, 1} // sell put, buy put, sell call, buy call
	for i, leg := range legs {
		if leg.Quantity != wantSigns[i] {
			t.Errorf("leg %d quantity = %v, want %v", i, leg.Quantity, wantSigns[i])
		}
		if leg.Type != "option" {
			t.Errorf("leg %d type = %q", i, leg.Type)
		}
	}
}

func TestSessionUnsupportedTemplateClearsLegs(t *testing.T) {
	s := newTestSession(t, catalog.Straddle)
	if len(s.Legs()) == 0 {
		t.Fatal("straddle should produce legs")
	}

	tpl, _ := catalog.Lookup(catalog.CalendarSpread)
	if err := s.SelectTemplate(tpl); err != nil {
		t.Fatalf("SelectTemplate: %v", err)
	}
	if got := s.Legs(); len(got) != 0 {
		t.Errorf("unsupported template should yield no legs, got %v", got)
	}
}
