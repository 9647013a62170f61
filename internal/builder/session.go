package builder

import (
	"fmt"

	"github.com/jcallahan4/optiondesk/internal/catalog"
	"github.com/jcallahan4/optiondesk/internal/chain"
	"github.com/jcallahan4/optiondesk/internal/pnl"
)

// Session is the explicit builder state for one symbol: the selected
// template, the current underlying price, the chain snapshot the legs were
// priced against, and the legs themselves. All selection state lives here
// rather than in package globals, so every recomputation is a function of
// the session's own inputs.
//
// Sessions are not safe for concurrent use; each caller owns its session.
type Session struct {
	symbol     string
	expiration string
	price      float64
	tpl        catalog.Template
	hasTpl     bool
	matrix     *chain.Matrix
	legs       []Leg
	nextID     int
}

// NewSession creates an empty builder session for a symbol.
func NewSession(symbol string) *Session {
	return &Session{symbol: symbol, nextID: 1}
}

// Symbol returns the session's underlying symbol.
func (s *Session) Symbol() string { return s.symbol }

// Expiration returns the expiration of the current chain snapshot.
func (s *Session) Expiration() string { return s.expiration }

// Price returns the current underlying price.
func (s *Session) Price() float64 { return s.price }

// Legs returns a copy of the current leg list.
func (s *Session) Legs() []Leg {
	out := make([]Leg, len(s.legs))
	copy(out, s.legs)
	return out
}

// SetChain installs a fresh chain snapshot and re-synthesizes, so the
// matrix used for pricing is always the one the legs were built against.
// Every quote must carry the snapshot's expiration; a mixed snapshot would
// price legs against contracts the session does not represent.
func (s *Session) SetChain(expiration string, quotes []chain.Quote) error {
	for _, exp := range chain.UniqueExpirations(quotes) {
		if exp != expiration {
			return fmt.Errorf("chain snapshot for %s contains expiration %s", expiration, exp)
		}
	}
	s.expiration = expiration
	s.matrix = chain.BuildMatrix(quotes)
	return s.resynthesize()
}

// SetPrice updates the underlying price and re-synthesizes.
func (s *Session) SetPrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("invalid price %.4f: must be > 0", price)
	}
	s.price = price
	return s.resynthesize()
}

// SelectTemplate switches the active strategy and re-synthesizes.
func (s *Session) SelectTemplate(tpl catalog.Template) error {
	s.tpl = tpl
	s.hasTpl = true
	return s.resynthesize()
}

// resynthesize rebuilds the full leg list from the active template and
// price, discarding any manual edits. This is a deliberate reset policy:
// a template or price change invalidates the previous draft wholesale.
// On a synthesis error the previous leg list is left intact.
func (s *Session) resynthesize() error {
	if !s.hasTpl || s.price <= 0 {
		return nil
	}

	legs, err := Synthesize(s.tpl, s.price)
	if err != nil {
		return fmt.Errorf("synthesizing %q: %w", s.tpl.ID, err)
	}

	for i := range legs {
		legs[i].ID = s.nextID
		s.nextID++
	}
	s.legs = PriceLegs(legs, s.matrix)
	return nil
}

func (s *Session) legByID(id int) (*Leg, error) {
	for i := range s.legs {
		if s.legs[i].ID == id {
			return &s.legs[i], nil
		}
	}
	return nil, fmt.Errorf("no leg with id %d", id)
}

// SetLegAction flips a leg's side and re-prices that leg only.
func (s *Session) SetLegAction(id int, action Action) error {
	leg, err := s.legByID(id)
	if err != nil {
		return err
	}
	if action != Buy && action != Sell {
		return fmt.Errorf("invalid action %q", action)
	}
	leg.Action = action
	*leg = PriceLeg(*leg, s.matrix)
	return nil
}

// SetLegQuantity updates a leg's quantity. Quantity edits do not touch the
// resolved price.
func (s *Session) SetLegQuantity(id, quantity int) error {
	leg, err := s.legByID(id)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d: must be > 0", quantity)
	}
	leg.Quantity = quantity
	return nil
}

// SetLegStrike moves an option leg to a new strike and re-prices that leg
// only; the other legs are untouched.
func (s *Session) SetLegStrike(id int, strike float64) error {
	leg, err := s.legByID(id)
	if err != nil {
		return err
	}
	if leg.Kind != Option {
		return fmt.Errorf("leg %d is a stock leg and has no strike", id)
	}
	if strike <= 0 {
		return fmt.Errorf("invalid strike %.4f: must be > 0", strike)
	}
	leg.Strike = strike
	leg.Price = 0
	*leg = PriceLeg(*leg, s.matrix)
	return nil
}

// SetLegSide switches an option leg between call and put and re-prices it.
func (s *Session) SetLegSide(id int, side chain.Side) error {
	leg, err := s.legByID(id)
	if err != nil {
		return err
	}
	if leg.Kind != Option {
		return fmt.Errorf("leg %d is a stock leg and has no option type", id)
	}
	if !side.Valid() {
		return fmt.Errorf("invalid option type %q", side)
	}
	leg.Side = side
	leg.Price = 0
	*leg = PriceLeg(*leg, s.matrix)
	return nil
}

// OverrideLegPrice sets a manual execution price on a leg. Overridden legs
// count as resolved; the next re-synthesis discards the override.
func (s *Session) OverrideLegPrice(id int, price float64) error {
	leg, err := s.legByID(id)
	if err != nil {
		return err
	}
	if price < 0 {
		return fmt.Errorf("invalid price %.4f: must be >= 0", price)
	}
	leg.Price = price
	leg.Resolved = true
	return nil
}

// Unresolved reports the ids of option legs whose strikes found no quote in
// the chain. These need a manual strike selection before submission.
func (s *Session) Unresolved() []int {
	var ids []int
	for _, leg := range s.legs {
		if leg.Kind == Option && !leg.Resolved {
			ids = append(ids, leg.ID)
		}
	}
	return ids
}

// PnLLegs projects the leg list into the signed-quantity form the P&L curve
// service expects: buys positive, sells negative.
func (s *Session) PnLLegs() []pnl.Leg {
	out := make([]pnl.Leg, 0, len(s.legs))
	for _, leg := range s.legs {
		p := pnl.Leg{
			Quantity: float64(leg.SignedQuantity()),
			Price:    leg.Price,
		}
		if leg.Kind == Stock {
			p.Type = "stock"
		} else {
			p.Type = "option"
			p.Strike = leg.Strike
			p.OptionType = string(leg.Side)
		}
		out = append(out, p)
	}
	return out
}
