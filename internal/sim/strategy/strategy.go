package strategy

import (
	"fmt"

	"caravan.ai/internal/sim/geo"
)

type Kind string

const (
	KindShuttleTrade       Kind = "SHUTTLE_TRADE"
	KindSevenYearsArmy     Kind = "SEVEN_YEARS_ARMY"
	KindSevenYearsMerchant Kind = "SEVEN_YEARS_MERCHANT"
)

type TradeState string

const (
	BuyA TradeState = "BUY_A"
	BuyZ TradeState = "BUY_Z"
)

func (s TradeState) Other() TradeState {
	if s == BuyA {
		return BuyZ
	}
	return BuyA
}

func (s TradeState) Valid() bool { return s == BuyA || s == BuyZ }

// ShuttleTrade buys GoodA at AreaA and GoodZ at AreaZ, forever alternating.
type ShuttleTrade struct {
	GoodA string
	GoodZ string
	AreaA geo.AreaID
	AreaZ geo.AreaID
	State TradeState
}

// Target is the area bound to the current state.
func (s ShuttleTrade) Target() geo.AreaID {
	if s.State == BuyZ {
		return s.AreaZ
	}
	return s.AreaA
}

// BuyGood is the good bought in the current state.
func (s ShuttleTrade) BuyGood() string {
	if s.State == BuyZ {
		return s.GoodZ
	}
	return s.GoodA
}

// SellGood is the other state's good, sold before buying.
func (s ShuttleTrade) SellGood() string {
	if s.State == BuyZ {
		return s.GoodA
	}
	return s.GoodZ
}

// Army and Merchant carry free-form parameters only; their planners are
// extension points.
type Army struct {
	Params map[string]string
}

type Merchant struct {
	Params map[string]string
}

// Strategy is a tagged union: Kind selects which payload is meaningful.
type Strategy struct {
	Kind Kind

	Shuttle  *ShuttleTrade
	Army     *Army
	Merchant *Merchant
}

func Shuttle(st ShuttleTrade) Strategy {
	return Strategy{Kind: KindShuttleTrade, Shuttle: &st}
}

func SevenYearsArmy(params map[string]string) Strategy {
	return Strategy{Kind: KindSevenYearsArmy, Army: &Army{Params: params}}
}

func SevenYearsMerchant(params map[string]string) Strategy {
	return Strategy{Kind: KindSevenYearsMerchant, Merchant: &Merchant{Params: params}}
}

// State reports the shuttle state, or "" for kinds without one.
func (s Strategy) State() string {
	if s.Kind == KindShuttleTrade && s.Shuttle != nil {
		return string(s.Shuttle.State)
	}
	return ""
}

// SwitchState flips the shuttle state in place. Other kinds are unaffected.
func (s Strategy) SwitchState() bool {
	if s.Kind != KindShuttleTrade || s.Shuttle == nil {
		return false
	}
	s.Shuttle.State = s.Shuttle.State.Other()
	return true
}

func (s Strategy) Validate() error {
	switch s.Kind {
	case KindShuttleTrade:
		st := s.Shuttle
		if st == nil {
			return fmt.Errorf("%s: missing payload", s.Kind)
		}
		if st.GoodA == "" || st.GoodZ == "" {
			return fmt.Errorf("%s: goods must not be empty", s.Kind)
		}
		if st.AreaA.IsZero() || st.AreaZ.IsZero() {
			return fmt.Errorf("%s: areas must not be empty", s.Kind)
		}
		if !st.State.Valid() {
			return fmt.Errorf("%s: bad state %q", s.Kind, st.State)
		}
	case KindSevenYearsArmy, KindSevenYearsMerchant:
	case "":
		return fmt.Errorf("strategy kind must not be empty")
	}
	return nil
}
