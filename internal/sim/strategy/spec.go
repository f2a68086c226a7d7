package strategy

import (
	"fmt"
	"strings"

	"caravan.ai/internal/sim/geo"
)

// Spec is the YAML form of a strategy, as written in units.yaml.
type Spec struct {
	Kind string `yaml:"kind"`

	GoodA string `yaml:"good_a,omitempty"`
	GoodZ string `yaml:"good_z,omitempty"`
	AreaA string `yaml:"area_a,omitempty"`
	AreaZ string `yaml:"area_z,omitempty"`
	State string `yaml:"state,omitempty"`

	Params map[string]string `yaml:"params,omitempty"`
}

func (sp Spec) Build() (Strategy, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(sp.Kind)))
	var s Strategy
	switch kind {
	case KindShuttleTrade:
		a, ok := geo.ParseAreaID(sp.AreaA)
		if !ok {
			return Strategy{}, fmt.Errorf("%s: bad area_a %q", kind, sp.AreaA)
		}
		z, ok := geo.ParseAreaID(sp.AreaZ)
		if !ok {
			return Strategy{}, fmt.Errorf("%s: bad area_z %q", kind, sp.AreaZ)
		}
		state := TradeState(strings.ToUpper(strings.TrimSpace(sp.State)))
		if state == "" {
			state = BuyA
		}
		s = Shuttle(ShuttleTrade{
			GoodA: strings.TrimSpace(sp.GoodA),
			GoodZ: strings.TrimSpace(sp.GoodZ),
			AreaA: a,
			AreaZ: z,
			State: state,
		})
	case KindSevenYearsArmy:
		s = SevenYearsArmy(sp.Params)
	case KindSevenYearsMerchant:
		s = SevenYearsMerchant(sp.Params)
	default:
		s = Strategy{Kind: kind}
	}
	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// SpecOf is the inverse of Spec.Build.
func SpecOf(s Strategy) Spec {
	sp := Spec{Kind: string(s.Kind)}
	switch {
	case s.Shuttle != nil:
		sp.GoodA = s.Shuttle.GoodA
		sp.GoodZ = s.Shuttle.GoodZ
		sp.AreaA = s.Shuttle.AreaA.String()
		sp.AreaZ = s.Shuttle.AreaZ.String()
		sp.State = string(s.Shuttle.State)
	case s.Army != nil:
		sp.Params = s.Army.Params
	case s.Merchant != nil:
		sp.Params = s.Merchant.Params
	}
	return sp
}
