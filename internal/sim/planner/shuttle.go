package planner

import (
	"errors"
	"fmt"

	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/pathfind"
	"caravan.ai/internal/sim/plan"
	"caravan.ai/internal/sim/strategy"
	"caravan.ai/internal/sim/unit"
)

// ShuttleTrade plans the two-leg trading cycle. Away from the state's area it
// only routes there; at the area it sells the other leg's good, buys this
// leg's good and switches state. Trade steps are emitted even when the unit
// holds nothing to sell; funds and stock are the executor's concern.
type ShuttleTrade struct {
	Graph     *geo.Graph
	Cost      geo.CostFunc
	Heuristic geo.HeuristicFunc

	BuyAmount  int
	SellAmount int
}

func (h *ShuttleTrade) AddStepsToPlan(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
	if s.Kind != strategy.KindShuttleTrade || s.Shuttle == nil {
		return fmt.Errorf("%w: shuttle planner got %q", ErrInvalidArgument, s.Kind)
	}
	st := *s.Shuttle
	target := st.Target()

	if !u.Location.IsAt(target) {
		if _, err := pathfind.Route(h.Graph, u.Location, h.Cost, h.Heuristic, target, p); err != nil {
			if errors.Is(err, pathfind.ErrNotFound) {
				return fmt.Errorf("%w: shuttle %s: %w", ErrNotFound, u.ID, err)
			}
			return fmt.Errorf("shuttle %s: %w", u.ID, err)
		}
		return nil
	}

	p.Append(
		plan.Sell(st.SellGood(), h.SellAmount),
		plan.Buy(st.BuyGood(), h.BuyAmount),
		plan.SwitchState(),
	)
	return nil
}

// SevenYearsArmy is an extension point: it satisfies the planner contract and
// adds nothing.
type SevenYearsArmy struct{}

func (SevenYearsArmy) AddStepsToPlan(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
	return nil
}

// SevenYearsMerchant is an extension point like SevenYearsArmy.
type SevenYearsMerchant struct{}

func (SevenYearsMerchant) AddStepsToPlan(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
	return nil
}

type Options struct {
	Cost       geo.CostFunc
	Heuristic  geo.HeuristicFunc
	BuyAmount  int
	SellAmount int
}

// Default returns a registry with every built-in strategy registered.
func Default(g *geo.Graph, opts Options) *Registry {
	r := NewRegistry()
	_ = r.Register(strategy.KindShuttleTrade, &ShuttleTrade{
		Graph:      g,
		Cost:       opts.Cost,
		Heuristic:  opts.Heuristic,
		BuyAmount:  opts.BuyAmount,
		SellAmount: opts.SellAmount,
	})
	_ = r.Register(strategy.KindSevenYearsArmy, SevenYearsArmy{})
	_ = r.Register(strategy.KindSevenYearsMerchant, SevenYearsMerchant{})
	return r
}
