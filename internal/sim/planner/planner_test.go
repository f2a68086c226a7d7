package planner

import (
	"errors"
	"reflect"
	"testing"

	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/pathfind"
	"caravan.ai/internal/sim/plan"
	"caravan.ai/internal/sim/strategy"
	"caravan.ai/internal/sim/unit"
)

var (
	areaA = geo.AreaID{Kind: "CITY", Number: 1}
	areaB = geo.AreaID{Kind: "CITY", Number: 2}
	areaZ = geo.AreaID{Kind: "PORT", Number: 3}
)

// A -1- B -2- Z
func tradeMap(t *testing.T) *geo.Graph {
	t.Helper()
	g, err := geo.NewGraph(
		[]geo.Area{{ID: areaA}, {ID: areaB}, {ID: areaZ}},
		[]geo.Connection{
			{ID: 1, A: areaA, Z: areaB, Distance: 8 * geo.FixedScale, Width: 2},
			{ID: 2, A: areaB, Z: areaZ, Distance: 6 * geo.FixedScale, Width: 1},
		},
	)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func shuttleUnit(state strategy.TradeState, loc geo.Location) *unit.Unit {
	s := strategy.Shuttle(strategy.ShuttleTrade{
		GoodA: "SALT", GoodZ: "CLOTH",
		AreaA: areaA, AreaZ: areaZ,
		State: state,
	})
	return unit.New("u1", loc, s)
}

func TestShuttle_TradesAtTargetArea(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	u := shuttleUnit(strategy.BuyA, geo.AtArea(areaA))

	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	want := []plan.Step{plan.Sell("CLOTH", 0), plan.Buy("SALT", 0), plan.SwitchState()}
	if !reflect.DeepEqual(p.Steps(), want) {
		t.Fatalf("steps=%v want %v", p.Steps(), want)
	}
	if u.Cargo.Count("CLOTH") != 0 {
		t.Fatalf("planning must not touch cargo")
	}
}

func TestShuttle_RoutesThenTradesAcrossCalls(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	u := shuttleUnit(strategy.BuyZ, geo.AtArea(areaA))
	u.Cargo.Add("SALT", 10)

	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	want := []plan.Step{plan.Move(1), plan.Move(2)}
	if !reflect.DeepEqual(p.Steps(), want) {
		t.Fatalf("steps=%v want %v", p.Steps(), want)
	}

	u.Location = geo.AtArea(areaZ)
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan at destination: %v", err)
	}
	want = append(want, plan.Sell("SALT", 0), plan.Buy("CLOTH", 0), plan.SwitchState())
	if !reflect.DeepEqual(p.Steps(), want) {
		t.Fatalf("steps=%v want %v", p.Steps(), want)
	}
	if p.Len() != 5 {
		t.Fatalf("expected 5 steps, got %d", p.Len())
	}
}

func TestShuttle_InTransitNeverCountsAsArrived(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	// Progress 1 on connection 2 is logically at Z, but still in transit.
	u := shuttleUnit(strategy.BuyZ, geo.InTransit(2, 1))
	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	if !reflect.DeepEqual(p.Steps(), []plan.Step{plan.Move(2)}) {
		t.Fatalf("steps=%v", p.Steps())
	}
}

func TestShuttle_ReversesMidEdge(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	u := shuttleUnit(strategy.BuyA, geo.InTransit(1, 0.25))
	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	want := []plan.Step{plan.TurnAround(), plan.Move(1)}
	if !reflect.DeepEqual(p.Steps(), want) {
		t.Fatalf("steps=%v want %v", p.Steps(), want)
	}
}

func TestShuttle_AmountsFromOptions(t *testing.T) {
	reg := Default(tradeMap(t), Options{BuyAmount: 4, SellAmount: 2})
	u := shuttleUnit(strategy.BuyA, geo.AtArea(areaA))
	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	if p.At(0).Amount != 2 || p.At(1).Amount != 4 {
		t.Fatalf("amounts mismatch: %v", p.Steps())
	}
}

func TestShuttle_UnreachableIsNotFound(t *testing.T) {
	g, err := geo.NewGraph([]geo.Area{{ID: areaA}, {ID: areaZ}}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	reg := Default(g, Options{})
	u := shuttleUnit(strategy.BuyZ, geo.AtArea(areaA))
	p := plan.New()
	err = reg.MakePlan(u, u.Strategy, p)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, pathfind.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !p.Empty() {
		t.Fatalf("plan should be untouched, got %v", p.Steps())
	}
}

func TestShuttle_MissingPayload(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	u := unit.New("u1", geo.AtArea(areaA), strategy.Strategy{Kind: strategy.KindShuttleTrade})
	if err := reg.MakePlan(u, u.Strategy, plan.New()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMakePlan_UnregisteredKind(t *testing.T) {
	reg := NewRegistry()
	u := shuttleUnit(strategy.BuyA, geo.AtArea(areaA))
	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !p.Empty() {
		t.Fatalf("plan must stay empty")
	}

	p.Append(plan.TurnAround())
	if err := reg.MakePlan(u, strategy.Strategy{Kind: "PILGRIMAGE"}, p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("plan must be unchanged, len=%d", p.Len())
	}
}

func TestRegister_NilHandler(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	orig := HandlerFunc(func(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
		calls++
		return nil
	})
	if err := reg.Register(strategy.KindShuttleTrade, orig); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := reg.Register(strategy.KindShuttleTrade, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	var nilFunc HandlerFunc
	if err := reg.Register(strategy.KindShuttleTrade, nilFunc); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil func, got %v", err)
	}
	var nilShuttle *ShuttleTrade
	if err := reg.Register(strategy.KindShuttleTrade, nilShuttle); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil *ShuttleTrade, got %v", err)
	}

	u := shuttleUnit(strategy.BuyA, geo.AtArea(areaA))
	if err := reg.MakePlan(u, u.Strategy, plan.New()); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	if calls != 1 {
		t.Fatalf("prior handler should still be registered, calls=%d", calls)
	}
}

func TestRegister_LastWins(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	replaced := false
	err := reg.Register(strategy.KindShuttleTrade, HandlerFunc(func(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
		replaced = true
		p.Append(plan.TurnAround())
		return nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	u := shuttleUnit(strategy.BuyA, geo.AtArea(areaA))
	p := plan.New()
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	if !replaced || p.Len() != 1 {
		t.Fatalf("expected replacement handler to run, steps=%v", p.Steps())
	}
}

func TestMakePlan_AppendsAfterExistingSteps(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	u := shuttleUnit(strategy.BuyA, geo.AtArea(areaA))
	p := plan.New()
	p.Append(plan.TurnAround())
	if err := reg.MakePlan(u, u.Strategy, p); err != nil {
		t.Fatalf("MakePlan: %v", err)
	}
	if p.Len() != 4 || p.At(0).Kind != plan.StepTurnAround {
		t.Fatalf("prior content must stay first: %v", p.Steps())
	}
}

func TestExtensionHandlersAreNoOps(t *testing.T) {
	reg := Default(tradeMap(t), Options{})
	for _, s := range []strategy.Strategy{
		strategy.SevenYearsArmy(nil),
		strategy.SevenYearsMerchant(map[string]string{"route": "north"}),
	} {
		u := unit.New("u9", geo.AtArea(areaB), s)
		p := plan.New()
		p.Append(plan.Move(1))
		if err := reg.MakePlan(u, s, p); err != nil {
			t.Fatalf("%s: MakePlan: %v", s.Kind, err)
		}
		if err := reg.MakePlan(u, s, p); err != nil {
			t.Fatalf("%s: second MakePlan: %v", s.Kind, err)
		}
		if !reflect.DeepEqual(p.Steps(), []plan.Step{plan.Move(1)}) {
			t.Fatalf("%s: plan changed: %v", s.Kind, p.Steps())
		}
	}
}

func TestKinds(t *testing.T) {
	got := Default(tradeMap(t), Options{}).Kinds()
	want := []strategy.Kind{strategy.KindSevenYearsArmy, strategy.KindSevenYearsMerchant, strategy.KindShuttleTrade}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Kinds()=%v want %v", got, want)
	}
}
