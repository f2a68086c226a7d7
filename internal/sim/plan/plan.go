package plan

import (
	"fmt"

	"caravan.ai/internal/sim/geo"
)

type StepKind string

const (
	StepMove        StepKind = "MOVE"
	StepTurnAround  StepKind = "TURN_AROUND"
	StepBuy         StepKind = "BUY"
	StepSell        StepKind = "SELL"
	StepSwitchState StepKind = "SWITCH_STATE"
)

type Step struct {
	Kind StepKind

	// MOVE
	Connection geo.ConnectionID
	// BUY/SELL; Amount 0 means as much as the executor can trade.
	Good   string
	Amount int
}

func Move(c geo.ConnectionID) Step { return Step{Kind: StepMove, Connection: c} }
func TurnAround() Step             { return Step{Kind: StepTurnAround} }
func SwitchState() Step            { return Step{Kind: StepSwitchState} }

func Buy(good string, amount int) Step {
	return Step{Kind: StepBuy, Good: good, Amount: amount}
}

func Sell(good string, amount int) Step {
	return Step{Kind: StepSell, Good: good, Amount: amount}
}

func (s Step) String() string {
	switch s.Kind {
	case StepMove:
		return fmt.Sprintf("MOVE(%d)", s.Connection)
	case StepBuy, StepSell:
		if s.Amount > 0 {
			return fmt.Sprintf("%s(%s,%d)", s.Kind, s.Good, s.Amount)
		}
		return fmt.Sprintf("%s(%s)", s.Kind, s.Good)
	}
	return string(s.Kind)
}

// Plan is an append-only, ordered list of steps. Order is execution order.
type Plan struct {
	steps []Step
}

func New() *Plan { return &Plan{} }

func (p *Plan) Append(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

func (p *Plan) Len() int    { return len(p.steps) }
func (p *Plan) Empty() bool { return len(p.steps) == 0 }

func (p *Plan) At(i int) Step { return p.steps[i] }

// Steps returns a copy of the steps.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Reset discards all steps, e.g. after a failed planning call.
func (p *Plan) Reset() { p.steps = p.steps[:0] }
