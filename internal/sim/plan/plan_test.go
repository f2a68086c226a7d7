package plan

import "testing"

func TestPlanAppendOnly(t *testing.T) {
	p := New()
	if !p.Empty() {
		t.Fatalf("new plan should be empty")
	}
	p.Append(Move(3))
	p.Append(Sell("SALT", 0), Buy("CLOTH", 5), SwitchState())
	if p.Len() != 4 {
		t.Fatalf("Len()=%d want 4", p.Len())
	}
	if p.At(0).Kind != StepMove || p.At(0).Connection != 3 {
		t.Fatalf("first step mismatch: %+v", p.At(0))
	}

	steps := p.Steps()
	steps[0] = TurnAround()
	if p.At(0).Kind != StepMove {
		t.Fatalf("Steps must return a copy")
	}

	p.Reset()
	if !p.Empty() {
		t.Fatalf("Reset should empty the plan")
	}
}

func TestStepString(t *testing.T) {
	cases := map[string]Step{
		"MOVE(4)":      Move(4),
		"TURN_AROUND":  TurnAround(),
		"BUY(CLOTH,5)": Buy("CLOTH", 5),
		"SELL(SALT)":   Sell("SALT", 0),
		"SWITCH_STATE": SwitchState(),
	}
	for want, s := range cases {
		if got := s.String(); got != want {
			t.Fatalf("String()=%q want %q", got, want)
		}
	}
}
