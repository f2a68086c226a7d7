package driver

import (
	"caravan.ai/internal/protocol"
	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/plan"
	"caravan.ai/internal/sim/unit"
)

func (d *Driver) event(typ string, u *unit.Unit, steps []plan.Step, code, msg string) protocol.PlanEvent {
	return protocol.PlanEvent{
		Type:            typ,
		ProtocolVersion: protocol.Version,
		RunID:           d.cfg.RunID,
		Tick:            d.tick,
		UnitID:          u.ID,
		Strategy:        string(u.Strategy.Kind),
		State:           u.Strategy.State(),
		Location:        LocationDTO(u.Location),
		Steps:           StepDTOs(steps),
		Code:            code,
		Error:           msg,
	}
}

func LocationDTO(l geo.Location) protocol.LocationDTO {
	if l.IsAtArea() {
		return protocol.LocationDTO{Area: l.Area.String()}
	}
	return protocol.LocationDTO{
		Connection: int(l.Connection),
		Progress:   l.Progress,
		Backward:   l.Backward,
	}
}

func StepDTOs(steps []plan.Step) []protocol.StepDTO {
	if len(steps) == 0 {
		return nil
	}
	out := make([]protocol.StepDTO, 0, len(steps))
	for _, s := range steps {
		out = append(out, protocol.StepDTO{
			Kind:       string(s.Kind),
			Connection: int(s.Connection),
			Good:       s.Good,
			Amount:     s.Amount,
		})
	}
	return out
}
