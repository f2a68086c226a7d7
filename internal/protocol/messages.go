package protocol

import (
	"fmt"
	"strings"
)

// Step kinds as they appear on the wire.
const (
	StepMove        = "MOVE"
	StepTurnAround  = "TURN_AROUND"
	StepBuy         = "BUY"
	StepSell        = "SELL"
	StepSwitchState = "SWITCH_STATE"
)

type StepDTO struct {
	Kind       string `json:"kind"`
	Connection int    `json:"connection,omitempty"`
	Good       string `json:"good,omitempty"`
	Amount     int    `json:"amount,omitempty"`
}

// LocationDTO is AtArea when Area is set, otherwise InTransit.
type LocationDTO struct {
	Area       string  `json:"area,omitempty"`
	Connection int     `json:"connection,omitempty"`
	Progress   float64 `json:"progress,omitempty"`
	Backward   bool    `json:"backward,omitempty"`
}

// PlanEvent is written to the plan log, the index and the observer stream.
// PLAN carries the fresh steps; PLAN_FAILED and TRADE_BLOCKED carry a code.
type PlanEvent struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	RunID           string      `json:"run_id"`
	Tick            uint64      `json:"tick"`
	UnitID          string      `json:"unit_id"`
	Strategy        string      `json:"strategy"`
	State           string      `json:"state,omitempty"`
	Location        LocationDTO `json:"location"`
	Steps           []StepDTO   `json:"steps,omitempty"`
	Code            string      `json:"code,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Units           []string `json:"units,omitempty"`
	IncludeFailures bool     `json:"include_failures,omitempty"`
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	MapDigest       string `json:"map_digest,omitempty"`
}

func (e PlanEvent) Validate() error {
	if strings.TrimSpace(e.UnitID) == "" {
		return fmt.Errorf("unit_id must not be empty")
	}
	if e.ProtocolVersion == "" {
		return fmt.Errorf("protocol_version must not be empty")
	}
	if !IsKnownCode(e.Code) {
		return fmt.Errorf("unknown code %q", e.Code)
	}
	switch e.Type {
	case TypePlan:
		if e.Code != "" || e.Error != "" {
			return fmt.Errorf("PLAN must not carry an error")
		}
		if len(e.Steps) == 0 {
			return fmt.Errorf("PLAN must carry steps")
		}
		return validateSteps(e.Steps)
	case TypePlanFailed, TypeTradeBlocked:
		if e.Code == "" {
			return fmt.Errorf("%s must carry a code", e.Type)
		}
		if len(e.Steps) != 0 {
			return fmt.Errorf("%s must not carry steps", e.Type)
		}
		return nil
	}
	return fmt.Errorf("unknown event type %q", e.Type)
}

// validateSteps checks that steps form a sequence a planner could emit:
// a turn-around only ever leads, moves name a connection and trades name a
// good.
func validateSteps(steps []StepDTO) error {
	for i, s := range steps {
		switch s.Kind {
		case StepTurnAround:
			if i != 0 {
				return fmt.Errorf("steps[%d]: %s must be first", i, s.Kind)
			}
		case StepMove:
			if s.Connection <= 0 {
				return fmt.Errorf("steps[%d]: MOVE needs a connection", i)
			}
		case StepBuy, StepSell:
			if strings.TrimSpace(s.Good) == "" {
				return fmt.Errorf("steps[%d]: %s needs a good", i, s.Kind)
			}
			if s.Amount < 0 {
				return fmt.Errorf("steps[%d]: negative amount", i)
			}
		case StepSwitchState:
		default:
			return fmt.Errorf("steps[%d]: unknown kind %q", i, s.Kind)
		}
	}
	return nil
}
