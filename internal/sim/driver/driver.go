// Package driver runs units through their plans one tick at a time.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"caravan.ai/internal/persistence/snapshot"
	"caravan.ai/internal/protocol"
	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/market"
	"caravan.ai/internal/sim/plan"
	"caravan.ai/internal/sim/planner"
	"caravan.ai/internal/sim/unit"
)

type Config struct {
	RunID string
	// UnitSpeed is world distance covered per tick.
	UnitSpeed float64
	// TickRateHz paces Run. 0 runs ticks back to back.
	TickRateHz int
}

// Sink receives every plan, failure and blocked trade the driver produces.
type Sink interface {
	RecordPlan(ev protocol.PlanEvent) error
}

type Stats struct {
	Ticks    uint64
	Plans    int
	Failures int
	Blocked  int
	Moves    int
	Trades   int
	Switches int
}

type Driver struct {
	cfg    Config
	graph  *geo.Graph
	reg    *planner.Registry
	market market.Market
	units  []*unit.Unit
	queues map[string][]plan.Step
	sinks  []Sink
	logger *log.Logger

	tick      uint64
	stats     Stats
	published atomic.Pointer[Stats]

	snapEvery int
	snapFn    func(snapshot.SnapshotV1) error
}

func New(cfg Config, g *geo.Graph, reg *planner.Registry, m market.Market, units []*unit.Unit, sinks []Sink, logger *log.Logger) (*Driver, error) {
	if g == nil || reg == nil {
		return nil, fmt.Errorf("driver needs a graph and a registry")
	}
	if cfg.UnitSpeed <= 0 {
		return nil, fmt.Errorf("unit speed must be > 0")
	}
	if m == nil {
		m = &market.Table{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[driver] ", log.LstdFlags|log.Lmicroseconds)
	}
	us := append([]*unit.Unit(nil), units...)
	unit.SortByID(us)
	return &Driver{
		cfg:    cfg,
		graph:  g,
		reg:    reg,
		market: m,
		units:  us,
		queues: map[string][]plan.Step{},
		sinks:  sinks,
		logger: logger,
	}, nil
}

func (d *Driver) Tick() uint64 { return d.tick }

// Stats returns the counters as of the last completed tick. Safe to call
// while Run is going.
func (d *Driver) Stats() Stats {
	if st := d.published.Load(); st != nil {
		return *st
	}
	return Stats{}
}

// Units returns the driven units in tick order.
func (d *Driver) Units() []*unit.Unit { return append([]*unit.Unit(nil), d.units...) }

// Pending returns a copy of the steps still queued for unit id.
func (d *Driver) Pending(id string) []plan.Step {
	return append([]plan.Step(nil), d.queues[id]...)
}

// Run steps until ticks have elapsed (forever when ticks <= 0) or ctx ends.
func (d *Driver) Run(ctx context.Context, ticks int) error {
	var pace <-chan time.Time
	if d.cfg.TickRateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(d.cfg.TickRateHz))
		defer ticker.Stop()
		pace = ticker.C
	}
	for n := 0; ticks <= 0 || n < ticks; n++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		}
		if err := d.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step plans for every idle unit, then executes one step per unit.
func (d *Driver) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, u := range d.units {
		q := d.queues[u.ID]
		if len(q) == 0 {
			p := plan.New()
			if err := d.reg.MakePlan(u, u.Strategy, p); err != nil {
				d.stats.Failures++
				d.logger.Printf("tick=%d unit=%s plan failed: %v", d.tick, u.ID, err)
				d.emit(d.event(protocol.TypePlanFailed, u, nil, CodeOf(err), err.Error()))
				continue
			}
			if p.Empty() {
				continue
			}
			q = p.Steps()
			d.stats.Plans++
			d.emit(d.event(protocol.TypePlan, u, q, "", ""))
		}
		d.queues[u.ID] = d.execute(u, q)
	}
	d.tick++
	d.stats.Ticks = d.tick
	st := d.stats
	d.published.Store(&st)
	d.maybeSnapshot()
	return nil
}

// execute runs the head of q for u and returns what is left to do.
func (d *Driver) execute(u *unit.Unit, q []plan.Step) []plan.Step {
	s := q[0]
	switch s.Kind {
	case plan.StepMove:
		done, err := d.move(u, s.Connection)
		if err != nil {
			d.abort(u, protocol.ErrInvalidArgument, err)
			return nil
		}
		d.stats.Moves++
		if !done {
			return q
		}
	case plan.StepTurnAround:
		u.Location = u.Location.Reversed()
	case plan.StepSell:
		if !u.Location.IsAtArea() {
			d.abort(u, protocol.ErrInvalidArgument, fmt.Errorf("sell while in transit"))
			return nil
		}
		if quote, ok := d.market.Quote(u.Location.Area, s.Good); ok {
			n := u.Cargo.Remove(s.Good, s.Amount)
			u.Coins += n * quote.Sell
			if n > 0 {
				d.stats.Trades++
			}
		}
	case plan.StepBuy:
		if !u.Location.IsAtArea() {
			d.abort(u, protocol.ErrInvalidArgument, fmt.Errorf("buy while in transit"))
			return nil
		}
		quote, ok := d.market.Quote(u.Location.Area, s.Good)
		n := 0
		if ok && quote.Buy > 0 {
			n = u.Coins / quote.Buy
			if s.Amount > 0 && s.Amount < n {
				n = s.Amount
			}
		}
		if n == 0 {
			d.stats.Blocked++
			d.logger.Printf("tick=%d unit=%s buy %s blocked at %s", d.tick, u.ID, s.Good, u.Location.Area)
			d.emit(d.event(protocol.TypeTradeBlocked, u, nil, protocol.ErrBlocked, fmt.Sprintf("cannot buy %s", s.Good)))
			return nil
		}
		u.Coins -= n * quote.Buy
		u.Cargo.Add(s.Good, n)
		d.stats.Trades++
	case plan.StepSwitchState:
		if u.Strategy.SwitchState() {
			d.stats.Switches++
		}
	default:
		d.abort(u, protocol.ErrInvalidArgument, fmt.Errorf("unknown step %q", s.Kind))
		return nil
	}
	return q[1:]
}

// move advances u along c and reports whether it arrived at the far end.
func (d *Driver) move(u *unit.Unit, c geo.ConnectionID) (bool, error) {
	conn, ok := d.graph.Connection(c)
	if !ok {
		return false, fmt.Errorf("unknown connection %d", c)
	}
	loc := u.Location
	switch {
	case loc.IsAtArea():
		switch loc.Area {
		case conn.A:
			loc = geo.InTransit(c, 0)
		case conn.Z:
			loc = geo.InTransitBackward(c, 1)
		default:
			return false, fmt.Errorf("connection %d does not leave %s", c, loc.Area)
		}
	case loc.Connection != c:
		return false, fmt.Errorf("move along %d while on %d", c, loc.Connection)
	}

	step := 1.0
	if dist := conn.Distance.Float(); dist > 0 {
		step = d.cfg.UnitSpeed / dist
	}
	if loc.Backward {
		loc.Progress -= step
		if loc.Progress <= 0 {
			u.Location = geo.AtArea(conn.A)
			return true, nil
		}
	} else {
		loc.Progress += step
		if loc.Progress >= 1 {
			u.Location = geo.AtArea(conn.Z)
			return true, nil
		}
	}
	u.Location = loc
	return false, nil
}

func (d *Driver) abort(u *unit.Unit, code string, err error) {
	d.stats.Failures++
	d.logger.Printf("tick=%d unit=%s plan aborted: %v", d.tick, u.ID, err)
	d.emit(d.event(protocol.TypePlanFailed, u, nil, code, err.Error()))
}

func (d *Driver) emit(ev protocol.PlanEvent) {
	for _, s := range d.sinks {
		if err := s.RecordPlan(ev); err != nil {
			d.logger.Printf("tick=%d unit=%s sink: %v", ev.Tick, ev.UnitID, err)
		}
	}
}

// CodeOf maps a planning error to a protocol error code.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, planner.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, planner.ErrInvalidArgument):
		return protocol.ErrInvalidArgument
	}
	return protocol.ErrInternal
}
