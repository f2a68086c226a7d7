package driver

import (
	"fmt"

	"caravan.ai/internal/persistence/snapshot"
	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/plan"
	"caravan.ai/internal/sim/strategy"
	"caravan.ai/internal/sim/unit"
)

// SetSnapshotter makes Step call fn with the driver state every n ticks.
// n <= 0 or a nil fn disables it.
func (d *Driver) SetSnapshotter(n int, fn func(snapshot.SnapshotV1) error) {
	d.snapEvery = n
	d.snapFn = fn
}

func (d *Driver) maybeSnapshot() {
	if d.snapFn == nil || d.snapEvery <= 0 || d.tick%uint64(d.snapEvery) != 0 {
		return
	}
	if err := d.snapFn(d.Snapshot()); err != nil {
		d.logger.Printf("tick=%d snapshot: %v", d.tick, err)
	}
}

func (d *Driver) Snapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, RunID: d.cfg.RunID, Tick: d.tick},
		MapDigest: d.graph.Digest,
		UnitSpeed: d.cfg.UnitSpeed,
		Units:     make([]snapshot.UnitV1, 0, len(d.units)),
	}
	for _, u := range d.units {
		cargo := make(map[string]int, len(u.Cargo))
		for g, n := range u.Cargo {
			cargo[g] = n
		}
		sp := strategy.SpecOf(u.Strategy)
		uv := snapshot.UnitV1{
			ID:    u.ID,
			Coins: u.Coins,
			Cargo: cargo,
			Strategy: snapshot.StrategyV1{
				Kind: sp.Kind, GoodA: sp.GoodA, GoodZ: sp.GoodZ,
				AreaA: sp.AreaA, AreaZ: sp.AreaZ, State: sp.State,
				Params: sp.Params,
			},
		}
		if u.Location.IsAtArea() {
			uv.Location.Area = u.Location.Area.String()
		} else {
			uv.Location = snapshot.LocationV1{
				Connection: int(u.Location.Connection),
				Progress:   u.Location.Progress,
				Backward:   u.Location.Backward,
			}
		}
		for _, s := range d.queues[u.ID] {
			uv.Pending = append(uv.Pending, snapshot.StepV1{
				Kind:       string(s.Kind),
				Connection: int(s.Connection),
				Good:       s.Good,
				Amount:     s.Amount,
			})
		}
		snap.Units = append(snap.Units, uv)
	}
	return snap
}

// Restore replaces every unit, queue and the tick counter with the snapshot.
// The snapshot must have been taken on the same map.
func (d *Driver) Restore(snap snapshot.SnapshotV1) error {
	if snap.MapDigest != d.graph.Digest {
		return fmt.Errorf("snapshot map digest %s does not match %s", snap.MapDigest, d.graph.Digest)
	}
	units := make([]*unit.Unit, 0, len(snap.Units))
	queues := map[string][]plan.Step{}
	for _, uv := range snap.Units {
		loc, err := restoreLocation(d.graph, uv.Location)
		if err != nil {
			return fmt.Errorf("unit %s: %w", uv.ID, err)
		}
		sv := uv.Strategy
		st, err := strategy.Spec{
			Kind: sv.Kind, GoodA: sv.GoodA, GoodZ: sv.GoodZ,
			AreaA: sv.AreaA, AreaZ: sv.AreaZ, State: sv.State,
			Params: sv.Params,
		}.Build()
		if err != nil {
			return fmt.Errorf("unit %s: %w", uv.ID, err)
		}
		u := unit.New(uv.ID, loc, st)
		u.Coins = uv.Coins
		for g, n := range uv.Cargo {
			u.Cargo.Add(g, n)
		}
		units = append(units, u)
		for _, s := range uv.Pending {
			queues[u.ID] = append(queues[u.ID], plan.Step{
				Kind:       plan.StepKind(s.Kind),
				Connection: geo.ConnectionID(s.Connection),
				Good:       s.Good,
				Amount:     s.Amount,
			})
		}
	}
	unit.SortByID(units)
	d.units = units
	d.queues = queues
	d.tick = snap.Header.Tick
	d.stats = Stats{Ticks: d.tick}
	st := d.stats
	d.published.Store(&st)
	return nil
}

func restoreLocation(g *geo.Graph, lv snapshot.LocationV1) (geo.Location, error) {
	if lv.Area != "" {
		a, ok := geo.ParseAreaID(lv.Area)
		if !ok {
			return geo.Location{}, fmt.Errorf("bad area %q", lv.Area)
		}
		if _, ok := g.Area(a); !ok {
			return geo.Location{}, fmt.Errorf("unknown area %s", a)
		}
		return geo.AtArea(a), nil
	}
	c := geo.ConnectionID(lv.Connection)
	if _, ok := g.Connection(c); !ok {
		return geo.Location{}, fmt.Errorf("unknown connection %d", c)
	}
	if lv.Backward {
		return geo.InTransitBackward(c, lv.Progress), nil
	}
	return geo.InTransit(c, lv.Progress), nil
}
