package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"caravan.ai/internal/persistence/indexdb"
	persistlog "caravan.ai/internal/persistence/log"
	"caravan.ai/internal/persistence/snapshot"
	"caravan.ai/internal/sim/costexpr"
	"caravan.ai/internal/sim/driver"
	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/market"
	"caravan.ai/internal/sim/planner"
	"caravan.ai/internal/sim/scenario"
	"caravan.ai/internal/sim/tuning"
	"caravan.ai/internal/transport/observer"
)

type runtimeConfig struct {
	ConfigDir  string
	DataDir    string
	TuningPath string
	RunID      string
	DisableDB  bool
	DisableLog bool
	// DisableSnapshot also disables Resume.
	DisableSnapshot bool
	Resume          bool
	Fast            bool
}

type runtime struct {
	RunID  string
	Tune   tuning.Tuning
	Graph  *geo.Graph
	Driver *driver.Driver
	Hub    *observer.Hub

	planLog *persistlog.PlanLogger
	index   *indexdb.SQLiteIndex
	snapDir string
}

func (rt *runtime) Close() {
	if rt.planLog != nil {
		_ = rt.planLog.Close()
	}
	if rt.index != nil {
		_ = rt.index.Close()
	}
}

func (rt *runtime) writeSnapshot(snap snapshot.SnapshotV1) error {
	if rt.snapDir == "" {
		return nil
	}
	return snapshot.WriteSnapshot(snapshot.Path(rt.snapDir, snap.Header.Tick), snap)
}

func buildRuntime(cfg runtimeConfig, logger *log.Logger) (*runtime, error) {
	tp := strings.TrimSpace(cfg.TuningPath)
	if tp == "" {
		tp = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}

	g, err := geo.Load(filepath.Join(cfg.ConfigDir, "map.json"))
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	mkt, err := market.LoadTable(filepath.Join(cfg.ConfigDir, "market.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load market: %w", err)
	}
	if err := mkt.Validate(g); err != nil {
		return nil, err
	}
	sc, err := scenario.Load(filepath.Join(cfg.ConfigDir, "units.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}
	units, err := sc.Build(g)
	if err != nil {
		return nil, fmt.Errorf("units.yaml: %w", err)
	}

	profiles, err := costexpr.CompileProfiles(tune.CostProfiles)
	if err != nil {
		return nil, fmt.Errorf("tuning.yaml: %w", err)
	}
	cost, ok := profiles.Lookup(tune.CostProfile)
	if !ok {
		return nil, fmt.Errorf("tuning.yaml: unknown cost profile %q (have %v)", tune.CostProfile, profiles.Names())
	}
	heuristic := geo.ZeroHeuristic
	if tune.Heuristic == tuning.HeuristicExact {
		heuristic = geo.ExactHeuristic(g, cost)
	}
	reg := planner.Default(g, planner.Options{
		Cost:       cost,
		Heuristic:  heuristic,
		BuyAmount:  tune.BuyAmount,
		SellAmount: tune.SellAmount,
	})

	var (
		snapDir string
		resume  *snapshot.SnapshotV1
	)
	if tune.Snapshot.Enabled && !cfg.DisableSnapshot {
		snapDir = dataPath(cfg.DataDir, tune.Snapshot.Dir)
		if cfg.Resume {
			if p := snapshot.Latest(snapDir); p != "" {
				snap, err := snapshot.ReadSnapshot(p)
				if err != nil {
					return nil, fmt.Errorf("read snapshot %s: %w", p, err)
				}
				resume = &snap
			}
		}
	}

	runID := strings.TrimSpace(cfg.RunID)
	if runID == "" && resume != nil {
		runID = resume.Header.RunID
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	rt := &runtime{RunID: runID, Tune: tune, Graph: g, Hub: observer.NewHub(), snapDir: snapDir}
	sinks := []driver.Sink{rt.Hub}

	if tune.PlanLog.Enabled && !cfg.DisableLog {
		rt.planLog = persistlog.NewPlanLogger(dataPath(cfg.DataDir, tune.PlanLog.Dir))
		sinks = append(sinks, rt.planLog)
	}
	if tune.Index.Enabled && !cfg.DisableDB {
		idx, err := indexdb.OpenSQLite(dataPath(cfg.DataDir, tune.Index.Path))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		rt.index = idx
		if err := idx.RecordRun(runID, g.Digest, tune); err != nil {
			logger.Printf("index: record run: %v", err)
		}
		sinks = append(sinks, idx)
	}

	rate := tune.TickRateHz
	if cfg.Fast {
		rate = 0
	}
	d, err := driver.New(driver.Config{
		RunID:      runID,
		UnitSpeed:  tune.UnitSpeed,
		TickRateHz: rate,
	}, g, reg, mkt, units, sinks, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Driver = d
	if resume != nil {
		if err := d.Restore(*resume); err != nil {
			rt.Close()
			return nil, fmt.Errorf("resume: %w", err)
		}
		logger.Printf("resumed run=%s at tick=%d", resume.Header.RunID, resume.Header.Tick)
	}
	if snapDir != "" {
		d.SetSnapshotter(tune.Snapshot.EveryTicks, rt.writeSnapshot)
	}
	logger.Printf("run=%s areas=%d connections=%d units=%d strategies=%v cost=%s heuristic=%s",
		runID, len(g.Areas()), len(g.Connections()), len(units), reg.Kinds(), tune.CostProfile, tune.Heuristic)
	return rt, nil
}

// dataPath resolves tuning paths against the data dir unless they are absolute.
// A leading "data/" is dropped so tuning.yaml works with and without -data.
func dataPath(dataDir, p string) string {
	if filepath.IsAbs(p) || dataDir == "" {
		return p
	}
	p = strings.TrimPrefix(filepath.ToSlash(p), "data/")
	return filepath.Join(dataDir, filepath.FromSlash(p))
}
