package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"caravan.ai/internal/persistence/indexdb"
	persistlog "caravan.ai/internal/persistence/log"
	"caravan.ai/internal/persistence/snapshot"
	"caravan.ai/internal/protocol"
)

func main() {
	var (
		plansDir  = flag.String("plans", "./data/plans", "dir containing plans-*.jsonl.zst")
		indexPath = flag.String("index", "", "path to plans.sqlite (optional)")
		verify    = flag.Bool("verify", false, "validate every event and check tick order per run")
		snapPath  = flag.String("snapshot", "", "print a .snap.zst instead of reading plan logs")
	)
	flag.Parse()

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printSnapshot(os.Stdout, snap)
		return
	}

	files, err := persistlog.ListFiles(*plansDir, persistlog.PlanPrefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list plans:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no plan files found in", *plansDir)
		os.Exit(1)
	}

	sum, err := summarize(files, *verify)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	sum.print(os.Stdout)

	if *indexPath == "" {
		return
	}
	r, err := indexdb.OpenReader(*indexPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer r.Close()
	if err := checkIndex(r, sum, *verify, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		r.Close()
		os.Exit(1)
	}
}

type runSummary struct {
	lastTick uint64
	plans    int
	failures map[string]int
	// steps[unit][kind]
	steps map[string]map[string]int
}

type summary struct {
	runs   map[string]*runSummary
	events int
}

func summarize(files []string, verify bool) (*summary, error) {
	sum := &summary{runs: map[string]*runSummary{}}
	for _, path := range files {
		err := persistlog.ReadPlanEvents(path, func(ev protocol.PlanEvent) error {
			sum.events++
			if verify {
				if err := ev.Validate(); err != nil {
					return fmt.Errorf("run=%s tick=%d unit=%s: %w", ev.RunID, ev.Tick, ev.UnitID, err)
				}
			}
			rs := sum.runs[ev.RunID]
			if rs == nil {
				rs = &runSummary{failures: map[string]int{}, steps: map[string]map[string]int{}}
				sum.runs[ev.RunID] = rs
			} else if verify && ev.Tick < rs.lastTick {
				return fmt.Errorf("run=%s tick went backwards: %d after %d", ev.RunID, ev.Tick, rs.lastTick)
			}
			rs.lastTick = ev.Tick
			if ev.Type != protocol.TypePlan {
				rs.failures[ev.Code]++
				return nil
			}
			rs.plans++
			kinds := rs.steps[ev.UnitID]
			if kinds == nil {
				kinds = map[string]int{}
				rs.steps[ev.UnitID] = kinds
			}
			for _, s := range ev.Steps {
				kinds[s.Kind]++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sum, nil
}

func (s *summary) runIDs() []string {
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintf(w, "events=%d runs=%d\n", s.events, len(s.runs))
	for _, id := range s.runIDs() {
		rs := s.runs[id]
		fmt.Fprintf(w, "run=%s last_tick=%d plans=%d failures=%v\n", id, rs.lastTick, rs.plans, rs.failures)
		units := make([]string, 0, len(rs.steps))
		for u := range rs.steps {
			units = append(units, u)
		}
		sort.Strings(units)
		for _, u := range units {
			kinds := rs.steps[u]
			fmt.Fprintf(w, "  unit=%s", u)
			for _, k := range []string{protocol.StepMove, protocol.StepTurnAround, protocol.StepBuy, protocol.StepSell, protocol.StepSwitchState} {
				if n := kinds[k]; n > 0 {
					fmt.Fprintf(w, " %s=%d", k, n)
				}
			}
			fmt.Fprintln(w)
		}
	}
}

// checkIndex prints what the index holds for each logged run. With verify
// set, plan counts must match the log.
func checkIndex(r *indexdb.Reader, sum *summary, verify bool, w io.Writer) error {
	runs, err := r.Runs()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "index runs=%d\n", len(runs))
	for _, id := range sum.runIDs() {
		n, err := r.PlanCount(id)
		if err != nil {
			return err
		}
		fails, err := r.FailureCounts(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "index run=%s plans=%d failures=%v\n", id, n, fails)
		if verify && n != sum.runs[id].plans {
			return fmt.Errorf("run=%s index has %d plans, log has %d", id, n, sum.runs[id].plans)
		}
	}
	return nil
}

func printSnapshot(w io.Writer, snap snapshot.SnapshotV1) {
	fmt.Fprintf(w, "snapshot v%d run=%s tick=%d map=%s units=%d\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Tick, snap.MapDigest, len(snap.Units))
	for _, u := range snap.Units {
		where := u.Location.Area
		if where == "" {
			where = fmt.Sprintf("conn %d @ %.3f", u.Location.Connection, u.Location.Progress)
			if u.Location.Backward {
				where += " backward"
			}
		}
		fmt.Fprintf(w, "  unit=%s %s state=%s at=%s coins=%d cargo=%v pending=%d\n",
			u.ID, u.Strategy.Kind, u.Strategy.State, where, u.Coins, u.Cargo, len(u.Pending))
	}
}
