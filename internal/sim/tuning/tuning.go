package tuning

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	HeuristicZero  = "zero"
	HeuristicExact = "exact"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	Ticks      int `yaml:"ticks"`

	// UnitSpeed is world distance covered per tick.
	UnitSpeed float64 `yaml:"unit_speed"`

	// 0 trades as much as the unit can.
	BuyAmount  int `yaml:"buy_amount"`
	SellAmount int `yaml:"sell_amount"`

	CostProfile  string            `yaml:"cost_profile"`
	Heuristic    string            `yaml:"heuristic"`
	CostProfiles map[string]string `yaml:"cost_profiles"`

	PlanLog  PlanLog  `yaml:"plan_log"`
	Index    Index    `yaml:"index"`
	Snapshot Snapshot `yaml:"snapshot"`
}

type PlanLog struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Index struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Snapshot struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	EveryTicks int    `yaml:"every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      5,
		Ticks:           600,
		UnitSpeed:       2,
		CostProfile:     "shortest",
		Heuristic:       HeuristicExact,
		PlanLog:         PlanLog{Enabled: true, Dir: "data/plans"},
		Index:           Index{Enabled: true, Path: "data/index/plans.sqlite"},
		Snapshot:        Snapshot{Enabled: true, Dir: "data/snapshots", EveryTicks: 300},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.CostProfile = strings.TrimSpace(t.CostProfile)
	if t.CostProfile == "" {
		t.CostProfile = "shortest"
	}
	t.Heuristic = strings.ToLower(strings.TrimSpace(t.Heuristic))
	if t.Heuristic == "" {
		t.Heuristic = HeuristicExact
	}
}

func (t Tuning) Validate() error {
	t.Normalize()
	if t.TickRateHz < 0 {
		return fmt.Errorf("tick_rate_hz must be >= 0")
	}
	if t.Ticks < 0 {
		return fmt.Errorf("ticks must be >= 0")
	}
	if t.UnitSpeed <= 0 {
		return fmt.Errorf("unit_speed must be > 0")
	}
	if t.BuyAmount < 0 || t.SellAmount < 0 {
		return fmt.Errorf("buy_amount/sell_amount must be >= 0")
	}
	switch t.Heuristic {
	case HeuristicZero, HeuristicExact:
	default:
		return fmt.Errorf("unknown heuristic %q", t.Heuristic)
	}
	if t.CostProfile != "shortest" {
		if _, ok := t.CostProfiles[t.CostProfile]; !ok {
			return fmt.Errorf("cost_profile %q not found in cost_profiles (have %v)", t.CostProfile, t.ProfileNames())
		}
	}
	if t.PlanLog.Enabled && strings.TrimSpace(t.PlanLog.Dir) == "" {
		return fmt.Errorf("plan_log.dir must not be empty when enabled")
	}
	if t.Index.Enabled && strings.TrimSpace(t.Index.Path) == "" {
		return fmt.Errorf("index.path must not be empty when enabled")
	}
	if t.Snapshot.Enabled {
		if strings.TrimSpace(t.Snapshot.Dir) == "" {
			return fmt.Errorf("snapshot.dir must not be empty when enabled")
		}
		if t.Snapshot.EveryTicks <= 0 {
			return fmt.Errorf("snapshot.every_ticks must be > 0 when enabled")
		}
	}
	return nil
}

func (t Tuning) ProfileNames() []string {
	out := make([]string, 0, len(t.CostProfiles))
	for k := range t.CostProfiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
