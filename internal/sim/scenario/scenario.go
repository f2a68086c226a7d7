// Package scenario loads the starting units of a run from units.yaml.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/strategy"
	"caravan.ai/internal/sim/unit"
)

type Config struct {
	Units []UnitSpec `yaml:"units"`
}

type UnitSpec struct {
	ID       string         `yaml:"id"`
	Coins    int            `yaml:"coins"`
	Cargo    map[string]int `yaml:"cargo,omitempty"`
	Location LocationSpec   `yaml:"location"`
	Strategy strategy.Spec  `yaml:"strategy"`
}

// LocationSpec names either an area or a connection with progress.
type LocationSpec struct {
	Area       string  `yaml:"area,omitempty"`
	Connection int     `yaml:"connection,omitempty"`
	Progress   float64 `yaml:"progress,omitempty"`
	Backward   bool    `yaml:"backward,omitempty"`
}

func Load(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("units.yaml: %w", err)
	}
	return cfg, nil
}

func (ls LocationSpec) Resolve(g *geo.Graph) (geo.Location, error) {
	area := strings.TrimSpace(ls.Area)
	switch {
	case area != "" && ls.Connection != 0:
		return geo.Location{}, fmt.Errorf("location sets both area and connection")
	case area != "":
		id, ok := geo.ParseAreaID(area)
		if !ok {
			return geo.Location{}, fmt.Errorf("bad area id %q", area)
		}
		if _, ok := g.Area(id); !ok {
			return geo.Location{}, fmt.Errorf("unknown area %s", id)
		}
		return geo.AtArea(id), nil
	case ls.Connection != 0:
		cid := geo.ConnectionID(ls.Connection)
		if _, ok := g.Connection(cid); !ok {
			return geo.Location{}, fmt.Errorf("unknown connection %d", ls.Connection)
		}
		if ls.Progress < 0 || ls.Progress > 1 {
			return geo.Location{}, fmt.Errorf("progress %v out of [0,1]", ls.Progress)
		}
		if ls.Backward {
			return geo.InTransitBackward(cid, ls.Progress), nil
		}
		return geo.InTransit(cid, ls.Progress), nil
	}
	return geo.Location{}, fmt.Errorf("location needs area or connection")
}

// Build materialises units against g. Blank ids get a random uuid; units come
// back sorted by id.
func (c Config) Build(g *geo.Graph) ([]*unit.Unit, error) {
	out := make([]*unit.Unit, 0, len(c.Units))
	seen := map[string]bool{}
	for i, us := range c.Units {
		id := strings.TrimSpace(us.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, fmt.Errorf("units[%d]: duplicate id %s", i, id)
		}
		seen[id] = true

		loc, err := us.Location.Resolve(g)
		if err != nil {
			return nil, fmt.Errorf("units[%d] %s: %w", i, id, err)
		}
		s, err := us.Strategy.Build()
		if err != nil {
			return nil, fmt.Errorf("units[%d] %s: %w", i, id, err)
		}
		if st := s.Shuttle; st != nil {
			for _, a := range []geo.AreaID{st.AreaA, st.AreaZ} {
				if _, ok := g.Area(a); !ok {
					return nil, fmt.Errorf("units[%d] %s: unknown area %s", i, id, a)
				}
			}
		}
		if us.Coins < 0 {
			return nil, fmt.Errorf("units[%d] %s: coins must be >= 0", i, id)
		}

		u := unit.New(id, loc, s)
		u.Coins = us.Coins
		for good, n := range us.Cargo {
			if n < 0 {
				return nil, fmt.Errorf("units[%d] %s: negative cargo %s", i, id, good)
			}
			u.Cargo.Add(good, n)
		}
		out = append(out, u)
	}
	unit.SortByID(out)
	return out, nil
}
