// Package costexpr builds connection cost functions from expr source, so that
// strategy-specific routing preferences live in tuning.yaml instead of code.
//
// Expressions see:
//
//	distance  float  connection length in world units
//	width     int    connection capacity
//	class     string connection class ("road", "river", "sea", ...)
//	a, z      string endpoint area ids
//	Penalty(class, factor) float  factor when the connection has that class, else 1
//
// Example: `distance * Penalty("sea", 3.0)`.
package costexpr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"caravan.ai/internal/sim/geo"
)

const ProfileShortest = "shortest"

func env(c geo.Connection) map[string]any {
	return map[string]any{
		"distance": c.Distance.Float(),
		"width":    c.Width,
		"class":    c.Class,
		"a":        c.A.String(),
		"z":        c.Z.String(),
		"Penalty": func(class string, factor float64) float64 {
			if c.Class == class {
				return factor
			}
			return 1
		},
	}
}

// Compile turns src into a geo.CostFunc. Negative results are clamped to 0;
// a failed evaluation yields +Inf so the connection is never preferred.
func Compile(src string) (geo.CostFunc, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty cost expression")
	}
	prog, err := expr.Compile(src, expr.Env(env(geo.Connection{})), expr.AsFloat64())
	if err != nil {
		return nil, err
	}
	return costFunc(prog), nil
}

func costFunc(prog *vm.Program) geo.CostFunc {
	return func(c geo.Connection) float64 {
		out, err := expr.Run(prog, env(c))
		if err != nil {
			return math.Inf(1)
		}
		v, ok := out.(float64)
		if !ok || math.IsNaN(v) {
			return math.Inf(1)
		}
		if v < 0 {
			return 0
		}
		return v
	}
}

// Profiles is a set of named cost functions. "shortest" is always present.
type Profiles struct {
	byName map[string]geo.CostFunc
}

func CompileProfiles(src map[string]string) (*Profiles, error) {
	p := &Profiles{
		byName: map[string]geo.CostFunc{ProfileShortest: geo.ShortestDistance},
	}
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.TrimSpace(name)
		if key == "" {
			return nil, fmt.Errorf("cost profile with empty name")
		}
		if key == ProfileShortest {
			return nil, fmt.Errorf("cost profile %q is built in", key)
		}
		fn, err := Compile(src[name])
		if err != nil {
			return nil, fmt.Errorf("cost profile %s: %w", key, err)
		}
		p.byName[key] = fn
	}
	return p, nil
}

func (p *Profiles) Lookup(name string) (geo.CostFunc, bool) {
	if strings.TrimSpace(name) == "" {
		name = ProfileShortest
	}
	fn, ok := p.byName[strings.TrimSpace(name)]
	return fn, ok
}

func (p *Profiles) Names() []string {
	out := make([]string, 0, len(p.byName))
	for name := range p.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
