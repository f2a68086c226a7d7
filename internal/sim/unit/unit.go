package unit

import (
	"sort"

	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/strategy"
)

// Cargo is the goods a unit holds, keyed by good id. Zero counts are removed.
type Cargo map[string]int

func (c Cargo) Count(good string) int { return c[good] }

func (c Cargo) Add(good string, n int) {
	if good == "" || n <= 0 {
		return
	}
	c[good] += n
}

// Remove takes up to n of good and returns how many were taken. n <= 0 takes
// everything held.
func (c Cargo) Remove(good string, n int) int {
	have := c[good]
	if have <= 0 {
		delete(c, good)
		return 0
	}
	if n <= 0 || n > have {
		n = have
	}
	c[good] = have - n
	if c[good] <= 0 {
		delete(c, good)
	}
	return n
}

// Goods lists held goods in sorted order.
func (c Cargo) Goods() []string {
	out := make([]string, 0, len(c))
	for g, n := range c {
		if n > 0 {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

type Unit struct {
	ID       string
	Location geo.Location
	Cargo    Cargo
	Coins    int
	Strategy strategy.Strategy
}

func New(id string, loc geo.Location, s strategy.Strategy) *Unit {
	return &Unit{ID: id, Location: loc, Cargo: Cargo{}, Strategy: s}
}

// SortByID orders units deterministically for tick processing.
func SortByID(units []*Unit) {
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
}
