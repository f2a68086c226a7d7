package geo

import "math"

// CostFunc weighs a connection. Must be non-negative and finite.
type CostFunc func(c Connection) float64

// HeuristicFunc estimates the remaining cost from an area to the target.
// Must never overestimate the true remaining cost.
type HeuristicFunc func(from, target AreaID) float64

func ShortestDistance(c Connection) float64 { return c.Distance.Float() }

func ZeroHeuristic(from, target AreaID) float64 { return 0 }

// ExactHeuristic returns the true remaining cost under cost, computed once per
// target by a reverse Dijkstra over the whole graph. Unreachable areas map to
// +Inf. The returned function caches per target and is not safe for
// concurrent use.
func ExactHeuristic(g *Graph, cost CostFunc) HeuristicFunc {
	if cost == nil {
		cost = ShortestDistance
	}
	cache := map[AreaID]map[AreaID]float64{}
	return func(from, target AreaID) float64 {
		dist, ok := cache[target]
		if !ok {
			dist = distancesTo(g, cost, target)
			cache[target] = dist
		}
		d, ok := dist[from]
		if !ok {
			return math.Inf(1)
		}
		return d
	}
}

// distancesTo is a plain O(V^2) Dijkstra; map graphs are small and the result
// is cached per target.
func distancesTo(g *Graph, cost CostFunc, target AreaID) map[AreaID]float64 {
	dist := map[AreaID]float64{}
	if _, ok := g.Area(target); !ok {
		return dist
	}
	dist[target] = 0
	done := map[AreaID]bool{}
	for {
		var (
			cur   AreaID
			best  = math.Inf(1)
			found bool
		)
		for _, id := range g.areaOrder {
			d, ok := dist[id]
			if !ok || done[id] {
				continue
			}
			if d < best {
				cur, best, found = id, d, true
			}
		}
		if !found {
			return dist
		}
		done[cur] = true
		for _, cid := range g.incident[cur] {
			c := g.conns[cid]
			other, _ := c.Other(cur)
			if done[other] {
				continue
			}
			nd := best + cost(c)
			if old, ok := dist[other]; !ok || nd < old {
				dist[other] = nd
			}
		}
	}
}
