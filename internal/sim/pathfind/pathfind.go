package pathfind

import (
	"container/heap"
	"errors"
	"fmt"

	"caravan.ai/internal/sim/geo"
	"caravan.ai/internal/sim/plan"
)

var ErrNotFound = errors.New("path not found")

// Path is an ordered edge path. When the source was in transit the first
// connection is the one the unit is on; Reverse reports that the unit has to
// turn around before following it.
type Path struct {
	Connections []geo.ConnectionID
	Reverse     bool
	Cost        float64
}

func (p Path) Empty() bool { return len(p.Connections) == 0 }

type node struct {
	area    geo.AreaID
	conn    geo.ConnectionID
	g, f    float64
	seq     uint64
	reverse bool
	parent  *node
}

// frontier orders by f, then by insertion order.
type frontier []*node

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}
func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *frontier) Push(x any)   { *q = append(*q, x.(*node)) }
func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// FindPath runs A* from src to target. A nil cost defaults to
// geo.ShortestDistance, a nil heuristic to geo.ZeroHeuristic.
//
// An AtArea source equal to target yields the empty path. An InTransit source
// seeds two continuations along its connection: ahead at the remaining share
// of the edge cost, and behind at the travelled share, the latter marked as
// needing a reversal.
func FindPath(g *geo.Graph, src geo.Location, cost geo.CostFunc, h geo.HeuristicFunc, target geo.AreaID) (Path, error) {
	if cost == nil {
		cost = geo.ShortestDistance
	}
	if h == nil {
		h = geo.ZeroHeuristic
	}
	if _, ok := g.Area(target); !ok {
		return Path{}, fmt.Errorf("%w: unknown target %s", ErrNotFound, target)
	}

	var (
		q       frontier
		seq     uint64
		visited = map[geo.AreaID]bool{}
	)
	push := func(parent *node, area geo.AreaID, conn geo.ConnectionID, gc float64, reverse bool) {
		seq++
		heap.Push(&q, &node{
			area:    area,
			conn:    conn,
			g:       gc,
			f:       gc + h(area, target),
			seq:     seq,
			reverse: reverse,
			parent:  parent,
		})
	}

	switch src.Kind {
	case geo.LocAtArea:
		if src.Area == target {
			return Path{}, nil
		}
		if _, ok := g.Area(src.Area); !ok {
			return Path{}, fmt.Errorf("%w: unknown source %s", ErrNotFound, src.Area)
		}
		visited[src.Area] = true
		for _, cid := range g.Incident(src.Area) {
			c, _ := g.Connection(cid)
			other, _ := c.Other(src.Area)
			push(nil, other, cid, cost(c), false)
		}
	case geo.LocInTransit:
		c, ok := g.Connection(src.Connection)
		if !ok {
			return Path{}, fmt.Errorf("%w: unknown connection %d", ErrNotFound, src.Connection)
		}
		ahead, behind, remaining, travelled := src.Ends(c)
		w := cost(c)
		push(nil, ahead, c.ID, share(w, remaining), false)
		push(nil, behind, c.ID, share(w, travelled), true)
	default:
		return Path{}, fmt.Errorf("pathfind: unsupported location kind %d", src.Kind)
	}

	for q.Len() > 0 {
		cur := heap.Pop(&q).(*node)
		if visited[cur.area] {
			continue
		}
		visited[cur.area] = true
		if cur.area == target {
			return reconstruct(cur), nil
		}
		for _, cid := range g.Incident(cur.area) {
			c, _ := g.Connection(cid)
			other, _ := c.Other(cur.area)
			if visited[other] {
				continue
			}
			push(cur, other, cid, cur.g+cost(c), cur.reverse)
		}
	}
	return Path{}, fmt.Errorf("%w: %s -> %s", ErrNotFound, src, target)
}

// share is the cost of covering frac of an edge weighing w. A zero fraction
// costs nothing even on an infinite edge.
func share(w, frac float64) float64 {
	if frac <= 0 {
		return 0
	}
	return w * frac
}

func reconstruct(end *node) Path {
	var conns []geo.ConnectionID
	root := end
	for n := end; n != nil; n = n.parent {
		conns = append(conns, n.conn)
		root = n
	}
	for i, j := 0, len(conns)-1; i < j; i, j = i+1, j-1 {
		conns[i], conns[j] = conns[j], conns[i]
	}
	return Path{Connections: conns, Reverse: root.reverse, Cost: end.g}
}

// PlanPath appends the steps that walk path from src: a TURN_AROUND when the
// path reverses an in-transit unit, then one MOVE per connection.
func PlanPath(src geo.Location, path Path, p *plan.Plan) {
	if path.Reverse && src.IsInTransit() {
		p.Append(plan.TurnAround())
	}
	for _, c := range path.Connections {
		p.Append(plan.Move(c))
	}
}

// Route finds a path to target and appends its steps to p. On failure p is
// left untouched.
func Route(g *geo.Graph, src geo.Location, cost geo.CostFunc, h geo.HeuristicFunc, target geo.AreaID, p *plan.Plan) (Path, error) {
	path, err := FindPath(g, src, cost, h, target)
	if err != nil {
		return Path{}, err
	}
	PlanPath(src, path, p)
	return path, nil
}
