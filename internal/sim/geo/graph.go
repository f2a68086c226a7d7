package geo

import "fmt"

// Graph is the read-only area/connection index. Incident connections are
// kept in declaration order so searches over it are deterministic.
type Graph struct {
	areas     map[AreaID]Area
	areaOrder []AreaID

	conns     map[ConnectionID]Connection
	connOrder []ConnectionID

	incident map[AreaID][]ConnectionID

	Digest string
}

func NewGraph(areas []Area, conns []Connection) (*Graph, error) {
	g := &Graph{
		areas:    make(map[AreaID]Area, len(areas)),
		conns:    make(map[ConnectionID]Connection, len(conns)),
		incident: make(map[AreaID][]ConnectionID, len(areas)),
	}
	for _, a := range areas {
		if a.ID.Kind == "" {
			return nil, fmt.Errorf("area %s: empty kind", a.ID)
		}
		if _, dup := g.areas[a.ID]; dup {
			return nil, fmt.Errorf("duplicate area %s", a.ID)
		}
		g.areas[a.ID] = a
		g.areaOrder = append(g.areaOrder, a.ID)
	}
	for _, c := range conns {
		if _, dup := g.conns[c.ID]; dup {
			return nil, fmt.Errorf("duplicate connection %d", c.ID)
		}
		if _, ok := g.areas[c.A]; !ok {
			return nil, fmt.Errorf("connection %d: unknown area %s", c.ID, c.A)
		}
		if _, ok := g.areas[c.Z]; !ok {
			return nil, fmt.Errorf("connection %d: unknown area %s", c.ID, c.Z)
		}
		if c.A == c.Z {
			return nil, fmt.Errorf("connection %d: self loop on %s", c.ID, c.A)
		}
		if c.Distance < 0 {
			return nil, fmt.Errorf("connection %d: negative distance", c.ID)
		}
		if c.Width < 0 {
			return nil, fmt.Errorf("connection %d: negative width", c.ID)
		}
		g.conns[c.ID] = c
		g.connOrder = append(g.connOrder, c.ID)
		g.incident[c.A] = append(g.incident[c.A], c.ID)
		g.incident[c.Z] = append(g.incident[c.Z], c.ID)
	}
	return g, nil
}

func (g *Graph) Area(id AreaID) (Area, bool) {
	a, ok := g.areas[id]
	return a, ok
}

func (g *Graph) Areas() []Area {
	out := make([]Area, 0, len(g.areaOrder))
	for _, id := range g.areaOrder {
		out = append(out, g.areas[id])
	}
	return out
}

func (g *Graph) Connection(id ConnectionID) (Connection, bool) {
	c, ok := g.conns[id]
	return c, ok
}

func (g *Graph) Connections() []Connection {
	out := make([]Connection, 0, len(g.connOrder))
	for _, id := range g.connOrder {
		out = append(out, g.conns[id])
	}
	return out
}

// Incident lists the connections touching an area, in declaration order.
func (g *Graph) Incident(id AreaID) []ConnectionID {
	src := g.incident[id]
	out := make([]ConnectionID, len(src))
	copy(out, src)
	return out
}

// Neighbors lists distinct adjacent areas in first-seen order.
func (g *Graph) Neighbors(id AreaID) []AreaID {
	seen := map[AreaID]bool{}
	var out []AreaID
	for _, cid := range g.incident[id] {
		other, _ := g.conns[cid].Other(id)
		if seen[other] {
			continue
		}
		seen[other] = true
		out = append(out, other)
	}
	return out
}

// Between returns the first connection joining a and b.
func (g *Graph) Between(a, b AreaID) (Connection, bool) {
	for _, cid := range g.incident[a] {
		c := g.conns[cid]
		if other, _ := c.Other(a); other == b {
			return c, true
		}
	}
	return Connection{}, false
}

func (g *Graph) Endpoints(id ConnectionID) (a, z AreaID, ok bool) {
	c, ok := g.conns[id]
	if !ok {
		return AreaID{}, AreaID{}, false
	}
	return c.A, c.Z, true
}

func (g *Graph) Distance(id ConnectionID) (Fixed, bool) {
	c, ok := g.conns[id]
	return c.Distance, ok
}

func (g *Graph) Width(id ConnectionID) (int, bool) {
	c, ok := g.conns[id]
	return c.Width, ok
}
