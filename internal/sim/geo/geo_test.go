package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func city(n int) AreaID { return AreaID{Kind: "CITY", Number: n} }

func chain(t *testing.T, n int) *Graph {
	t.Helper()
	var areas []Area
	var conns []Connection
	for i := 1; i <= n; i++ {
		areas = append(areas, Area{ID: city(i)})
		if i > 1 {
			conns = append(conns, Connection{ID: ConnectionID(i - 1), A: city(i - 1), Z: city(i), Distance: 10 * FixedScale, Width: 1})
		}
	}
	g, err := NewGraph(areas, conns)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func TestParseAreaID(t *testing.T) {
	id, ok := ParseAreaID("FREE_CITY_12")
	if !ok || id.Kind != "FREE_CITY" || id.Number != 12 {
		t.Fatalf("ParseAreaID mismatch: %+v ok=%v", id, ok)
	}
	if id.String() != "FREE_CITY_12" {
		t.Fatalf("String()=%q", id.String())
	}
	for _, bad := range []string{"", "CITY", "_3", "CITY_", "CITY_x", "CITY_-1"} {
		if _, ok := ParseAreaID(bad); ok {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestFixed(t *testing.T) {
	if got := FixedFromFloat(12.5); got != 12500 {
		t.Fatalf("FixedFromFloat(12.5)=%d", got)
	}
	if got := Fixed(2500).Float(); got != 2.5 {
		t.Fatalf("Float()=%v", got)
	}
}

func TestNewGraph_Rejects(t *testing.T) {
	a := Area{ID: city(1)}
	b := Area{ID: city(2)}
	cases := []struct {
		name  string
		areas []Area
		conns []Connection
	}{
		{"dup area", []Area{a, a}, nil},
		{"unknown endpoint", []Area{a}, []Connection{{ID: 1, A: city(1), Z: city(9)}}},
		{"self loop", []Area{a}, []Connection{{ID: 1, A: city(1), Z: city(1)}}},
		{"dup connection", []Area{a, b}, []Connection{{ID: 1, A: city(1), Z: city(2)}, {ID: 1, A: city(2), Z: city(1)}}},
		{"negative distance", []Area{a, b}, []Connection{{ID: 1, A: city(1), Z: city(2), Distance: -1}}},
	}
	for _, tc := range cases {
		if _, err := NewGraph(tc.areas, tc.conns); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestGraphLookups(t *testing.T) {
	g := chain(t, 3)
	if got := g.Neighbors(city(2)); len(got) != 2 || got[0] != city(1) || got[1] != city(3) {
		t.Fatalf("Neighbors(CITY_2)=%v", got)
	}
	a, z, ok := g.Endpoints(2)
	if !ok || a != city(2) || z != city(3) {
		t.Fatalf("Endpoints(2)=%v,%v,%v", a, z, ok)
	}
	if d, ok := g.Distance(1); !ok || d != 10*FixedScale {
		t.Fatalf("Distance(1)=%v", d)
	}
	if w, ok := g.Width(1); !ok || w != 1 {
		t.Fatalf("Width(1)=%v", w)
	}
	if c, ok := g.Between(city(3), city(2)); !ok || c.ID != 2 {
		t.Fatalf("Between(3,2)=%+v ok=%v", c, ok)
	}
	if _, ok := g.Between(city(1), city(3)); ok {
		t.Fatalf("CITY_1 and CITY_3 are not adjacent")
	}
	ids := g.Incident(city(2))
	ids[0] = 99
	if g.Incident(city(2))[0] == 99 {
		t.Fatalf("Incident must return a copy")
	}
}

func TestLocationEnds(t *testing.T) {
	c := Connection{ID: 1, A: city(1), Z: city(2), Distance: 10 * FixedScale}
	ahead, behind, rem, done := InTransit(1, 0.25).Ends(c)
	if ahead != city(2) || behind != city(1) || rem != 0.75 || done != 0.25 {
		t.Fatalf("forward Ends mismatch: %v %v %v %v", ahead, behind, rem, done)
	}
	ahead, behind, rem, done = InTransit(1, 0.25).Reversed().Ends(c)
	if ahead != city(1) || behind != city(2) || rem != 0.25 || done != 0.75 {
		t.Fatalf("reversed Ends mismatch: %v %v %v %v", ahead, behind, rem, done)
	}
	if InTransit(1, 1).IsAt(city(2)) {
		t.Fatalf("in-transit unit must never count as at an area")
	}
	if !AtArea(city(2)).IsAt(city(2)) {
		t.Fatalf("AtArea(CITY_2) should be at CITY_2")
	}
	if got := InTransit(1, 1.7).Progress; got != 1 {
		t.Fatalf("progress should clamp to 1, got %v", got)
	}
}

func TestExactHeuristic(t *testing.T) {
	g := chain(t, 4)
	h := ExactHeuristic(g, ShortestDistance)
	if got := h(city(1), city(4)); got != 30 {
		t.Fatalf("h(1,4)=%v want 30", got)
	}
	if got := h(city(4), city(4)); got != 0 {
		t.Fatalf("h(4,4)=%v want 0", got)
	}
	if got := h(AreaID{Kind: "PORT", Number: 1}, city(4)); !math.IsInf(got, 1) {
		t.Fatalf("unknown area should be +Inf, got %v", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")
	raw := `{
	  "areas":[{"kind":"CITY","number":1,"name":"Hamburg"},{"kind":"PORT","number":2}],
	  "connections":[{"id":7,"a":"CITY_1","z":"PORT_2","distance":12.5,"width":3,"class":"river"}]
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c, ok := g.Connection(7)
	if !ok || c.Distance != 12500 || c.Width != 3 || c.Class != "river" {
		t.Fatalf("connection mismatch: %+v", c)
	}
	if a, ok := g.Area(city(1)); !ok || a.Name != "Hamburg" {
		t.Fatalf("area mismatch: %+v", a)
	}
	if g.Digest == "" {
		t.Fatalf("expected digest")
	}
}

func TestParse_SchemaViolation(t *testing.T) {
	bad := []string{
		`{"areas":[{"kind":"city","number":1}],"connections":[]}`,
		`{"areas":[],"connections":[{"id":1,"a":"CITY_1","z":"CITY_2","distance":-3}]}`,
		`{"areas":[]}`,
		`{"areas":[],"connections":[],"extra":true}`,
	}
	for _, raw := range bad {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected schema error for %s", raw)
		}
	}
}

func TestParse_RepoMap(t *testing.T) {
	if _, err := Load("../../../configs/map.json"); err != nil {
		t.Fatalf("load configs/map.json: %v", err)
	}
}
