package market

import (
	"testing"

	"caravan.ai/internal/sim/geo"
)

func TestLoadTable_Repo(t *testing.T) {
	tab, err := LoadTable("../../../configs/market.yaml")
	if err != nil {
		t.Fatalf("load market.yaml: %v", err)
	}
	q, ok := tab.Quote(geo.AreaID{Kind: "CITY", Number: 1}, "SALT")
	if !ok || q.Buy != 4 || q.Sell != 3 {
		t.Fatalf("CITY_1 SALT quote=%+v ok=%v", q, ok)
	}
	if _, ok := tab.Quote(geo.AreaID{Kind: "CITY", Number: 1}, "SPICE"); ok {
		t.Fatalf("unpriced good should miss")
	}

	g, err := geo.Load("../../../configs/map.json")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	if err := tab.Validate(g); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseTable_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"bad area":     "areas:\n  nowhere:\n    SALT: {buy: 2, sell: 1}\n",
		"sell > buy":   "areas:\n  CITY_1:\n    SALT: {buy: 2, sell: 5}\n",
		"zero buy":     "areas:\n  CITY_1:\n    SALT: {buy: 0, sell: 0}\n",
		"invalid yaml": "areas: [",
	} {
		if _, err := ParseTable([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTable_ZeroValue(t *testing.T) {
	var tab Table
	area := geo.AreaID{Kind: "PORT", Number: 2}
	if _, ok := tab.Quote(area, "SALT"); ok {
		t.Fatalf("empty table should miss")
	}
	if err := tab.Set(area, "SALT", Quote{Buy: 3, Sell: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if q, ok := tab.Quote(area, "SALT"); !ok || q.Buy != 3 {
		t.Fatalf("quote=%+v ok=%v", q, ok)
	}

	g, err := geo.NewGraph([]geo.Area{{ID: geo.AreaID{Kind: "CITY", Number: 1}}}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := tab.Validate(g); err == nil {
		t.Fatalf("expected unknown area error")
	}
}
