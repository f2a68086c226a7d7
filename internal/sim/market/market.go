// Package market prices goods per area for trade steps.
package market

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"caravan.ai/internal/sim/geo"
)

// Quote is what a unit pays to buy one unit of a good and what it receives
// for selling one.
type Quote struct {
	Buy  int `yaml:"buy"`
	Sell int `yaml:"sell"`
}

type Market interface {
	Quote(area geo.AreaID, good string) (Quote, bool)
}

// Table is a static price list. The zero value is empty and usable.
type Table struct {
	prices map[geo.AreaID]map[string]Quote
}

type tableFile struct {
	Areas map[string]map[string]Quote `yaml:"areas"`
}

func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseTable(raw)
	if err != nil {
		return nil, fmt.Errorf("market.yaml: %w", err)
	}
	return t, nil
}

func ParseTable(raw []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	t := &Table{}
	for areaKey, goods := range f.Areas {
		area, ok := geo.ParseAreaID(areaKey)
		if !ok {
			return nil, fmt.Errorf("bad area id %q", areaKey)
		}
		for good, q := range goods {
			if err := t.Set(area, good, q); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) Set(area geo.AreaID, good string, q Quote) error {
	good = strings.TrimSpace(good)
	if good == "" {
		return fmt.Errorf("%s: empty good", area)
	}
	if q.Buy <= 0 || q.Sell < 0 {
		return fmt.Errorf("%s %s: buy must be > 0 and sell >= 0", area, good)
	}
	if q.Sell > q.Buy {
		return fmt.Errorf("%s %s: sell %d above buy %d", area, good, q.Sell, q.Buy)
	}
	if t.prices == nil {
		t.prices = map[geo.AreaID]map[string]Quote{}
	}
	if t.prices[area] == nil {
		t.prices[area] = map[string]Quote{}
	}
	t.prices[area][good] = q
	return nil
}

func (t *Table) Quote(area geo.AreaID, good string) (Quote, bool) {
	if t == nil {
		return Quote{}, false
	}
	q, ok := t.prices[area][good]
	return q, ok
}

// Areas lists priced areas in sorted order.
func (t *Table) Areas() []geo.AreaID {
	out := make([]geo.AreaID, 0, len(t.prices))
	for a := range t.prices {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Validate checks every priced area exists in g.
func (t *Table) Validate(g *geo.Graph) error {
	for _, a := range t.Areas() {
		if _, ok := g.Area(a); !ok {
			return fmt.Errorf("market prices unknown area %s", a)
		}
	}
	return nil
}
