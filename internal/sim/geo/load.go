package geo

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed map.schema.json
var mapSchemaJSON string

var (
	mapSchemaOnce sync.Once
	mapSchema     *jsonschema.Schema
	mapSchemaErr  error
)

func compiledMapSchema() (*jsonschema.Schema, error) {
	mapSchemaOnce.Do(func() {
		mapSchema, mapSchemaErr = jsonschema.CompileString("map.schema.json", mapSchemaJSON)
	})
	return mapSchema, mapSchemaErr
}

type mapFile struct {
	Areas       []areaDef       `json:"areas"`
	Connections []connectionDef `json:"connections"`
}

type areaDef struct {
	Kind   string `json:"kind"`
	Number int    `json:"number"`
	Name   string `json:"name,omitempty"`
}

type connectionDef struct {
	ID       int     `json:"id"`
	A        string  `json:"a"`
	Z        string  `json:"z"`
	Distance float64 `json:"distance"`
	Width    int     `json:"width,omitempty"`
	Class    string  `json:"class,omitempty"`
}

// Load reads a map.json file into a Graph.
func Load(path string) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("map.json: %w", err)
	}
	return g, nil
}

// Parse validates raw map JSON against the embedded schema and builds the
// graph. Graph.Digest is the sha256 of raw.
func Parse(raw []byte) (*Graph, error) {
	schema, err := compiledMapSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}

	var mf mapFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, err
	}
	areas := make([]Area, 0, len(mf.Areas))
	for _, a := range mf.Areas {
		areas = append(areas, Area{
			ID:   AreaID{Kind: AreaKind(a.Kind), Number: a.Number},
			Name: a.Name,
		})
	}
	conns := make([]Connection, 0, len(mf.Connections))
	for _, c := range mf.Connections {
		a, ok := ParseAreaID(c.A)
		if !ok {
			return nil, fmt.Errorf("connection %d: bad area id %q", c.ID, c.A)
		}
		z, ok := ParseAreaID(c.Z)
		if !ok {
			return nil, fmt.Errorf("connection %d: bad area id %q", c.ID, c.Z)
		}
		conns = append(conns, Connection{
			ID:       ConnectionID(c.ID),
			A:        a,
			Z:        z,
			Distance: FixedFromFloat(c.Distance),
			Width:    c.Width,
			Class:    c.Class,
		})
	}
	g, err := NewGraph(areas, conns)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	g.Digest = hex.EncodeToString(sum[:])
	return g, nil
}
