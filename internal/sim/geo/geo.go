package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type AreaKind string

// AreaID is the composite key of a map node.
type AreaID struct {
	Kind   AreaKind
	Number int
}

func (id AreaID) String() string {
	return fmt.Sprintf("%s_%d", id.Kind, id.Number)
}

func (id AreaID) IsZero() bool { return id.Kind == "" && id.Number == 0 }

func (id AreaID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AreaID) UnmarshalText(b []byte) error {
	parsed, ok := ParseAreaID(string(b))
	if !ok {
		return fmt.Errorf("bad area id %q", string(b))
	}
	*id = parsed
	return nil
}

// ParseAreaID parses KIND_NUMBER. The kind may itself contain underscores.
func ParseAreaID(s string) (AreaID, bool) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i+1 >= len(s) {
		return AreaID{}, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 {
		return AreaID{}, false
	}
	return AreaID{Kind: AreaKind(s[:i]), Number: n}, true
}

type ConnectionID int

// Fixed is a fixed-point scalar with FixedScale units per whole world unit.
type Fixed int64

const FixedScale = 1000

func FixedFromFloat(f float64) Fixed {
	return Fixed(math.Round(f * FixedScale))
}

func (f Fixed) Float() float64 { return float64(f) / FixedScale }

func (f Fixed) String() string { return strconv.FormatFloat(f.Float(), 'f', -1, 64) }

type Area struct {
	ID   AreaID
	Name string
}

// Connection is an undirected edge. A and Z only orient transit progress.
type Connection struct {
	ID       ConnectionID
	A        AreaID
	Z        AreaID
	Distance Fixed
	Width    int
	Class    string
}

func (c Connection) Touches(a AreaID) bool { return c.A == a || c.Z == a }

// Other returns the endpoint opposite to a.
func (c Connection) Other(a AreaID) (AreaID, bool) {
	switch a {
	case c.A:
		return c.Z, true
	case c.Z:
		return c.A, true
	}
	return AreaID{}, false
}
