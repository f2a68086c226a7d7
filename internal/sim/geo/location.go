package geo

import "fmt"

type LocationKind uint8

const (
	LocAtArea LocationKind = iota + 1
	LocInTransit
)

// Location is either AtArea(area) or InTransit(connection, progress).
//
// Progress is measured from the connection's A side toward its Z side and is
// kept even at 0 or 1 so that a unit sitting on an endpoint still remembers
// which edge it came along. Backward marks a unit travelling Z->A.
type Location struct {
	Kind       LocationKind
	Area       AreaID
	Connection ConnectionID
	Progress   float64
	Backward   bool
}

func AtArea(a AreaID) Location {
	return Location{Kind: LocAtArea, Area: a}
}

// InTransit places a unit on c heading toward c's Z side.
func InTransit(c ConnectionID, progress float64) Location {
	return Location{Kind: LocInTransit, Connection: c, Progress: clamp01(progress)}
}

// InTransitBackward places a unit on c heading toward c's A side.
func InTransitBackward(c ConnectionID, progress float64) Location {
	l := InTransit(c, progress)
	l.Backward = true
	return l
}

func (l Location) IsAtArea() bool    { return l.Kind == LocAtArea }
func (l Location) IsInTransit() bool { return l.Kind == LocInTransit }

// IsAt reports whether the unit is AtArea(a). An in-transit unit is never at
// an area, even with progress 0 or 1.
func (l Location) IsAt(a AreaID) bool {
	return l.Kind == LocAtArea && l.Area == a
}

// Reversed flips the heading of an in-transit location.
func (l Location) Reversed() Location {
	if l.Kind != LocInTransit {
		return l
	}
	l.Backward = !l.Backward
	return l
}

// Ends resolves an in-transit location against its connection: the endpoint
// ahead, the endpoint behind, and the fractions of c left to go and already
// covered in the current heading.
func (l Location) Ends(c Connection) (ahead, behind AreaID, remaining, travelled float64) {
	p := clamp01(l.Progress)
	if l.Backward {
		return c.A, c.Z, p, 1 - p
	}
	return c.Z, c.A, 1 - p, p
}

func (l Location) String() string {
	switch l.Kind {
	case LocAtArea:
		return fmt.Sprintf("AtArea(%s)", l.Area)
	case LocInTransit:
		dir := "A->Z"
		if l.Backward {
			dir = "Z->A"
		}
		return fmt.Sprintf("InTransit(%d, %.3f, %s)", l.Connection, l.Progress, dir)
	}
	return "Location(?)"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
