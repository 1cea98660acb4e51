// Package model holds the value types shared by the flood classification pipeline.
package model

// Class is the per-cell water-state label of a classification grid.
type Class uint8

const (
	ClassUnclassified Class = 0
	ClassPerennial    Class = 1
	ClassNonWater     Class = 2
	ClassSeasonal     Class = 3
	ClassFlood        Class = 4

	// ClassMasked marks cells with no valid historical observation. It is never
	// an output label and must not be treated as one of the classes above.
	ClassMasked Class = 255
)

func (c Class) String() string {
	switch c {
	case ClassUnclassified:
		return "unclassified"
	case ClassPerennial:
		return "perennial"
	case ClassNonWater:
		return "non_water"
	case ClassSeasonal:
		return "seasonal"
	case ClassFlood:
		return "flood"
	case ClassMasked:
		return "masked"
	default:
		return "unknown"
	}
}

// Presence is the tri-state value of a PeriodMask cell.
type Presence int8

const (
	NoData   Presence = -1
	NonWater Presence = 0
	Water    Presence = 1
)

func (p Presence) String() string {
	switch p {
	case Water:
		return "water"
	case NonWater:
		return "non_water"
	default:
		return "no_data"
	}
}

// Valid reports whether the cell carries an observation.
func (p Presence) Valid() bool { return p == Water || p == NonWater }
