package raster

// Field is a per-cell float container with an explicit validity mask.
// Invalid cells carry no value; their slot in Values is meaningless.
type Field struct {
	Grid   Grid
	Values []float64
	Valid  []bool
}

// NewField returns a field with every cell invalid.
func NewField(g Grid) Field {
	return Field{
		Grid:   g,
		Values: make([]float64, g.Len()),
		Valid:  make([]bool, g.Len()),
	}
}

// Set stores v at flat index i and marks it valid.
func (f Field) Set(i int, v float64) {
	f.Values[i] = v
	f.Valid[i] = true
}

// At returns the value at flat index i and whether it is valid.
func (f Field) At(i int) (float64, bool) {
	if !f.Valid[i] {
		return 0, false
	}
	return f.Values[i], true
}

// ValidCount returns the number of valid cells.
func (f Field) ValidCount() int {
	n := 0
	for _, ok := range f.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Mask is a binary per-cell container.
type Mask struct {
	Grid Grid
	Bits []bool
}

// NewMask returns an all-false mask.
func NewMask(g Grid) Mask {
	return Mask{Grid: g, Bits: make([]bool, g.Len())}
}

// Count returns the number of true cells.
func (m Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Empty reports whether no cell is set.
func (m Mask) Empty() bool {
	for _, b := range m.Bits {
		if b {
			return false
		}
	}
	return true
}

// Resample projects m onto target by sampling m at each target cell centre.
// Target cells whose centre falls outside m's grid are false.
func (m Mask) Resample(target Grid) Mask {
	if m.Grid.Aligned(target) {
		out := NewMask(target)
		copy(out.Bits, m.Bits)
		return out
	}
	out := NewMask(target)
	for i := range out.Bits {
		x, y := target.Center(target.Cell(i))
		if c, ok := m.Grid.CellAt(x, y); ok {
			out.Bits[i] = m.Bits[m.Grid.Index(c)]
		}
	}
	return out
}
