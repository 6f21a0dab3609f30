package columnar

import "fmt"

// PolygonBuffer stores single ring polygons as a flat vertex arena indexed by
// offset tables. Ring i spans vertices [RingOffsets[i], RingOffsets[i+1]),
// polygon i spans rings [PolygonOffsets[i], PolygonOffsets[i+1]).
type PolygonBuffer struct {
	// Coords holds interleaved lon, lat pairs.
	Coords         []float32
	RingOffsets    []int32
	PolygonOffsets []int32
}

// NewPolygonBuffer allocates a buffer for rows rings of ringSize vertices.
func NewPolygonBuffer(rows, ringSize int) *PolygonBuffer {
	return &PolygonBuffer{
		Coords:      make([]float32, 0, rows*ringSize*2),
		RingOffsets: make([]int32, rows+1),
	}
}

// Len returns the number of polygons.
func (p *PolygonBuffer) Len() int {
	return len(p.RingOffsets) - 1
}

// NumVertices returns the total vertex count.
func (p *PolygonBuffer) NumVertices() int {
	return len(p.Coords) / 2
}

// Ring returns the vertices of polygon i.
func (p *PolygonBuffer) Ring(i int) [][2]float32 {
	from, to := p.RingOffsets[i], p.RingOffsets[i+1]
	res := make([][2]float32, 0, to-from)
	for v := from; v < to; v++ {
		res = append(res, [2]float32{p.Coords[2*v], p.Coords[2*v+1]})
	}
	return res
}

// identityOffsets returns 0..n, one ring per polygon.
func identityOffsets(n int) []int32 {
	res := make([]int32, n+1)
	for i := range res {
		res[i] = int32(i)
	}
	return res
}

// Validate checks the offset tables against the vertex arena.
func (p *PolygonBuffer) Validate() error {
	if len(p.RingOffsets) == 0 || p.RingOffsets[0] != 0 {
		return fmt.Errorf("ring offsets must start at 0")
	}
	if len(p.Coords)%2 != 0 {
		return fmt.Errorf("odd coordinate count %d", len(p.Coords))
	}
	for i := 1; i < len(p.RingOffsets); i++ {
		if p.RingOffsets[i] < p.RingOffsets[i-1] {
			return fmt.Errorf("ring offsets decrease at %d", i)
		}
	}
	if last := int(p.RingOffsets[len(p.RingOffsets)-1]); last != p.NumVertices() {
		return fmt.Errorf("last ring offset %d, vertex count %d", last, p.NumVertices())
	}
	if len(p.PolygonOffsets) != len(p.RingOffsets) {
		return fmt.Errorf("polygon offsets length %d, ring offsets length %d",
			len(p.PolygonOffsets), len(p.RingOffsets))
	}
	for i := 1; i < len(p.PolygonOffsets); i++ {
		if p.PolygonOffsets[i] < p.PolygonOffsets[i-1] {
			return fmt.Errorf("polygon offsets decrease at %d", i)
		}
	}
	if last := int(p.PolygonOffsets[len(p.PolygonOffsets)-1]); last != p.Len() {
		return fmt.Errorf("last polygon offset %d, ring count %d", last, p.Len())
	}
	for i := 0; i < p.Len(); i++ {
		from, to := p.RingOffsets[i], p.RingOffsets[i+1]
		if to == from {
			continue
		}
		if p.Coords[2*from] != p.Coords[2*(to-1)] || p.Coords[2*from+1] != p.Coords[2*(to-1)+1] {
			return fmt.Errorf("ring %d is not closed", i)
		}
	}
	return nil
}
