// Package healpix resolves cells of the nested HEALPix scheme into
// geographic polygons and center points.
//
// A cell id is decomposed into its base face and the (x, y) position inside
// that face. The position is placed on the HEALPix projection plane (t, u),
// where every base face is a diamond of half diagonal π/4, and projected back
// onto the sphere. Geographic coordinates are derived from the resulting unit
// vector.
package healpix

import (
	"errors"
	"fmt"
	"math"
)

// MaxNside is the largest resolution whose cell ids fit in an int64.
const MaxNside = 1 << 29

var (
	ErrInvalidCell       = errors.New("invalid cell")
	ErrInvalidResolution = errors.New("invalid resolution")
)

// InvalidCellError reports a cell id outside [0, 12·nside²).
type InvalidCellError struct {
	Cell  int64
	Nside int
}

func (e *InvalidCellError) Error() string {
	return fmt.Sprintf("invalid cell %d for nside %d", e.Cell, e.Nside)
}

func (e *InvalidCellError) Is(target error) bool {
	return target == ErrInvalidCell
}

// LonLat is a geographic coordinate in degrees.
type LonLat struct {
	Lon float64
	Lat float64
}

// Vec3 is a unit vector on the sphere.
type Vec3 struct {
	X, Y, Z float64
}

// face centers on the projection plane, in units of π/4
var (
	faceRow = [12]int{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	faceCol = [12]int{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// ValidateNside checks that nside is a power of two accepted by the scheme.
func ValidateNside(nside int) error {
	if nside < 1 || nside > MaxNside || nside&(nside-1) != 0 {
		return fmt.Errorf("%w: nside %d is not a power of two in [1, %d]: %w",
			ErrInvalidResolution, nside, MaxNside, ErrInvalidCell)
	}
	return nil
}

// NumCells returns the number of cells at the given resolution.
func NumCells(nside int) int64 {
	return 12 * int64(nside) * int64(nside)
}

func validate(cell int64, nside int) error {
	if err := ValidateNside(nside); err != nil {
		return err
	}
	if cell < 0 || cell >= NumCells(nside) {
		return &InvalidCellError{Cell: cell, Nside: nside}
	}
	return nil
}

// compressBits gathers the even bits of v into the low half.
func compressBits(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | v>>1) & 0x3333333333333333
	v = (v | v>>2) & 0x0f0f0f0f0f0f0f0f
	v = (v | v>>4) & 0x00ff00ff00ff00ff
	v = (v | v>>8) & 0x0000ffff0000ffff
	v = (v | v>>16) & 0x00000000ffffffff
	return v
}

// nestToFXY splits a nested cell id into face and in-face coordinates.
func nestToFXY(cell int64, nside int) (face int, x, y int64) {
	n2 := int64(nside) * int64(nside)
	face = int(cell / n2)
	k := uint64(cell % n2)
	return face, int64(compressBits(k)), int64(compressBits(k >> 1))
}

// fxyToTU returns the cell center on the projection plane.
func fxyToTU(nside int, face int, x, y int64) (t, u float64) {
	d := math.Pi / 4 / float64(nside)
	tc := float64(faceCol[face]) * math.Pi / 4
	uc := float64(3-faceRow[face]) * math.Pi / 4
	t = tc + float64(x-y)*d
	u = uc - math.Pi/4 + float64(x+y+1)*d
	return t, u
}

// tuToZPhi inverts the HEALPix projection: z is cos θ, phi the azimuth.
func tuToZPhi(t, u float64) (z, phi float64) {
	absU := math.Abs(u)
	if absU <= math.Pi/4 {
		return 8 / (3 * math.Pi) * u, t
	}
	// polar caps
	tc := (math.Floor(t/(math.Pi/2)) + 0.5) * math.Pi / 2
	if absU >= math.Pi/2 {
		return math.Copysign(1, u), tc
	}
	sigma := 2 - 4*absU/math.Pi
	z = math.Copysign(1-sigma*sigma/3, u)
	phi = tc + (t-tc)/sigma
	return z, phi
}

func zPhiToVec(z, phi float64) Vec3 {
	s := math.Sqrt(math.Max(0, (1-z)*(1+z)))
	return Vec3{X: s * math.Cos(phi), Y: s * math.Sin(phi), Z: z}
}

// VecToAngles returns the polar angle θ ∈ [0, π] and azimuth φ ∈ (-π, π].
func VecToAngles(v Vec3) (theta, phi float64) {
	theta = math.Atan2(math.Hypot(v.X, v.Y), v.Z)
	phi = math.Atan2(v.Y, v.X)
	if phi <= -math.Pi {
		phi += 2 * math.Pi
	}
	return theta, phi
}

// AnglesToLonLat converts spherical angles to degrees with the longitude
// wrapped into (-180, 180].
func AnglesToLonLat(theta, phi float64) LonLat {
	lat := 90 - theta*180/math.Pi
	lon := phi * 180 / math.Pi
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return LonLat{Lon: lon, Lat: math.Max(-90, math.Min(90, lat))}
}

func vecToLonLat(v Vec3) LonLat {
	return AnglesToLonLat(VecToAngles(v))
}

// Corners returns the corner vectors of a cell ordered north, west, south, east.
func Corners(cell int64, nside int) ([4]Vec3, error) {
	var res [4]Vec3
	if err := validate(cell, nside); err != nil {
		return res, err
	}
	face, x, y := nestToFXY(cell, nside)
	t, u := fxyToTU(nside, face, x, y)
	d := math.Pi / 4 / float64(nside)
	offsets := [4][2]float64{{0, d}, {-d, 0}, {0, -d}, {d, 0}}
	for i, o := range offsets {
		res[i] = zPhiToVec(tuToZPhi(t+o[0], u+o[1]))
	}
	return res, nil
}

// CenterVec returns the unit vector of the cell center.
func CenterVec(cell int64, nside int) (Vec3, error) {
	if err := validate(cell, nside); err != nil {
		return Vec3{}, err
	}
	face, x, y := nestToFXY(cell, nside)
	return zPhiToVec(tuToZPhi(fxyToTU(nside, face, x, y))), nil
}

// CellToPolygon returns the closed ring of a cell: four corners followed by
// the first corner again.
func CellToPolygon(cell int64, nside int) ([]LonLat, error) {
	corners, err := Corners(cell, nside)
	if err != nil {
		return nil, err
	}
	ring := make([]LonLat, 0, RingSize)
	for _, c := range corners {
		ring = append(ring, vecToLonLat(c))
	}
	return append(ring, ring[0]), nil
}

// CellToCenter returns the geographic center of a cell.
func CellToCenter(cell int64, nside int) (LonLat, error) {
	v, err := CenterVec(cell, nside)
	if err != nil {
		return LonLat{}, err
	}
	return vecToLonLat(v), nil
}

// RingSize is the number of vertices of every closed cell ring.
const RingSize = 5

// AppendPolygon appends the closed ring of a cell to dst as interleaved
// lon, lat pairs and returns the vertex count.
func AppendPolygon(dst []float32, cell int64, nside int) ([]float32, int, error) {
	corners, err := Corners(cell, nside)
	if err != nil {
		return dst, 0, err
	}
	var first LonLat
	for i, c := range corners {
		ll := vecToLonLat(c)
		if i == 0 {
			first = ll
		}
		dst = append(dst, float32(ll.Lon), float32(ll.Lat))
	}
	dst = append(dst, float32(first.Lon), float32(first.Lat))
	return dst, RingSize, nil
}
