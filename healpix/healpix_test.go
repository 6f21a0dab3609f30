package healpix

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestCellToCenterKnownCells(t *testing.T) {
	lat23 := math.Asin(2.0/3.0) * 180 / math.Pi
	cases := []struct {
		cell  int64
		nside int
		want  LonLat
	}{
		{0, 1, LonLat{Lon: 45, Lat: lat23}},
		{4, 1, LonLat{Lon: 0, Lat: 0}},
		{5, 1, LonLat{Lon: 90, Lat: 0}},
		{8, 1, LonLat{Lon: 45, Lat: -lat23}},
		{3, 2, LonLat{Lon: 45, Lat: math.Asin(1-0.25/3) * 180 / math.Pi}},
	}
	for _, c := range cases {
		got, err := CellToCenter(c.cell, c.nside)
		require.NoError(t, err)
		assert.InDelta(t, c.want.Lon, got.Lon, eps, "cell %d lon", c.cell)
		assert.InDelta(t, c.want.Lat, got.Lat, eps, "cell %d lat", c.cell)
	}
}

func TestCellToPolygonEquatorialFace(t *testing.T) {
	ring, err := CellToPolygon(4, 1)
	require.NoError(t, err)
	require.Len(t, ring, RingSize)

	lat23 := math.Asin(2.0/3.0) * 180 / math.Pi
	want := []LonLat{{0, lat23}, {-45, 0}, {0, -lat23}, {45, 0}, {0, lat23}}
	for i, w := range want {
		assert.InDelta(t, w.Lon, ring[i].Lon, eps, "vertex %d lon", i)
		assert.InDelta(t, w.Lat, ring[i].Lat, eps, "vertex %d lat", i)
	}
}

func TestCellToPolygonPolarCellReachesPole(t *testing.T) {
	ring, err := CellToPolygon(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 90, ring[0].Lat, eps)
}

func TestCellToPolygonAllCells(t *testing.T) {
	for _, nside := range []int{1, 2, 4, 8, 16} {
		for cell := int64(0); cell < NumCells(nside); cell++ {
			ring, err := CellToPolygon(cell, nside)
			require.NoError(t, err)
			require.NotEmpty(t, ring)
			assert.Equal(t, ring[0], ring[len(ring)-1], "nside %d cell %d not closed", nside, cell)
			for _, p := range ring {
				if p.Lon <= -180 || p.Lon > 180 || p.Lat < -90 || p.Lat > 90 {
					t.Fatalf("nside %d cell %d vertex out of range: %+v", nside, cell, p)
				}
			}
			center, err := CellToCenter(cell, nside)
			require.NoError(t, err)
			assert.True(t, center.Lon > -180 && center.Lon <= 180)
			assert.True(t, center.Lat >= -90 && center.Lat <= 90)
		}
	}
}

func TestCellsCoverSphereEvenly(t *testing.T) {
	// equal area cells: centers are uniform in z, so the mean z is zero
	nside := 8
	var sum float64
	for cell := int64(0); cell < NumCells(nside); cell++ {
		v, err := CenterVec(cell, nside)
		require.NoError(t, err)
		assert.InDelta(t, 1, v.X*v.X+v.Y*v.Y+v.Z*v.Z, eps)
		sum += v.Z
	}
	assert.InDelta(t, 0, sum/float64(NumCells(nside)), 1e-9)
}

func TestDeterministic(t *testing.T) {
	a, err := CellToPolygon(123456, 4096)
	require.NoError(t, err)
	b, err := CellToPolygon(123456, 4096)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestInvalidCell(t *testing.T) {
	_, err := CellToPolygon(12, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCell))
	var cellErr *InvalidCellError
	require.True(t, errors.As(err, &cellErr))
	assert.Equal(t, int64(12), cellErr.Cell)

	_, err = CellToCenter(-1, 4)
	assert.ErrorIs(t, err, ErrInvalidCell)
}

func TestInvalidResolution(t *testing.T) {
	for _, nside := range []int{0, -2, 3, 6, MaxNside * 2} {
		_, err := CellToPolygon(0, nside)
		assert.ErrorIs(t, err, ErrInvalidResolution, "nside %d", nside)
		assert.ErrorIs(t, err, ErrInvalidCell, "nside %d", nside)
	}
}

func TestAppendPolygonMatchesCellToPolygon(t *testing.T) {
	var buf []float32
	for cell := int64(0); cell < NumCells(2); cell++ {
		var n int
		var err error
		start := len(buf)
		buf, n, err = AppendPolygon(buf, cell, 2)
		require.NoError(t, err)
		require.Equal(t, RingSize, n)
		ring, err := CellToPolygon(cell, 2)
		require.NoError(t, err)
		for i, p := range ring {
			assert.Equal(t, float32(p.Lon), buf[start+2*i])
			assert.Equal(t, float32(p.Lat), buf[start+2*i+1])
		}
	}
}

func TestCompressBits(t *testing.T) {
	// k = 0b1110: x bits (even) 0b10 = 2, y bits (odd) 0b11 = 3
	assert.Equal(t, uint64(2), compressBits(0b1110))
	assert.Equal(t, uint64(3), compressBits(0b1110>>1))
	assert.Equal(t, uint64(0xffffffff), compressBits(0x5555555555555555))
}

func TestAnglesToLonLatWraps(t *testing.T) {
	ll := AnglesToLonLat(math.Pi/2, -math.Pi)
	assert.Equal(t, 180.0, ll.Lon)
	ll = AnglesToLonLat(0, 0)
	assert.Equal(t, 90.0, ll.Lat)
}
