package columnar

import (
	"fmt"
	"unsafe"
)

// Kind identifies the physical layout of a column.
type Kind uint8

const (
	KindFloat32 Kind = iota + 1
	KindFloat64
	KindInt16
	// KindDate holds milliseconds since the Unix epoch.
	KindDate
	// KindColor holds 4 bytes per row.
	KindColor
	// KindPolygon holds one closed ring per row.
	KindPolygon
	// KindPoint holds one lon, lat pair per row.
	KindPoint
)

var kindNames = map[Kind]string{
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindInt16:   "int16",
	KindDate:    "date",
	KindColor:   "color",
	KindPolygon: "polygon",
	KindPoint:   "point",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Column names of the produced tables.
const (
	ColDate             = "date"
	ColGeometry         = "geometry"
	ColValue            = "value"
	ColColor            = "color"
	ColPressure         = "pressure"
	ColTemperature      = "temperature"
	ColTemperatureColor = "temperatureColor"
	ColSalinity         = "salinity"
	ColSalinityColor    = "salinityColor"
	ColYear             = "year"
)

// IColumn is a named, fixed length column whose data can be exposed as raw
// little endian buffers without copying.
type IColumn interface {
	GetName() string
	GetKind() Kind
	GetLength() int
	// Buffers returns views over the column memory. The views alias the
	// column: they are only valid while the column is owned by the caller.
	Buffers() [][]byte
}

type scalar interface {
	~uint8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func asBytes[T scalar](s []T) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// Column is a flat column of fixed width values. Width is the number of
// values per row: 1 for scalars, 4 for colors, 2 for points.
type Column[T scalar] struct {
	name  string
	kind  Kind
	width int
	data  []T
}

var _ IColumn = &Column[float32]{}

func newColumn[T scalar](name string, kind Kind, width int, data []T) *Column[T] {
	return &Column[T]{name: name, kind: kind, width: width, data: data}
}

// Float32Column returns a float32 scalar column over data.
func Float32Column(name string, data []float32) *Column[float32] {
	return newColumn(name, KindFloat32, 1, data)
}

// Float64Column returns a float64 scalar column over data.
func Float64Column(name string, data []float64) *Column[float64] {
	return newColumn(name, KindFloat64, 1, data)
}

// Int16Column returns an int16 scalar column over data.
func Int16Column(name string, data []int16) *Column[int16] {
	return newColumn(name, KindInt16, 1, data)
}

// DateColumn returns a date column over millisecond timestamps.
func DateColumn(name string, millis []int64) *Column[int64] {
	return newColumn(name, KindDate, 1, millis)
}

// ColorColumn returns a color column over an RGBA byte buffer.
func ColorColumn(name string, rgba []uint8) *Column[uint8] {
	return newColumn(name, KindColor, 4, rgba)
}

// PointColumn returns a point column over interleaved lon, lat pairs.
func PointColumn(name string, coords []float32) *Column[float32] {
	return newColumn(name, KindPoint, 2, coords)
}

func (c *Column[T]) GetName() string {
	return c.name
}

func (c *Column[T]) GetKind() Kind {
	return c.kind
}

func (c *Column[T]) GetLength() int {
	return len(c.data) / c.width
}

func (c *Column[T]) Buffers() [][]byte {
	return [][]byte{asBytes(c.data)}
}

// GetData returns the backing slice.
func (c *Column[T]) GetData() []T {
	return c.data
}

// GetVal returns the values of row i.
func (c *Column[T]) GetVal(i int) []T {
	return c.data[i*c.width : (i+1)*c.width]
}

// PolygonColumn is a column of single ring polygons.
type PolygonColumn struct {
	name string
	geom *PolygonBuffer
}

var _ IColumn = &PolygonColumn{}

func NewPolygonColumn(name string, geom *PolygonBuffer) *PolygonColumn {
	return &PolygonColumn{name: name, geom: geom}
}

func (c *PolygonColumn) GetName() string {
	return c.name
}

func (c *PolygonColumn) GetKind() Kind {
	return KindPolygon
}

func (c *PolygonColumn) GetLength() int {
	return c.geom.Len()
}

// Buffers returns coordinates, ring offsets and polygon offsets.
func (c *PolygonColumn) Buffers() [][]byte {
	return [][]byte{
		asBytes(c.geom.Coords),
		asBytes(c.geom.RingOffsets),
		asBytes(c.geom.PolygonOffsets),
	}
}

// Geometry returns the underlying buffer.
func (c *PolygonColumn) Geometry() *PolygonBuffer {
	return c.geom
}
