package transport

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/metrico/healpipe/colormap"
)

const metaName = "healpipe.name"

// Table is a read only view over reconstructed buffers.
type Table struct {
	name string
	rec  arrow.Record
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) NumRows() int {
	return int(t.rec.NumRows())
}

// Record returns the underlying record. It stays owned by the table.
func (t *Table) Record() arrow.Record {
	return t.rec
}

func (t *Table) Schema() *arrow.Schema {
	return t.rec.Schema()
}

// Release frees the record. The table cannot be used afterwards.
func (t *Table) Release() {
	if t.rec != nil {
		t.rec.Release()
		t.rec = nil
	}
}

func (t *Table) Column(name string) (arrow.Array, error) {
	idx := t.rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("table %q has no column %q", t.name, name)
	}
	return t.rec.Column(idx[0]), nil
}

func typed[A arrow.Array](t *Table, name string) (A, error) {
	var zero A
	col, err := t.Column(name)
	if err != nil {
		return zero, err
	}
	a, ok := col.(A)
	if !ok {
		return zero, fmt.Errorf("column %q has type %s", name, col.DataType())
	}
	return a, nil
}

func (t *Table) Float32(name string) ([]float32, error) {
	a, err := typed[*array.Float32](t, name)
	if err != nil {
		return nil, err
	}
	return a.Float32Values(), nil
}

func (t *Table) Float64(name string) ([]float64, error) {
	a, err := typed[*array.Float64](t, name)
	if err != nil {
		return nil, err
	}
	return a.Float64Values(), nil
}

func (t *Table) Int16(name string) ([]int16, error) {
	a, err := typed[*array.Int16](t, name)
	if err != nil {
		return nil, err
	}
	return a.Int16Values(), nil
}

// Date returns a date column as milliseconds since the epoch.
func (t *Table) Date(name string) ([]arrow.Date64, error) {
	a, err := typed[*array.Date64](t, name)
	if err != nil {
		return nil, err
	}
	return a.Date64Values(), nil
}

// Colors returns the flat RGBA buffer of a color column.
func (t *Table) Colors(name string) ([]uint8, error) {
	a, err := typed[*array.FixedSizeList](t, name)
	if err != nil {
		return nil, err
	}
	rgba, ok := a.ListValues().(*array.Uint8)
	if !ok {
		return nil, fmt.Errorf("column %q is not a color column", name)
	}
	return rgba.Uint8Values(), nil
}

// Color returns the color of row i.
func (t *Table) Color(name string, i int) (colormap.RGBA, error) {
	var c colormap.RGBA
	rgba, err := t.Colors(name)
	if err != nil {
		return c, err
	}
	copy(c[:], rgba[i*4:i*4+4])
	return c, nil
}

// Points returns the interleaved lon, lat pairs of a point column.
func (t *Table) Points(name string) ([]float32, error) {
	a, err := typed[*array.FixedSizeList](t, name)
	if err != nil {
		return nil, err
	}
	xy, ok := a.ListValues().(*array.Float32)
	if !ok {
		return nil, fmt.Errorf("column %q is not a point column", name)
	}
	return xy.Float32Values(), nil
}

// Point returns the position of row i of a point column.
func (t *Table) Point(name string, i int) ([2]float32, error) {
	xy, err := t.Points(name)
	if err != nil {
		return [2]float32{}, err
	}
	return [2]float32{xy[2*i], xy[2*i+1]}, nil
}

func (t *Table) rings(name string) (*array.List, *array.List, []float32, error) {
	polys, err := typed[*array.List](t, name)
	if err != nil {
		return nil, nil, nil, err
	}
	rings, ok := polys.ListValues().(*array.List)
	if !ok {
		return nil, nil, nil, fmt.Errorf("column %q is not a polygon column", name)
	}
	verts, ok := rings.ListValues().(*array.FixedSizeList)
	if !ok {
		return nil, nil, nil, fmt.Errorf("column %q is not a polygon column", name)
	}
	xy, ok := verts.ListValues().(*array.Float32)
	if !ok {
		return nil, nil, nil, fmt.Errorf("column %q is not a polygon column", name)
	}
	return polys, rings, xy.Float32Values(), nil
}

// Coords returns the flat vertex buffer of a polygon column.
func (t *Table) Coords(name string) ([]float32, error) {
	_, _, xy, err := t.rings(name)
	return xy, err
}

// Ring returns the outer ring of polygon i.
func (t *Table) Ring(name string, i int) ([][2]float32, error) {
	polys, rings, xy, err := t.rings(name)
	if err != nil {
		return nil, err
	}
	first, _ := polys.ValueOffsets(i)
	from, to := rings.ValueOffsets(int(first))
	res := make([][2]float32, 0, to-from)
	for v := from; v < to; v++ {
		res = append(res, [2]float32{xy[2*v], xy[2*v+1]})
	}
	return res, nil
}

// WriteIPC writes the table as an Arrow IPC stream.
func WriteIPC(w io.Writer, t *Table) error {
	wr := ipc.NewWriter(w, ipc.WithSchema(t.rec.Schema()))
	if err := wr.Write(t.rec); err != nil {
		wr.Close()
		return err
	}
	return wr.Close()
}

// ReadIPC reads a table written by WriteIPC.
func ReadIPC(r io.Reader) (*Table, error) {
	rdr, err := ipc.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer rdr.Release()
	if !rdr.Next() {
		if err := rdr.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ipc stream has no record")
	}
	rec := rdr.Record()
	rec.Retain()
	name, _ := rec.Schema().Metadata().GetValue(metaName)
	return &Table{name: name, rec: rec}, nil
}
