// Package transport moves finished column sets across the worker boundary.
//
// Encode takes the buffers out of a column set without copying them, and
// Reconstruct wraps the same memory into Arrow arrays. After Encode the
// column set can no longer be read: the message is the only owner.
package transport

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/metrico/healpipe/columnar"
)

// EncodedColumn is the raw memory of one column.
type EncodedColumn struct {
	Name    string
	Kind    columnar.Kind
	Len     int
	Buffers [][]byte
}

// Message carries a table across the boundary.
type Message struct {
	Name    string
	Rows    int
	Columns []EncodedColumn
}

// Size returns the number of payload bytes.
func (m *Message) Size() int {
	n := 0
	for _, c := range m.Columns {
		for _, b := range c.Buffers {
			n += len(b)
		}
	}
	return n
}

// Encode moves the buffers of cs into a message.
func Encode(cs *columnar.ColumnSet) (*Message, error) {
	cols, err := cs.Detach()
	if err != nil {
		return nil, err
	}
	m := &Message{Name: cs.Name(), Rows: cs.NumRows(), Columns: make([]EncodedColumn, len(cols))}
	for i, c := range cols {
		m.Columns[i] = EncodedColumn{
			Name:    c.GetName(),
			Kind:    c.GetKind(),
			Len:     c.GetLength(),
			Buffers: c.Buffers(),
		}
	}
	return m, nil
}

var (
	xyField     = arrow.Field{Name: "xy", Type: arrow.PrimitiveTypes.Float32}
	pointType   = arrow.FixedSizeListOfField(2, xyField)
	colorType   = arrow.FixedSizeListOfField(4, arrow.Field{Name: "rgba", Type: arrow.PrimitiveTypes.Uint8})
	ringType    = arrow.ListOfField(arrow.Field{Name: "vertices", Type: pointType})
	polygonType = arrow.ListOfField(arrow.Field{Name: "rings", Type: ringType})
)

// DataType returns the Arrow type a column kind is reconstructed as.
func DataType(k columnar.Kind) (arrow.DataType, error) {
	switch k {
	case columnar.KindFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case columnar.KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case columnar.KindInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case columnar.KindDate:
		return arrow.FixedWidthTypes.Date64, nil
	case columnar.KindColor:
		return colorType, nil
	case columnar.KindPoint:
		return pointType, nil
	case columnar.KindPolygon:
		return polygonType, nil
	}
	return nil, fmt.Errorf("unsupported column kind %s", k)
}

func primitive(dt arrow.DataType, n int, buf []byte, width int) (arrow.ArrayData, error) {
	if len(buf) != n*width {
		return nil, fmt.Errorf("%s buffer has %d bytes, expected %d", dt, len(buf), n*width)
	}
	return array.NewData(dt, n, []*memory.Buffer{nil, memory.NewBufferBytes(buf)}, nil, 0, 0), nil
}

func fixedList(dt arrow.DataType, n int, child arrow.ArrayData) arrow.ArrayData {
	return array.NewData(dt, n, []*memory.Buffer{nil}, []arrow.ArrayData{child}, 0, 0)
}

func list(dt arrow.DataType, n int, offsets []byte, child arrow.ArrayData) (arrow.ArrayData, error) {
	if len(offsets) != (n+1)*arrow.Int32SizeBytes {
		return nil, fmt.Errorf("offsets have %d bytes, expected %d", len(offsets), (n+1)*arrow.Int32SizeBytes)
	}
	return array.NewData(dt, n, []*memory.Buffer{nil, memory.NewBufferBytes(offsets)},
		[]arrow.ArrayData{child}, 0, 0), nil
}

func decode(c EncodedColumn) (arrow.Array, error) {
	dt, err := DataType(c.Kind)
	if err != nil {
		return nil, err
	}
	want := 1
	if c.Kind == columnar.KindPolygon {
		want = 3
	}
	if len(c.Buffers) != want {
		return nil, fmt.Errorf("%s column has %d buffers, expected %d", c.Kind, len(c.Buffers), want)
	}

	var data arrow.ArrayData
	switch c.Kind {
	case columnar.KindFloat32:
		data, err = primitive(dt, c.Len, c.Buffers[0], arrow.Float32SizeBytes)
	case columnar.KindFloat64:
		data, err = primitive(dt, c.Len, c.Buffers[0], arrow.Float64SizeBytes)
	case columnar.KindInt16:
		data, err = primitive(dt, c.Len, c.Buffers[0], arrow.Int16SizeBytes)
	case columnar.KindDate:
		data, err = primitive(dt, c.Len, c.Buffers[0], arrow.Date64SizeBytes)
	case columnar.KindColor:
		var rgba arrow.ArrayData
		if rgba, err = primitive(arrow.PrimitiveTypes.Uint8, c.Len*4, c.Buffers[0], 1); err == nil {
			data = fixedList(dt, c.Len, rgba)
			rgba.Release()
		}
	case columnar.KindPoint:
		var xy arrow.ArrayData
		if xy, err = primitive(arrow.PrimitiveTypes.Float32, c.Len*2, c.Buffers[0], arrow.Float32SizeBytes); err == nil {
			data = fixedList(dt, c.Len, xy)
			xy.Release()
		}
	case columnar.KindPolygon:
		data, err = polygon(c)
	}
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.Name, err)
	}
	defer data.Release()
	return array.MakeFromData(data), nil
}

func polygon(c EncodedColumn) (arrow.ArrayData, error) {
	coords, ringOffsets, polyOffsets := c.Buffers[0], c.Buffers[1], c.Buffers[2]
	if len(coords)%(2*arrow.Float32SizeBytes) != 0 {
		return nil, fmt.Errorf("coordinate buffer has %d bytes", len(coords))
	}
	vertices := len(coords) / (2 * arrow.Float32SizeBytes)
	rings := len(ringOffsets)/arrow.Int32SizeBytes - 1
	if rings < 0 {
		return nil, fmt.Errorf("empty ring offsets")
	}
	if last := int(arrow.Int32Traits.CastFromBytes(ringOffsets)[rings]); last != vertices {
		return nil, fmt.Errorf("last ring offset %d, vertex count %d", last, vertices)
	}

	xy, err := primitive(arrow.PrimitiveTypes.Float32, vertices*2, coords, arrow.Float32SizeBytes)
	if err != nil {
		return nil, err
	}
	defer xy.Release()
	verts := fixedList(pointType, vertices, xy)
	defer verts.Release()
	ring, err := list(ringType, rings, ringOffsets, verts)
	if err != nil {
		return nil, err
	}
	defer ring.Release()
	return list(polygonType, c.Len, polyOffsets, ring)
}

// Reconstruct builds a read only table over the message buffers. The
// buffers are not copied.
func Reconstruct(m *Message) (*Table, error) {
	fields := make([]arrow.Field, len(m.Columns))
	cols := make([]arrow.Array, 0, len(m.Columns))
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}
	for i, c := range m.Columns {
		if c.Len != m.Rows {
			release()
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len, m.Rows)
		}
		arr, err := decode(c)
		if err != nil {
			release()
			return nil, err
		}
		fields[i] = arrow.Field{Name: c.Name, Type: arr.DataType()}
		cols = append(cols, arr)
	}
	md := arrow.NewMetadata([]string{metaName}, []string{m.Name})
	rec := array.NewRecord(arrow.NewSchema(fields, &md), cols, int64(m.Rows))
	release()
	return &Table{name: m.Name, rec: rec}, nil
}
