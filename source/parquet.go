package source

import (
	"context"
	"io"
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/metrico/healpipe/model"
)

const defaultBatchSize = 64 * 1024

type field int

const (
	fCell field = iota
	fTime
	fValue
	fTemperature
	fPressure
	fEnvTemperature
	fSalinity
	fYear
	numFields
)

// projection returns the file column of every row field, "" when the kind
// does not use the field.
func projection(kind model.Kind, c model.Columns) [numFields]string {
	var p [numFields]string
	p[fCell] = c.Cell
	if kind == model.KindDestine {
		p[fEnvTemperature] = c.EnvTemperature
		p[fSalinity] = c.Salinity
		p[fYear] = c.Year
		return p
	}
	if kind.HasTime() {
		p[fTime] = c.Time
	}
	p[fValue] = c.Value
	if kind.HasTrack() {
		p[fTemperature] = c.Temperature
		p[fPressure] = c.Pressure
	}
	return p
}

// required lists the fields a file must provide.
func required(kind model.Kind) []field {
	switch kind {
	case model.KindDestine:
		return []field{fCell, fEnvTemperature, fSalinity}
	case model.KindSpecies:
		return []field{fCell, fValue}
	}
	return []field{fCell, fTime, fValue}
}

type parquetSource struct {
	closer  io.Closer
	rr      pqarrow.RecordReader
	rec     arrow.Record
	cols    [numFields]arrow.Array
	index   [numFields]int
	pos     int
	count   int
	perTick int64
	kind    model.Kind
}

func openFile(ctx context.Context, path string, opts Options) (RowSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, readErr("open %s: %v", path, err)
	}
	src, err := newParquet(ctx, f, f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// newParquet reads the projected columns of a Parquet file batch by batch.
// closer is closed with the source and may be nil.
func newParquet(ctx context.Context, r parquet.ReaderAtSeeker, closer io.Closer, opts Options) (*parquetSource, error) {
	perTick, err := unitMicros(opts.Columns.TimeUnit)
	if err != nil {
		return nil, readErr("%v", err)
	}
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, readErr("parquet: %v", err)
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: batch}, memory.DefaultAllocator)
	if err != nil {
		return nil, readErr("parquet: %v", err)
	}

	names := projection(opts.Kind, opts.Columns)
	schema := pf.MetaData().Schema
	var indices []int
	for _, name := range names {
		if name == "" {
			continue
		}
		if idx := schema.ColumnIndexByName(name); idx >= 0 {
			indices = append(indices, idx)
		}
	}

	rr, err := fr.GetRecordReader(ctx, indices, nil)
	if err != nil {
		return nil, readErr("parquet: %v", err)
	}
	var index [numFields]int
	for f, name := range names {
		index[f] = -1
		if name == "" {
			continue
		}
		if found := rr.Schema().FieldIndices(name); len(found) > 0 {
			index[f] = found[0]
		}
	}
	for _, f := range required(opts.Kind) {
		if index[f] < 0 {
			rr.Release()
			return nil, readErr("column %q not found", names[f])
		}
	}
	return &parquetSource{
		closer:  closer,
		rr:      rr,
		index:   index,
		count:   int(pf.NumRows()),
		perTick: perTick,
		kind:    opts.Kind,
	}, nil
}

func (s *parquetSource) RowCount() int {
	return s.count
}

func (s *parquetSource) advance() error {
	for s.rec == nil || s.pos >= int(s.rec.NumRows()) {
		if !s.rr.Next() {
			if err := s.rr.Err(); err != nil && err != io.EOF {
				return readErr("parquet: %v", err)
			}
			return io.EOF
		}
		s.rec = s.rr.Record()
		s.pos = 0
		for f, idx := range s.index {
			s.cols[f] = nil
			if idx >= 0 {
				s.cols[f] = s.rec.Column(idx)
			}
		}
	}
	return nil
}

func (s *parquetSource) Next() (model.Row, error) {
	if err := s.advance(); err != nil {
		return model.Row{}, err
	}
	i := s.pos
	s.pos++

	var row model.Row
	cell, err := integer(s.cols[fCell], i)
	if err != nil {
		return row, readErr("cell: %v", err)
	}
	row.Cell = cell

	if s.kind == model.KindDestine {
		year, _ := numeric(s.cols[fYear], i)
		row.Env = &model.Environment{
			Temperature: orNaN(numeric(s.cols[fEnvTemperature], i)),
			Salinity:    orNaN(numeric(s.cols[fSalinity], i)),
			Year:        int16(year),
		}
		return row, nil
	}
	if col := s.cols[fTime]; col != nil {
		if row.Time, err = timestamp(col, i, s.perTick); err != nil {
			return row, readErr("time: %v", err)
		}
	}
	row.Value, _ = numeric(s.cols[fValue], i)
	temp, okT := numeric(s.cols[fTemperature], i)
	pres, okP := numeric(s.cols[fPressure], i)
	if okT && okP {
		row.Aux = &model.Auxiliary{Temperature: temp, Pressure: pres}
	}
	return row, nil
}

func (s *parquetSource) Close() error {
	s.rr.Release()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
