package source

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/metrico/healpipe/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParquet(t *testing.T, schema *arrow.Schema, fill func(b *array.RecordBuilder)) string {
	t.Helper()
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	fill(b)
	rec := b.NewRecord()
	defer rec.Release()

	name := filepath.Join(t.TempDir(), "data.parquet")
	f, err := os.Create(name)
	require.NoError(t, err)
	defer f.Close()
	writerProps := parquet.NewWriterProperties(parquet.WithMaxRowGroupLength(2))
	w, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.NewArrowWriterProperties())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return name
}

var individualSchema = arrow.NewSchema([]arrow.Field{
	{Name: "cell_ids", Type: arrow.PrimitiveTypes.Int64},
	{Name: "time", Type: &arrow.TimestampType{Unit: arrow.Nanosecond}},
	{Name: "states", Type: arrow.PrimitiveTypes.Float64},
	{Name: "temperature", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "pressure", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

const hour = int64(3_600_000_000_000)

func individualFile(t *testing.T) string {
	return writeParquet(t, individualSchema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{3, 7, 11, 13}, nil)
		b.Field(1).(*array.TimestampBuilder).AppendValues(
			[]arrow.Timestamp{arrow.Timestamp(hour), arrow.Timestamp(hour), arrow.Timestamp(2 * hour), arrow.Timestamp(3 * hour)}, nil)
		b.Field(2).(*array.Float64Builder).AppendValues([]float64{0.1, 0.2, 0.3, 0.4}, nil)
		b.Field(3).(*array.Float64Builder).AppendValues([]float64{0, 12.5, 0, 9}, []bool{false, true, false, true})
		b.Field(4).(*array.Float64Builder).AppendValues([]float64{1, 80, 2, 0}, []bool{true, true, true, false})
	})
}

func drain(t *testing.T, src RowSource) []model.Row {
	t.Helper()
	var rows []model.Row
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func checkIndividual(t *testing.T, rows []model.Row) {
	t.Helper()
	require.Len(t, rows, 4)
	assert.Equal(t, []int64{3, 7, 11, 13}, []int64{rows[0].Cell, rows[1].Cell, rows[2].Cell, rows[3].Cell})
	assert.Equal(t, hour/1000, rows[0].Time)
	assert.Equal(t, 3*hour/1000, rows[3].Time)
	assert.Equal(t, int64(3_600_000), rows[0].Millis())
	assert.Equal(t, 0.3, rows[2].Value)
	for i, r := range rows {
		if i == 1 {
			require.NotNil(t, r.Aux)
			assert.Equal(t, model.Auxiliary{Temperature: 12.5, Pressure: 80}, *r.Aux)
			continue
		}
		assert.Nil(t, r.Aux, "row %d", i)
	}
}

func TestParquetIndividual(t *testing.T) {
	src, err := Open(context.Background(), individualFile(t), Options{Kind: model.KindIndividual, BatchSize: 1})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 4, src.RowCount())
	checkIndividual(t, drain(t, src))

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParquetIntegerTime(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "cell", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "ts", Type: arrow.PrimitiveTypes.Int64},
		{Name: "states", Type: arrow.PrimitiveTypes.Float32},
	}, nil)
	path := writeParquet(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Uint64Builder).AppendValues([]uint64{1, 2}, nil)
		b.Field(1).(*array.Int64Builder).AppendValues([]int64{1500, 2500}, nil)
		b.Field(2).(*array.Float32Builder).AppendValues([]float32{0.5, 0.25}, nil)
	})
	ds := model.Dataset{Kind: model.KindTrajectory, Columns: model.Columns{Cell: "cell", Time: "ts", TimeUnit: "ms"}}.WithDefaults()
	src, err := Open(context.Background(), path, OptionsFor(ds))
	require.NoError(t, err)
	defer src.Close()
	rows := drain(t, src)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1_500_000), rows[0].Time)
	assert.Equal(t, 0.25, rows[1].Value)
	assert.Nil(t, rows[0].Aux)
}

func TestParquetDestine(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "cell_ids", Type: arrow.PrimitiveTypes.Int64},
		{Name: "avg_tos", Type: arrow.PrimitiveTypes.Float32},
		{Name: "avg_sos", Type: arrow.PrimitiveTypes.Float32, Nullable: true},
		{Name: "year", Type: arrow.PrimitiveTypes.Int16},
	}, nil)
	path := writeParquet(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{0, 1, 2}, nil)
		b.Field(1).(*array.Float32Builder).AppendValues([]float32{280, 290, 300}, nil)
		b.Field(2).(*array.Float32Builder).AppendValues([]float32{34, 0, 36}, []bool{true, false, true})
		b.Field(3).(*array.Int16Builder).AppendValues([]int16{2040, 2041, 2042}, nil)
	})
	src, err := Open(context.Background(), path, Options{Kind: model.KindDestine})
	require.NoError(t, err)
	defer src.Close()
	rows := drain(t, src)
	require.Len(t, rows, 3)
	require.NotNil(t, rows[0].Env)
	assert.Equal(t, model.Environment{Temperature: 280, Salinity: 34, Year: 2040}, *rows[0].Env)
	assert.True(t, math.IsNaN(rows[1].Env.Salinity))
	assert.Equal(t, int16(2042), rows[2].Env.Year)
}

func TestParquetMissingColumn(t *testing.T) {
	_, err := Open(context.Background(), individualFile(t), Options{Kind: model.KindDestine})
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"), Options{})
	assert.ErrorIs(t, err, ErrSourceRead)

	_, err = Open(context.Background(), "s3://bucket-only", Options{})
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestOpenHTTP(t *testing.T) {
	path := individualFile(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.parquet" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}))
	defer srv.Close()

	src, err := Open(context.Background(), srv.URL+"/data.parquet", Options{Kind: model.KindIndividual})
	require.NoError(t, err)
	defer src.Close()
	checkIndividual(t, drain(t, src))

	_, err = Open(context.Background(), srv.URL+"/missing.parquet", Options{})
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestDuckDBEngine(t *testing.T) {
	src, err := Open(context.Background(), "duckdb:"+individualFile(t), Options{Kind: model.KindIndividual})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 4, src.RowCount())
	checkIndividual(t, drain(t, src))
}

func TestLimit(t *testing.T) {
	rows := []model.Row{{Cell: 1}, {Cell: 2}, {Cell: 3}}
	src := Limit(NewMemory(rows), 2)
	assert.Equal(t, 2, src.RowCount())
	assert.Len(t, drain(t, src), 2)

	src = Limit(NewMemory(rows), 10)
	assert.Equal(t, 3, src.RowCount())
	assert.Len(t, drain(t, src), 3)

	assert.Len(t, drain(t, Limit(NewMemory(rows), 0)), 3)
}

func TestValueExpr(t *testing.T) {
	rows := []model.Row{
		{Cell: 1, Value: 2},
		{Cell: 2, Value: 3, Aux: &model.Auxiliary{Temperature: 10, Pressure: 5}},
	}
	src, err := WithValueExpr(NewMemory(rows), model.KindIndividual, "value * 2")
	require.NoError(t, err)
	out := drain(t, src)
	assert.Equal(t, 4.0, out[0].Value)
	assert.Equal(t, 6.0, out[1].Value)

	src, err = WithValueExpr(NewMemory(rows), model.KindIndividual, "temperature > 0 ? pressure : -1.0")
	require.NoError(t, err)
	out = drain(t, src)
	assert.Equal(t, -1.0, out[0].Value)
	assert.Equal(t, 5.0, out[1].Value)

	_, fields, err := CompileValueExpr("value + year")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"value", "year"}, fields)

	_, err = WithValueExpr(NewMemory(rows), model.KindIndividual, "depth * 2")
	assert.Error(t, err)
}

func TestValueExprFieldsByKind(t *testing.T) {
	_, err := WithValueExpr(NewMemory(nil), model.KindSpecies, "value * 10")
	assert.NoError(t, err)
	_, err = WithValueExpr(NewMemory(nil), model.KindSpecies, "value * pressure")
	assert.ErrorContains(t, err, "species rows have no pressure")
	_, err = WithValueExpr(NewMemory(nil), model.KindDestine, "salinity")
	assert.ErrorContains(t, err, "destine rows have no value")
	_, err = WithValueExpr(NewMemory(nil), model.KindTrajectory, "time > 0 ? value : 0.0")
	assert.NoError(t, err)
}

func TestValueExprRuntimeErrorIsReadError(t *testing.T) {
	src, err := WithValueExpr(NewMemory([]model.Row{{Cell: 1, Value: 2}}), model.KindIndividual, "value + float(cell % (cell - cell))")
	require.NoError(t, err)
	_, err = src.Next()
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestSplitS3(t *testing.T) {
	bucket, key, err := SplitS3("s3://tracks/2024/fish.parquet")
	require.NoError(t, err)
	assert.Equal(t, "tracks", bucket)
	assert.Equal(t, "2024/fish.parquet", key)

	_, _, err = SplitS3("http://tracks/x")
	assert.Error(t, err)
}
