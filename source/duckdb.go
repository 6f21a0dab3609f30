package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/utils"
)

type duckSource struct {
	release func()
	rows    *sql.Rows
	fields  []field
	dest    []any
	count   int
	perTick int64
	kind    model.Kind
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// openDuckDB scans the file with read_parquet. The columns of the file are
// selected by name, the file itself is only opened by DuckDB.
func openDuckDB(ctx context.Context, path string, opts Options) (RowSource, error) {
	perTick, err := unitMicros(opts.Columns.TimeUnit)
	if err != nil {
		return nil, readErr("%v", err)
	}
	db, release, err := utils.ConnectDuckDB("")
	if err != nil {
		return nil, readErr("%v", err)
	}
	from := fmt.Sprintf("read_parquet(%s)", quoteString(path))

	var count int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+from).Scan(&count); err != nil {
		release()
		return nil, readErr("duckdb: %v", err)
	}

	names := projection(opts.Kind, opts.Columns)
	available, err := describe(ctx, db, from)
	if err != nil {
		release()
		return nil, err
	}
	var fields []field
	var selects []string
	for f, name := range names {
		if name == "" || !available[name] {
			continue
		}
		fields = append(fields, field(f))
		selects = append(selects, quoteIdent(name))
	}
	for _, f := range required(opts.Kind) {
		if !available[names[f]] {
			release()
			return nil, readErr("column %q not found", names[f])
		}
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), from))
	if err != nil {
		release()
		return nil, readErr("duckdb: %v", err)
	}
	dest := make([]any, len(fields))
	for i := range dest {
		dest[i] = new(any)
	}
	return &duckSource{
		release: release,
		rows:    rows,
		fields:  fields,
		dest:    dest,
		count:   int(count),
		perTick: perTick,
		kind:    opts.Kind,
	}, nil
}

func describe(ctx context.Context, db *sql.DB, from string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+from+" LIMIT 0")
	if err != nil {
		return nil, readErr("duckdb: %v", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, readErr("duckdb: %v", err)
	}
	res := make(map[string]bool, len(cols))
	for _, c := range cols {
		res[c] = true
	}
	return res, nil
}

func (s *duckSource) RowCount() int {
	return s.count
}

func anyFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint8:
		return float64(x), true
	}
	return 0, false
}

func anyInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case uint64:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func (s *duckSource) Next() (model.Row, error) {
	var row model.Row
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return row, readErr("duckdb: %v", err)
		}
		return row, io.EOF
	}
	if err := s.rows.Scan(s.dest...); err != nil {
		return row, readErr("duckdb: %v", err)
	}
	var vals [numFields]any
	for i, f := range s.fields {
		vals[f] = *(s.dest[i].(*any))
	}

	cell, ok := anyInt(vals[fCell])
	if !ok {
		return row, readErr("cell: unsupported value %v", vals[fCell])
	}
	row.Cell = cell

	if s.kind == model.KindDestine {
		year, _ := anyFloat(vals[fYear])
		row.Env = &model.Environment{
			Temperature: orNaN(anyFloat(vals[fEnvTemperature])),
			Salinity:    orNaN(anyFloat(vals[fSalinity])),
			Year:        int16(year),
		}
		return row, nil
	}
	switch t := vals[fTime].(type) {
	case nil:
	case time.Time:
		row.Time = t.UnixMicro()
	default:
		v, ok := anyInt(t)
		if !ok {
			return row, readErr("time: unsupported value %v", t)
		}
		row.Time = toMicros(v, s.perTick)
	}
	row.Value, _ = anyFloat(vals[fValue])
	temp, okT := anyFloat(vals[fTemperature])
	pres, okP := anyFloat(vals[fPressure])
	if okT && okP && !math.IsNaN(temp) && !math.IsNaN(pres) {
		row.Aux = &model.Auxiliary{Temperature: temp, Pressure: pres}
	}
	return row, nil
}

func (s *duckSource) Close() error {
	err := s.rows.Close()
	s.release()
	return err
}
