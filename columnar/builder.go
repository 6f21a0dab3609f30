// Package columnar turns a stream of HEALPix rows into render ready column
// sets: one closed ring per row, per row colors and the most probable track.
package columnar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/metrico/healpipe/colormap"
	"github.com/metrico/healpipe/healpix"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/utils"
)

// checkEvery is the number of rows between two context checks in Build.
const checkEvery = 4096

// Layout selects the columns and the color policy of a build.
type Layout struct {
	Name   string
	Kind   model.Kind
	Nside  int
	Policy colormap.Policy
}

// LayoutFor resolves the layout of a dataset.
func LayoutFor(ds model.Dataset) (Layout, error) {
	ds = ds.WithDefaults()
	if err := ds.Validate(); err != nil {
		return Layout{}, err
	}
	if err := healpix.ValidateNside(ds.Nside); err != nil {
		return Layout{}, err
	}
	p, err := colormap.NewPolicy(ds.Color)
	if err != nil {
		return Layout{}, fmt.Errorf("dataset %q: %w", ds.Name, err)
	}
	if p.Scope == colormap.ScopeTimestep && !ds.Kind.HasTime() {
		return Layout{}, fmt.Errorf("dataset %q: %s rows have no timestamps for policy %q",
			ds.Name, ds.Kind, p.Name)
	}
	return Layout{Name: ds.Name, Kind: ds.Kind, Nside: ds.Nside, Policy: p}, nil
}

// RowReader is the row stream consumed by Build. Next returns io.EOF after
// the last row.
type RowReader interface {
	RowCount() int
	Next() (model.Row, error)
}

// Result is the output of one build.
type Result struct {
	Data *ColumnSet
	// MostProbable and Line are nil for layouts without a track.
	MostProbable *ColumnSet
	Line         *Line
}

type group struct {
	started bool
	time    int64
	start   int
}

// Builder fills pre-allocated column buffers one row at a time. It is owned
// by a single goroutine.
type Builder struct {
	layout Layout
	rows   int
	n      int
	done   bool

	geom   *PolygonBuffer
	dates  []int64
	values []float32
	colors []uint8

	years      []int16
	temps      []float32
	tempColors []uint8
	sals       []float32
	salColors  []uint8

	group group

	track *Track
}

// NewBuilder allocates the buffers of rows rows for the layout.
func NewBuilder(rows int, layout Layout) *Builder {
	if rows < 0 {
		rows = 0
	}
	b := &Builder{
		layout: layout,
		rows:   rows,
		geom:   NewPolygonBuffer(rows, healpix.RingSize),
	}
	if layout.Kind == model.KindDestine {
		b.years = make([]int16, rows)
		b.temps = make([]float32, rows)
		b.tempColors = make([]uint8, rows*4)
		b.sals = make([]float32, rows)
		b.salColors = make([]uint8, rows*4)
	} else {
		b.values = make([]float32, rows)
		b.colors = make([]uint8, rows*4)
	}
	if layout.Kind.HasTime() {
		b.dates = make([]int64, rows)
	}
	if layout.Kind.HasTrack() {
		b.track = NewTrack(layout.Name+".track", layout.Nside, rows)
	}
	return b
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	return b.n
}

func put(dst []uint8, i int, c colormap.RGBA) {
	copy(dst[i*4:i*4+4], c[:])
}

// Append adds the next row in source order.
func (b *Builder) Append(row model.Row) error {
	if b.done {
		return fmt.Errorf("append after finish")
	}
	if b.n >= b.rows {
		return fmt.Errorf("%w: source yields more than %d declared rows", ErrRowCountMismatch, b.rows)
	}
	i := b.n
	coords, nv, err := healpix.AppendPolygon(b.geom.Coords, row.Cell, b.layout.Nside)
	if err != nil {
		return fmt.Errorf("row %d: %w", i, err)
	}
	b.geom.Coords = coords
	b.geom.RingOffsets[i+1] = b.geom.RingOffsets[i] + int32(nv)

	if b.dates != nil {
		b.dates[i] = row.Millis()
	}
	if b.layout.Kind == model.KindDestine {
		b.appendEnv(i, row.Env)
	} else {
		b.values[i] = float32(row.Value)
		b.color(i, row.Time)
	}
	if b.track != nil {
		if err := b.track.Observe(row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	b.n++
	return nil
}

func (b *Builder) appendEnv(i int, env *model.Environment) {
	if env == nil {
		nan := float32(math.NaN())
		b.temps[i], b.sals[i] = nan, nan
	} else {
		b.years[i] = env.Year
		b.temps[i] = float32(env.Temperature)
		b.sals[i] = float32(env.Salinity)
	}
	p := b.layout.Policy
	if p.Scope == colormap.ScopeRow {
		put(b.tempColors, i, p.Color(float64(b.temps[i]), p.Extent))
		put(b.salColors, i, p.Color(float64(b.sals[i]), p.Extent))
	}
}

func (b *Builder) color(i int, ts int64) {
	p := b.layout.Policy
	v := float64(b.values[i])
	switch p.Scope {
	case colormap.ScopeRow:
		put(b.colors, i, p.Color(v, p.Extent))
	case colormap.ScopeTimestep:
		if !b.group.started || ts != b.group.time {
			b.flush(i)
			b.group = group{started: true, time: ts, start: i}
		}
	}
}

// flush colors the rows of the open timestep, which ends before row end.
func (b *Builder) flush(end int) {
	if !b.group.started {
		return
	}
	ext := colormap.Of(b.values[b.group.start:end])
	for j := b.group.start; j < end; j++ {
		put(b.colors, j, b.layout.Policy.Color(float64(b.values[j]), ext))
	}
	b.group.started = false
}

// Finish completes the deferred colors and returns the column sets. The
// builder cannot be used afterwards.
func (b *Builder) Finish() (*Result, error) {
	if b.done {
		return nil, fmt.Errorf("builder already finished")
	}
	if b.n != b.rows {
		return nil, fmt.Errorf("%w: source yielded %d of %d declared rows", ErrRowCountMismatch, b.n, b.rows)
	}
	b.done = true
	b.geom.PolygonOffsets = identityOffsets(b.n)

	p := b.layout.Policy
	switch {
	case b.layout.Kind == model.KindDestine:
		if p.Scope != colormap.ScopeRow {
			tempRange, salRange := colormap.Of(b.temps[:b.n]), colormap.Of(b.sals[:b.n])
			for j := 0; j < b.n; j++ {
				put(b.tempColors, j, p.Color(float64(b.temps[j]), tempRange))
				put(b.salColors, j, p.Color(float64(b.sals[j]), salRange))
			}
		}
	case p.Scope == colormap.ScopeTimestep:
		b.flush(b.n)
	case p.Scope == colormap.ScopeGlobal:
		ext := colormap.Of(b.values[:b.n])
		for j := 0; j < b.n; j++ {
			put(b.colors, j, p.Color(float64(b.values[j]), ext))
		}
	}

	data, err := NewColumnSet(b.layout.Name, b.n, b.columns()...)
	if err != nil {
		return nil, err
	}
	res := &Result{Data: data}
	if b.track != nil {
		res.MostProbable, res.Line, err = b.track.Finish()
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (b *Builder) columns() []IColumn {
	geom := NewPolygonColumn(ColGeometry, b.geom)
	switch b.layout.Kind {
	case model.KindDestine:
		return []IColumn{
			geom,
			Int16Column(ColYear, b.years),
			Float32Column(ColTemperature, b.temps),
			ColorColumn(ColTemperatureColor, b.tempColors),
			Float32Column(ColSalinity, b.sals),
			ColorColumn(ColSalinityColor, b.salColors),
		}
	case model.KindSpecies:
		return []IColumn{
			geom,
			Float32Column(ColValue, b.values),
			ColorColumn(ColColor, b.colors),
		}
	default:
		return []IColumn{
			DateColumn(ColDate, b.dates),
			geom,
			Float32Column(ColValue, b.values),
			ColorColumn(ColColor, b.colors),
		}
	}
}

// Build drains src into a new builder. ctx is checked between rows.
func Build(ctx context.Context, src RowReader, layout Layout) (*Result, error) {
	start := time.Now()
	b := NewBuilder(src.RowCount(), layout)
	for i := 0; ; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := b.Append(row); err != nil {
			return nil, err
		}
	}
	res, err := b.Finish()
	if err != nil {
		return nil, err
	}
	utils.Logger().Debug("computed polygons",
		"dataset", layout.Name, "kind", layout.Kind, "rows", b.n, "elapsed", time.Since(start))
	return res, nil
}
