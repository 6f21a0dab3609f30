package columnar

import (
	"math"

	"github.com/metrico/healpipe/healpix"
	"github.com/metrico/healpipe/model"
	geojson "github.com/paulmach/go.geojson"
)

// Track collects the most probable positions: the rows that carry both
// auxiliary readings, in the order they are observed.
type Track struct {
	name      string
	nside     int
	dates     []int64
	coords    []float32
	values    []float32
	pressures []float64
	temps     []float64
	points    []healpix.LonLat
}

// NewTrack returns a track sized for at most capacity rows.
func NewTrack(name string, nside int, capacity int) *Track {
	return &Track{
		name:      name,
		nside:     nside,
		dates:     make([]int64, 0, capacity),
		coords:    make([]float32, 0, capacity*2),
		values:    make([]float32, 0, capacity),
		pressures: make([]float64, 0, capacity),
		temps:     make([]float64, 0, capacity),
		points:    make([]healpix.LonLat, 0, capacity),
	}
}

// Observe keeps the row when it has auxiliary readings.
func (t *Track) Observe(row model.Row) error {
	if row.Aux == nil {
		return nil
	}
	c, err := healpix.CellToCenter(row.Cell, t.nside)
	if err != nil {
		return err
	}
	t.dates = append(t.dates, row.Millis())
	t.coords = append(t.coords, float32(c.Lon), float32(c.Lat))
	t.values = append(t.values, float32(row.Value))
	t.pressures = append(t.pressures, row.Aux.Pressure)
	t.temps = append(t.temps, row.Aux.Temperature)
	t.points = append(t.points, c)
	return nil
}

func (t *Track) Len() int {
	return len(t.dates)
}

// Finish returns the track table and its line.
func (t *Track) Finish() (*ColumnSet, *Line, error) {
	cs, err := NewColumnSet(t.name, t.Len(),
		DateColumn(ColDate, t.dates),
		PointColumn(ColGeometry, t.coords),
		Float32Column(ColValue, t.values),
		Float64Column(ColPressure, t.pressures),
		Float64Column(ColTemperature, t.temps),
	)
	if err != nil {
		return nil, nil, err
	}
	return cs, &Line{Points: t.points}, nil
}

// Line is the most probable track as an ordered list of positions.
type Line struct {
	Points []healpix.LonLat
}

func (l *Line) Len() int {
	return len(l.Points)
}

// BBox returns [minLon, minLat, maxLon, maxLat], or nil for an empty line.
func (l *Line) BBox() []float64 {
	if len(l.Points) == 0 {
		return nil
	}
	box := []float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range l.Points {
		box[0] = math.Min(box[0], p.Lon)
		box[1] = math.Min(box[1], p.Lat)
		box[2] = math.Max(box[2], p.Lon)
		box[3] = math.Max(box[3], p.Lat)
	}
	return box
}

// Feature returns the line as a GeoJSON LineString feature.
func (l *Line) Feature() *geojson.Feature {
	coords := make([][]float64, len(l.Points))
	for i, p := range l.Points {
		coords[i] = []float64{p.Lon, p.Lat}
	}
	f := geojson.NewLineStringFeature(coords)
	f.BoundingBox = l.BBox()
	f.SetProperty("points", len(l.Points))
	return f
}
