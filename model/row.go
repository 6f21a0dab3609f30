package model

// Row is one observation read from a dataset. Time is in microseconds since
// the Unix epoch.
type Row struct {
	Cell  int64
	Time  int64
	Value float64
	// Aux is set only when both temperature and pressure are present.
	Aux *Auxiliary
	Env *Environment
}

// Auxiliary holds the sensor readings attached to the most probable position.
type Auxiliary struct {
	Temperature float64
	Pressure    float64
}

// Environment holds the scalar fields of climate model datasets.
type Environment struct {
	Temperature float64
	Salinity    float64
	Year        int16
}

// Millis returns the row timestamp in milliseconds.
func (r *Row) Millis() int64 {
	return r.Time / 1000
}
