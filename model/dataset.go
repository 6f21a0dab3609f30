package model

import "fmt"

// Kind selects the column layout produced for a dataset.
type Kind string

const (
	// KindIndividual is a per-animal probability density with a most probable track.
	KindIndividual Kind = "individual"
	// KindSpecies is an aggregated species distribution without timestamps.
	KindSpecies Kind = "species"
	// KindDestine is a climate model field with temperature and salinity.
	KindDestine Kind = "destine"
	// KindTrajectory is a density over time colored on a fixed extent.
	KindTrajectory Kind = "trajectory"
)

// PolicyName selects how values are turned into colors.
type PolicyName string

const (
	PolicyTimestep PolicyName = "timestep"
	PolicyLog      PolicyName = "log"
	PolicyAlpha    PolicyName = "alpha"
	PolicyInferno  PolicyName = "inferno"
	PolicyFixed    PolicyName = "fixed"
)

// ColorPolicy is the per dataset color configuration. An empty Extent means
// the extent is computed over all rows of the dataset.
type ColorPolicy struct {
	Policy       PolicyName `yaml:"policy" json:"policy" mapstructure:"policy"`
	Extent       []float64  `yaml:"extent" json:"extent" mapstructure:"extent"`
	AlphaRescale []float64  `yaml:"alpha_rescale" json:"alpha_rescale" mapstructure:"alpha_rescale"`
	AlphaMax     float64    `yaml:"alpha_max" json:"alpha_max" mapstructure:"alpha_max"`
}

// Columns maps row fields to column names of the underlying file.
type Columns struct {
	Cell           string `yaml:"cell" json:"cell"`
	Time           string `yaml:"time" json:"time"`
	TimeUnit       string `yaml:"time_unit" json:"time_unit"`
	Value          string `yaml:"value" json:"value"`
	Temperature    string `yaml:"temperature" json:"temperature"`
	Pressure       string `yaml:"pressure" json:"pressure"`
	EnvTemperature string `yaml:"env_temperature" json:"env_temperature"`
	Salinity       string `yaml:"salinity" json:"salinity"`
	Year           string `yaml:"year" json:"year"`
}

// Dataset describes one source file and how to build it.
type Dataset struct {
	Name      string      `yaml:"name" json:"name"`
	Kind      Kind        `yaml:"kind" json:"kind"`
	URL       string      `yaml:"url" json:"url"`
	Nside     int         `yaml:"nside" json:"nside"`
	Engine    string      `yaml:"engine" json:"engine"`
	Color     ColorPolicy `yaml:"color" json:"color"`
	Columns   Columns     `yaml:"columns" json:"columns"`
	ValueExpr string      `yaml:"value_expr" json:"value_expr"`
	Limit     int         `yaml:"limit" json:"limit"`
}

func (k Kind) Valid() bool {
	switch k {
	case KindIndividual, KindSpecies, KindDestine, KindTrajectory:
		return true
	}
	return false
}

// HasTrack reports whether the kind carries auxiliary readings.
func (k Kind) HasTrack() bool {
	return k == KindIndividual || k == KindTrajectory
}

// HasTime reports whether rows of the kind are timestamped.
func (k Kind) HasTime() bool {
	return k == KindIndividual || k == KindTrajectory
}

func DefaultColorPolicy(k Kind) ColorPolicy {
	switch k {
	case KindIndividual:
		return ColorPolicy{Policy: PolicyTimestep}
	case KindSpecies:
		return ColorPolicy{Policy: PolicyLog}
	case KindDestine:
		return ColorPolicy{Policy: PolicyInferno}
	default:
		return ColorPolicy{Policy: PolicyFixed, Extent: []float64{0, 0.0003}}
	}
}

func DefaultColumns(k Kind) Columns {
	c := Columns{Cell: "cell_ids"}
	switch k {
	case KindDestine:
		c.EnvTemperature = "avg_tos"
		c.Salinity = "avg_sos"
		c.Year = "year"
	case KindSpecies:
		c.Value = "states"
	default:
		c.Time = "time"
		c.TimeUnit = "ns"
		c.Value = "states"
		c.Temperature = "temperature"
		c.Pressure = "pressure"
	}
	return c
}

// WithDefaults fills every unset field from the kind defaults.
func (d Dataset) WithDefaults() Dataset {
	if d.Kind == "" {
		d.Kind = KindIndividual
	}
	if d.Color.Policy == "" {
		d.Color = DefaultColorPolicy(d.Kind)
	}
	def := DefaultColumns(d.Kind)
	c := &d.Columns
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.Cell, def.Cell)
	fill(&c.Time, def.Time)
	fill(&c.TimeUnit, def.TimeUnit)
	fill(&c.Value, def.Value)
	fill(&c.Temperature, def.Temperature)
	fill(&c.Pressure, def.Pressure)
	fill(&c.EnvTemperature, def.EnvTemperature)
	fill(&c.Salinity, def.Salinity)
	fill(&c.Year, def.Year)
	return d
}

func (d *Dataset) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("dataset %q: unknown kind %q", d.Name, d.Kind)
	}
	if d.URL == "" {
		return fmt.Errorf("dataset %q: url is empty", d.Name)
	}
	if d.Nside <= 0 {
		return fmt.Errorf("dataset %q: nside must be positive", d.Name)
	}
	if n := len(d.Color.Extent); n != 0 && n != 2 {
		return fmt.Errorf("dataset %q: color extent needs 2 values, got %d", d.Name, n)
	}
	if n := len(d.Color.AlphaRescale); n != 0 && n != 2 {
		return fmt.Errorf("dataset %q: alpha_rescale needs 2 values, got %d", d.Name, n)
	}
	if d.Limit < 0 {
		return fmt.Errorf("dataset %q: negative limit", d.Name)
	}
	return nil
}
