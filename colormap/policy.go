package colormap

import (
	"fmt"

	"github.com/metrico/healpipe/model"
)

// Scope tells the builder when the colors of a policy can be computed.
type Scope int

const (
	// ScopeRow colors every row as soon as it is read, on a fixed extent.
	ScopeRow Scope = iota
	// ScopeTimestep colors the rows of a timestep once the timestep is
	// complete, on the extent of that timestep.
	ScopeTimestep
	// ScopeGlobal colors all rows after the last one, on the dataset extent.
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeRow:
		return "row"
	case ScopeTimestep:
		return "timestep"
	case ScopeGlobal:
		return "global"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Func maps a value and an extent to a color.
type Func func(v float64, ext Extent) RGBA

// Policy is a resolved color configuration.
type Policy struct {
	Name  model.PolicyName
	Scope Scope
	// Extent is the fixed extent of ScopeRow policies.
	Extent Extent
	Fn     Func
}

// Color applies the policy. ext is ignored for ScopeRow policies.
func (p Policy) Color(v float64, ext Extent) RGBA {
	if p.Scope == ScopeRow {
		ext = p.Extent
	}
	return p.Fn(v, ext)
}

// NewPolicy resolves a dataset color configuration. Policies without a
// configured extent fall back to the dataset extent, except the timestep
// policy which always uses the extent of each timestep.
func NewPolicy(cfg model.ColorPolicy) (Policy, error) {
	p := Policy{Name: cfg.Policy, Scope: ScopeGlobal}
	if len(cfg.Extent) == 2 {
		p.Scope = ScopeRow
		p.Extent = Span(cfg.Extent[0], cfg.Extent[1])
	} else if len(cfg.Extent) != 0 {
		return p, fmt.Errorf("color policy %q: extent needs 2 values", cfg.Policy)
	}

	switch cfg.Policy {
	case model.PolicyTimestep:
		p.Scope = ScopeTimestep
		p.Fn = Log
	case model.PolicyLog:
		p.Fn = Log
	case model.PolicyInferno:
		p.Fn = Inferno
	case model.PolicyFixed:
		if p.Scope != ScopeRow {
			return p, fmt.Errorf("color policy %q requires an extent", cfg.Policy)
		}
		p.Fn = Linear
	case model.PolicyAlpha:
		rescale := [2]float64{0, 1}
		if len(cfg.AlphaRescale) == 2 {
			rescale = [2]float64{cfg.AlphaRescale[0], cfg.AlphaRescale[1]}
		} else if len(cfg.AlphaRescale) != 0 {
			return p, fmt.Errorf("color policy %q: alpha_rescale needs 2 values", cfg.Policy)
		}
		if rescale[0] < 0 || rescale[1] > 1 || rescale[0] > rescale[1] {
			return p, fmt.Errorf("color policy %q: alpha_rescale %v is not a sub range of [0, 1]",
				cfg.Policy, rescale)
		}
		alphaMax := cfg.AlphaMax
		if alphaMax <= 0 || alphaMax > 255 {
			alphaMax = DefaultAlphaMax
		}
		p.Fn = func(v float64, ext Extent) RGBA {
			return Alpha(v, ext, rescale, alphaMax)
		}
	default:
		return p, fmt.Errorf("unknown color policy %q", cfg.Policy)
	}
	return p, nil
}
