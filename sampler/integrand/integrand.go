// Package integrand provides test integrands over the unit hypercube with
// known integrals, used to exercise the sampler without an external event
// generator.
package integrand

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Integrand evaluates a function on the unit hypercube.
type Integrand interface {
	// Eval returns f(x) for a point x in [0,1)^ndim.
	Eval(x []float64) float64
	// Integral returns the exact integral over [0,1)^ndim.
	Integral(ndim int) float64
}

// Constant is f(x) = Value.
type Constant struct {
	Value float64
}

func (c *Constant) Eval(x []float64) float64 { return c.Value }

func (c *Constant) Integral(ndim int) float64 { return c.Value }

// Gaussian is an unnormalized isotropic peak exp(−|x−c|²/2σ²) centred at
// Center in every dimension.
type Gaussian struct {
	Center float64
	Width  float64
}

func (g *Gaussian) Eval(x []float64) float64 {
	r2 := 0.0
	for _, xi := range x {
		d := xi - g.Center
		r2 += d * d
	}
	return math.Exp(-r2 / (2 * g.Width * g.Width))
}

func (g *Gaussian) Integral(ndim int) float64 {
	s := g.Width * math.Sqrt2
	one := g.Width * math.Sqrt(math.Pi/2) * (math.Erf((1-g.Center)/s) + math.Erf(g.Center/s))
	return math.Pow(one, float64(ndim))
}

// Corner is f(x) = Π (k+1)·x_d^k, concentrated towards the (1,…,1) corner
// with unit integral.
type Corner struct {
	Power float64
}

func (c *Corner) Eval(x []float64) float64 {
	f := 1.0
	for _, xi := range x {
		f *= (c.Power + 1) * math.Pow(xi, c.Power)
	}
	return f
}

func (c *Corner) Integral(ndim int) float64 { return 1 }

// Spec selects and parameterizes a built-in integrand.
type Spec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// validTypes lists the accepted integrand types with their parameters.
var validTypes = map[string][]string{
	"constant": {"value"},
	"gaussian": {"center", "width"},
	"corner":   {"power"},
}

// Names returns the accepted integrand types.
func Names() []string {
	return []string{"constant", "corner", "gaussian"}
}

// Validate checks the type and that every parameter is known and finite.
func (s *Spec) Validate() error {
	known, ok := validTypes[s.Type]
	if !ok {
		return fmt.Errorf("unknown integrand type %q; valid: constant, gaussian, corner", s.Type)
	}
	for name, val := range s.Params {
		if !contains(known, name) {
			return fmt.Errorf("integrand %s: unknown parameter %q", s.Type, name)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("integrand %s: params.%s must be a finite number, got %f", s.Type, name, val)
		}
	}
	if s.Type == "gaussian" && s.param("width", 0.1) <= 0 {
		return fmt.Errorf("integrand gaussian: width must be positive, got %f", s.param("width", 0.1))
	}
	if s.Type == "corner" && s.param("power", 4) < 0 {
		return fmt.Errorf("integrand corner: power must be non-negative, got %f", s.param("power", 4))
	}
	return nil
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Spec) param(name string, def float64) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return def
}

// New builds the integrand described by spec. Missing parameters take
// defaults: value 1; center 0.5, width 0.1; power 4.
func New(spec Spec) (Integrand, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Type {
	case "constant":
		return &Constant{Value: spec.param("value", 1)}, nil
	case "gaussian":
		return &Gaussian{Center: spec.param("center", 0.5), Width: spec.param("width", 0.1)}, nil
	default:
		return &Corner{Power: spec.param("power", 4)}, nil
	}
}

// LoadSpec reads an integrand Spec from a YAML file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading integrand spec: %w", err)
	}
	var spec Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing integrand spec: %w", err)
	}
	return &spec, nil
}
