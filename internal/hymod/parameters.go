package hymod

import (
	"errors"
	"fmt"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// VectorLength is the number of values in a per-evaluation parameter vector.
const VectorLength = 8

// ParameterOrder lists the parameter names in the order they appear in a parameter vector.
// Sample files produced for calibration and sensitivity analysis use this order.
var ParameterOrder = [VectorLength]string{"Ks", "Kq", "DDF", "Tb", "Tth", "alpha", "B", "Huz"}

// Parameters holds one HyMod parameter set.
type Parameters struct {
	Huz   float64 `json:"huz"`   // maximum height of the soil moisture tank (mm)
	B     float64 `json:"b"`     // Pareto shape of the capacity distribution
	Alpha float64 `json:"alpha"` // quick/slow split
	Nq    int     `json:"nq"`    // number of quickflow reservoirs
	Kq    float64 `json:"kq"`    // quickflow release fraction per day
	Ks    float64 `json:"ks"`    // slowflow release fraction per day

	DDF float64 `json:"ddf"` // degree-day factor (mm/°C/day)
	Tth float64 `json:"tth"` // snow/rain threshold temperature (°C)
	Tb  float64 `json:"tb"`  // melt base temperature (°C)

	Kv float64 `json:"kv"` // vegetation scaling of PE

	// Cpar is the maximum combined store content, Huz/(1+B). Set by Derive.
	Cpar float64 `json:"cpar"`
}

// ParametersFromVector builds a parameter set from a vector ordered as ParameterOrder.
// nq and kv are run-level constants that are not part of the vector.
func ParametersFromVector(v []float64, nq int, kv float64) (Parameters, error) {
	if len(v) < VectorLength {
		return Parameters{}, fmt.Errorf("%w: vector has %d values, need %d", ErrConfig, len(v), VectorLength)
	}

	p := Parameters{
		Ks:    v[0],
		Kq:    v[1],
		DDF:   v[2],
		Tb:    v[3],
		Tth:   v[4],
		Alpha: v[5],
		B:     v[6],
		Huz:   v[7],
		Nq:    nq,
		Kv:    kv,
	}
	p.Derive()
	return p, nil
}

// Vector returns the parameter values in ParameterOrder.
func (p *Parameters) Vector() []float64 {
	return []float64{p.Ks, p.Kq, p.DDF, p.Tb, p.Tth, p.Alpha, p.B, p.Huz}
}

// Derive recomputes Cpar. Call it after changing Huz or B.
func (p *Parameters) Derive() {
	p.Cpar = p.Huz / (1.0 + p.B)
}

func finite(value interface{}) error {
	f, ok := value.(float64)
	if !ok {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a finite number")
	}
	return nil
}

// Validate checks every parameter against its documented range. The returned error wraps
// ErrConfig and the per-field validation.Errors. Huz must be strictly positive so that the
// Pareto relation between height and content is defined. Threshold rules skip zero values,
// hence Required on Huz and Nq.
func (p *Parameters) Validate() error {
	fin := validation.By(finite)
	unit := []validation.Rule{fin, validation.Min(0.0), validation.Max(1.0)}
	double := []validation.Rule{fin, validation.Min(0.0), validation.Max(2.0)}

	err := validation.ValidateStruct(p,
		validation.Field(&p.Huz, fin, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.B, double...),
		validation.Field(&p.Alpha, unit...),
		validation.Field(&p.Nq, validation.Required, validation.Min(1)),
		validation.Field(&p.Kq, unit...),
		validation.Field(&p.Ks, unit...),
		validation.Field(&p.DDF, double...),
		validation.Field(&p.Tth, fin),
		validation.Field(&p.Tb, fin),
		validation.Field(&p.Kv, double...),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}
