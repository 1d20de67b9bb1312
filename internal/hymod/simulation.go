// Package hymod implements the HyMod lumped rainfall-runoff model: a degree-day snow module,
// a probability-distributed soil moisture store and two Nash cascades for quick and slow flow.
//
// A Simulation owns every buffer it writes to and may be run repeatedly with different
// parameter sets. Simulations are not safe for concurrent use; independent evaluations need
// one Simulation each and may share the same Forcing and PE series read-only.
package hymod

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// State is the model state carried from one day to the next.
type State struct {
	XHuz float64   // soil moisture tank height
	XCuz float64   // soil moisture content
	Xq   []float64 // quickflow reservoir contents, len Nq
	Xs   float64   // slowflow reservoir content
	Snow float64   // snowpack
}

func (s *State) copyFrom(o *State) {
	s.XHuz = o.XHuz
	s.XCuz = o.XCuz
	copy(s.Xq, o.Xq)
	s.Xs = o.Xs
	s.Snow = o.Snow
}

func (s *State) zero() {
	s.XHuz, s.XCuz, s.Xs, s.Snow = 0, 0, 0, 0
	clear(s.Xq)
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	s.Xq = append([]float64(nil), s.Xq...)
	return s
}

// Storage is the total water held in the soil store, snowpack and reservoirs.
func (s *State) Storage() float64 {
	return s.XCuz + s.Snow + s.Xs + floats.Sum(s.Xq)
}

// Fluxes holds the daily flux series of one simulation.
type Fluxes struct {
	EffPrecip []float64 // precipitation reaching the soil store
	Snow      []float64 // snowfall
	Melt      []float64 // snowmelt
	AE        []float64 // actual evapotranspiration
	OV        []float64 // excess rainfall
	Qq        []float64 // quickflow
	Qs        []float64 // slowflow
	Q         []float64 // total discharge
}

const nFluxSeries = 8

// Options configures a Simulation.
type Options struct {
	// Snow enables the degree-day snow module. When false, effective precipitation is the
	// raw precipitation and the snowpack stays empty.
	Snow bool

	// KeepHistory keeps the end-of-day state of every day. Otherwise only a rolling pair of
	// states is kept and Result.States is nil.
	KeepHistory bool
}

// Simulation is a caller-owned simulation context over one forcing period.
type Simulation struct {
	forcing *Forcing
	pe      []float64
	opts    Options

	fluxBuf []float64
	flux    Fluxes

	nq     int
	xqBuf  []float64
	states []State
}

// NewSimulation prepares a simulation over frc with a precomputed PE series (one value per
// day, see Forcing.HamonPE). Neither slice is modified.
func NewSimulation(frc *Forcing, pe []float64, opts Options) (*Simulation, error) {
	if err := frc.Validate(); err != nil {
		return nil, err
	}
	n := frc.Days()
	if len(pe) != n {
		return nil, &ForcingError{Index: -1, Wrapped: fmt.Errorf("PE series has %d values, expected %d", len(pe), n)}
	}

	s := &Simulation{
		forcing: frc,
		pe:      pe,
		opts:    opts,
		fluxBuf: make([]float64, nFluxSeries*n),
	}

	series := make([][]float64, nFluxSeries)
	for i := range series {
		series[i] = s.fluxBuf[i*n : (i+1)*n : (i+1)*n]
	}
	s.flux = Fluxes{
		EffPrecip: series[0],
		Snow:      series[1],
		Melt:      series[2],
		AE:        series[3],
		OV:        series[4],
		Qq:        series[5],
		Qs:        series[6],
		Q:         series[7],
	}

	return s, nil
}

// Days returns the number of simulated days.
func (s *Simulation) Days() int {
	return s.forcing.Days()
}

// Forcing returns the forcing the simulation runs on.
func (s *Simulation) Forcing() *Forcing {
	return s.forcing
}

// PE returns the potential evapotranspiration series.
func (s *Simulation) PE() []float64 {
	return s.pe
}

// allocStates sizes the state slots for nq quickflow reservoirs. With history there is one
// slot per day, otherwise two slots used alternately.
func (s *Simulation) allocStates(nq int) {
	slots := 2
	if s.opts.KeepHistory {
		slots = s.Days()
	}
	if s.nq == nq && len(s.states) == slots {
		return
	}

	s.nq = nq
	s.xqBuf = make([]float64, slots*nq)
	s.states = make([]State, slots)
	for i := range s.states {
		s.states[i].Xq = s.xqBuf[i*nq : (i+1)*nq : (i+1)*nq]
	}
}

func (s *Simulation) slot(day int) *State {
	if s.opts.KeepHistory {
		return &s.states[day]
	}
	return &s.states[day%2]
}

func (s *Simulation) reset() {
	clear(s.fluxBuf)
	for i := range s.states {
		s.states[i].zero()
	}
}

// Run simulates the whole period with one parameter set. Parameters are validated before
// the first day; an invalid set returns an error wrapping ErrConfig.
//
// The returned Result shares the simulation's buffers and is only valid until the next call
// to Run. Use Result.Clone to keep it.
func (s *Simulation) Run(par Parameters) (*Result, error) {
	if err := par.Validate(); err != nil {
		return nil, err
	}
	par.Derive()

	s.allocStates(par.Nq)
	s.reset()

	var (
		n    = s.Days()
		frc  = s.forcing
		flux = &s.flux
	)

	for day := 0; day < n; day++ {
		st := s.slot(day)

		if s.opts.Snow {
			flux.EffPrecip[day], flux.Snow[day], flux.Melt[day] = SnowDD(frc.Precip[day], frc.AvgTemp[day], &par, &st.Snow)
		} else {
			flux.EffPrecip[day] = frc.Precip[day]
		}

		step := PDM(flux.EffPrecip[day], s.pe[day], &par, st)
		flux.OV[day] = step.OV
		flux.AE[day] = step.AE

		flux.Qq[day] = Nash(par.Kq, par.Alpha*step.OV, st.Xq)

		slow := [1]float64{st.Xs}
		flux.Qs[day] = Nash(par.Ks, (1.0-par.Alpha)*step.OV, slow[:])
		st.Xs = slow[0]

		flux.Q[day] = flux.Qq[day] + flux.Qs[day]

		if day < n-1 {
			s.slot(day + 1).copyFrom(st)
		}
	}

	r := &Result{
		Parameters: par,
		Fluxes:     s.flux,
		Final:      s.slot(n - 1).Clone(),
		forcing:    frc,
	}
	if s.opts.KeepHistory {
		r.States = s.states
	}
	return r, nil
}

// Result is the output of one simulation run.
type Result struct {
	Parameters Parameters
	Fluxes     Fluxes
	States     []State // end-of-day states, only with Options.KeepHistory
	Final      State   // state at the end of the last day

	forcing *Forcing
}

// Q returns the daily discharge series.
func (r *Result) Q() []float64 {
	return r.Fluxes.Q
}

// Forcing returns the forcing the result was computed from.
func (r *Result) Forcing() *Forcing {
	return r.forcing
}

// Clone returns a copy that does not share memory with the simulation buffers.
func (r *Result) Clone() *Result {
	cp := func(v []float64) []float64 { return append([]float64(nil), v...) }

	c := &Result{
		Parameters: r.Parameters,
		Fluxes: Fluxes{
			EffPrecip: cp(r.Fluxes.EffPrecip),
			Snow:      cp(r.Fluxes.Snow),
			Melt:      cp(r.Fluxes.Melt),
			AE:        cp(r.Fluxes.AE),
			OV:        cp(r.Fluxes.OV),
			Qq:        cp(r.Fluxes.Qq),
			Qs:        cp(r.Fluxes.Qs),
			Q:         cp(r.Fluxes.Q),
		},
		Final:   r.Final.Clone(),
		forcing: r.forcing,
	}
	if r.States != nil {
		c.States = make([]State, len(r.States))
		for i := range r.States {
			c.States[i] = r.States[i].Clone()
		}
	}
	return c
}

// WaterBalance returns precipitation minus evapotranspiration, discharge and final storage
// over the whole period. It is zero up to rounding since the run starts from empty stores.
func (r *Result) WaterBalance() float64 {
	return floats.Sum(r.forcing.Precip) - floats.Sum(r.Fluxes.AE) - floats.Sum(r.Fluxes.Q) - r.Final.Storage()
}

// Summary holds quick diagnostics of a run, computed after a warmup period.
type Summary struct {
	Days            int     `json:"days" msgpack:"days"`
	SumQ            float64 `json:"sum_q" msgpack:"sum_q"`
	SumObserved     float64 `json:"sum_observed" msgpack:"sum_observed"`
	// MissingObserved counts observed values left out of SumObserved: negative missing-value
	// markers such as -99, and NaN.
	MissingObserved int     `json:"missing_observed" msgpack:"missing_observed"`
	SumPrecip       float64 `json:"sum_precip" msgpack:"sum_precip"`
	SumAE           float64 `json:"sum_ae" msgpack:"sum_ae"`
	MeanQ           float64 `json:"mean_q" msgpack:"mean_q"`
	RunoffRatio     float64 `json:"runoff_ratio" msgpack:"runoff_ratio"`
}

// Summary sums simulated discharge, observed discharge and precipitation over the days
// following the first warmup days. The model itself never excludes a warmup period.
// Missing observations are skipped and counted in MissingObserved.
func (r *Result) Summary(warmup int) Summary {
	n := len(r.Fluxes.Q)
	warmup = max(0, min(warmup, n))

	s := Summary{
		Days:      n - warmup,
		SumQ:      floats.Sum(r.Fluxes.Q[warmup:]),
		SumPrecip: floats.Sum(r.forcing.Precip[warmup:]),
		SumAE:     floats.Sum(r.Fluxes.AE[warmup:]),
	}
	if r.forcing.Observed != nil {
		s.SumObserved, s.MissingObserved = sumObserved(r.forcing.Observed[warmup:])
	}
	if s.Days > 0 {
		s.MeanQ = stat.Mean(r.Fluxes.Q[warmup:], nil)
	}
	if s.SumPrecip > 0 {
		s.RunoffRatio = s.SumQ / s.SumPrecip
	}
	return s
}

func sumObserved(obs []float64) (sum float64, missing int) {
	for _, v := range obs {
		if v < 0 || math.IsNaN(v) {
			missing++
			continue
		}
		sum += v
	}
	return sum, missing
}
