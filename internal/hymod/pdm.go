package hymod

import "math"

// PDMStep holds the intermediate quantities of one soil moisture accounting step.
type PDMStep struct {
	Cbeg  float64 // content implied by the starting height
	OV2   float64 // rainfall exceeding the tank even at maximum height
	PPinf float64 // rainfall attempting to infiltrate
	Hint  float64 // height after infiltration
	Cint  float64 // content implied by Hint
	OV1   float64 // overflow from point stores already at capacity
	OV    float64 // total excess, OV1 + OV2
	AE    float64 // actual evapotranspiration
}

// content converts a tank height to store content through the Pareto distribution of
// point capacities.
func content(h float64, par *Parameters) float64 {
	return par.Cpar * (1.0 - math.Pow(1.0-(h/par.Huz), 1.0+par.B))
}

// height is the inverse of content.
func height(c float64, par *Parameters) float64 {
	return par.Huz * (1.0 - math.Pow(1.0-(c/par.Cpar), 1.0/(1.0+par.B)))
}

// PDM runs one day of the probability-distributed soil moisture store. pe is effective
// precipitation and pet the day's potential evapotranspiration. The day starts from
// st.XHuz; st.XHuz and st.XCuz are overwritten with the end-of-day height and content.
func PDM(pe, pet float64, par *Parameters, st *State) PDMStep {
	var s PDMStep

	s.Cbeg = content(st.XHuz, par)
	s.OV2 = max(0.0, pe+st.XHuz-par.Huz)
	s.PPinf = pe - s.OV2
	s.Hint = min(par.Huz, st.XHuz+s.PPinf)
	s.Cint = content(s.Hint, par)
	s.OV1 = max(0.0, s.PPinf+s.Cbeg-s.Cint)
	s.OV = s.OV1 + s.OV2

	s.AE = min(s.Cint, (s.Cint/par.Cpar)*pet*par.Kv)

	st.XCuz = max(0.0, s.Cint-s.AE)
	st.XHuz = height(st.XCuz, par)

	return s
}
