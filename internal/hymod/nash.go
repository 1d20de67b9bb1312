package hymod

// Nash advances a cascade of len(x) identical linear reservoirs by one time step and returns
// the outflow of the last reservoir. Each reservoir releases k times its content; reservoir i
// receives the outflow of reservoir i-1 from the same step, the first receives qin. x is
// updated in place.
func Nash(k, qin float64, x []float64) float64 {
	var out float64
	for i := range x {
		o := k * x[i]
		x[i] -= o
		if i == 0 {
			x[i] += qin
		} else {
			x[i] += out
		}
		out = o
	}
	return out
}
