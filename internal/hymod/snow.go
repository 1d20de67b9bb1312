package hymod

// SnowDD runs one day of the degree-day snow model. Precipitation falls as snow when t is
// strictly below Tth and melt occurs only when t is strictly above Tb. store is the snowpack
// carried between days and is updated in place.
//
// It returns the effective precipitation (rain plus melt), the day's snowfall and the melt.
func SnowDD(p, t float64, par *Parameters, store *float64) (eff, snow, melt float64) {
	var rain float64
	if t < par.Tth {
		snow = p
	} else {
		rain = p
	}

	*store += snow

	if t > par.Tb {
		melt = min(par.DDF*(t-par.Tb), *store)
	}

	*store -= melt
	if *store < 0.0 {
		*store = 0.0
	}

	return rain + melt, snow, melt
}
