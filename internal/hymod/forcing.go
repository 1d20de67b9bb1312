package hymod

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/hymod/pkg/hamon"
)

// Date is a calendar date of a forcing record.
type Date struct {
	Year  int `json:"year" msgpack:"year"`
	Month int `json:"month" msgpack:"month"`
	Day   int `json:"day" msgpack:"day"`
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Forcing is the read-only daily input of a simulation period.
type Forcing struct {
	Dates    []Date
	Precip   []float64 // mm/day
	AvgTemp  []float64 // °C
	Observed []float64 // observed streamflow (mm/day), optional, never read by the model
	Latitude float64   // degrees
}

// Days returns the length of the simulation period.
func (f *Forcing) Days() int {
	return len(f.Precip)
}

// Validate checks that the series are non-empty and of equal length.
func (f *Forcing) Validate() error {
	n := len(f.Precip)
	if n == 0 {
		return &ForcingError{Index: -1, Wrapped: errors.New("empty simulation period")}
	}
	if len(f.AvgTemp) != n || len(f.Dates) != n {
		return &ForcingError{Index: -1, Wrapped: fmt.Errorf("series lengths differ: %d precipitation, %d temperature, %d dates",
			n, len(f.AvgTemp), len(f.Dates))}
	}
	if f.Observed != nil && len(f.Observed) != n {
		return &ForcingError{Index: -1, Wrapped: fmt.Errorf("observed flow has %d values, expected %d", len(f.Observed), n)}
	}
	for i, p := range f.Precip {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return &ForcingError{Index: i, Wrapped: fmt.Errorf("invalid precipitation %v", p)}
		}
		if t := f.AvgTemp[i]; math.IsNaN(t) || math.IsInf(t, 0) {
			return &ForcingError{Index: i, Wrapped: fmt.Errorf("invalid temperature %v", t)}
		}
	}
	return nil
}

// HamonPE computes the potential evapotranspiration series for the period. startDay seeds
// the running day counter (see hamon.Series).
func (f *Forcing) HamonPE(startDay int) ([]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	years := make([]int, len(f.Dates))
	for i, d := range f.Dates {
		years[i] = d.Year
	}

	pe, err := hamon.Series(years, f.AvgTemp, f.Latitude, startDay)
	if err != nil {
		idx := -1
		var de *hamon.DomainError
		if errors.As(err, &de) {
			idx = de.Index
		}
		return nil, &ForcingError{Index: idx, Wrapped: err}
	}
	return pe, nil
}
