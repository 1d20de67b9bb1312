// Package hamon estimates daily potential evapotranspiration with the Hamon method.
// Day length comes from an approximate solar declination driven by a running day counter.
package hamon

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrLatitudeRange is returned for latitudes outside [-90, 90] degrees.
	ErrLatitudeRange = errors.New("hamon: latitude out of range")

	// ErrDayLengthDomain is returned when the sunrise hour-angle argument leaves [-1, 1],
	// i.e. polar day or polar night at the given latitude.
	ErrDayLengthDomain = errors.New("hamon: day length undefined at this latitude and date")

	// ErrLengthMismatch is returned when the year and temperature series differ in length.
	ErrLengthMismatch = errors.New("hamon: year and temperature series lengths differ")
)

// DomainError reports the record at which the day-length arc-cosine left its domain.
type DomainError struct {
	Index    int
	Day      int
	Latitude float64
	Arg      float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%v (record %d, day counter %d, latitude %.4f, acos argument %.6f)",
		ErrDayLengthDomain, e.Index, e.Day, e.Latitude, e.Arg)
}

func (e *DomainError) Unwrap() error {
	return ErrDayLengthDomain
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Declination returns the solar declination in radians for a day counter value.
func Declination(day int) float64 {
	return math.Asin(0.39795 * math.Cos(0.2163108+2.0*math.Atan(0.9671396*math.Tan(0.00860*float64(day-186)))))
}

// dayLengthArg is the cosine of the sunrise hour angle, corrected for refraction (0.8333°).
func dayLengthArg(latitude, declination float64) float64 {
	latRad := degToRad(latitude)
	return (math.Sin(0.8333*math.Pi/180.0) + math.Sin(latRad)*math.Sin(declination)) /
		(math.Cos(latRad) * math.Cos(declination))
}

// DayLength returns the number of daylight hours at latitude (degrees) for a declination (radians).
func DayLength(latitude, declination float64) (float64, error) {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return 0, fmt.Errorf("%w: %v", ErrLatitudeRange, latitude)
	}

	arg := dayLengthArg(latitude, declination)
	if math.IsNaN(arg) || arg < -1.0 || arg > 1.0 {
		return 0, &DomainError{Latitude: latitude, Arg: arg}
	}

	return 24.0 - (24.0/math.Pi)*math.Acos(arg), nil
}

// SaturationVaporPressure returns the saturation vapor pressure (kPa) at temperature t (°C).
func SaturationVaporPressure(t float64) float64 {
	return 0.6108 * math.Exp((17.27*t)/(237.3+t))
}

// PE returns Hamon potential evapotranspiration (mm/day) from day length (hours) and
// average temperature (°C).
func PE(dayLength, t float64) float64 {
	return (715.5 * dayLength * SaturationVaporPressure(t) / 24.0) / (t + 273.2)
}

// Daily computes PE for a single day counter value.
func Daily(day int, latitude, t float64) (float64, error) {
	dl, err := DayLength(latitude, Declination(day))
	if err != nil {
		var de *DomainError
		if errors.As(err, &de) {
			de.Day = day
		}
		return 0, err
	}
	return PE(dl, t), nil
}

// Series computes a daily PE series.
//
// The day counter starts at startDay-1 and is incremented while the record year matches the
// previous record's year. On a year change it resets to 1. The counter therefore only tracks
// the calendar day of year when the record starts on January 1 or startDay is set to the
// true day of year of the first record.
func Series(years []int, avgTemp []float64, latitude float64, startDay int) ([]float64, error) {
	if len(years) != len(avgTemp) {
		return nil, fmt.Errorf("%w: %d years, %d temperatures", ErrLengthMismatch, len(years), len(avgTemp))
	}

	pe := make([]float64, len(years))
	if len(years) == 0 {
		return pe, nil
	}

	oldYear := years[0]
	counter := startDay - 1

	for i, year := range years {
		if year == oldYear {
			counter++
		} else {
			counter = 1
		}

		v, err := Daily(counter, latitude, avgTemp[i])
		if err != nil {
			var de *DomainError
			if errors.As(err, &de) {
				de.Index = i
			}
			return nil, err
		}
		pe[i] = v

		oldYear = year
	}

	return pe, nil
}
