package mopex

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Date is a Gregorian calendar date.
type Date struct {
	Year  int
	Month int
	Day   int
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// JD returns the Julian day number at 0h UT of d.
func (d Date) JD() float64 {
	return julian.CalendarGregorianToJD(d.Year, d.Month, float64(d.Day))
}

// DayOfYear returns the ordinal day of d within its year, 1 on January 1.
func (d Date) DayOfYear() int {
	return julian.DayOfYearGregorian(d.Year, d.Month, d.Day)
}

// DaysUntil returns the number of days from d to o, negative if o is earlier.
func (d Date) DaysUntil(o Date) int {
	return int(o.JD() - d.JD())
}

// Valid reports whether d names a real calendar day.
func (d Date) Valid() bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day && int(t.Month()) == d.Month
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateFromJD(d.JD() + float64(n))
}

// DateFromJD returns the Gregorian date containing Julian day jd.
func DateFromJD(jd float64) Date {
	y, m, d := julian.JDToCalendar(jd)
	return Date{Year: y, Month: m, Day: int(math.Floor(d + 1e-9))}
}
