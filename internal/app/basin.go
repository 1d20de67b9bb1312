package app

import (
	"fmt"

	"github.com/chrissnell/hymod/internal/hymod"
	"github.com/chrissnell/hymod/pkg/config"
	"github.com/chrissnell/hymod/pkg/mopex"
)

// Basin is the forcing window of a run together with its PE series.
type Basin struct {
	Data     *mopex.Data
	Forcing  *hymod.Forcing
	StartDay int
	PE       []float64
}

// LoadBasin reads the MOPEX file named by f, cuts the configured window out of it and
// computes the PE series over that window.
func LoadBasin(f *config.ForcingData) (*Basin, error) {
	data, err := mopex.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	window, err := selectWindow(data, f)
	if err != nil {
		return nil, err
	}
	if i, missing := window.HasMissing(); missing {
		return nil, &hymod.ForcingError{
			Index:   i,
			Wrapped: fmt.Errorf("missing value on %s", window.Dates[i]),
		}
	}

	if i, gap := window.Gap(); gap {
		return nil, &hymod.ForcingError{
			Index:   i,
			Wrapped: fmt.Errorf("record %s does not follow %s", window.Dates[i], window.Dates[i-1]),
		}
	}

	startDay := f.StartDay
	if startDay == 0 {
		startDay = window.Dates[0].DayOfYear()
	}

	frc := toForcing(window)
	pe, err := frc.HamonPE(startDay)
	if err != nil {
		return nil, err
	}

	return &Basin{
		Data:     window,
		Forcing:  frc,
		StartDay: startDay,
		PE:       pe,
	}, nil
}

// selectWindow applies the start date and either the end date or the day count.
func selectWindow(data *mopex.Data, f *config.ForcingData) (*mopex.Data, error) {
	if data.Len() == 0 {
		return nil, fmt.Errorf("%w: %s holds no records", mopex.ErrNoWindow, f.Path)
	}

	start := data.Dates[0]
	if f.StartDate != "" {
		d, err := mopex.ParseDate(f.StartDate)
		if err != nil {
			return nil, err
		}
		start = d
	}

	var end mopex.Date
	if f.EndDate != "" {
		d, err := mopex.ParseDate(f.EndDate)
		if err != nil {
			return nil, err
		}
		end = d
	}

	first, days, err := data.Window(start, end)
	if err != nil {
		return nil, err
	}
	if f.Days > 0 {
		days = f.Days
	}
	return data.Slice(first, days)
}

func toForcing(d *mopex.Data) *hymod.Forcing {
	dates := make([]hymod.Date, d.Len())
	for i, dt := range d.Dates {
		dates[i] = hymod.Date{Year: dt.Year, Month: dt.Month, Day: dt.Day}
	}
	return &hymod.Forcing{
		Dates:    dates,
		Precip:   d.Precip,
		AvgTemp:  d.AvgTemp,
		Observed: d.Flow,
		Latitude: d.Latitude,
	}
}
