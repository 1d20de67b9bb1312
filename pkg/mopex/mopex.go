// Package mopex reads MOPEX-formatted basin forcing files: a tagged header followed by one
// whitespace separated record per day.
//
//	<GAGE_ID> 01643000
//	<GAGE_LATITUDE> 39.3867
//	<GAGE_LONGITUDE> -77.3797
//	<DRAINAGE_AREA> 2116.0
//	<TIME_STEPS> 20089
//	<DATA_START>
//	1948 1 1 0.0000 0.2000 0.8130 4.4400 -6.1100
//
// Record columns are year, month, day, precipitation, potential evaporation, streamflow,
// maximum temperature and minimum temperature. Any further columns are ignored.
package mopex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	tagGageID    = "<GAGE_ID>"
	tagLatitude  = "<GAGE_LATITUDE>"
	tagLongitude = "<GAGE_LONGITUDE>"
	tagArea      = "<DRAINAGE_AREA>"
	tagTimeSteps = "<TIME_STEPS>"
	tagDataStart = "<DATA_START>"

	recordFields = 8
)

var (
	ErrMissingTag = errors.New("missing header tag")
	ErrBadRecord  = errors.New("malformed record")
	ErrShortData  = errors.New("fewer records than declared")
	ErrNoWindow   = errors.New("date not found in data")
)

// RecordError reports a problem with one data line.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Header is the basin metadata preceding the records.
type Header struct {
	GageID       string
	Latitude     float64
	Longitude    float64
	DrainageArea float64
	TimeSteps    int
}

// Data is the content of a MOPEX file as parallel daily series.
type Data struct {
	Header

	Dates   []Date
	Precip  []float64
	Evap    []float64
	Flow    []float64
	MaxTemp []float64
	MinTemp []float64
	AvgTemp []float64
}

// Len returns the number of daily records.
func (d *Data) Len() int {
	return len(d.Dates)
}

// ReadFile opens and reads a MOPEX file.
func ReadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open forcing file: %w", err)
	}
	defer f.Close()

	data, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Read parses a MOPEX stream. Header tags may appear in any order, and a tag's value may sit
// on the following line. Records start on the line after <DATA_START>. When <TIME_STEPS> is
// present exactly that many records are read; otherwise records are read to the end.
func Read(r io.Reader) (*Data, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		d       = &Data{}
		seen    = map[string]bool{}
		pending string
		line    int
		started bool
	)

	for !started && sc.Scan() {
		line++
		for _, tok := range strings.Fields(sc.Text()) {
			if pending != "" {
				if err := d.setHeader(pending, tok); err != nil {
					return nil, &RecordError{Line: line, Err: err}
				}
				seen[pending] = true
				pending = ""
				continue
			}
			switch tok {
			case tagGageID, tagLatitude, tagLongitude, tagArea, tagTimeSteps:
				pending = tok
			case tagDataStart:
				started = true
			}
			if started {
				// rest of the line is ignored
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !started {
		return nil, fmt.Errorf("%w: %s", ErrMissingTag, tagDataStart)
	}
	if !seen[tagLatitude] {
		return nil, fmt.Errorf("%w: %s", ErrMissingTag, tagLatitude)
	}

	d.allocate(d.TimeSteps)
	for sc.Scan() {
		line++
		if seen[tagTimeSteps] && d.Len() == d.TimeSteps {
			break
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := d.appendRecord(fields); err != nil {
			return nil, &RecordError{Line: line, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if seen[tagTimeSteps] && d.Len() < d.TimeSteps {
		return nil, fmt.Errorf("%w: %d of %d", ErrShortData, d.Len(), d.TimeSteps)
	}
	if !seen[tagTimeSteps] {
		d.TimeSteps = d.Len()
	}
	return d, nil
}

func (d *Data) setHeader(tag, value string) error {
	var err error
	switch tag {
	case tagGageID:
		d.GageID = value
	case tagLatitude:
		d.Latitude, err = strconv.ParseFloat(value, 64)
	case tagLongitude:
		d.Longitude, err = strconv.ParseFloat(value, 64)
	case tagArea:
		d.DrainageArea, err = strconv.ParseFloat(value, 64)
	case tagTimeSteps:
		d.TimeSteps, err = strconv.Atoi(value)
		if err == nil && d.TimeSteps < 0 {
			err = fmt.Errorf("negative count %d", d.TimeSteps)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadRecord, tag, err)
	}
	return nil
}

func (d *Data) allocate(n int) {
	d.Dates = make([]Date, 0, n)
	d.Precip = make([]float64, 0, n)
	d.Evap = make([]float64, 0, n)
	d.Flow = make([]float64, 0, n)
	d.MaxTemp = make([]float64, 0, n)
	d.MinTemp = make([]float64, 0, n)
	d.AvgTemp = make([]float64, 0, n)
}

func (d *Data) appendRecord(fields []string) error {
	if len(fields) < recordFields {
		return fmt.Errorf("%w: %d fields, expected %d", ErrBadRecord, len(fields), recordFields)
	}

	var v [recordFields]float64
	for i := range v {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return fmt.Errorf("%w: field %d: %v", ErrBadRecord, i+1, err)
		}
		v[i] = f
	}
	// dates may be written as decimals, e.g. "1948.0"
	date := Date{Year: int(v[0]), Month: int(v[1]), Day: int(v[2])}
	if !date.Valid() {
		return fmt.Errorf("%w: invalid date %s", ErrBadRecord, date)
	}

	d.Dates = append(d.Dates, date)
	d.Precip = append(d.Precip, v[3])
	d.Evap = append(d.Evap, v[4])
	d.Flow = append(d.Flow, v[5])
	d.MaxTemp = append(d.MaxTemp, v[6])
	d.MinTemp = append(d.MinTemp, v[7])
	d.AvgTemp = append(d.AvgTemp, (v[6]+v[7])/2.0)
	return nil
}

// Index returns the position of the record dated date, or -1. Records are assumed to be
// consecutive days so the position is found from the Julian day offset; files with gaps
// fall back to a scan.
func (d *Data) Index(date Date) int {
	if d.Len() == 0 {
		return -1
	}
	i := d.Dates[0].DaysUntil(date)
	if i >= 0 && i < d.Len() && d.Dates[i] == date {
		return i
	}
	for i, dt := range d.Dates {
		if dt == date {
			return i
		}
	}
	return -1
}

// Window returns the index of the first record and the number of records of the inclusive
// period [start, end]. A zero end runs to the last record.
func (d *Data) Window(start, end Date) (first, days int, err error) {
	first = d.Index(start)
	if first < 0 {
		return 0, 0, fmt.Errorf("%w: start %s", ErrNoWindow, start)
	}
	if end.IsZero() {
		return first, d.Len() - first, nil
	}
	last := d.Index(end)
	if last < 0 {
		return 0, 0, fmt.Errorf("%w: end %s", ErrNoWindow, end)
	}
	if last < first {
		return 0, 0, fmt.Errorf("%w: end %s precedes start %s", ErrNoWindow, end, start)
	}
	return first, last - first + 1, nil
}

// Slice returns a view of days records starting at first. The series share memory with d.
func (d *Data) Slice(first, days int) (*Data, error) {
	if first < 0 || days <= 0 || first+days > d.Len() {
		return nil, fmt.Errorf("%w: records %d..%d of %d", ErrNoWindow, first, first+days-1, d.Len())
	}
	end := first + days
	s := &Data{
		Header:  d.Header,
		Dates:   d.Dates[first:end:end],
		Precip:  d.Precip[first:end:end],
		Evap:    d.Evap[first:end:end],
		Flow:    d.Flow[first:end:end],
		MaxTemp: d.MaxTemp[first:end:end],
		MinTemp: d.MinTemp[first:end:end],
		AvgTemp: d.AvgTemp[first:end:end],
	}
	s.TimeSteps = days
	return s, nil
}

// Gap returns the first record that does not follow its predecessor by exactly one day.
func (d *Data) Gap() (int, bool) {
	for i := 1; i < d.Len(); i++ {
		if d.Dates[i] != d.Dates[i-1].AddDays(1) {
			return i, true
		}
	}
	return -1, false
}

// HasMissing returns the first record whose precipitation or temperature is a missing-value
// marker (a negative sentinel such as -99) or NaN. Streamflow is not checked: the model never
// reads it and run summaries skip missing observations.
func (d *Data) HasMissing() (int, bool) {
	for i := range d.Dates {
		if d.Precip[i] < 0 || math.IsNaN(d.Precip[i]) || math.IsNaN(d.AvgTemp[i]) || d.MaxTemp[i] <= -99 || d.MinTemp[i] <= -99 {
			return i, true
		}
	}
	return -1, false
}
