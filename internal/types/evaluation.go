// Package types holds the records passed from the evaluation loop to the storage backends.
package types

import (
	"time"

	"github.com/chrissnell/hymod/internal/hymod"
)

// Evaluation status values
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
)

// Run describes one sampling run: a forcing window and the model settings shared by all of
// its evaluations.
type Run struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id" msgpack:"id"`
	Name        string    `gorm:"column:name" json:"name" msgpack:"name"`
	ForcingPath string    `gorm:"column:forcing_path" json:"forcing_path" msgpack:"forcing_path"`
	GageID      string    `gorm:"column:gage_id" json:"gage_id" msgpack:"gage_id"`
	Latitude    float64   `gorm:"column:latitude" json:"latitude" msgpack:"latitude"`
	StartDate   time.Time `gorm:"column:start_date" json:"start_date" msgpack:"start_date"`
	Days        int       `gorm:"column:days" json:"days" msgpack:"days"`
	StartDay    int       `gorm:"column:start_day" json:"start_day" msgpack:"start_day"`
	Nq          int       `gorm:"column:nq" json:"nq" msgpack:"nq"`
	Kv          float64   `gorm:"column:kv" json:"kv" msgpack:"kv"`
	Snow        bool      `gorm:"column:snow" json:"snow" msgpack:"snow"`
	WarmupDays  int       `gorm:"column:warmup_days" json:"warmup_days" msgpack:"warmup_days"`
	StartedAt   time.Time `gorm:"column:started_at" json:"started_at" msgpack:"started_at"`
}

// TableName implements the Tabler interface for the Run struct
func (Run) TableName() string {
	return "runs"
}

// Evaluation is the outcome of running one parameter vector.
type Evaluation struct {
	RunID  string `gorm:"column:run_id;primaryKey" json:"run_id" msgpack:"run_id"`
	Sample int    `gorm:"column:sample;primaryKey" json:"sample" msgpack:"sample"`
	Status string `gorm:"column:status" json:"status" msgpack:"status"`
	Error  string `gorm:"column:error" json:"error,omitempty" msgpack:"error,omitempty"`

	Ks    float64 `gorm:"column:ks" json:"ks" msgpack:"ks"`
	Kq    float64 `gorm:"column:kq" json:"kq" msgpack:"kq"`
	DDF   float64 `gorm:"column:ddf" json:"ddf" msgpack:"ddf"`
	Tb    float64 `gorm:"column:tb" json:"tb" msgpack:"tb"`
	Tth   float64 `gorm:"column:tth" json:"tth" msgpack:"tth"`
	Alpha float64 `gorm:"column:alpha" json:"alpha" msgpack:"alpha"`
	B     float64 `gorm:"column:b" json:"b" msgpack:"b"`
	Huz   float64 `gorm:"column:huz" json:"huz" msgpack:"huz"`

	SummaryDays     int     `gorm:"column:summary_days" json:"summary_days" msgpack:"summary_days"`
	SumQ            float64 `gorm:"column:sum_q" json:"sum_q" msgpack:"sum_q"`
	SumObserved     float64 `gorm:"column:sum_observed" json:"sum_observed" msgpack:"sum_observed"`
	MissingObserved int     `gorm:"column:missing_observed" json:"missing_observed" msgpack:"missing_observed"`
	SumPrecip       float64 `gorm:"column:sum_precip" json:"sum_precip" msgpack:"sum_precip"`
	SumAE           float64 `gorm:"column:sum_ae" json:"sum_ae" msgpack:"sum_ae"`
	MeanQ           float64 `gorm:"column:mean_q" json:"mean_q" msgpack:"mean_q"`
	RunoffRatio     float64 `gorm:"column:runoff_ratio" json:"runoff_ratio" msgpack:"runoff_ratio"`

	// Q is the daily discharge series, set only when series storage is enabled.
	Q []float64 `gorm:"-" json:"q,omitempty" msgpack:"q,omitempty"`

	EvaluatedAt time.Time `gorm:"column:evaluated_at" json:"evaluated_at" msgpack:"evaluated_at"`
}

// TableName implements the Tabler interface for the Evaluation struct
func (Evaluation) TableName() string {
	return "evaluations"
}

// NewEvaluation starts a record for sample n of a run. vector is the raw parameter vector in
// hymod.ParameterOrder; a short vector leaves the missing parameters zero.
func NewEvaluation(runID string, n int, vector []float64) Evaluation {
	e := Evaluation{
		RunID:       runID,
		Sample:      n,
		Status:      StatusOK,
		EvaluatedAt: time.Now().UTC(),
	}
	var v [hymod.VectorLength]float64
	copy(v[:], vector)
	e.Ks, e.Kq, e.DDF, e.Tb, e.Tth, e.Alpha, e.B, e.Huz = v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7]
	return e
}

// SetSummary copies a run summary into the record.
func (e *Evaluation) SetSummary(s hymod.Summary) {
	e.SummaryDays = s.Days
	e.SumQ = s.SumQ
	e.SumObserved = s.SumObserved
	e.MissingObserved = s.MissingObserved
	e.SumPrecip = s.SumPrecip
	e.SumAE = s.SumAE
	e.MeanQ = s.MeanQ
	e.RunoffRatio = s.RunoffRatio
}

// Fail marks the record invalid with the error that rejected it.
func (e *Evaluation) Fail(err error) {
	e.Status = StatusInvalid
	e.Error = err.Error()
}

// Vector returns the parameter vector of the record in hymod.ParameterOrder.
func (e *Evaluation) Vector() []float64 {
	return []float64{e.Ks, e.Kq, e.DDF, e.Tb, e.Tth, e.Alpha, e.B, e.Huz}
}
