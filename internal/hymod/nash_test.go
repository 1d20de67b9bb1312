package hymod

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

const eps = 1e-12

func TestNashTwoReservoirs(t *testing.T) {
	x := []float64{0, 0}
	inflow := []float64{10, 0, 0}

	expectedOut := []float64{0, 0, 0.9}
	expectedX := [][]float64{{10, 0}, {7, 3}, {4.9, 4.2}}

	for day, qin := range inflow {
		out := Nash(0.3, qin, x)
		if math.Abs(out-expectedOut[day]) > eps {
			t.Errorf("day %d: outflow %v, want %v", day, out, expectedOut[day])
		}
		if !floats.EqualApprox(x, expectedX[day], eps) {
			t.Errorf("day %d: contents %v, want %v", day, x, expectedX[day])
		}
	}
}

func TestNashSingleReservoirMassBalance(t *testing.T) {
	tests := []struct {
		name string
		k    float64
		x    float64
		qin  float64
	}{
		{name: "empty reservoir", k: 0.5, x: 0, qin: 3},
		{name: "no inflow", k: 0.25, x: 12, qin: 0},
		{name: "zero release", k: 0, x: 7, qin: 2},
		{name: "full release", k: 1, x: 7, qin: 2},
		{name: "typical", k: 0.037, x: 41.2, qin: 1.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := []float64{tt.x}
			out := Nash(tt.k, tt.qin, x)

			if math.Abs(out+x[0]-(tt.x+tt.qin)) > eps {
				t.Errorf("outflow %v + content %v != %v + inflow %v", out, x[0], tt.x, tt.qin)
			}
			if out < 0 || x[0] < 0 {
				t.Errorf("negative flow or content: out=%v x=%v", out, x[0])
			}
		})
	}
}

func TestNashSingleReservoirRecurrence(t *testing.T) {
	const k = 0.2
	inflow := []float64{5, 0, 3.5, 0, 0, 12, 1}

	x := []float64{0}
	xt := 0.0
	for day, qin := range inflow {
		wantOut := k * xt
		xt = (1-k)*xt + qin

		out := Nash(k, qin, x)
		if math.Abs(out-wantOut) > eps {
			t.Errorf("day %d: outflow %v, want %v", day, out, wantOut)
		}
		if math.Abs(x[0]-xt) > eps {
			t.Errorf("day %d: content %v, want %v", day, x[0], xt)
		}
	}
}

func TestNashCascadesDoNotShareState(t *testing.T) {
	quick := []float64{1, 2, 3}
	slow := []float64{4}

	Nash(0.5, 1, quick)
	if slow[0] != 4 {
		t.Fatalf("slow reservoir changed by quick cascade: %v", slow[0])
	}
	Nash(0.1, 1, slow)
	if !floats.Equal(quick, []float64{1.5, 1.5, 2.5}) {
		t.Errorf("quick cascade changed by slow cascade: %v", quick)
	}
}
