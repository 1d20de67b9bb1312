package hymod

import (
	"errors"
	"math"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func validParameters() Parameters {
	p := Parameters{
		Huz:   120,
		B:     0.8,
		Alpha: 0.6,
		Nq:    3,
		Kq:    0.45,
		Ks:    0.02,
		DDF:   1.1,
		Tth:   0.5,
		Tb:    -0.5,
		Kv:    1.0,
	}
	p.Derive()
	return p
}

func TestParametersFromVector(t *testing.T) {
	v := []float64{0.02, 0.45, 1.1, -0.5, 0.5, 0.6, 0.8, 120}

	p, err := ParametersFromVector(v, 3, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := validParameters()
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}

	got := p.Vector()
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("%s: vector value %v, want %v", ParameterOrder[i], got[i], v[i])
		}
	}

	if _, err := ParametersFromVector(v[:7], 3, 1.0); !errors.Is(err, ErrConfig) {
		t.Errorf("short vector: expected ErrConfig, got %v", err)
	}
}

func TestParametersDerive(t *testing.T) {
	p := validParameters()
	p.Huz = 300
	p.B = 2
	p.Derive()
	if p.Cpar != 100 {
		t.Errorf("Cpar %v, want 100", p.Cpar)
	}
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Parameters)
		field  string
	}{
		{name: "valid", mutate: func(p *Parameters) {}},
		{name: "zero Huz", mutate: func(p *Parameters) { p.Huz = 0 }, field: "huz"},
		{name: "negative Huz", mutate: func(p *Parameters) { p.Huz = -1 }, field: "huz"},
		{name: "infinite Huz", mutate: func(p *Parameters) { p.Huz = math.Inf(1) }, field: "huz"},
		{name: "B above range", mutate: func(p *Parameters) { p.B = 2.5 }, field: "b"},
		{name: "negative B", mutate: func(p *Parameters) { p.B = -0.1 }, field: "b"},
		{name: "alpha above one", mutate: func(p *Parameters) { p.Alpha = 1.01 }, field: "alpha"},
		{name: "zero Nq", mutate: func(p *Parameters) { p.Nq = 0 }, field: "nq"},
		{name: "negative Nq", mutate: func(p *Parameters) { p.Nq = -2 }, field: "nq"},
		{name: "Kq above one", mutate: func(p *Parameters) { p.Kq = 1.5 }, field: "kq"},
		{name: "NaN Ks", mutate: func(p *Parameters) { p.Ks = math.NaN() }, field: "ks"},
		{name: "DDF above range", mutate: func(p *Parameters) { p.DDF = 3 }, field: "ddf"},
		{name: "NaN threshold", mutate: func(p *Parameters) { p.Tth = math.NaN() }, field: "tth"},
		{name: "Kv above range", mutate: func(p *Parameters) { p.Kv = 2.1 }, field: "kv"},
		{name: "boundaries are valid", mutate: func(p *Parameters) {
			p.B, p.Alpha, p.Kq, p.Ks, p.DDF, p.Kv = 0, 1, 1, 0, 2, 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParameters()
			tt.mutate(&p)
			err := p.Validate()

			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected validation.Errors in %v", err)
			}
			if _, ok := verrs[tt.field]; !ok {
				t.Errorf("expected an error for field %q, got %v", tt.field, verrs)
			}
		})
	}
}
