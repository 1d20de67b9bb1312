package sample

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/hymod/internal/hymod"
)

func TestReaderNext(t *testing.T) {
	in := `# Ks Kq DDF Tb Tth alpha B Huz
0.01 0.5 1.0 -1.0 1.0 0.7 0.5 100 0.123 extra

0.02 0.4 1.5 -0.5 0.5 0.3 1.2 250
`
	r := NewReader(strings.NewReader(in))

	want := [][]float64{
		{0.01, 0.5, 1.0, -1.0, 1.0, 0.7, 0.5, 100},
		{0.02, 0.4, 1.5, -0.5, 0.5, 0.3, 1.2, 250},
	}
	for i, w := range want {
		v, err := r.Next()
		if err != nil {
			t.Fatalf("vector %d: unexpected error: %v", i, err)
		}
		if len(v) != hymod.VectorLength {
			t.Fatalf("vector %d: %d values", i, len(v))
		}
		for j := range w {
			if v[j] != w[j] {
				t.Errorf("vector %d value %d: %v, want %v", i, j, v[j], w[j])
			}
		}
	}

	_, err := r.Next()
	if !errors.Is(err, hymod.ErrInputExhausted) || !errors.Is(err, io.EOF) {
		t.Errorf("expected exhausted input, got %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("count %d, want 2", r.Count())
	}
}

func TestReaderPartialVector(t *testing.T) {
	r := NewReader(strings.NewReader("0.01 0.5 1.0 -1.0 1.0 0.7 0.5 100\n0.01 0.5 1.0\n"))
	if _, err := r.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := r.Next()
	if !errors.Is(err, hymod.ErrInputExhausted) {
		t.Errorf("expected ErrInputExhausted, got %v", err)
	}
	if r.Line() != 2 {
		t.Errorf("line %d, want 2", r.Line())
	}
}

func TestReaderMalformed(t *testing.T) {
	r := NewReader(strings.NewReader("0.01 0.5 abc -1.0 1.0 0.7 0.5 100\n0.02 0.4 1.5 -0.5 0.5 0.3 1.2 250\n"))

	_, err := r.Next()
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if errors.Is(err, hymod.ErrInputExhausted) {
		t.Error("malformed line reported as exhausted input")
	}

	v, err := r.Next()
	if err != nil {
		t.Fatalf("reader not usable after malformed line: %v", err)
	}
	if v[7] != 250 {
		t.Errorf("Huz %v, want 250", v[7])
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.txt")
	if err := os.WriteFile(path, []byte("1 2 3 4 5 6 7 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if _, err := r.Next(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "nope.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
