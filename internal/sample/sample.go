// Package sample streams parameter vectors from a whitespace-delimited sample file, one
// vector per line. Columns beyond the vector width are ignored, as are blank lines and lines
// starting with '#'.
package sample

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/hymod/internal/hymod"
)

// ErrMalformed is returned for a line holding a value that is not a number. The reader stays
// usable and the next call to Next moves on to the following line.
var ErrMalformed = errors.New("malformed parameter vector")

// Reader reads parameter vectors in the order of hymod.ParameterOrder.
type Reader struct {
	sc     *bufio.Scanner
	closer io.Closer
	width  int
	line   int
	count  int
}

// NewReader returns a Reader over r producing vectors of hymod.VectorLength values.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		sc:    bufio.NewScanner(r),
		width: hymod.VectorLength,
	}
}

// Open opens a sample file. The caller must Close the returned Reader.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open sample file: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Count returns the number of vectors returned so far.
func (r *Reader) Count() int {
	return r.count
}

// Line returns the line number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next vector. At the end of input, or on a final line holding only part of a
// vector, it returns an error wrapping hymod.ErrInputExhausted.
func (r *Reader) Next() ([]float64, error) {
	for r.sc.Scan() {
		r.line++
		fields := strings.Fields(r.sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < r.width {
			return nil, fmt.Errorf("%w: line %d holds %d of %d values", hymod.ErrInputExhausted, r.line, len(fields), r.width)
		}

		v := make([]float64, r.width)
		for i := range v {
			f, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %v", ErrMalformed, r.line, i+1, err)
			}
			v[i] = f
		}
		r.count++
		return v, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading samples: %w", err)
	}
	return nil, fmt.Errorf("%w after %d vectors: %w", hymod.ErrInputExhausted, r.count, io.EOF)
}
