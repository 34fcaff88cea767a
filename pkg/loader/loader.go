// Package loader reads raw phase-contrast arrays and normalizes them into the
// ranges expected by the correction pipeline.
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio/npy"

	"msacbgcorr/internal/models"
)

// LoadSeries reads a NumPy .npy file holding a [dim1, dim2, slice, time] or
// [dim1, dim2, slice, time, channel] array
func LoadSeries(path string) (*models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	s, err := ReadSeries(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s, nil
}

// ReadSeries decodes a .npy stream into a series
func ReadSeries(r io.Reader) (*models.Series, error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, err
	}

	shape := nr.Header.Descr.Shape
	var dims [5]int
	switch len(shape) {
	case 4:
		copy(dims[:], shape)
		dims[4] = 1
	case 5:
		copy(dims[:], shape)
	default:
		return nil, fmt.Errorf("expected a 4-D or 5-D array, got shape %v", shape)
	}

	values, err := readFloat64(nr)
	if err != nil {
		return nil, err
	}

	s := &models.Series{Data: values, Shape: dims}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if nr.Header.Descr.Fortran {
		s.Data = fromColumnMajor(values, dims)
	}
	return s, nil
}

// readFloat64 reads the array payload, widening integer and single
// precision dtypes to float64
func readFloat64(nr *npy.Reader) ([]float64, error) {
	switch nr.Header.Descr.Type {
	case "<f8":
		var v []float64
		err := nr.Read(&v)
		return v, err
	case "<f4":
		var v []float32
		if err := nr.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "<i2":
		var v []int16
		if err := nr.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "<u2":
		var v []uint16
		if err := nr.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "<i4":
		var v []int32
		if err := nr.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "<i8":
		var v []int64
		if err := nr.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	}
	return nil, fmt.Errorf("unsupported dtype %q", nr.Header.Descr.Type)
}

func widen[T float32 | int16 | uint16 | int32 | int64](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// fromColumnMajor reorders Fortran-ordered values into row-major order
func fromColumnMajor(values []float64, dims [5]int) []float64 {
	out := make([]float64, len(values))
	var idx [5]int
	for f := range values {
		// decompose f with the first axis varying fastest
		rem := f
		for d := 0; d < 5; d++ {
			idx[d] = rem % dims[d]
			rem /= dims[d]
		}
		r := 0
		for d := 0; d < 5; d++ {
			r = r*dims[d] + idx[d]
		}
		out[r] = values[f]
	}
	return out
}
