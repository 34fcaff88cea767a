package models

import "fmt"

// Series represents a time-resolved phase-contrast acquisition.
// Data is stored in row-major order over [dim1, dim2, slice, time, channel],
// with the channel index varying fastest.
type Series struct {
	// Data holds the sample values, len(Data) == product of Shape
	Data []float64

	// Shape is [dim1, dim2, slice, time, channel]
	Shape [5]int
}

// Volume represents a time-averaged field over [dim1, dim2, slice, channel]
type Volume struct {
	Data  []float64
	Shape [4]int
}

// Mask is a boolean image over [dim1, dim2, slice]
type Mask struct {
	Data  []bool
	Shape [3]int
}

// ChannelMask is a boolean image with one layer per flow-encoding channel,
// over [dim1, dim2, slice, channel]
type ChannelMask struct {
	Data  []bool
	Shape [4]int
}

// NewSeries allocates a zeroed series of the given shape
func NewSeries(dim1, dim2, slices, frames, channels int) *Series {
	return &Series{
		Data:  make([]float64, dim1*dim2*slices*frames*channels),
		Shape: [5]int{dim1, dim2, slices, frames, channels},
	}
}

// NewVolume allocates a zeroed volume of the given shape
func NewVolume(dim1, dim2, slices, channels int) *Volume {
	return &Volume{
		Data:  make([]float64, dim1*dim2*slices*channels),
		Shape: [4]int{dim1, dim2, slices, channels},
	}
}

// NewMask allocates an all-false mask of the given shape
func NewMask(dim1, dim2, slices int) *Mask {
	return &Mask{
		Data:  make([]bool, dim1*dim2*slices),
		Shape: [3]int{dim1, dim2, slices},
	}
}

// NewChannelMask allocates an all-false channel mask of the given shape
func NewChannelMask(dim1, dim2, slices, channels int) *ChannelMask {
	return &ChannelMask{
		Data:  make([]bool, dim1*dim2*slices*channels),
		Shape: [4]int{dim1, dim2, slices, channels},
	}
}

// Validate checks that the data length matches the declared shape
func (s *Series) Validate() error {
	n := 1
	for _, d := range s.Shape {
		if d <= 0 {
			return fmt.Errorf("series shape %v has a non-positive dimension", s.Shape)
		}
		n *= d
	}
	if len(s.Data) != n {
		return fmt.Errorf("series shape %v needs %d values, got %d", s.Shape, n, len(s.Data))
	}
	return nil
}

// Index returns the flat offset of (i, j, k, t, c)
func (s *Series) Index(i, j, k, t, c int) int {
	return (((i*s.Shape[1]+j)*s.Shape[2]+k)*s.Shape[3]+t)*s.Shape[4] + c
}

// At returns the value at (i, j, k, t, c)
func (s *Series) At(i, j, k, t, c int) float64 {
	return s.Data[s.Index(i, j, k, t, c)]
}

// Set stores v at (i, j, k, t, c)
func (s *Series) Set(i, j, k, t, c int, v float64) {
	s.Data[s.Index(i, j, k, t, c)] = v
}

// Pixels returns the number of spatial positions (dim1*dim2*slice)
func (s *Series) Pixels() int {
	return s.Shape[0] * s.Shape[1] * s.Shape[2]
}

// TimeAverage averages the series over its time axis.
func (s *Series) TimeAverage() *Volume {
	frames, channels := s.Shape[3], s.Shape[4]
	avg := NewVolume(s.Shape[0], s.Shape[1], s.Shape[2], channels)

	for p := 0; p < s.Pixels(); p++ {
		base := p * frames * channels
		for c := 0; c < channels; c++ {
			sum := 0.0
			for t := 0; t < frames; t++ {
				sum += s.Data[base+t*channels+c]
			}
			avg.Data[p*channels+c] = sum / float64(frames)
		}
	}

	return avg
}

// Index returns the flat offset of (i, j, k, c)
func (v *Volume) Index(i, j, k, c int) int {
	return ((i*v.Shape[1]+j)*v.Shape[2]+k)*v.Shape[3] + c
}

// At returns the value at (i, j, k, c)
func (v *Volume) At(i, j, k, c int) float64 {
	return v.Data[v.Index(i, j, k, c)]
}

// Pixels returns the number of spatial positions (dim1*dim2*slice)
func (v *Volume) Pixels() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// ChannelMean collapses the channel axis by averaging
func (v *Volume) ChannelMean() *Volume {
	channels := v.Shape[3]
	out := NewVolume(v.Shape[0], v.Shape[1], v.Shape[2], 1)
	for p := 0; p < v.Pixels(); p++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += v.Data[p*channels+c]
		}
		out.Data[p] = sum / float64(channels)
	}
	return out
}

// Threshold returns a mask that is true where the first channel exceeds level
func (v *Volume) Threshold(level float64) *Mask {
	mask := NewMask(v.Shape[0], v.Shape[1], v.Shape[2])
	channels := v.Shape[3]
	for p := range mask.Data {
		mask.Data[p] = v.Data[p*channels] > level
	}
	return mask
}

// Count returns the number of set pixels
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Data {
		if b {
			n++
		}
	}
	return n
}

// At reports whether (i, j, k) is set
func (m *Mask) At(i, j, k int) bool {
	return m.Data[(i*m.Shape[1]+j)*m.Shape[2]+k]
}

// Index returns the flat offset of (i, j, k, c)
func (m *ChannelMask) Index(i, j, k, c int) int {
	return ((i*m.Shape[1]+j)*m.Shape[2]+k)*m.Shape[3] + c
}

// At reports whether (i, j, k, c) is set
func (m *ChannelMask) At(i, j, k, c int) bool {
	return m.Data[m.Index(i, j, k, c)]
}

// Count returns the number of set pixels in channel c
func (m *ChannelMask) Count(c int) int {
	n := 0
	for p := c; p < len(m.Data); p += m.Shape[3] {
		if m.Data[p] {
			n++
		}
	}
	return n
}
