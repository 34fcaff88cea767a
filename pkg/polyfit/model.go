package polyfit

import "gonum.org/v1/gonum/mat"

// Model holds fitted polynomial coefficients, one column per channel.
type Model struct {
	// Order is the polynomial order the coefficients belong to
	Order int

	// Coefficients is K×C; column c is the coefficient vector of channel c
	// in the fixed monomial order of the design matrix
	Coefficients *mat.Dense
}

// Channel returns a copy of the coefficient vector of channel c
func (m *Model) Channel(c int) []float64 {
	return mat.Col(nil, c, m.Coefficients)
}

// Channels returns the number of coefficient columns
func (m *Model) Channels() int {
	_, c := m.Coefficients.Dims()
	return c
}

// InlierMask flags, for every point and channel, membership in a selection.
type InlierMask struct {
	n, channels int
	data        []bool
}

// NewInlierMask returns an empty (all false) mask
func NewInlierMask(n, channels int) *InlierMask {
	return &InlierMask{n: n, channels: channels, data: make([]bool, n*channels)}
}

// AllInliers returns a mask selecting every point in every channel
func AllInliers(n, channels int) *InlierMask {
	m := NewInlierMask(n, channels)
	for i := range m.data {
		m.data[i] = true
	}
	return m
}

// Len returns the number of points
func (m *InlierMask) Len() int { return m.n }

// Channels returns the number of channels
func (m *InlierMask) Channels() int { return m.channels }

// At reports whether point i is selected in channel c
func (m *InlierMask) At(i, c int) bool {
	return m.data[i*m.channels+c]
}

// Set marks point i in channel c
func (m *InlierMask) Set(i, c int, v bool) {
	m.data[i*m.channels+c] = v
}

// Count returns the number of selected points in channel c
func (m *InlierMask) Count(c int) int {
	n := 0
	for i := 0; i < m.n; i++ {
		if m.data[i*m.channels+c] {
			n++
		}
	}
	return n
}

// SetChannel overwrites channel c with flags, which must hold Len values
func (m *InlierMask) SetChannel(c int, flags []bool) {
	for i, v := range flags {
		m.data[i*m.channels+c] = v
	}
}

// Column returns a copy of channel c
func (m *InlierMask) Column(c int) []bool {
	out := make([]bool, m.n)
	for i := range out {
		out[i] = m.data[i*m.channels+c]
	}
	return out
}
