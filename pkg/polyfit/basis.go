package polyfit

import "fmt"

// MaxOrder is the highest supported polynomial order.
const MaxOrder = 3

// columnTable holds the number of monomials up to each total degree,
// indexed by spatial dimensionality and then order.
var columnTable = map[int][MaxOrder + 1]int{
	2: {1, 3, 6, 10},
	3: {1, 4, 10, 20},
}

// termFunc writes the monomials of p into row, in the fixed column order,
// stopping after len(row) terms. Lower orders are prefixes of higher ones.
type termFunc func(row, p []float64)

// basisTable selects the monomial enumeration for a dimensionality.
var basisTable = map[int]termFunc{
	2: planarTerms,
	3: volumetricTerms,
}

// Columns returns the number of design-matrix columns for a polynomial of the
// given order in dims spatial variables.
func Columns(order, dims int) (int, error) {
	table, ok := columnTable[dims]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported spatial dimensionality %d", ErrConfig, dims)
	}
	if order < 0 || order > MaxOrder {
		return 0, fmt.Errorf("%w: polynomial order %d outside 0..%d", ErrConfig, order, MaxOrder)
	}
	return table[order], nil
}

// planarTerms enumerates 1, p1, p2, p1², p1p2, p2², p1³, p1²p2, p2³, p2²p1
func planarTerms(row, p []float64) {
	p1, p2 := p[0], p[1]
	var all [10]float64
	all[0] = 1
	all[1] = p1
	all[2] = p2
	all[3] = p1 * p1
	all[4] = p1 * p2
	all[5] = p2 * p2
	all[6] = p1 * p1 * p1
	all[7] = p1 * p1 * p2
	all[8] = p2 * p2 * p2
	all[9] = p2 * p2 * p1
	copy(row, all[:len(row)])
}

// volumetricTerms enumerates the 20 monomials of total degree ≤ 3 in
// p1, p2, p3: constant, linear, quadratic, then cubic with the mixed
// p1p2p3 term last.
func volumetricTerms(row, p []float64) {
	p1, p2, p3 := p[0], p[1], p[2]
	var all [20]float64
	all[0] = 1
	all[1] = p1
	all[2] = p2
	all[3] = p3
	all[4] = p1 * p1
	all[5] = p1 * p2
	all[6] = p1 * p3
	all[7] = p2 * p2
	all[8] = p2 * p3
	all[9] = p3 * p3
	all[10] = p1 * p1 * p1
	all[11] = p1 * p1 * p2
	all[12] = p1 * p1 * p3
	all[13] = p2 * p2 * p2
	all[14] = p2 * p2 * p1
	all[15] = p2 * p2 * p3
	all[16] = p3 * p3 * p3
	all[17] = p3 * p3 * p1
	all[18] = p3 * p3 * p2
	all[19] = p1 * p2 * p3
	copy(row, all[:len(row)])
}
