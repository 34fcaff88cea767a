package polyfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the relative singular value below which a column of the
// equilibrated design matrix is treated as linearly dependent.
const rankTolerance = 1e-10

// leastSquares solves min ||a·x - b||₂ for a full-column-rank a.
//
// Columns are scaled to unit norm before the SVD so that the rank test is not
// dominated by the spread between constant and cubic monomials of pixel
// coordinates; the scaling is undone on the solution.
func leastSquares(a *mat.Dense, b *mat.VecDense) ([]float64, error) {
	rows, cols := a.Dims()

	scale := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, a)
		scale[j] = floats.Norm(col, 2)
		if scale[j] == 0 || math.IsNaN(scale[j]) || math.IsInf(scale[j], 0) {
			return nil, fmt.Errorf("%w: design column %d is degenerate", ErrNumericalSingularity, j)
		}
	}

	var eq mat.Dense
	eq.Apply(func(_, j int, v float64) float64 { return v / scale[j] }, a)

	var svd mat.SVD
	if ok := svd.Factorize(&eq, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrNumericalSingularity)
	}
	if rank := svd.Rank(rankTolerance); rank < cols {
		return nil, fmt.Errorf("%w: design rank %d below %d columns", ErrNumericalSingularity, rank, cols)
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, b, cols)

	coeffs := make([]float64, cols)
	for j := range coeffs {
		coeffs[j] = x.AtVec(j) / scale[j]
		if math.IsNaN(coeffs[j]) || math.IsInf(coeffs[j], 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient %d", ErrNumericalSingularity, j)
		}
	}
	return coeffs, nil
}
