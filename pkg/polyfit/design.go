package polyfit

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DesignMatrix pairs the polynomial features of a point set with its targets.
// Row i of Features and Targets both describe observation i.
type DesignMatrix struct {
	// Order is the polynomial order the features were built for
	Order int

	// Columns is the number of features per row (K)
	Columns int

	// Features is the N×K monomial matrix
	Features *mat.Dense

	// Targets is the N×C matrix of observed values, one column per channel
	Targets *mat.Dense
}

// Build derives the design matrix of points for a polynomial of the given
// order. The result depends only on the coordinates, targets and order.
func Build(order int, points *PointSet) (*DesignMatrix, error) {
	k, err := Columns(order, points.Dims())
	if err != nil {
		return nil, err
	}
	return build(order, k, basisTable[points.Dims()], points)
}

func build(order, k int, terms termFunc, points *PointSet) (*DesignMatrix, error) {
	n := points.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty point set", ErrInsufficientSamples)
	}

	features := mat.NewDense(n, k, nil)
	targets := mat.NewDense(n, points.Channels(), nil)
	for i := 0; i < n; i++ {
		terms(features.RawRowView(i), points.Coords(i))
		row := targets.RawRowView(i)
		for c := range row {
			row[c] = points.Target(i, c)
		}
	}

	return &DesignMatrix{
		Order:    order,
		Columns:  k,
		Features: features,
		Targets:  targets,
	}, nil
}

// Len returns the number of rows
func (dm *DesignMatrix) Len() int {
	n, _ := dm.Features.Dims()
	return n
}

// Channels returns the number of target columns
func (dm *DesignMatrix) Channels() int {
	_, c := dm.Targets.Dims()
	return c
}

// Rows returns a new design matrix holding copies of the listed rows, in the
// order given. idx must not be empty.
func (dm *DesignMatrix) Rows(idx []int) *DesignMatrix {
	features := mat.NewDense(len(idx), dm.Columns, nil)
	targets := mat.NewDense(len(idx), dm.Channels(), nil)
	for r, i := range idx {
		features.SetRow(r, dm.Features.RawRowView(i))
		targets.SetRow(r, dm.Targets.RawRowView(i))
	}
	return &DesignMatrix{
		Order:    dm.Order,
		Columns:  dm.Columns,
		Features: features,
		Targets:  targets,
	}
}
