package polyfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DistanceScale multiplies absolute residuals in Distance. MSAC thresholds
// are expressed against this scaled residual.
const DistanceScale = 0.5

// Strategy fits, evaluates and scores polynomial models of one order for one
// spatial dimensionality. It is chosen once, when a run is configured.
type Strategy interface {
	// Order returns the polynomial order
	Order() int

	// Dims returns the number of spatial coordinates
	Dims() int

	// Channels returns the number of independently fitted channels
	Channels() int

	// Columns returns the number of coefficients per channel
	Columns() int

	// Build derives the design matrix of points for this strategy's order
	Build(points *PointSet) (*DesignMatrix, error)

	// Fit fits one coefficient vector per channel on the rows selected by
	// sel. A nil sel selects every row.
	Fit(dm *DesignMatrix, sel *InlierMask) (*Model, error)

	// Evaluate predicts targets for every row of dm
	Evaluate(m *Model, dm *DesignMatrix) (*mat.Dense, error)

	// Distance returns |target - prediction| * DistanceScale for every row
	// and channel of dm
	Distance(m *Model, dm *DesignMatrix) (*mat.Dense, error)
}

// polynomial is the Strategy for a fixed order and dimensionality.
type polynomial struct {
	order    int
	dims     int
	channels int
	columns  int
	terms    termFunc
}

// NewStrategy returns the strategy for the given spatial dimensionality
// (2 or 3) and polynomial order (0..3). Planar data is fitted as one channel,
// volumetric data as three.
func NewStrategy(dims, order int) (Strategy, error) {
	k, err := Columns(order, dims)
	if err != nil {
		return nil, err
	}
	channels := 1
	if dims == 3 {
		channels = 3
	}
	return &polynomial{
		order:    order,
		dims:     dims,
		channels: channels,
		columns:  k,
		terms:    basisTable[dims],
	}, nil
}

func (p *polynomial) Order() int    { return p.order }
func (p *polynomial) Dims() int     { return p.dims }
func (p *polynomial) Channels() int { return p.channels }
func (p *polynomial) Columns() int  { return p.columns }

func (p *polynomial) Build(points *PointSet) (*DesignMatrix, error) {
	if points.Dims() != p.dims || points.Channels() != p.channels {
		return nil, fmt.Errorf("%w: %d-D/%d-channel points for a %d-D/%d-channel model",
			ErrDimensionMismatch, points.Dims(), points.Channels(), p.dims, p.channels)
	}
	return build(p.order, p.columns, p.terms, points)
}

func (p *polynomial) check(dm *DesignMatrix) error {
	if dm.Order != p.order || dm.Columns != p.columns {
		return fmt.Errorf("%w: order %d design matrix used with an order %d model",
			ErrConfig, dm.Order, p.order)
	}
	if dm.Channels() != p.channels {
		return fmt.Errorf("%w: %d target channels, expected %d",
			ErrDimensionMismatch, dm.Channels(), p.channels)
	}
	return nil
}

func (p *polynomial) Fit(dm *DesignMatrix, sel *InlierMask) (*Model, error) {
	if err := p.check(dm); err != nil {
		return nil, err
	}
	n := dm.Len()
	if sel == nil {
		sel = AllInliers(n, p.channels)
	}
	if sel.Len() != n || sel.Channels() != p.channels {
		return nil, fmt.Errorf("%w: selection is %d×%d, design is %d×%d",
			ErrDimensionMismatch, sel.Len(), sel.Channels(), n, p.channels)
	}

	coeffs := mat.NewDense(p.columns, p.channels, nil)
	for c := 0; c < p.channels; c++ {
		rows := make([]int, 0, n)
		for i := 0; i < n; i++ {
			if sel.At(i, c) {
				rows = append(rows, i)
			}
		}
		if len(rows) < p.columns {
			return nil, fmt.Errorf("%w: channel %d has %d selected rows, order %d needs %d",
				ErrInsufficientSamples, c, len(rows), p.order, p.columns)
		}

		fitted, err := p.fitChannel(dm, c, rows)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		coeffs.SetCol(c, fitted)
	}

	return &Model{Order: p.order, Coefficients: coeffs}, nil
}

// fitChannel fits the coefficients of channel c on the given rows.
func (p *polynomial) fitChannel(dm *DesignMatrix, c int, rows []int) ([]float64, error) {
	y := make([]float64, len(rows))
	for r, i := range rows {
		y[r] = dm.Targets.At(i, c)
	}

	if p.order == 0 {
		mean := stat.Mean(y, nil)
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			return nil, fmt.Errorf("%w: non-finite mean", ErrNumericalSingularity)
		}
		return []float64{mean}, nil
	}

	a := mat.NewDense(len(rows), p.columns, nil)
	for r, i := range rows {
		a.SetRow(r, dm.Features.RawRowView(i))
	}
	return leastSquares(a, mat.NewVecDense(len(y), y))
}

func (p *polynomial) Evaluate(m *Model, dm *DesignMatrix) (*mat.Dense, error) {
	if err := p.check(dm); err != nil {
		return nil, err
	}
	if m.Order != p.order {
		return nil, fmt.Errorf("%w: order %d model evaluated as order %d", ErrConfig, m.Order, p.order)
	}
	if r, c := m.Coefficients.Dims(); r != p.columns || c != p.channels {
		return nil, fmt.Errorf("%w: coefficients are %d×%d, expected %d×%d",
			ErrDimensionMismatch, r, c, p.columns, p.channels)
	}

	var est mat.Dense
	est.Mul(dm.Features, m.Coefficients)
	return &est, nil
}

func (p *polynomial) Distance(m *Model, dm *DesignMatrix) (*mat.Dense, error) {
	est, err := p.Evaluate(m, dm)
	if err != nil {
		return nil, err
	}
	est.Apply(func(i, j int, v float64) float64 {
		return math.Abs(dm.Targets.At(i, j)-v) * DistanceScale
	}, est)
	return est, nil
}
