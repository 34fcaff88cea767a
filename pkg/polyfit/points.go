package polyfit

import "fmt"

// PointSet is an ordered, read-only collection of observations. Each
// observation carries one target per channel and one coordinate per spatial
// dimension. Planar data has 1 channel and 2 coordinates, volumetric data has
// 3 channels and 3 coordinates.
type PointSet struct {
	targets  []float64
	coords   []float64
	n        int
	channels int
	dims     int
}

// NewPointSet wraps flat, row-major target and coordinate slices.
// targets holds n*channels values and coords holds n*dims values.
// The slices are retained, not copied; callers must not modify them afterwards.
func NewPointSet(targets []float64, channels int, coords []float64, dims int) (*PointSet, error) {
	if err := checkLayout(dims, channels); err != nil {
		return nil, err
	}
	if len(targets)%channels != 0 {
		return nil, fmt.Errorf("%w: %d targets for %d channels", ErrDimensionMismatch, len(targets), channels)
	}
	n := len(targets) / channels
	if len(coords) != n*dims {
		return nil, fmt.Errorf("%w: %d points need %d coordinates, got %d",
			ErrDimensionMismatch, n, n*dims, len(coords))
	}

	return &PointSet{
		targets:  targets,
		coords:   coords,
		n:        n,
		channels: channels,
		dims:     dims,
	}, nil
}

// checkLayout enforces the two supported layouts: 2-D with one channel and
// 3-D with three channels.
func checkLayout(dims, channels int) error {
	switch {
	case dims == 2 && channels == 1:
		return nil
	case dims == 3 && channels == 3:
		return nil
	}
	return fmt.Errorf("%w: %d channel(s) with %d spatial dimensions", ErrConfig, channels, dims)
}

// Len returns the number of observations
func (p *PointSet) Len() int { return p.n }

// Channels returns the number of targets per observation
func (p *PointSet) Channels() int { return p.channels }

// Dims returns the number of spatial coordinates per observation
func (p *PointSet) Dims() int { return p.dims }

// Target returns the target of observation i in channel c
func (p *PointSet) Target(i, c int) float64 {
	return p.targets[i*p.channels+c]
}

// Coords returns the coordinates of observation i. The returned slice aliases
// the point set's storage.
func (p *PointSet) Coords(i int) []float64 {
	return p.coords[i*p.dims : (i+1)*p.dims]
}
