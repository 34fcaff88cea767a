// Package visualization renders correction results as image panels and
// terminal histograms.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"msacbgcorr/pkg/correction"
)

// VelocityLimit is the display range of velocity panels in cm/s
const VelocityLimit = 10.0

const (
	panelScale = 4
	panelGap   = 4
	histBins   = 25
	histWidth  = 40
)

// Layer selects one image of a result panel
type Layer int

const (
	Uncorrected Layer = iota
	Corrected
	MagnitudeMask
	InlierMask
)

func (l Layer) String() string {
	switch l {
	case Uncorrected:
		return "velocity uncorrected"
	case Corrected:
		return "velocity corrected"
	case MagnitudeMask:
		return "input mask"
	case InlierMask:
		return "msac mask"
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// rdbu runs from red for negative to blue for positive velocity
var rdbu = mustHexes(
	"#67001f", "#b2182b", "#d6604d", "#f4a582", "#fddbc7", "#f7f7f7",
	"#d1e5f0", "#92c5de", "#4393c3", "#2166ac", "#053061",
)

func mustHexes(hexes ...string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		out[i] = c
	}
	return out
}

// Viewer renders one correction result
type Viewer struct {
	result *correction.Result

	// venc converts normalized phase to cm/s
	venc float64
}

// NewViewer creates a viewer for result, with velocities scaled by venc
func NewViewer(result *correction.Result, venc float64) *Viewer {
	return &Viewer{result: result, venc: venc}
}

// Direction names the flow-encoding direction of a channel
func (v *Viewer) Direction(channel int) string {
	if v.channels() == 1 {
		return "through-plane"
	}
	return [...]string{"left-right", "anterior-posterior", "head-foot"}[channel]
}

// PlottedSlice returns the slice shown in panels: 0 for single-slice data,
// otherwise ceil(slices/2) clamped to the last slice
func (v *Viewer) PlottedSlice() int {
	slices := v.result.Average.Shape[2]
	k := (slices + 1) / 2
	if slices == 1 {
		k = 0
	}
	if k >= slices {
		k = slices - 1
	}
	return k
}

func (v *Viewer) channels() int {
	return v.result.Average.Shape[3]
}

func (v *Viewer) checkChannel(channel int) error {
	if channel < 0 || channel >= v.channels() {
		return fmt.Errorf("channel %d out of range [0, %d)", channel, v.channels())
	}
	return nil
}

// ExtractSlice renders one layer of the plotted slice at native resolution,
// with dim1 along the vertical axis
func (v *Viewer) ExtractSlice(layer Layer, channel int) (*image.NRGBA, error) {
	if err := v.checkChannel(channel); err != nil {
		return nil, err
	}
	shape := v.result.Average.Shape
	k := v.PlottedSlice()
	img := image.NewNRGBA(image.Rect(0, 0, shape[1], shape[0]))

	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			var c color.Color
			switch layer {
			case Uncorrected:
				c = velocityColor(v.result.Average.At(i, j, k, channel) * v.venc)
			case Corrected:
				c = velocityColor(v.result.CorrectedAverage.At(i, j, k, channel) * v.venc)
			case MagnitudeMask:
				c = maskColor(v.result.MagnitudeMask.At(i, j, k))
			case InlierMask:
				c = maskColor(v.result.InlierMask.At(i, j, k, channel))
			default:
				return nil, fmt.Errorf("invalid layer: %v", layer)
			}
			img.Set(j, i, c)
		}
	}
	return img, nil
}

// Compose lays out the four layers of a channel in a 2x2 grid: velocities on
// the left, masks on the right, uncorrected data on top
func (v *Viewer) Compose(channel int) (*image.NRGBA, error) {
	shape := v.result.Average.Shape
	w, h := shape[1]*panelScale, shape[0]*panelScale
	canvas := imaging.New(2*w+3*panelGap, 2*h+3*panelGap, color.White)

	grid := []struct {
		layer    Layer
		col, row int
	}{
		{Uncorrected, 0, 0},
		{Corrected, 0, 1},
		{MagnitudeMask, 1, 0},
		{InlierMask, 1, 1},
	}
	for _, g := range grid {
		img, err := v.ExtractSlice(g.layer, channel)
		if err != nil {
			return nil, err
		}
		scaled := imaging.Resize(img, w, h, imaging.NearestNeighbor)
		pos := image.Pt(panelGap+g.col*(w+panelGap), panelGap+g.row*(h+panelGap))
		canvas = imaging.Paste(canvas, scaled, pos)
	}
	return canvas, nil
}

// SavePanels writes one PNG per channel into dir and returns the file names
func (v *Viewer) SavePanels(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var files []string
	for c := 0; c < v.channels(); c++ {
		img, err := v.Compose(c)
		if err != nil {
			return nil, err
		}
		name := filepath.Join(dir, fmt.Sprintf("velocity_%s_slice%03d.png", v.Direction(c), v.PlottedSlice()))
		if err := imaging.Save(img, name); err != nil {
			return nil, fmt.Errorf("failed to save panel %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

// Velocities returns the averaged velocity in cm/s before and after
// correction for the MSAC inliers of the plotted slice
func (v *Viewer) Velocities(channel int) (before, after []float64, err error) {
	if err := v.checkChannel(channel); err != nil {
		return nil, nil, err
	}
	shape := v.result.Average.Shape
	k := v.PlottedSlice()
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			if !v.result.InlierMask.At(i, j, k, channel) {
				continue
			}
			before = append(before, v.result.Average.At(i, j, k, channel)*v.venc)
			after = append(after, v.result.CorrectedAverage.At(i, j, k, channel)*v.venc)
		}
	}
	return before, after, nil
}

// WriteHistogram prints the velocity distribution inside the MSAC mask before
// and after correction
func (v *Viewer) WriteHistogram(w io.Writer, channel int) error {
	before, after, err := v.Velocities(channel)
	if err != nil {
		return err
	}
	if len(before) == 0 {
		return fmt.Errorf("no msac inliers in slice %d for channel %d", v.PlottedSlice(), channel)
	}

	for _, h := range []struct {
		title  string
		values []float64
	}{
		{"Before correction", before},
		{"After correction", after},
	} {
		fmt.Fprintf(w, "%s, %s [cm/s], %d pixels\n", h.title, v.Direction(channel), len(h.values))
		if err := histogram.Fprint(w, histogram.Hist(histBins, h.values), histogram.Linear(histWidth)); err != nil {
			return err
		}
	}
	return nil
}

// velocityColor maps a velocity in cm/s onto the diverging colormap, clipped
// at ±VelocityLimit
func velocityColor(vel float64) colorful.Color {
	t := (math.Max(-VelocityLimit, math.Min(VelocityLimit, vel)) + VelocityLimit) / (2 * VelocityLimit)
	if math.IsNaN(t) {
		t = 0.5
	}
	pos := t * float64(len(rdbu)-1)
	i := int(pos)
	if i >= len(rdbu)-1 {
		return rdbu[len(rdbu)-1]
	}
	return rdbu[i].BlendLab(rdbu[i+1], pos-float64(i)).Clamped()
}

func maskColor(set bool) color.Gray {
	if set {
		return color.Gray{Y: 255}
	}
	return color.Gray{}
}
