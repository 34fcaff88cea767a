package msac

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"msacbgcorr/pkg/polyfit"
)

const testThreshold = 0.01

// planarDesign builds an order-1 design over a w×h grid whose targets follow
// a plane, except every spikeEvery-th point which is offset by 0.5
func planarDesign(t *testing.T, w, h, spikeEvery int) (polyfit.Strategy, *polyfit.DesignMatrix, []bool) {
	t.Helper()
	var targets, coords []float64
	var spiked []bool
	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			v := 0.05 + 0.004*float64(i) - 0.003*float64(j)
			isSpike := spikeEvery > 0 && len(targets)%spikeEvery == spikeEvery-1
			if isSpike {
				v += 0.5
			}
			targets = append(targets, v)
			coords = append(coords, float64(i), float64(j))
			spiked = append(spiked, isSpike)
		}
	}
	ps, err := polyfit.NewPointSet(targets, 1, coords, 2)
	if err != nil {
		t.Fatalf("Failed to build point set: %v", err)
	}
	s, err := polyfit.NewStrategy(2, 1)
	if err != nil {
		t.Fatalf("NewStrategy failed: %v", err)
	}
	dm, err := s.Build(ps)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s, dm, spiked
}

func run(t *testing.T, s polyfit.Strategy, dm *polyfit.DesignMatrix, params Params, seed uint64) *Consensus {
	t.Helper()
	est, err := New(s, params, rand.NewSource(seed))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := est.Estimate(dm)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	return res
}

// TestRecoversPlane verifies that a noiseless plane with spikes yields the
// exact non-spiked inlier set and a cost of one threshold per spike
func TestRecoversPlane(t *testing.T) {
	s, dm, spiked := planarDesign(t, 15, 12, 10)
	res := run(t, s, dm, Params{Threshold: testThreshold, Samples: 3, Trials: 60, Degenerate: Skip}, 7)

	spikes := 0
	for i, sp := range spiked {
		if sp {
			spikes++
		}
		if res.Inliers.At(i, 0) == sp {
			t.Errorf("Point %d: expected inlier=%v, got %v", i, !sp, res.Inliers.At(i, 0))
		}
	}

	want := float64(spikes) * testThreshold
	if math.Abs(res.Cost[0]-want) > 1e-9 {
		t.Errorf("Expected cost %f, got %f", want, res.Cost[0])
	}
	if res.Trials != 60 {
		t.Errorf("Expected 60 trials, got %d", res.Trials)
	}
}

// TestCostMonotone verifies that extending the trial budget never raises the
// best cost and that the cost never exceeds the initial worst case
func TestCostMonotone(t *testing.T) {
	s, dm, _ := planarDesign(t, 10, 10, 4)
	worst := testThreshold * float64(dm.Len())

	prev := math.Inf(1)
	for trials := 1; trials <= 25; trials++ {
		res := run(t, s, dm, Params{Threshold: testThreshold, Samples: 3, Trials: trials, Degenerate: Skip}, 11)
		if res.Cost[0] > prev {
			t.Errorf("Cost rose from %f to %f at %d trials", prev, res.Cost[0], trials)
		}
		if res.Cost[0] > worst {
			t.Errorf("Cost %f exceeds initial worst case %f", res.Cost[0], worst)
		}
		prev = res.Cost[0]
	}
}

// TestWorkerInvariance verifies that the result does not depend on how many
// goroutines evaluate trials
func TestWorkerInvariance(t *testing.T) {
	s, dm, _ := planarDesign(t, 12, 12, 3)
	params := Params{Threshold: testThreshold, Samples: 4, Trials: 40, Degenerate: Skip}

	params.Workers = 1
	ref := run(t, s, dm, params, 99)

	for _, workers := range []int{2, 3, 8, 64} {
		params.Workers = workers
		res := run(t, s, dm, params, 99)
		if res.Cost[0] != ref.Cost[0] {
			t.Errorf("Workers=%d: expected cost %v, got %v", workers, ref.Cost[0], res.Cost[0])
		}
		if res.Skipped != ref.Skipped {
			t.Errorf("Workers=%d: expected %d skipped, got %d", workers, ref.Skipped, res.Skipped)
		}
		for i := 0; i < dm.Len(); i++ {
			if res.Inliers.At(i, 0) != ref.Inliers.At(i, 0) {
				t.Fatalf("Workers=%d: inlier flag of point %d differs", workers, i)
			}
		}
	}
}

// TestSeedReproducible verifies that equal seeds give equal results
func TestSeedReproducible(t *testing.T) {
	s, dm, _ := planarDesign(t, 9, 9, 2)
	params := Params{Threshold: testThreshold, Samples: 5, Trials: 30, Workers: 4, Degenerate: Skip}

	a := run(t, s, dm, params, 1234)
	b := run(t, s, dm, params, 1234)
	if a.Cost[0] != b.Cost[0] {
		t.Errorf("Expected identical costs, got %v and %v", a.Cost[0], b.Cost[0])
	}
	if a.Inliers.Count(0) != b.Inliers.Count(0) {
		t.Errorf("Expected identical inlier counts, got %d and %d", a.Inliers.Count(0), b.Inliers.Count(0))
	}
}

// TestParameterValidation verifies that configuration is rejected before sampling
func TestParameterValidation(t *testing.T) {
	s, dm, _ := planarDesign(t, 4, 4, 0)
	src := rand.NewSource(1)

	tests := []struct {
		name   string
		params Params
		want   error
	}{
		{"zero threshold", Params{Threshold: 0, Samples: 3, Trials: 1}, polyfit.ErrConfig},
		{"zero trials", Params{Threshold: 0.1, Samples: 3, Trials: 0}, polyfit.ErrConfig},
		{"negative workers", Params{Threshold: 0.1, Samples: 3, Trials: 1, Workers: -1}, polyfit.ErrConfig},
		{"bad policy", Params{Threshold: 0.1, Samples: 3, Trials: 1, Degenerate: 7}, polyfit.ErrConfig},
		{"too few samples", Params{Threshold: 0.1, Samples: 2, Trials: 1}, polyfit.ErrInsufficientSamples},
	}
	for _, tt := range tests {
		if _, err := New(s, tt.params, src); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	if _, err := New(s, Params{Threshold: 0.1, Samples: 3, Trials: 1}, nil); !errors.Is(err, polyfit.ErrConfig) {
		t.Errorf("Expected ErrConfig for nil source, got %v", err)
	}

	est, err := New(s, Params{Threshold: 0.1, Samples: 17, Trials: 1}, src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := est.Estimate(dm); !errors.Is(err, polyfit.ErrInsufficientSamples) {
		t.Errorf("Expected ErrInsufficientSamples for 17 samples from 16 points, got %v", err)
	}
}

// TestDegenerateSamples verifies both policies on data that only ever yields
// rank-deficient samples
func TestDegenerateSamples(t *testing.T) {
	var targets, coords []float64
	for i := 0; i < 20; i++ {
		targets = append(targets, 0.01*float64(i))
		coords = append(coords, float64(i), 3)
	}
	ps, _ := polyfit.NewPointSet(targets, 1, coords, 2)
	s, _ := polyfit.NewStrategy(2, 1)
	dm, err := s.Build(ps)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	est, _ := New(s, Params{Threshold: testThreshold, Samples: 3, Trials: 5, Workers: 2}, rand.NewSource(5))
	if _, err := est.Estimate(dm); !errors.Is(err, polyfit.ErrNumericalSingularity) {
		t.Errorf("Expected ErrNumericalSingularity with abort policy, got %v", err)
	}

	res := run(t, s, dm, Params{Threshold: testThreshold, Samples: 3, Trials: 5, Degenerate: Skip}, 5)
	if res.Skipped != 5 {
		t.Errorf("Expected 5 skipped trials, got %d", res.Skipped)
	}
	if want := testThreshold * 20; res.Cost[0] != want {
		t.Errorf("Expected initial cost %f, got %f", want, res.Cost[0])
	}
	if res.Inliers.Count(0) != 0 {
		t.Errorf("Expected empty inlier set, got %d inliers", res.Inliers.Count(0))
	}
}

// TestScoreTruncation verifies clamping and the strict inlier comparison
func TestScoreTruncation(t *testing.T) {
	residuals := mat.NewDense(4, 1, []float64{0.001, testThreshold, 0.5, 0.009})
	cost, inliers, err := score(residuals, testThreshold)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	want := 0.001 + testThreshold + testThreshold + 0.009
	if math.Abs(cost[0]-want) > 1e-15 {
		t.Errorf("Expected cost %f, got %f", want, cost[0])
	}
	expected := []bool{true, false, false, true}
	for i, v := range expected {
		if inliers[0][i] != v {
			t.Errorf("Residual %d: expected inlier=%v, got %v", i, v, inliers[0][i])
		}
	}

	if _, _, err := score(mat.NewDense(1, 1, []float64{math.NaN()}), testThreshold); !errors.Is(err, polyfit.ErrNumericalSingularity) {
		t.Errorf("Expected ErrNumericalSingularity for NaN residual, got %v", err)
	}
}

// TestVolumetricChannels verifies that each channel keeps its own inlier set
func TestVolumetricChannels(t *testing.T) {
	const n = 5
	var targets, coords []float64
	outlier := func(idx, c int) bool { return (idx+c)%7 == 0 }
	idx := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				p := []float64{float64(i), float64(j), float64(k)}
				planes := []float64{
					0.01 + 0.002*p[0],
					-0.02 + 0.003*p[1],
					0.005 - 0.001*p[2],
				}
				for c, v := range planes {
					if outlier(idx, c) {
						v += 0.3
					}
					targets = append(targets, v)
				}
				coords = append(coords, p...)
				idx++
			}
		}
	}
	ps, err := polyfit.NewPointSet(targets, 3, coords, 3)
	if err != nil {
		t.Fatalf("Failed to build point set: %v", err)
	}
	s, _ := polyfit.NewStrategy(3, 1)
	dm, err := s.Build(ps)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	res := run(t, s, dm, Params{Threshold: testThreshold, Samples: 6, Trials: 80, Workers: 3, Degenerate: Skip}, 3)
	for c := 0; c < 3; c++ {
		for i := 0; i < dm.Len(); i++ {
			if res.Inliers.At(i, c) == outlier(i, c) {
				t.Fatalf("Channel %d point %d: expected inlier=%v", c, i, !outlier(i, c))
			}
		}
	}
}

// TestParseDegeneratePolicy verifies the textual policy names
func TestParseDegeneratePolicy(t *testing.T) {
	for in, want := range map[string]DegeneratePolicy{"": Abort, "abort": Abort, " Skip ": Skip} {
		got, err := ParseDegeneratePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseDegeneratePolicy(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseDegeneratePolicy("retry"); !errors.Is(err, polyfit.ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}
