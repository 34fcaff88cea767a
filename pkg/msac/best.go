package msac

// bestState tracks the lowest-cost trial seen so far for every channel.
// Trial -1 is the notional initial model whose scaled residual equals the
// threshold at every point.
type bestState struct {
	cost    []float64
	trial   []int
	inliers [][]bool
	skipped int

	err      error
	errTrial int
}

func newBestState(channels, n int, threshold float64) *bestState {
	b := &bestState{
		cost:    make([]float64, channels),
		trial:   make([]int, channels),
		inliers: make([][]bool, channels),
	}
	for c := range b.cost {
		b.cost[c] = threshold * float64(n)
		b.trial[c] = -1
	}
	return b
}

// better orders candidates by cost, then by trial index.
func (b *bestState) better(c int, cost float64, trial int) bool {
	return cost < b.cost[c] || (cost == b.cost[c] && trial < b.trial[c])
}

// offer considers trial t for every channel. A worker sees its trials in
// increasing order, so a tie never displaces an earlier trial.
func (b *bestState) offer(t int, cost []float64, inliers [][]bool) {
	for c := range cost {
		if b.better(c, cost[c], t) {
			b.cost[c] = cost[c]
			b.trial[c] = t
			b.inliers[c] = inliers[c]
		}
	}
}

// merge folds another worker's state into b.
func (b *bestState) merge(o *bestState) {
	for c := range o.cost {
		if o.trial[c] >= 0 && b.better(c, o.cost[c], o.trial[c]) {
			b.cost[c] = o.cost[c]
			b.trial[c] = o.trial[c]
			b.inliers[c] = o.inliers[c]
		}
	}
	b.skipped += o.skipped
}
