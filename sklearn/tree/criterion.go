package tree

import (
	"math"
)

// accumulator tracks the weighted target statistics of a node and of the
// left part of a candidate split. Samples are moved from right to left.
type accumulator interface {
	init(samples []int)
	reset()
	moveLeft(i int)
	impurity() float64
	children() (left, right float64)
	proxyImprovement() float64
	weights() (total, left float64)
	value() []float64
}

// classAccumulator implements gini and entropy over weighted class counts.
type classAccumulator struct {
	labels  []int
	weight  []float64
	entropy bool

	total  []float64
	left   []float64
	right  []float64
	wTotal float64
	wLeft  float64
}

func newClassAccumulator(labels []int, weight []float64, nClasses int, criterion string) *classAccumulator {
	return &classAccumulator{
		labels:  labels,
		weight:  weight,
		entropy: criterion == "entropy",
		total:   make([]float64, nClasses),
		left:    make([]float64, nClasses),
		right:   make([]float64, nClasses),
	}
}

func (a *classAccumulator) init(samples []int) {
	for k := range a.total {
		a.total[k] = 0
	}
	a.wTotal = 0
	for _, i := range samples {
		a.total[a.labels[i]] += a.weight[i]
		a.wTotal += a.weight[i]
	}
	a.reset()
}

func (a *classAccumulator) reset() {
	for k := range a.left {
		a.left[k] = 0
	}
	a.wLeft = 0
}

func (a *classAccumulator) moveLeft(i int) {
	a.left[a.labels[i]] += a.weight[i]
	a.wLeft += a.weight[i]
}

func (a *classAccumulator) node(counts []float64, w float64) float64 {
	if w <= 0 {
		return 0
	}
	imp := 0.0
	for _, c := range counts {
		p := c / w
		if a.entropy {
			if p > 0 {
				imp -= p * math.Log2(p)
			}
		} else {
			imp += p * p
		}
	}
	if a.entropy {
		return imp
	}
	return 1 - imp
}

func (a *classAccumulator) impurity() float64 {
	return a.node(a.total, a.wTotal)
}

func (a *classAccumulator) children() (float64, float64) {
	for k := range a.right {
		a.right[k] = a.total[k] - a.left[k]
	}
	return a.node(a.left, a.wLeft), a.node(a.right, a.wTotal-a.wLeft)
}

func (a *classAccumulator) proxyImprovement() float64 {
	l, r := a.children()
	return -a.wLeft*l - (a.wTotal-a.wLeft)*r
}

func (a *classAccumulator) weights() (float64, float64) {
	return a.wTotal, a.wLeft
}

func (a *classAccumulator) value() []float64 {
	return append([]float64(nil), a.total...)
}

// regAccumulator implements the mse and friedman_mse criteria.
type regAccumulator struct {
	y        []float64
	weight   []float64
	friedman bool

	sum, sq, w          float64
	sumLeft, sqLeft, wL float64
}

func newRegAccumulator(y, weight []float64, criterion string) *regAccumulator {
	return &regAccumulator{y: y, weight: weight, friedman: criterion == "friedman_mse"}
}

func (a *regAccumulator) init(samples []int) {
	a.sum, a.sq, a.w = 0, 0, 0
	for _, i := range samples {
		wy := a.weight[i] * a.y[i]
		a.sum += wy
		a.sq += wy * a.y[i]
		a.w += a.weight[i]
	}
	a.reset()
}

func (a *regAccumulator) reset() {
	a.sumLeft, a.sqLeft, a.wL = 0, 0, 0
}

func (a *regAccumulator) moveLeft(i int) {
	wy := a.weight[i] * a.y[i]
	a.sumLeft += wy
	a.sqLeft += wy * a.y[i]
	a.wL += a.weight[i]
}

func variance(sum, sq, w float64) float64 {
	if w <= 0 {
		return 0
	}
	mean := sum / w
	v := sq/w - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func (a *regAccumulator) impurity() float64 {
	return variance(a.sum, a.sq, a.w)
}

func (a *regAccumulator) children() (float64, float64) {
	return variance(a.sumLeft, a.sqLeft, a.wL), variance(a.sum-a.sumLeft, a.sq-a.sqLeft, a.w-a.wL)
}

func (a *regAccumulator) proxyImprovement() float64 {
	wR := a.w - a.wL
	if a.friedman {
		// w_l * w_r * (mean_l - mean_r)^2 up to the constant 1/w
		if a.wL <= 0 || wR <= 0 {
			return math.Inf(-1)
		}
		diff := a.sumLeft/a.wL - (a.sum-a.sumLeft)/wR
		return a.wL * wR * diff * diff
	}
	l, r := a.children()
	return -a.wL*l - wR*r
}

func (a *regAccumulator) weights() (float64, float64) {
	return a.w, a.wL
}

func (a *regAccumulator) value() []float64 {
	if a.w <= 0 {
		return []float64{0}
	}
	return []float64{a.sum / a.w}
}
