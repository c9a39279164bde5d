package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// featureThreshold is the smallest gap between two feature values that
// can separate them.
const featureThreshold = 1e-7

// minImpurity marks a node as pure.
const minImpurity = 1e-7

// Node is one node of a fitted tree. Leaves have Feature == -1.
// Samples with X[Feature] <= Threshold go to Left.
type Node struct {
	Feature          int
	Threshold        float64
	Left, Right      int
	Impurity         float64
	NSamples         int
	WeightedNSamples float64
	// Value is the weighted class histogram for classification trees and
	// the single leaf output for regression trees.
	Value []float64
}

// Tree is an array-backed binary decision tree. Node 0 is the root.
type Tree struct {
	Nodes       []Node
	NFeatures   int
	importances []float64
}

// IsLeaf reports whether node i is a leaf.
func (t *Tree) IsLeaf(i int) bool {
	return t.Nodes[i].Feature < 0
}

// Apply returns the leaf index reached by every row of X.
func (t *Tree) Apply(X mat.Matrix) []int {
	n, _ := X.Dims()
	leaves := make([]int, n)
	for i := 0; i < n; i++ {
		leaves[i] = t.applyRow(X, i)
	}
	return leaves
}

func (t *Tree) applyRow(X mat.Matrix, row int) int {
	node := 0
	for !t.IsLeaf(node) {
		nd := &t.Nodes[node]
		if X.At(row, nd.Feature) <= nd.Threshold {
			node = nd.Left
		} else {
			node = nd.Right
		}
	}
	return node
}

// SetLeafValue overrides the output of a leaf.
func (t *Tree) SetLeafValue(node int, value []float64) {
	t.Nodes[node].Value = value
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		if t.IsLeaf(i) {
			return 0
		}
		l, r := walk(t.Nodes[i].Left), walk(t.Nodes[i].Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.IsLeaf(i) {
			n++
		}
	}
	return n
}

// FeatureImportances returns the normalised total impurity decrease
// contributed by each feature.
func (t *Tree) FeatureImportances() []float64 {
	out := append([]float64(nil), t.importances...)
	if s := floats.Sum(out); s > 0 {
		floats.Scale(1/s, out)
	}
	return out
}

// builderParams are the growth limits shared by all tree estimators.
type builderParams struct {
	splitter        string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

type builder struct {
	params builderParams
	acc    accumulator
	rng    *rand.Rand

	data     []float64
	stride   int
	weight   []float64
	tree     *Tree
	features []int

	// scratch for the best splitter
	sortIdx  []int
	sortVals []float64
}

type split struct {
	feature   int
	threshold float64
	proxy     float64
	impLeft   float64
	impRight  float64
	found     bool
}

// buildTree grows a tree on the rows of X with positive weight.
func buildTree(X *mat.Dense, weight []float64, acc accumulator, params builderParams, rng *rand.Rand) *Tree {
	n, d := X.Dims()
	raw := X.RawMatrix()
	b := &builder{
		params:   params,
		acc:      acc,
		rng:      rng,
		data:     raw.Data,
		stride:   raw.Stride,
		weight:   weight,
		tree:     &Tree{NFeatures: d, importances: make([]float64, d)},
		features: make([]int, d),
		sortIdx:  make([]int, 0, n),
		sortVals: make([]float64, 0, n),
	}
	for j := range b.features {
		b.features[j] = j
	}

	samples := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if weight[i] != 0 {
			samples = append(samples, i)
		}
	}
	b.build(samples, 0)

	if root := b.tree.Nodes[0].WeightedNSamples; root > 0 {
		floats.Scale(1/root, b.tree.importances)
	}
	return b.tree
}

func (b *builder) x(i, f int) float64 {
	return b.data[i*b.stride+f]
}

func (b *builder) build(samples []int, depth int) int {
	b.acc.init(samples)
	wTotal, _ := b.acc.weights()
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:          -1,
		Left:             -1,
		Right:            -1,
		Impurity:         b.acc.impurity(),
		NSamples:         len(samples),
		WeightedNSamples: wTotal,
		Value:            b.acc.value(),
	})

	n := len(samples)
	p := b.params
	if (p.maxDepth > 0 && depth >= p.maxDepth) ||
		n < p.minSamplesSplit ||
		n < 2*p.minSamplesLeaf ||
		b.tree.Nodes[id].Impurity <= minImpurity {
		return id
	}

	var s split
	if p.splitter == "random" {
		s = b.randomSplit(samples)
	} else {
		s = b.bestSplit(samples)
	}
	if !s.found {
		return id
	}

	mid := b.partition(samples, s.feature, s.threshold)
	wLeft := 0.0
	for _, i := range samples[:mid] {
		wLeft += b.weight[i]
	}
	node := &b.tree.Nodes[id]
	b.tree.importances[s.feature] += wTotal*node.Impurity - wLeft*s.impLeft - (wTotal-wLeft)*s.impRight

	left := b.build(samples[:mid], depth+1)
	right := b.build(samples[mid:], depth+1)

	node = &b.tree.Nodes[id]
	node.Feature = s.feature
	node.Threshold = s.threshold
	node.Left = left
	node.Right = right
	return id
}

// drawFeature picks the next candidate feature without replacement among
// features[pos:].
func (b *builder) drawFeature(pos int) int {
	j := pos + b.rng.IntN(len(b.features)-pos)
	b.features[pos], b.features[j] = b.features[j], b.features[pos]
	return b.features[pos]
}

// validChild reports whether a split leaves enough samples on both sides.
func (b *builder) validChild(nLeft, n int) bool {
	return nLeft >= b.params.minSamplesLeaf && n-nLeft >= b.params.minSamplesLeaf
}

// bestSplit scans sorted feature values and keeps the split with the
// largest proxy improvement. Features are drawn until maxFeatures
// non-constant ones were evaluated.
func (b *builder) bestSplit(samples []int) split {
	best := split{proxy: math.Inf(-1)}
	n := len(samples)
	visited := 0
	for pos := 0; pos < len(b.features) && visited < b.params.maxFeatures; pos++ {
		f := b.drawFeature(pos)

		b.sortIdx = append(b.sortIdx[:0], samples...)
		b.sortVals = b.sortVals[:0]
		for _, i := range b.sortIdx {
			b.sortVals = append(b.sortVals, b.x(i, f))
		}
		sort.Sort(byValue{b.sortIdx, b.sortVals})
		if b.sortVals[n-1] <= b.sortVals[0]+featureThreshold {
			continue
		}
		visited++

		b.acc.reset()
		for k := 0; k < n-1; k++ {
			b.acc.moveLeft(b.sortIdx[k])
			if b.sortVals[k+1] <= b.sortVals[k]+featureThreshold {
				continue
			}
			if !b.validChild(k+1, n) {
				continue
			}
			if proxy := b.acc.proxyImprovement(); proxy > best.proxy {
				l, r := b.acc.children()
				thr := b.sortVals[k]/2 + b.sortVals[k+1]/2
				if thr == b.sortVals[k+1] || math.IsInf(thr, 0) || math.IsNaN(thr) {
					thr = b.sortVals[k]
				}
				best = split{feature: f, threshold: thr, proxy: proxy, impLeft: l, impRight: r, found: true}
			}
		}
	}
	return best
}

// randomSplit draws one uniform threshold per candidate feature and keeps
// the best of them.
func (b *builder) randomSplit(samples []int) split {
	best := split{proxy: math.Inf(-1)}
	n := len(samples)
	visited := 0
	for pos := 0; pos < len(b.features) && visited < b.params.maxFeatures; pos++ {
		f := b.drawFeature(pos)

		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range samples {
			v := b.x(i, f)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= lo+featureThreshold {
			continue
		}
		visited++

		thr := lo + b.rng.Float64()*(hi-lo)
		if thr == hi {
			thr = lo
		}
		b.acc.reset()
		nLeft := 0
		for _, i := range samples {
			if b.x(i, f) <= thr {
				b.acc.moveLeft(i)
				nLeft++
			}
		}
		if !b.validChild(nLeft, n) {
			continue
		}
		if proxy := b.acc.proxyImprovement(); proxy > best.proxy {
			l, r := b.acc.children()
			best = split{feature: f, threshold: thr, proxy: proxy, impLeft: l, impRight: r, found: true}
		}
	}
	return best
}

// partition reorders samples so rows going left come first and returns
// the size of the left part.
func (b *builder) partition(samples []int, f int, thr float64) int {
	mid := 0
	for k, i := range samples {
		if b.x(i, f) <= thr {
			samples[mid], samples[k] = samples[k], samples[mid]
			mid++
		}
	}
	return mid
}

type byValue struct {
	idx  []int
	vals []float64
}

func (s byValue) Len() int           { return len(s.idx) }
func (s byValue) Less(i, j int) bool { return s.vals[i] < s.vals[j] }
func (s byValue) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
}

// newRNG returns a PCG source seeded with seed, or a random seed when seed
// is negative.
func newRNG(seed int64) *rand.Rand {
	s := uint64(seed)
	if seed < 0 {
		s = rand.Uint64()
	}
	return rand.New(rand.NewPCG(s, s))
}
