// Package tree implements CART decision trees for classification and
// regression with a scikit-learn compatible API.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Node is a node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value holds class probabilities for classifiers and the mean target
	// for regressors.
	Value    []float64
	NSamples int
	Impurity float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a fitted binary tree stored as a flat slice; node 0 is the root.
type Tree struct {
	Nodes       []Node
	NFeatures   int
	Depth       int
	Importances []float64
}

// Apply returns the index of the leaf reached by row.
func (t *Tree) Apply(row []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// impurity functions take weighted class counts and their total.
type impurityFunc func(counts []float64, total float64) float64

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

// builder grows a tree greedily, choosing at each node the split with the
// lowest weighted child impurity.
type builder struct {
	x           []float64 // row-major, nCols columns
	nCols       int
	weights     []float64
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	// classification; labels is nil for regression
	labels   []int
	nClasses int
	impurity impurityFunc

	// regression
	y []float64

	tree *Tree
}

type split struct {
	feature   int
	threshold float64
	score     float64 // weighted child impurity, lower is better
}

func (b *builder) at(i, j int) float64 { return b.x[i*b.nCols+j] }

func (b *builder) build(indices []int) *Tree {
	b.tree = &Tree{NFeatures: b.nCols, Importances: make([]float64, b.nCols)}
	b.grow(indices, 0)

	total := 0.0
	for _, v := range b.tree.Importances {
		total += v
	}
	if total > 0 {
		for i := range b.tree.Importances {
			b.tree.Importances[i] /= total
		}
	}
	return b.tree
}

// nodeValue returns the prediction value, the impurity and the total weight
// of the samples in idx.
func (b *builder) nodeValue(idx []int) ([]float64, float64, float64) {
	if b.labels != nil {
		counts := make([]float64, b.nClasses)
		total := 0.0
		for _, i := range idx {
			counts[b.labels[i]] += b.weights[i]
			total += b.weights[i]
		}
		imp := b.impurity(counts, total)
		for k := range counts {
			counts[k] /= total
		}
		return counts, imp, total
	}

	var sum, sq, total float64
	for _, i := range idx {
		w := b.weights[i]
		sum += w * b.y[i]
		sq += w * b.y[i] * b.y[i]
		total += w
	}
	mean := sum / total
	variance := sq/total - mean*mean
	if variance < 0 {
		variance = 0
	}
	return []float64{mean}, variance, total
}

func (b *builder) grow(idx []int, depth int) int {
	value, imp, total := b.nodeValue(idx)
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Value: value, NSamples: len(idx), Impurity: imp})
	if depth > b.tree.Depth {
		b.tree.Depth = depth
	}

	n := len(idx)
	if (b.maxDepth > 0 && depth >= b.maxDepth) || n < b.minSplit || n < 2*b.minLeaf || imp <= 1e-12 {
		return id
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if b.at(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if decrease := total*imp - best.score; decrease > 0 {
		b.tree.Importances[best.feature] += decrease
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	node := &b.tree.Nodes[id]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return id
}

func (b *builder) candidateFeatures() []int {
	if b.maxFeatures >= b.nCols {
		features := make([]int, b.nCols)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return b.rng.Perm(b.nCols)[:b.maxFeatures]
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	best := split{score: math.Inf(1)}
	found := false
	sorted := make([]int, n)

	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.at(sorted[a], f) < b.at(sorted[c], f) })
		if b.at(sorted[0], f) == b.at(sorted[n-1], f) {
			continue
		}

		var s split
		var ok bool
		if b.labels != nil {
			s, ok = b.scanClassification(sorted, f)
		} else {
			s, ok = b.scanRegression(sorted, f)
		}
		if ok && s.score < best.score {
			best = s
			found = true
		}
	}
	return best, found
}

func (b *builder) scanClassification(sorted []int, f int) (split, bool) {
	n := len(sorted)
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	var totalRight float64
	for _, i := range sorted {
		right[b.labels[i]] += b.weights[i]
		totalRight += b.weights[i]
	}

	best := split{feature: f, score: math.Inf(1)}
	found := false
	var totalLeft float64
	for pos := 0; pos < n-1; pos++ {
		i := sorted[pos]
		w := b.weights[i]
		left[b.labels[i]] += w
		right[b.labels[i]] -= w
		totalLeft += w
		totalRight -= w

		xi, xn := b.at(i, f), b.at(sorted[pos+1], f)
		if xi == xn {
			continue
		}
		if pos+1 < b.minLeaf || n-pos-1 < b.minLeaf {
			continue
		}
		score := totalLeft*b.impurity(left, totalLeft) + totalRight*b.impurity(right, totalRight)
		if score < best.score {
			best.score = score
			best.threshold = xi + (xn-xi)/2
			found = true
		}
	}
	return best, found
}

func (b *builder) scanRegression(sorted []int, f int) (split, bool) {
	n := len(sorted)
	var sumR, sqR, wR float64
	for _, i := range sorted {
		w := b.weights[i]
		sumR += w * b.y[i]
		sqR += w * b.y[i] * b.y[i]
		wR += w
	}

	best := split{feature: f, score: math.Inf(1)}
	found := false
	var sumL, sqL, wL float64
	for pos := 0; pos < n-1; pos++ {
		i := sorted[pos]
		w := b.weights[i]
		yw := w * b.y[i]
		sumL += yw
		sqL += yw * b.y[i]
		wL += w
		sumR -= yw
		sqR -= yw * b.y[i]
		wR -= w

		xi, xn := b.at(i, f), b.at(sorted[pos+1], f)
		if xi == xn {
			continue
		}
		if pos+1 < b.minLeaf || n-pos-1 < b.minLeaf {
			continue
		}
		score := (sqL - sumL*sumL/wL) + (sqR - sumR*sumR/wR)
		if score < best.score {
			best.score = score
			best.threshold = xi + (xn-xi)/2
			found = true
		}
	}
	return best, found
}

// trainingData validates X and y and returns X as a row-major slice, the
// targets, and the indices of samples with positive weight.
func trainingData(op string, X, y mat.Matrix, sampleWeight []float64) ([]float64, []float64, []float64, []int, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil, nil, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, nil, nil, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return nil, nil, nil, nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := errors.CheckMatrix(op, y); err != nil {
		return nil, nil, nil, nil, err
	}

	weights := sampleWeight
	if weights == nil {
		weights = make([]float64, rows)
		for i := range weights {
			weights[i] = 1
		}
	} else if len(weights) != rows {
		return nil, nil, nil, nil, errors.NewDimensionError(op, rows, len(weights), 0)
	}

	indices := make([]int, 0, rows)
	for i, w := range weights {
		if w < 0 {
			return nil, nil, nil, nil, errors.NewValueError(op, "sample weights must be non-negative")
		}
		if w > 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, nil, nil, nil, errors.NewValueError(op, "sample weights sum to zero")
	}

	targets := make([]float64, rows)
	for i := range targets {
		targets[i] = y.At(i, 0)
	}
	return mat.DenseCopyOf(X).RawMatrix().Data, targets, weights, indices, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func rowOf(X mat.Matrix, i, cols int, buf []float64) []float64 {
	for j := 0; j < cols; j++ {
		buf[j] = X.At(i, j)
	}
	return buf
}
