// Package model_selection provides cross-validation splitters and an
// exhaustive hyperparameter grid search.
package model_selection

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&KFold{})
	model.Register(&StratifiedKFold{})
}

// Splitter generates train/test index pairs for cross-validation.
type Splitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
	String() string
}

// CVFold is a single train/test split.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits samples into NSplits consecutive folds, optionally shuffled.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a k-fold splitter. nSplits < 2 defaults to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int { return kf.NSplits }

func (kf *KFold) String() string {
	return fmt.Sprintf("KFold(n_splits=%d, shuffle=%t, random_state=%d)", kf.NSplits, kf.Shuffle, kf.RandomSeed)
}

// Split returns NSplits folds; the first n_samples % NSplits folds get one
// extra test sample.
func (kf *KFold) Split(X, _ mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if kf.NSplits > nSamples {
		return nil, errors.NewValueError("KFold.Split",
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples n_samples=%d", kf.NSplits, nSamples))
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		shuffle(indices, kf.RandomSeed)
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[current:current+testSize]...)
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)
		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold is KFold that preserves the class proportions of y in
// every fold.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a stratified k-fold splitter. nSplits < 2 defaults to 5.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

func (skf *StratifiedKFold) String() string {
	return fmt.Sprintf("StratifiedKFold(n_splits=%d, shuffle=%t, random_state=%d)", skf.NSplits, skf.Shuffle, skf.RandomSeed)
}

// Split deals the samples of each class round the folds in turn.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}
	if skf.NSplits > nSamples {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples n_samples=%d", skf.NSplits, nSamples))
	}

	byClass := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	tests := make([][]int, skf.NSplits)
	next := 0
	for c, label := range labels {
		indices := byClass[label]
		if skf.Shuffle {
			shuffle(indices, skf.RandomSeed+c)
		}
		for _, idx := range indices {
			tests[next] = append(tests[next], idx)
			next = (next + 1) % skf.NSplits
		}
	}

	folds := make([]CVFold, skf.NSplits)
	for i, test := range tests {
		sort.Ints(test)
		inTest := make(map[int]bool, len(test))
		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, nSamples-len(test))
		for j := 0; j < nSamples; j++ {
			if !inTest[j] {
				train = append(train, j)
			}
		}
		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
	}
	return folds, nil
}

func shuffle(indices []int, seed int) {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

// SelectRows returns a copy of the given rows of m.
func SelectRows(m mat.Matrix, indices []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for r, i := range indices {
		for j := 0; j < cols; j++ {
			out.Set(r, j, m.At(i, j))
		}
	}
	return out
}
