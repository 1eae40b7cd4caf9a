package ensemble

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/core/parallel"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&RandomForestClassifier{})
	model.Register(&RandomForestRegressor{})
	model.Register(&BaggingClassifier{})
	model.Register(&BaggingRegressor{})
	model.Register(&GradientBoostingClassifier{})
	model.Register(&GradientBoostingRegressor{})
}

// weightedFitter is implemented by estimators that accept sample weights.
// Bootstrap samples are passed as draw counts instead of copied matrices.
type weightedFitter interface {
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}

// checkInput validates the shapes of X and y and returns y as a slice.
func checkInput(op string, X, y mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	targets := make([]float64, rows)
	for i := range targets {
		targets[i] = y.At(i, 0)
	}
	if err := errors.CheckNumericalStability(op, targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// memberSeeds derives one seed per ensemble member from the ensemble seed.
func memberSeeds(seed int64, n int) []int64 {
	rng := newRand(seed)
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int64()
	}
	return seeds
}

// sampleWeights draws nDraw samples out of n, with or without replacement,
// and returns how often each sample was drawn.
func sampleWeights(rng *rand.Rand, n int, fraction float64, replace bool) []float64 {
	nDraw := int(fraction * float64(n))
	if nDraw < 1 {
		nDraw = 1
	}
	weights := make([]float64, n)
	if replace {
		for i := 0; i < nDraw; i++ {
			weights[rng.IntN(n)]++
		}
		return weights
	}
	for _, i := range rng.Perm(n)[:nDraw] {
		weights[i] = 1
	}
	return weights
}

// fitMembers calls fit for every member index on nJobs goroutines and
// returns the first error. A panicking member becomes a PanicError.
func fitMembers(n, nJobs int, fit func(i int) error) error {
	errs := make([]error, n)
	parallel.ParallelizeN(n, nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = errors.SafeExecute("ensemble.fitMembers", func() error { return fit(i) })
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "ensemble member %d", i)
		}
	}
	return nil
}

// fitWithWeights fits est on the samples selected by weights. Estimators
// without weight support get a copy of the drawn rows.
func fitWithWeights(est model.Estimator, X, y mat.Matrix, weights []float64) error {
	if wf, ok := est.(weightedFitter); ok {
		return wf.FitWeighted(X, y, weights)
	}

	_, cols := X.Dims()
	var rows []int
	for i, w := range weights {
		for k := 0; k < int(w); k++ {
			rows = append(rows, i)
		}
	}
	Xs := mat.NewDense(len(rows), cols, nil)
	ys := mat.NewDense(len(rows), 1, nil)
	for r, i := range rows {
		for j := 0; j < cols; j++ {
			Xs.Set(r, j, X.At(i, j))
		}
		ys.Set(r, 0, y.At(i, 0))
	}
	return est.Fit(Xs, ys)
}

// accumulateProba adds a member's probabilities into dst, mapping the
// member's class columns onto the ensemble's classes.
func accumulateProba(dst *mat.Dense, proba mat.Matrix, memberClasses []float64, index map[float64]int) {
	rows, cols := proba.Dims()
	for j := 0; j < cols; j++ {
		k, ok := index[memberClasses[j]]
		if !ok {
			continue
		}
		for i := 0; i < rows; i++ {
			dst.Set(i, k, dst.At(i, k)+proba.At(i, j))
		}
	}
}

func classIndex(classes []float64) map[float64]int {
	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	return index
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func checkFitted(state *model.StateManager, modelName, method string, X mat.Matrix) error {
	if state == nil {
		return model.NewStateManager().RequireFitted(modelName, method)
	}
	if err := state.RequireFitted(modelName, method); err != nil {
		return err
	}
	return state.CheckFeatures(modelName+"."+method, X)
}
