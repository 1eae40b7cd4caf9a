package metrics

import (
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// AccuracyScore は正解率を計算する
func AccuracyScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// LogLoss は多クラス対数損失を計算する
// proba の列は classes の順に対応する
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error) {
	n := yTrue.Len()
	r, c := proba.Dims()
	if n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty vector")
	}
	if r != n {
		return 0, errors.NewDimensionError("LogLoss", n, r, 0)
	}
	if c != len(classes) {
		return 0, errors.NewDimensionError("LogLoss", len(classes), c, 1)
	}

	index := make(map[float64]int, len(classes))
	for j, cls := range classes {
		index[cls] = j
	}

	var loss float64
	for i := 0; i < n; i++ {
		j, ok := index[yTrue.AtVec(i)]
		if !ok {
			return 0, errors.NewValueError("LogLoss", "y_true contains a label not present in classes")
		}
		p := errors.ClipValue(proba.At(i, j), 1e-15, 1-1e-15)
		loss -= errors.StabilizeLog(p)
	}
	return loss / float64(n), nil
}
