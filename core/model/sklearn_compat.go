package model

import (
	"gonum.org/v1/gonum/mat"
)

// SKLearnCompatible はscikit-learn互換のインターフェース
// グリッドサーチはこのインターフェースを通じて候補モデルを生成する
type SKLearnCompatible interface {
	Estimator

	// GetParams はモデルのハイパーパラメータを取得
	GetParams() map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定
	// 未知のキーや型の合わない値はエラーになる
	SetParams(params map[string]interface{}) error

	// Clone はモデルの新しい未学習インスタンスを同じパラメータで作成
	Clone() SKLearnCompatible
}

// ClassifierMixin は分類器のインターフェース
type ClassifierMixin interface {
	SKLearnCompatible

	// PredictProba は各クラスの確率を予測（n×k、列はClasses()の順）
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習されたクラスラベルを昇順で返す
	Classes() []float64
}

// IsClassifier はモデルが分類器かどうかを返す
func IsClassifier(est Estimator) bool {
	_, ok := est.(ClassifierMixin)
	return ok
}
