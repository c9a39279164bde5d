package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	// y は n_samples × 1 のラベル列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n_samples × 1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は教師あり学習モデルの基本インターフェース
//
// Clone は同じハイパーパラメータを持つ未学習のコピーを返す。
// クロスバリデーションでは fold ごとに Clone したモデルを学習させる。
type Estimator interface {
	Fitter
	Predictor
	Clone() Estimator
}
