package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// CloneableTransformer は同じ設定で未学習の複製を作れる変換器
// パイプラインはリサンプルごとに前処理を学習し直すためにこれを使う
type CloneableTransformer interface {
	Transformer

	// Clone は設定だけをコピーした未学習の変換器を返す
	Clone() CloneableTransformer
}

// FeatureSelector は列を削除する変換器が残した列の元インデックスを返す
type FeatureSelector interface {
	Retained() []int
}
