package preprocessing

import (
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SpatialSign centers and scales the predictors and then divides every row by
// its Euclidean norm, which bounds the influence of outlying samples.
type SpatialSign struct {
	*model.StateManager

	scaler *StandardScaler
}

// NewSpatialSign は新しい SpatialSign 変換器を作成する
func NewSpatialSign() *SpatialSign {
	return &SpatialSign{StateManager: model.NewStateManager("SpatialSign")}
}

// Fit は中心化・スケーリングの統計量を学習する
func (s *SpatialSign) Fit(X mat.Matrix) (err error) {
	defer resetOnError(s.StateManager, &err)
	r, c, err := checkFitInput("SpatialSign.Fit", X)
	if err != nil {
		return err
	}
	if err := errors.CheckFinite("SpatialSign.Fit", X); err != nil {
		return err
	}
	s.scaler = NewStandardScaler(true, true)
	if err := s.scaler.Fit(X); err != nil {
		return err
	}
	s.SetFitted(c, r)
	return nil
}

// Transform は各行を単位球面上に射影する（ノルム0の行は0のまま）
func (s *SpatialSign) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.RequireFitted("SpatialSign.Transform"); err != nil {
		return nil, err
	}
	scaledM, err := s.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	scaled := scaledM.(*mat.Dense)
	r, _ := scaled.Dims()
	for i := 0; i < r; i++ {
		row := scaled.RawRowView(i)
		norm := floats.Norm(row, 2)
		if norm > 0 && !math.IsNaN(norm) {
			floats.Scale(1/norm, row)
		}
	}
	return scaled, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (s *SpatialSign) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// Clone returns an unfitted SpatialSign.
func (s *SpatialSign) Clone() model.CloneableTransformer { return NewSpatialSign() }

func (s *SpatialSign) String() string { return "SpatialSign()" }
