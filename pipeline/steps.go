package pipeline

import (
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/preprocessing"
)

// StepSpec describes a preprocessing step in an experiment file. Zero values
// select each transformer's defaults.
type StepSpec struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// Cutoff は corr の相関しきい値
	Cutoff float64 `yaml:"cutoff,omitempty" json:"cutoff,omitempty" validate:"gte=0,lte=1"`
	// Threshold は pca の累積寄与率
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty" validate:"gte=0,lte=1"`
	// NComp は pca の主成分数
	NComp int `yaml:"ncomp,omitempty" json:"ncomp,omitempty" validate:"gte=0"`
	// K は knn_impute の近傍数
	K int `yaml:"k,omitempty" json:"k,omitempty" validate:"gte=0"`
}

var builders = map[string]func(StepSpec) model.CloneableTransformer{
	"center_scale": func(StepSpec) model.CloneableTransformer {
		return preprocessing.NewStandardScalerDefault()
	},
	"range": func(StepSpec) model.CloneableTransformer {
		return preprocessing.NewMinMaxScalerDefault()
	},
	"boxcox": func(StepSpec) model.CloneableTransformer {
		return preprocessing.NewBoxCox()
	},
	"pca": func(s StepSpec) model.CloneableTransformer {
		opts := []preprocessing.PCAOption{}
		if s.Threshold > 0 {
			opts = append(opts, preprocessing.WithPCAThreshold(s.Threshold))
		}
		if s.NComp > 0 {
			opts = append(opts, preprocessing.WithPCAComponents(s.NComp))
		}
		return preprocessing.NewPCA(opts...)
	},
	"corr": func(s StepSpec) model.CloneableTransformer {
		cutoff := s.Cutoff
		if cutoff == 0 {
			cutoff = preprocessing.DefaultCorrelationCutoff
		}
		return preprocessing.NewCorrelationFilter(cutoff)
	},
	"nzv": func(StepSpec) model.CloneableTransformer {
		return preprocessing.NewNearZeroVar()
	},
	"median_impute": func(StepSpec) model.CloneableTransformer {
		return preprocessing.NewMedianImputer()
	},
	"knn_impute": func(s StepSpec) model.CloneableTransformer {
		return preprocessing.NewKNNImputer(s.K)
	},
	"spatial_sign": func(StepSpec) model.CloneableTransformer {
		return preprocessing.NewSpatialSign()
	},
}

// NewTransformer は StepSpec から変換器を作成する
func NewTransformer(s StepSpec) (model.CloneableTransformer, error) {
	b, ok := builders[s.Name]
	if !ok {
		return nil, errors.NewValidationError("step", "unknown preprocessing step", s.Name)
	}
	return b(s), nil
}

// StepNames returns the recognised step names in sorted order.
func StepNames() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
