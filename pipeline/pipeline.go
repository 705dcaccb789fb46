// Package pipeline chains preprocessing transformers and a final regressor
// into one estimator.
//
// Pipeline は model.TunableRegressor を満たすので、tune はリサンプルごとに
// Clone して前処理を分析用の行だけで学習し直す。
package pipeline

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Step is one named transformer of a pipeline.
type Step struct {
	Name        string
	Transformer model.CloneableTransformer
}

// Pipeline applies Steps in order, then the final estimator.
type Pipeline struct {
	steps []Step
	final model.TunableRegressor
	state *model.StateManager
}

// New はステップと最終推定器からパイプラインを作成する
func New(final model.TunableRegressor, steps ...Step) *Pipeline {
	return &Pipeline{
		steps: steps,
		final: final,
		state: model.NewStateManager("Pipeline"),
	}
}

// FromSpecs builds the transformers described by specs and chains them in
// front of final.
func FromSpecs(final model.TunableRegressor, specs []StepSpec) (*Pipeline, error) {
	steps := make([]Step, 0, len(specs))
	for _, s := range specs {
		t, err := NewTransformer(s)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Name: s.Name, Transformer: t})
	}
	return New(final, steps...), nil
}

// Fit は各ステップを順に FitTransform し、結果で最終推定器を学習する
func (p *Pipeline) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")
	if p.final == nil {
		return errors.NewValueError("Pipeline.Fit", "no final estimator")
	}

	r, c := X.Dims()
	logger := log.GetLoggerWithName("pipeline").With(log.ModelNameKey, model.NameOf(p.final))
	cur := X
	for _, s := range p.steps {
		out, err := s.Transformer.FitTransform(cur)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", s.Name)
		}
		_, before := cur.Dims()
		_, after := out.Dims()
		logger.Debug("step fitted",
			log.OperationKey, log.OperationFitTransform,
			log.PhaseKey, log.PhasePreprocessing,
			"step", s.Name,
			log.FeaturesKey, after,
			"features_in", before,
		)
		cur = out
	}
	if err := p.final.Fit(cur, y); err != nil {
		return err
	}
	p.state.SetFitted(c, r)
	return nil
}

// Transform は学習済みの各ステップを順に適用する（最終推定器は使わない）
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := p.state.CheckFeatures("Pipeline.Transform", c); err != nil {
		return nil, err
	}
	cur := X
	for _, s := range p.steps {
		out, err := s.Transformer.Transform(cur)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", s.Name)
		}
		cur = out
	}
	return cur, nil
}

// Predict は前処理を適用したうえで最終推定器の予測を返す
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.final.Predict(Xt)
}

// Score は決定係数（1 - RSS/TSS）を返す
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("Pipeline.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("Pipeline.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// GetParams returns the final estimator's hyperparameters.
func (p *Pipeline) GetParams(deep bool) map[string]interface{} {
	if p.final == nil {
		return map[string]interface{}{}
	}
	return p.final.GetParams(deep)
}

// SetParams forwards to the final estimator.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	if p.final == nil {
		return errors.NewValueError("Pipeline.SetParams", "no final estimator")
	}
	return p.final.SetParams(params)
}

// Clone returns an unfitted pipeline with every stage cloned.
func (p *Pipeline) Clone() model.SKLearnCompatible {
	steps := make([]Step, len(p.steps))
	for i, s := range p.steps {
		steps[i] = Step{Name: s.Name, Transformer: s.Transformer.Clone()}
	}
	var final model.TunableRegressor
	if p.final != nil {
		final = p.final.Clone().(model.TunableRegressor)
	}
	return New(final, steps...)
}

// Final は最終推定器を返す（重みや重要度の取り出しに使う）
func (p *Pipeline) Final() model.TunableRegressor { return p.final }

// Steps はステップを返す
func (p *Pipeline) Steps() []Step { return append([]Step(nil), p.steps...) }

// FeatureImportances delegates to the final estimator. The values refer to
// the transformed predictors; see FeatureNames.
func (p *Pipeline) FeatureImportances() ([]float64, error) {
	if err := p.state.RequireFitted("FeatureImportances"); err != nil {
		return nil, err
	}
	imp, ok := p.final.(model.Importancer)
	if !ok {
		return nil, errors.NewModelError("Pipeline.FeatureImportances",
			model.NameOf(p.final)+" has no importance measure", errors.ErrNotImplemented)
	}
	return imp.FeatureImportances()
}

// FeatureNames maps input column names through the fitted steps: filters
// keep the retained names and projections rename to their components.
func (p *Pipeline) FeatureNames(names []string) ([]string, error) {
	if err := p.state.RequireFitted("FeatureNames"); err != nil {
		return nil, err
	}
	if err := p.state.CheckFeatures("Pipeline.FeatureNames", len(names)); err != nil {
		return nil, err
	}
	cur := append([]string(nil), names...)
	for _, s := range p.steps {
		switch t := s.Transformer.(type) {
		case model.FeatureSelector:
			kept := t.Retained()
			next := make([]string, len(kept))
			for i, j := range kept {
				next[i] = cur[j]
			}
			cur = next
		case interface{ Names() []string }:
			cur = t.Names()
		}
	}
	return cur, nil
}

// Name は "step+step+model" 形式の名前を返す
func (p *Pipeline) Name() string {
	parts := make([]string, 0, len(p.steps)+1)
	for _, s := range p.steps {
		parts = append(parts, s.Name)
	}
	parts = append(parts, model.NameOf(p.final))
	return strings.Join(parts, "+")
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(%s)", p.Name())
}

var (
	_ model.TunableRegressor = (*Pipeline)(nil)
	_ model.Importancer      = (*Pipeline)(nil)
)
