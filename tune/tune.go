package tune

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
)

// Data holds the training partition and, optionally, the test partition.
type Data struct {
	XTrain mat.Matrix
	YTrain mat.Vector
	// XTest / YTest が nil ならテスト評価を行わない
	XTest mat.Matrix
	YTest mat.Vector
}

// FromSplit は dataset.Split から Data を作る
func FromSplit(s *dataset.Split) Data {
	d := Data{XTrain: s.XTrain, YTrain: s.YTrain}
	if s.XTest != nil && s.YTest != nil && s.YTest.Len() > 0 {
		d.XTest, d.YTest = s.XTest, s.YTest
	}
	return d
}

func (d Data) validate(op string) error {
	if d.XTrain == nil || d.YTrain == nil {
		return errors.NewModelError(op, "no training data", errors.ErrEmptyData)
	}
	n, _ := d.XTrain.Dims()
	if n == 0 {
		return errors.NewModelError(op, "no training data", errors.ErrEmptyData)
	}
	if d.YTrain.Len() != n {
		return errors.NewDimensionError(op, n, d.YTrain.Len(), 0)
	}
	if (d.XTest == nil) != (d.YTest == nil) {
		return errors.NewValueError(op, "XTest and YTest must be given together")
	}
	if d.XTest != nil {
		m, c := d.XTest.Dims()
		if d.YTest.Len() != m {
			return errors.NewDimensionError(op, m, d.YTest.Len(), 0)
		}
		if _, ct := d.XTrain.Dims(); c != ct {
			return errors.NewDimensionError(op, ct, c, 1)
		}
	}
	return nil
}

// Tune evaluates every point of grid by the resampling scheme, selects one,
// refits it on the training partition and scores it on the test partition.
//
// Grid points whose fit fails on any resample are recorded with their error
// and excluded from selection. If every point fails, a ModelError wrapping
// the first failure is returned. Cancelling ctx stops scheduling new fits.
func Tune(ctx context.Context, est model.TunableRegressor, grid Grid, rs Resampling, data Data, opts ...Option) (*Result, error) {
	const op = "tune.Tune"
	if est == nil {
		return nil, errors.NewValueError(op, "no estimator")
	}
	if err := data.validate(op); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	if _, err := ParseSelection(string(cfg.selection)); err != nil {
		return nil, err
	}

	n, _ := data.XTrain.Dims()
	folds, err := rs.Split(n)
	if err != nil {
		return nil, err
	}
	points := ExpandGrid(grid)
	if len(points) == 0 {
		return nil, errors.NewValidationError("grid", "a parameter has no candidate values", grid.Names())
	}

	name := model.NameOf(est)
	logger := cfg.logger.With(log.ModelNameKey, name, log.OperationKey, log.OperationTune)
	logger.Info("tuning started",
		log.SamplesKey, n,
		"grid_points", len(points),
		log.FoldsKey, rs.Folds,
		log.RepeatsKey, rs.Repeats,
		log.RandomSeedKey, rs.Seed,
		log.SelectionKey, string(cfg.selection),
	)
	start := time.Now()

	rows, err := evaluate(ctx, cfg, est, points, folds, data.XTrain, data.YTrain)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Failed() {
			logger.Warn("grid point failed", log.GridPointKey, row.Index,
				log.HyperParamsKey, row.Params.String(), "error", row.Err)
			continue
		}
		logger.Debug("grid point scored", log.GridPointKey, row.Index,
			log.HyperParamsKey, row.Params.String(),
			log.RMSEKey, row.Mean.RMSE, log.RSquaredKey, row.Mean.Rsquared, log.MAEKey, row.Mean.MAE)
	}

	selected, err := cfg.selection.choose(rows)
	if err != nil {
		first := rows[0].Err
		for _, row := range rows {
			if row.Failed() {
				first = row.Err
				break
			}
		}
		return nil, errors.NewModelError(op, "every grid point failed", first)
	}

	res := &Result{
		Model:      name,
		Resampling: rs,
		Selection:  cfg.selection,
		Rows:       rows,
		Selected:   selected,
		BestParams: rows[selected].Params,
	}

	final, err := errors.SafeCall(op, func() (model.TunableRegressor, error) {
		m := est.Clone().(model.TunableRegressor)
		if err := m.SetParams(res.BestParams); err != nil {
			return nil, err
		}
		if err := m.Fit(data.XTrain, data.YTrain); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "refit with %s", res.BestParams)
	}
	res.Final = final

	if data.XTest != nil {
		pred, err := final.Predict(data.XTest)
		if err != nil {
			return nil, errors.Wrap(err, "predict test partition")
		}
		yPred, err := metrics.ColumnVector(op, pred)
		if err != nil {
			return nil, err
		}
		m, _ := data.XTest.Dims()
		if yPred.Len() != m {
			return nil, errors.NewDimensionError(op, m, yPred.Len(), 0)
		}
		res.TestPredictions = make([]float64, m)
		for i := range res.TestPredictions {
			res.TestPredictions[i] = yPred.AtVec(i)
		}
		if res.Test, err = metrics.PostResample(data.YTest, yPred); err != nil {
			return nil, err
		}
		res.HasTest = true
	}

	res.Duration = time.Since(start)
	cfg.metrics.observeRun()
	fields := []any{
		log.HyperParamsKey, res.BestParams.String(),
		log.RMSEKey, rows[selected].Mean.RMSE,
		log.DurationMsKey, res.Duration.Milliseconds(),
	}
	if res.HasTest {
		fields = append(fields, "test_rmse", res.Test.RMSE)
	}
	logger.Info("tuning finished", fields...)
	return res, nil
}

// CrossValidate scores est with its current parameters.
func CrossValidate(ctx context.Context, est model.TunableRegressor, X mat.Matrix, y mat.Vector, rs Resampling, opts ...Option) (*CVRow, error) {
	const op = "tune.CrossValidate"
	if est == nil {
		return nil, errors.NewValueError(op, "no estimator")
	}
	if err := (Data{XTrain: X, YTrain: y}).validate(op); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	n, _ := X.Dims()
	folds, err := rs.Split(n)
	if err != nil {
		return nil, err
	}
	rows, err := evaluate(ctx, cfg, est, []Params{{}}, folds, X, y)
	if err != nil {
		return nil, err
	}
	row := rows[0]
	if row.Failed() {
		return &row, errors.NewModelError(op, "resample failed", row.Err)
	}
	return &row, nil
}

// evaluate は全グリッド点 × 全リサンプルを errgroup で並列に評価する。
// 結果は添字で書き込むので並列度によらず同じになる
func evaluate(ctx context.Context, cfg *config, est model.TunableRegressor, points []Params, folds []Fold, X mat.Matrix, y mat.Vector) ([]CVRow, error) {
	scores := make([][]ResampleScore, len(points))
	errs := make([][]error, len(points))
	for i := range points {
		scores[i] = make([]ResampleScore, len(folds))
		errs[i] = make([]error, len(folds))
	}

	name := model.NameOf(est)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.nJobs)
schedule:
	for p := range points {
		for f := range folds {
			if gctx.Err() != nil {
				break schedule
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				began := time.Now()
				s, err := fitAndScore(est, points[p], folds[f], X, y)
				cfg.metrics.observeFit(name, time.Since(began).Seconds(), err)
				scores[p][f] = ResampleScore{Resample: folds[f].Name, Summary: s}
				errs[p][f] = err
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "tuning cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "tuning cancelled")
	}

	rows := make([]CVRow, len(points))
	for p := range points {
		rows[p] = CVRow{Index: p, Params: points[p], Resamples: scores[p]}
		for f, err := range errs[p] {
			if err != nil {
				rows[p].Err = errors.Wrapf(err, "%s", folds[f].Name)
				break
			}
		}
		rows[p].summarize()
	}
	return rows, nil
}

func fitAndScore(est model.TunableRegressor, params Params, fold Fold, X mat.Matrix, y mat.Vector) (metrics.Summary, error) {
	return errors.SafeCall("tune.fit", func() (metrics.Summary, error) {
		m := est.Clone().(model.TunableRegressor)
		if err := m.SetParams(params); err != nil {
			return metrics.Summary{}, err
		}
		if err := m.Fit(dataset.SelectRows(X, fold.Train), dataset.SelectVec(y, fold.Train)); err != nil {
			return metrics.Summary{}, err
		}
		pred, err := m.Predict(dataset.SelectRows(X, fold.Test))
		if err != nil {
			return metrics.Summary{}, err
		}
		if r, _ := pred.Dims(); r != len(fold.Test) {
			return metrics.Summary{}, errors.NewDimensionError("tune.fit", len(fold.Test), r, 0)
		}
		s, err := metrics.PostResample(dataset.SelectVec(y, fold.Test), pred)
		if err != nil {
			return metrics.Summary{}, err
		}
		if math.IsNaN(s.RMSE) || math.IsInf(s.RMSE, 0) {
			return s, errors.NewNumericalInstabilityError("tune.fit", []float64{s.RMSE}, 0)
		}
		return s, nil
	})
}

// String は CV 表の 1 行を整形する
func (r CVRow) String() string {
	if r.Failed() {
		return fmt.Sprintf("%s  failed: %v", r.Params, r.Err)
	}
	return fmt.Sprintf("%s  RMSE=%.4f Rsquared=%.4f MAE=%.4f", r.Params, r.Mean.RMSE, r.Mean.Rsquared, r.Mean.MAE)
}
