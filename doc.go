// Package apmkit is a toolkit for predictive regression modelling in Go:
// load a benchmark table, split it, preprocess it, tune models by
// cross-validation, score the selected model on held-out data, and keep the
// results.
//
// The estimators follow a scikit-learn-like API (Fit, Predict, GetParams,
// SetParams, Clone) over gonum matrices, so any of them can be placed at the
// end of a preprocessing pipeline and tuned over a parameter grid.
//
// # Quick Start
//
//	frame, _ := dataset.Friedman1(300, 1, 42)
//	split, _ := dataset.TrainTestSplit(frame, 0.75, 42)
//
//	pipe, _ := pipeline.FromSpecs(pls.NewPLSRegression(),
//	    []pipeline.StepSpec{{Name: "center_scale"}})
//
//	res, err := tune.Tune(ctx, pipe,
//	    tune.Grid{"ncomp": tune.IntRange(1, 10)},
//	    tune.Resampling{Folds: 10, Repeats: 5, Seed: 42},
//	    tune.FromSplit(split),
//	    tune.WithSelection(tune.SelectOneSE))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.BestParams, res.Test.RMSE)
//
// # Packages
//
//   - dataset: CSV loading, benchmark registry, stratified partitions, Friedman #1 simulation
//   - preprocessing: center/scale, range, Box-Cox, PCA, spatial sign, imputation, NZV and correlation filters
//   - pipeline: ordered preprocessing steps in front of one regressor
//   - linear: ordinary least squares, Huber robust regression, ridge, lasso, elastic net, PCR
//   - pls: partial least squares regression (NIPALS) with VIP scores
//   - neighbors: k-nearest-neighbour regression
//   - metrics: RMSE, Rsquared, MAE and classification accuracy/kappa
//   - tune: grid expansion, repeated k-fold, parallel resampling, best / one-SE selection
//   - explore: skewness, missingness, near-zero variance and correlation summaries
//   - plot: observed vs predicted, residual, tuning profile, histogram and importance charts
//   - store: SQLite result database
//   - models: name to estimator registry with default grids
//   - config: YAML experiment files
//   - core/model, core/parallel: shared interfaces, fitted state, weights and worker helpers
//   - pkg/errors, pkg/log: structured errors and zerolog-based logging
//
// The apm command (cmd/apm) runs experiment files end to end.
package apmkit
