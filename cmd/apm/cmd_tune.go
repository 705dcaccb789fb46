package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	gplot "gonum.org/v1/plot"

	"github.com/YuminosukeSato/apmkit/config"
	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/explore"
	"github.com/YuminosukeSato/apmkit/models"
	"github.com/YuminosukeSato/apmkit/pipeline"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
	"github.com/YuminosukeSato/apmkit/plot"
	"github.com/YuminosukeSato/apmkit/store"
	"github.com/YuminosukeSato/apmkit/tune"
)

func runTune(cmd *cobra.Command, args []string) error {
	exp, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// フラグが明示されていなければ設定ファイルのログ設定を使う
	if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
		if err := log.SetupLogger(os.Stderr, exp.Logging.Level, exp.Logging.Format); err != nil {
			return err
		}
	}
	_, err = runExperiment(cmd.Context(), exp, cmd.OutOrStdout())
	return err
}

// outcome は1モデル分の実行結果
type outcome struct {
	Spec   config.Model
	Result *tune.Result
	RunID  int64
	Files  []string
}

// experimentData splits the frame, or uses every row for training when the
// train fraction is 1.
func experimentData(exp *config.Experiment, f *dataset.Frame) (tune.Data, []string, error) {
	if exp.Split.TrainFraction >= 1 {
		X, names := f.Dummies(true)
		if X == nil {
			return tune.Data{}, nil, errors.NewValueError("experimentData", "frame has no predictors")
		}
		y, err := f.Response()
		if err != nil {
			return tune.Data{}, nil, err
		}
		return tune.Data{XTrain: X, YTrain: y}, names, nil
	}
	split, err := dataset.TrainTestSplit(f, exp.Split.TrainFraction, exp.Split.Seed)
	if err != nil {
		return tune.Data{}, nil, err
	}
	return tune.FromSplit(split), split.Features, nil
}

func runExperiment(ctx context.Context, exp *config.Experiment, out io.Writer) ([]outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.GetLoggerWithName("apm").With(log.DatasetKey, exp.Name)

	frame, err := exp.LoadFrame()
	if err != nil {
		return nil, err
	}
	data, features, err := experimentData(exp, frame)
	if err != nil {
		return nil, err
	}
	rows, cols := data.XTrain.Dims()
	logger.Info("Data loaded", log.SamplesKey, rows, log.FeaturesKey, cols)

	if err := os.MkdirAll(exp.Output.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	var db *store.Store
	if exp.Output.DB != "" {
		if db, err = store.Open(exp.Output.DB); err != nil {
			return nil, err
		}
		defer db.Close()
	}

	sel, err := tune.ParseSelection(exp.Selection)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	opts := []tune.Option{
		tune.WithSelection(sel),
		tune.WithMetrics(tune.NewMetrics(reg)),
	}
	if exp.NJobs > 0 {
		opts = append(opts, tune.WithNJobs(exp.NJobs))
	}

	var outcomes []outcome
	for _, m := range exp.Models {
		o, err := tuneModel(ctx, exp, m, data, features, opts)
		if err != nil {
			return outcomes, errors.Wrapf(err, "model %s", m.Name)
		}
		if err := printOutcome(out, o); err != nil {
			return outcomes, err
		}
		if db != nil {
			rec := store.FromResult(exp.Name, stepNames(m.Steps(exp)), o.Result)
			rec.Weights = weightsJSON(o.Result, features, logger)
			if o.RunID, err = db.SaveRun(ctx, rec); err != nil {
				return outcomes, err
			}
		}
		outcomes = append(outcomes, o)
	}

	if err := summaryTable(outcomes).Render(out); err != nil {
		return outcomes, err
	}
	if exp.Output.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(exp.Output.MetricsFile, reg); err != nil {
			return outcomes, errors.Wrap(err, "write metrics")
		}
	}
	return outcomes, nil
}

func tuneModel(ctx context.Context, exp *config.Experiment, m config.Model, data tune.Data, features []string, opts []tune.Option) (outcome, error) {
	spec, err := models.Lookup(m.Name)
	if err != nil {
		return outcome{}, err
	}
	pipe, err := pipeline.FromSpecs(spec.New(), m.Steps(exp))
	if err != nil {
		return outcome{}, err
	}
	grid := m.Grid
	if len(grid) == 0 {
		rows, _ := data.XTrain.Dims()
		grid = spec.Grid(len(features), rows)
	}

	res, err := tune.Tune(ctx, pipe, grid, exp.Resampling, data, opts...)
	if err != nil {
		return outcome{}, err
	}
	o := outcome{Spec: m, Result: res}
	base := filepath.Join(exp.Output.Dir, exp.Name+"-"+m.Name)

	if exp.Output.Weights {
		if w := weightsJSON(res, features, log.GetLoggerWithName("apm")); w != nil {
			path := base + ".weights.json"
			if err := os.WriteFile(path, w, 0o644); err != nil {
				return o, errors.Wrap(err, "write weights")
			}
			o.Files = append(o.Files, path)
		}
	}
	if exp.Output.Plots {
		files, err := writePlots(base, exp.Output.PlotFormat, res, data, features)
		o.Files = append(o.Files, files...)
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

// weightsJSON は最終推定器が線形ならその重みを JSON で返す。それ以外は nil。
// 書き出せなかった理由は logger に Warn で残す
func weightsJSON(res *tune.Result, features []string, logger log.Logger) []byte {
	pipe, ok := res.Final.(*pipeline.Pipeline)
	if !ok {
		return nil
	}
	we, ok := pipe.Final().(model.WeightExporter)
	if !ok {
		logger.Debug("Model has no weights to export", log.ModelNameKey, res.Model)
		return nil
	}
	names, err := pipe.FeatureNames(features)
	if err != nil {
		logger.Warn("Weights not exported", err, log.ModelNameKey, res.Model)
		return nil
	}
	w, err := we.ExportWeights()
	if err != nil {
		logger.Warn("Weights not exported", err, log.ModelNameKey, res.Model)
		return nil
	}
	if len(names) == len(w.Coefficients) {
		w.Features = names
	}
	if w.Metadata == nil {
		w.Metadata = map[string]interface{}{}
	}
	// 係数は前処理後の列に対するもの
	w.Metadata["pipeline"] = pipe.Name()
	b, err := w.ToJSON()
	if err != nil {
		logger.Warn("Weights not exported", err, log.ModelNameKey, res.Model)
		return nil
	}
	return b
}

func writePlots(base, format string, res *tune.Result, data tune.Data, features []string) ([]string, error) {
	var files []string
	save := func(suffix string, build func() (*gplot.Plot, error)) error {
		path := base + "-" + suffix + "." + format
		err := errors.SafeExecute("plot "+suffix, func() error {
			p, err := build()
			if err != nil {
				return err
			}
			return plot.Save(p, path)
		})
		if err != nil {
			return err
		}
		files = append(files, path)
		return nil
	}

	if x, group := profileAxes(res.Rows); x != "" {
		if err := save("profile", func() (*gplot.Plot, error) { return plot.TuningProfile(res, x, group) }); err != nil {
			return files, err
		}
	}
	if res.HasTest {
		obs := vectorValues(data.YTest)
		title := fmt.Sprintf("%s (test)", res.Model)
		if err := save("observed", func() (*gplot.Plot, error) { return plot.ObservedVsPredicted(obs, res.TestPredictions, title) }); err != nil {
			return files, err
		}
		if err := save("residuals", func() (*gplot.Plot, error) { return plot.ResidualsVsPredicted(obs, res.TestPredictions, title) }); err != nil {
			return files, err
		}
	}
	if pipe, ok := res.Final.(*pipeline.Pipeline); ok {
		imp, err := pipe.FeatureImportances()
		if err == nil {
			names, err := pipe.FeatureNames(features)
			if err != nil {
				return files, err
			}
			if err := save("importance", func() (*gplot.Plot, error) {
				return plot.Importance(names, imp, 20, res.Model+" importance")
			}); err != nil {
				return files, err
			}
		} else if !errors.Is(err, errors.ErrNotImplemented) {
			return files, err
		}
	}
	return files, nil
}

// profileAxes picks the parameter with the most distinct numeric values for
// the x axis and the next one, if any, for grouping.
func profileAxes(rows []tune.CVRow) (x, group string) {
	distinct := make(map[string]map[string]bool)
	for _, r := range rows {
		for k, v := range r.Params {
			switch v.(type) {
			case float64, int, float32, int64:
			default:
				continue
			}
			if distinct[k] == nil {
				distinct[k] = make(map[string]bool)
			}
			distinct[k][fmt.Sprint(v)] = true
		}
	}
	best, second := 1, 1
	for _, name := range sortedKeys(distinct) {
		n := len(distinct[name])
		switch {
		case n > best:
			group, second = x, best
			x, best = name, n
		case n > second:
			group, second = name, n
		}
	}
	return x, group
}

func printOutcome(w io.Writer, o outcome) error {
	res := o.Result
	if err := cvTable(res).Render(w); err != nil {
		return err
	}
	row := res.SelectedRow()
	fmt.Fprintf(w, "selected (%s): %s  CV RMSE %s\n", res.Selection, res.BestParams, explore.Num(row.Mean.RMSE))
	if res.HasTest {
		fmt.Fprintf(w, "test: RMSE %s  Rsquared %s  MAE %s\n",
			explore.Num(res.Test.RMSE), explore.Num(res.Test.Rsquared), explore.Num(res.Test.MAE))
	}
	for _, f := range res.Failures() {
		fmt.Fprintf(w, "failed: %s: %v\n", f.Params, f.Err)
	}
	for _, f := range o.Files {
		fmt.Fprintln(w, "wrote", f)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func cvTable(res *tune.Result) explore.Table {
	t := explore.Table{
		Title:   fmt.Sprintf("%s: %d-fold CV x %d", res.Model, res.Resampling.Folds, res.Resampling.Repeats),
		Headers: []string{"", "params", "RMSE", "Rsquared", "MAE", "RMSE SD"},
	}
	for i, r := range res.Rows {
		mark := ""
		if i == res.Selected {
			mark = "*"
		}
		if r.Failed() {
			t.Rows = append(t.Rows, []string{mark, r.Params.String(), "failed", "", "", ""})
			continue
		}
		t.Rows = append(t.Rows, []string{
			mark, r.Params.String(),
			explore.Num(r.Mean.RMSE), explore.Num(r.Mean.Rsquared), explore.Num(r.Mean.MAE), explore.Num(r.SD.RMSE),
		})
	}
	return t
}

func summaryTable(outcomes []outcome) explore.Table {
	t := explore.Table{
		Title:   "Summary",
		Headers: []string{"model", "CV RMSE", "test RMSE", "test Rsquared", "run"},
	}
	for _, o := range outcomes {
		res := o.Result
		test, rsq := "NA", "NA"
		if res.HasTest {
			test, rsq = explore.Num(res.Test.RMSE), explore.Num(res.Test.Rsquared)
		}
		run := ""
		if o.RunID > 0 {
			run = strconv.FormatInt(o.RunID, 10)
		}
		t.Rows = append(t.Rows, []string{res.Model, explore.Num(res.SelectedRow().Mean.RMSE), test, rsq, run})
	}
	return t
}

func stepNames(specs []pipeline.StepSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}
