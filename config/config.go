// Package config loads experiment files: which data to use, how to split
// and preprocess it, which models to tune and where to write the results.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/models"
	"github.com/YuminosukeSato/apmkit/pipeline"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/tune"
)

// Experiment is the root of an experiment file.
type Experiment struct {
	Name       string              `yaml:"name"`
	Data       Data                `yaml:"data"`
	Split      Split               `yaml:"split"`
	Preprocess []pipeline.StepSpec `yaml:"preprocess" validate:"dive"`
	Models     []Model             `yaml:"models" validate:"required,min=1,dive"`
	Resampling tune.Resampling     `yaml:"resampling"`
	Selection  string              `yaml:"selection"`
	NJobs      int                 `yaml:"n_jobs" validate:"gte=0"`
	Output     Output              `yaml:"output"`
	Logging    Logging             `yaml:"logging"`
}

// Data selects a registered benchmark or a CSV file.
type Data struct {
	// Dataset は dataset.Registry の名前
	Dataset string `yaml:"dataset" validate:"required_without=Path"`
	// Dir は登録データセットの CSV を置いたディレクトリ
	Dir string `yaml:"dir"`
	// Path は任意の CSV ファイル
	Path        string   `yaml:"path" validate:"required_without=Dataset"`
	Response    string   `yaml:"response"`
	Categorical []string `yaml:"categorical"`
	Drop        []string `yaml:"drop"`
	// DropIncomplete は欠損を含む行を除く
	DropIncomplete bool `yaml:"drop_incomplete"`
}

// Split configures the stratified train/test partition.
type Split struct {
	TrainFraction float64 `yaml:"train_fraction" validate:"gt=0,lte=1"`
	Seed          uint64  `yaml:"seed"`
}

// Model is one model to tune. Preprocess, when set, replaces the
// experiment-wide steps for this model.
type Model struct {
	Name       string              `yaml:"name" validate:"required"`
	Grid       tune.Grid           `yaml:"grid"`
	Preprocess []pipeline.StepSpec `yaml:"preprocess" validate:"dive"`
}

// Steps は実際に使う前処理を返す
func (m Model) Steps(exp *Experiment) []pipeline.StepSpec {
	if len(m.Preprocess) > 0 {
		return m.Preprocess
	}
	return exp.Preprocess
}

// Output configures where results go.
type Output struct {
	Dir string `yaml:"dir" validate:"required"`
	// DB は結果を保存する SQLite ファイル（空なら保存しない）
	DB          string `yaml:"db"`
	Plots       bool   `yaml:"plots"`
	PlotFormat  string `yaml:"plot_format" validate:"oneof=png svg pdf"`
	Weights     bool   `yaml:"weights"`
	MetricsFile string `yaml:"metrics_file"`
}

// Logging configures pkg/log.
type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

var validate = validator.New()

// Load はファイルを読み込み、既定値を補ってから検証する
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	exp, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return exp, nil
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	exp.ApplyDefaults()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// ApplyDefaults fills every unset field with its default.
func (e *Experiment) ApplyDefaults() {
	if e.Name == "" {
		switch {
		case e.Data.Dataset != "":
			e.Name = e.Data.Dataset
		default:
			e.Name = "experiment"
		}
	}
	if e.Split.TrainFraction == 0 {
		e.Split.TrainFraction = 0.8
	}
	if e.Split.Seed == 0 {
		e.Split.Seed = 1
	}
	d := tune.DefaultResampling()
	if e.Resampling.Folds == 0 {
		e.Resampling.Folds = d.Folds
	}
	if e.Resampling.Repeats == 0 {
		e.Resampling.Repeats = d.Repeats
	}
	if e.Resampling.Seed == 0 {
		e.Resampling.Seed = e.Split.Seed
	}
	if e.Selection == "" {
		e.Selection = string(tune.SelectBest)
	}
	if e.Output.Dir == "" {
		e.Output.Dir = "out"
	}
	if e.Output.PlotFormat == "" {
		e.Output.PlotFormat = "png"
	}
	if e.Logging.Level == "" {
		e.Logging.Level = "info"
	}
	if e.Logging.Format == "" {
		e.Logging.Format = "console"
	}
}

// Validate checks struct tags, then the names that refer to registries.
func (e *Experiment) Validate() error {
	if err := validate.Struct(e); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			f := ve[0]
			return errors.NewValidationError(f.Namespace(), "failed '"+f.Tag()+"' check", f.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	sel, err := tune.ParseSelection(e.Selection)
	if err != nil {
		return err
	}
	e.Selection = string(sel)
	if e.Data.Dataset != "" {
		if _, err := dataset.Lookup(e.Data.Dataset); err != nil {
			return err
		}
	}
	check := func(steps []pipeline.StepSpec) error {
		for _, s := range steps {
			if _, err := pipeline.NewTransformer(s); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(e.Preprocess); err != nil {
		return err
	}
	for _, m := range e.Models {
		if _, err := models.Lookup(m.Name); err != nil {
			return err
		}
		if err := check(m.Preprocess); err != nil {
			return err
		}
	}
	return nil
}

// LoadFrame reads the data the experiment describes.
func (e *Experiment) LoadFrame() (*dataset.Frame, error) {
	var (
		f   *dataset.Frame
		err error
	)
	if e.Data.Path != "" {
		f, err = dataset.LoadCSV(e.Data.Path, dataset.ReadOptions{
			Response:    e.Data.Response,
			Categorical: e.Data.Categorical,
			Drop:        e.Data.Drop,
		})
	} else {
		var d dataset.Descriptor
		if d, err = dataset.Lookup(e.Data.Dataset); err != nil {
			return nil, err
		}
		f, err = d.Load(e.Data.Dir, e.Split.Seed)
	}
	if err != nil {
		return nil, err
	}
	if e.Data.DropIncomplete {
		f = f.DropIncomplete()
	}
	return f, nil
}
