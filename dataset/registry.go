package dataset

import (
	"path/filepath"
	"sort"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

// Task is the kind of response a benchmark carries.
type Task string

const (
	TaskRegression     Task = "regression"
	TaskClassification Task = "classification"
)

// Descriptor はベンチマークデータセットの説明
type Descriptor struct {
	Name     string   `json:"name" yaml:"name"`
	Files    []string `json:"files" yaml:"files"`
	Response string   `json:"response" yaml:"response"`
	Task     Task     `json:"task" yaml:"task"`
	// Categorical は数値に見えてもカテゴリとして読む列
	Categorical []string `json:"categorical,omitempty" yaml:"categorical,omitempty"`
	Notes       string   `json:"notes" yaml:"notes"`
	// Simulated はファイルではなく Friedman1 で生成するデータ
	Simulated bool `json:"simulated,omitempty" yaml:"simulated,omitempty"`
}

var registry = map[string]Descriptor{
	"solubility": {
		Name:     "solubility",
		Files:    []string{"solubility.csv"},
		Response: "Solubility",
		Task:     TaskRegression,
		Notes:    "1267 compounds, 208 binary fingerprints plus 20 continuous descriptors; log solubility response",
	},
	"glass": {
		Name:     "glass",
		Files:    []string{"glass.csv"},
		Response: "Type",
		Task:     TaskClassification,
		Notes:    "214 glass samples, 9 chemical measurements; used for skewness and correlation exploration",
	},
	"soybean": {
		Name:     "soybean",
		Files:    []string{"soybean.csv"},
		Response: "Class",
		Task:     TaskClassification,
		Categorical: []string{
			"date", "plant.stand", "precip", "temp", "hail", "crop.hist", "area.dam",
			"sever", "seed.tmt", "germ", "plant.growth", "leaves", "leaf.halo",
			"leaf.marg", "leaf.size", "leaf.shread", "leaf.malf", "leaf.mild", "stem",
			"lodging", "stem.cankers", "canker.lesion", "fruiting.bodies", "ext.decay",
			"mycelium", "int.discolor", "sclerotia", "fruit.pods", "fruit.spots", "seed",
			"mold.growth", "seed.discolor", "seed.size", "shriveling", "roots",
		},
		Notes: "683 cases, 35 categorical predictors with class-dependent missing patterns",
	},
	"tecator": {
		Name:     "tecator",
		Files:    []string{"tecator.csv"},
		Response: "Fat",
		Task:     TaskRegression,
		Notes:    "215 meat samples, 100 NIR absorbance channels; highly collinear spectra",
	},
	"chemical-manufacturing": {
		Name:     "chemical-manufacturing",
		Files:    []string{"ChemicalManufacturingProcess.csv"},
		Response: "Yield",
		Task:     TaskRegression,
		Notes:    "176 batches, 12 biological and 45 process predictors with missing values",
	},
	"permeability": {
		Name:     "permeability",
		Files:    []string{"permeability.csv"},
		Response: "permeability",
		Task:     TaskRegression,
		Notes:    "165 compounds, 1107 sparse binary fingerprints; filter near-zero variance first",
	},
	"friedman1": {
		Name:      "friedman1",
		Response:  "y",
		Task:      TaskRegression,
		Notes:     "Friedman #1 simulation, 10 uniform predictors of which 5 are informative",
		Simulated: true,
	},
}

// Lookup は名前からデータセットの説明を返す
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, errors.NewValueError("dataset.Lookup", "unknown dataset "+name)
	}
	return d, nil
}

// Registered は登録済みデータセットを名前順で返す
func Registered() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load はデータディレクトリから登録済みデータセットを読む
// シミュレーションデータは n=200, sd=1 で生成する
func (d Descriptor) Load(dir string, seed uint64) (*Frame, error) {
	if d.Simulated {
		return Friedman1(200, 1, seed)
	}
	if len(d.Files) == 0 {
		return nil, errors.NewValueError("Descriptor.Load", d.Name+" has no files")
	}
	return LoadCSV(filepath.Join(dir, d.Files[0]), ReadOptions{
		Response:    d.Response,
		Categorical: d.Categorical,
	})
}
