package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultGroups is the number of quantile groups used to stratify a numeric
// response.
const DefaultGroups = 5

// Split は学習・テスト分割の結果
type Split struct {
	TrainIndex []int
	TestIndex  []int

	XTrain *mat.Dense
	YTrain *mat.VecDense
	XTest  *mat.Dense
	YTest  *mat.VecDense

	// Features は XTrain / XTest の列名
	Features []string
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// CreateDataPartition は数値応答を分位点グループに分け、各グループから
// 割合 p の行を無作為抽出して学習用インデックス（昇順）を返す
//
// groups が 2 未満の場合は DefaultGroups を使う。
// 行数がグループ数より少ない場合は層化せずに抽出する。
func CreateDataPartition(y []float64, p float64, groups int, seed uint64) ([]int, error) {
	if err := checkProportion(p); err != nil {
		return nil, err
	}
	if len(y) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "CreateDataPartition")
	}
	if groups < 2 {
		groups = DefaultGroups
	}

	strata := make([]string, len(y))
	if len(y) >= groups {
		breaks := quantileBreaks(y, groups)
		for i, v := range y {
			if math.IsNaN(v) {
				strata[i] = "NA"
				continue
			}
			strata[i] = string(rune('A' + binOf(v, breaks)))
		}
	}
	return sampleWithinStrata(strata, p, seed), nil
}

// CreateClassPartition はクラスラベルごとに割合 p の行を抽出する
func CreateClassPartition(labels []string, p float64, seed uint64) ([]int, error) {
	if err := checkProportion(p); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "CreateClassPartition")
	}
	return sampleWithinStrata(labels, p, seed), nil
}

func checkProportion(p float64) error {
	if !(p > 0 && p < 1) {
		return errors.NewValidationError("p", "must be in (0, 1)", p)
	}
	return nil
}

// quantileBreaks returns the groups-1 inner cut points of y.
func quantileBreaks(y []float64, groups int) []float64 {
	sorted := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	breaks := make([]float64, groups-1)
	for g := 1; g < groups; g++ {
		breaks[g-1] = stat.Quantile(float64(g)/float64(groups), stat.LinInterp, sorted, nil)
	}
	return breaks
}

func binOf(v float64, breaks []float64) int {
	return sort.SearchFloat64s(breaks, v)
}

// sampleWithinStrata draws ceil(p·n_s) rows from every stratum s. Strata are
// visited in sorted order so the draw depends only on the seed.
func sampleWithinStrata(strata []string, p float64, seed uint64) []int {
	members := make(map[string][]int)
	for i, s := range strata {
		members[s] = append(members[s], i)
	}
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := newRand(seed)
	var train []int
	for _, k := range keys {
		idx := members[k]
		if len(idx) == 1 {
			train = append(train, idx[0])
			continue
		}
		take := int(math.Ceil(float64(len(idx)) * p))
		perm := r.Perm(len(idx))
		for _, j := range perm[:take] {
			train = append(train, idx[j])
		}
	}
	sort.Ints(train)
	return train
}

// Complement は 0..n-1 のうち index に含まれないものを昇順で返す
func Complement(n int, index []int) []int {
	in := make([]bool, n)
	for _, i := range index {
		in[i] = true
	}
	out := make([]int, 0, n-len(index))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

// TrainTestSplit は応答で層化して Frame を学習・テストに分ける
// カテゴリ予測変数は fullRank のダミー列に展開される
func TrainTestSplit(f *Frame, p float64, seed uint64) (*Split, error) {
	if f.IsClassification() {
		return nil, errors.NewValueError("TrainTestSplit", "regression split needs a numeric response")
	}
	train, err := CreateDataPartition(f.Y, p, DefaultGroups, seed)
	if err != nil {
		return nil, err
	}
	test := Complement(f.Rows(), train)
	if len(test) == 0 {
		return nil, errors.NewValueError("TrainTestSplit", "test partition is empty")
	}

	X, names := f.Dummies(true)
	if X == nil {
		return nil, errors.NewValueError("TrainTestSplit", "frame has no predictors")
	}
	y := mat.NewVecDense(len(f.Y), append([]float64(nil), f.Y...))
	return &Split{
		TrainIndex: train,
		TestIndex:  test,
		XTrain:     SelectRows(X, train),
		YTrain:     SelectVec(y, train),
		XTest:      SelectRows(X, test),
		YTest:      SelectVec(y, test),
		Features:   names,
	}, nil
}
