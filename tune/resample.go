package tune

import (
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

// Fold is one resample: the analysis rows a model is fit on and the
// assessment rows it is scored on.
type Fold struct {
	// Name は "Fold03.Rep2" 形式
	Name  string
	Train []int
	Test  []int
}

// Resampling describes repeated k-fold cross-validation.
type Resampling struct {
	Folds   int    `yaml:"folds" json:"folds" validate:"gte=2"`
	Repeats int    `yaml:"repeats" json:"repeats" validate:"gte=1"`
	Seed    uint64 `yaml:"seed" json:"seed"`
}

// DefaultResampling は 10 分割交差検証を 1 回行う
func DefaultResampling() Resampling {
	return Resampling{Folds: 10, Repeats: 1, Seed: 1}
}

// Split builds the resamples for n rows.
func (r Resampling) Split(n int) ([]Fold, error) {
	return RepeatedKFold(n, r.Folds, r.Repeats, r.Seed)
}

// KFold splits rows into NSplits contiguous blocks of a (optionally
// shuffled) permutation. The first n mod NSplits folds get one extra row.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
	// Stream はシードが同じでも別の並びを得るための第 2 シード
	Stream uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split generates train/test indices for each fold. Train and test indices
// are returned in ascending order.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValidationError("folds", fmt.Sprintf("cannot exceed the %d rows", n), kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Stream))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	foldOf := make([]int, n)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			foldOf[idx] = f
		}
		current += size
	}

	folds := make([]Fold, kf.NSplits)
	for f := range folds {
		folds[f].Name = fmt.Sprintf("Fold%02d", f+1)
	}
	for i := 0; i < n; i++ {
		for f := range folds {
			if foldOf[i] == f {
				folds[f].Test = append(folds[f].Test, i)
			} else {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
	}
	return folds, nil
}

// RepeatedKFold returns repeats × folds resamples. Repeat r shuffles with the
// PCG stream (seed, r), so the assignment depends only on n, folds, the
// repeat index and seed.
func RepeatedKFold(n, folds, repeats int, seed uint64) ([]Fold, error) {
	if repeats < 1 {
		return nil, errors.NewValidationError("repeats", "must be at least 1", repeats)
	}
	out := make([]Fold, 0, folds*repeats)
	for r := 0; r < repeats; r++ {
		kf := &KFold{NSplits: folds, Shuffle: true, Seed: seed, Stream: uint64(r)}
		split, err := kf.Split(n)
		if err != nil {
			return nil, err
		}
		for _, f := range split {
			f.Name = fmt.Sprintf("%s.Rep%d", f.Name, r+1)
			out = append(out, f)
		}
	}
	return out, nil
}
