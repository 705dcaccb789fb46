package tune

import (
	"math"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

// Selection is the rule that picks the final grid point.
type Selection string

const (
	// SelectBest picks the lowest mean RMSE; ties go to the earlier point.
	SelectBest Selection = "best"
	// SelectOneSE picks the earliest point in grid order whose mean RMSE is
	// within one standard error of the best. Grids list the simplest
	// candidates first.
	SelectOneSE Selection = "oneSE"
)

// ParseSelection は "best" / "oneSE" を解釈する（空文字は best）
func ParseSelection(s string) (Selection, error) {
	switch s {
	case "", string(SelectBest):
		return SelectBest, nil
	case string(SelectOneSE), "onese", "one_se":
		return SelectOneSE, nil
	default:
		return "", errors.NewValidationError("selection", "must be best or oneSE", s)
	}
}

// choose returns the index in rows of the selected point. rows are in grid
// order and Index equals the position.
func (s Selection) choose(rows []CVRow) (int, error) {
	ranked := rank(rows)
	if len(ranked) == 0 {
		return -1, errors.NewValueError("tune.select", "no successful grid point")
	}
	best := ranked[0]
	switch s {
	case SelectBest, "":
		return best.Index, nil
	case SelectOneSE:
		limit := best.Mean.RMSE
		if se := best.RMSESE(); !math.IsNaN(se) {
			limit += se
		}
		for _, row := range rows {
			if row.Failed() || math.IsNaN(row.Mean.RMSE) {
				continue
			}
			if row.Mean.RMSE <= limit {
				return row.Index, nil
			}
		}
		return best.Index, nil
	default:
		return -1, errors.NewValidationError("selection", "must be best or oneSE", string(s))
	}
}
