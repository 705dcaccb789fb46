package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/apmkit/explore"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/store"
)

func runRunsList(cmd *cobra.Command, args []string) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	return runsTable(runs).Render(cmd.OutOrStdout())
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.NewValidationError("run id", "must be an integer", args[0])
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	return showRun(cmd.OutOrStdout(), rec)
}

func runsTable(runs []store.RunRecord) explore.Table {
	t := explore.Table{
		Title:   "Runs",
		Headers: []string{"id", "created", "dataset", "model", "selection", "params", "test RMSE", "test Rsquared"},
	}
	for _, r := range runs {
		rmse, rsq := "NA", "NA"
		if r.HasTest {
			rmse, rsq = explore.Num(r.Test.RMSE), explore.Num(r.Test.Rsquared)
		}
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(r.ID, 10), r.CreatedAt.Local().Format(time.DateTime),
			r.Dataset, r.Model, r.Selection, r.BestParams.String(), rmse, rsq,
		})
	}
	return t
}

func showRun(w io.Writer, r store.RunRecord) error {
	fmt.Fprintf(w, "run %d: %s on %s (%s)\n", r.ID, r.Model, r.Dataset, r.CreatedAt.Local().Format(time.DateTime))
	if len(r.Preprocess) > 0 {
		fmt.Fprintf(w, "preprocess: %s\n", strings.Join(r.Preprocess, ", "))
	}
	fmt.Fprintf(w, "resampling: %d-fold x %d, seed %d, selection %s\n", r.Folds, r.Repeats, r.Seed, r.Selection)
	fmt.Fprintf(w, "selected: %s\n", r.BestParams)
	if r.HasTest {
		fmt.Fprintf(w, "test: RMSE %s  Rsquared %s  MAE %s\n",
			explore.Num(r.Test.RMSE), explore.Num(r.Test.Rsquared), explore.Num(r.Test.MAE))
	}
	fmt.Fprintf(w, "duration: %s\n\n", time.Duration(r.DurationMs)*time.Millisecond)

	t := explore.Table{Headers: []string{"#", "params", "RMSE", "Rsquared", "MAE", "RMSE SD", "error"}}
	for _, cv := range r.CV {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(cv.GridIndex), cv.Params.String(),
			explore.Num(cv.Mean.RMSE), explore.Num(cv.Mean.Rsquared), explore.Num(cv.Mean.MAE),
			explore.Num(cv.SD.RMSE), cv.Error,
		})
	}
	return t.Render(w)
}
