package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/explore"
	"github.com/YuminosukeSato/apmkit/preprocessing"
)

func runExplore(cmd *cobra.Command, args []string) error {
	f, err := dataset.LoadCSV(dataPath, dataset.ReadOptions{
		Response:    responseName,
		Categorical: categorical,
		Drop:        dropColumns,
	})
	if err != nil {
		return err
	}
	return exploreFrame(cmd.OutOrStdout(), f, corrCutoff)
}

// exploreFrame writes every summary table for f.
func exploreFrame(w io.Writer, f *dataset.Frame, cutoff float64) error {
	fmt.Fprintf(w, "%d rows, %d numeric and %d categorical predictors, response %s\n\n",
		f.Rows(), len(f.NumericNames), len(f.CategoricalNames), f.ResponseName)

	var tables []explore.Table
	if len(f.NumericNames) > 0 {
		tables = append(tables, explore.DescribeTable(explore.Describe(f)))
	}
	rep := explore.Missing(f)
	if rep.IncompleteRows > 0 {
		tables = append(tables, explore.MissingTable(rep))
		if len(rep.ByClass) > 0 {
			tables = append(tables, explore.ClassMissingTable(rep))
		}
	}
	nzv := explore.NearZeroVarReport(f, preprocessing.DefaultFreqCut, preprocessing.DefaultUniqueCut)
	var flagged []explore.NZVRow
	for _, r := range nzv {
		if r.NZV {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) > 0 {
		tables = append(tables, explore.NZVTable(flagged))
	}
	if len(f.NumericNames) > 1 {
		if pairs := explore.HighCorrelations(f, cutoff); len(pairs) > 0 {
			tables = append(tables, explore.CorrelationTable(pairs))
		}
	}

	for _, t := range tables {
		if err := t.Render(w); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(f.NumericNames) > 1 {
		kept, dropped := explore.CorrelationPreview(f, cutoff)
		fmt.Fprintf(w, "correlation filter at %.2f keeps %d of %d numeric predictors\n", cutoff, len(kept), len(kept)+len(dropped))
		if len(dropped) > 0 {
			fmt.Fprintf(w, "  drop: %s\n", strings.Join(dropped, ", "))
		}
	}
	if names := explore.Flagged(nzv); len(names) > 0 {
		_, err := fmt.Fprintf(w, "near-zero variance: %s\n", strings.Join(names, ", "))
		return err
	}
	return nil
}
