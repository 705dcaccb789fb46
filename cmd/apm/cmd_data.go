package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/explore"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
)

func runDatasets(cmd *cobra.Command, args []string) error {
	return datasetsTable(dataset.Registered()).Render(cmd.OutOrStdout())
}

func datasetsTable(ds []dataset.Descriptor) explore.Table {
	t := explore.Table{Title: "Datasets", Headers: []string{"name", "task", "response", "files", "notes"}}
	for _, d := range ds {
		files := strings.Join(d.Files, ", ")
		if d.Simulated {
			files = "(simulated)"
		}
		t.Rows = append(t.Rows, []string{d.Name, string(d.Task), d.Response, files, d.Notes})
	}
	return t
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simOut == "-" {
		return simulate(cmd.OutOrStdout(), simRows, simNoise, simSeed)
	}
	f, err := os.Create(simOut)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := simulate(f, simRows, simNoise, simSeed); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	log.GetLoggerWithName("apm").Info("Simulated data written", "path", simOut, log.SamplesKey, simRows)
	return nil
}

func simulate(w io.Writer, n int, sd float64, seed uint64) error {
	f, err := dataset.Friedman1(n, sd, seed)
	if err != nil {
		return err
	}
	return dataset.WriteCSV(w, f)
}
