package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/san-kum/diffusim/internal/export"
	"github.com/san-kum/diffusim/internal/storage"
	"github.com/san-kum/diffusim/internal/store"
	"github.com/san-kum/diffusim/internal/viz"
	"github.com/spf13/cobra"
)

const (
	histogramBins  = 30
	separatorWidth = 60
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tTIME\tTEMP\tSUMMARY")

	for _, run := range runs {
		temp := "-"
		if run.Temperature > 0 {
			temp = fmt.Sprintf("%gK", run.Temperature)
		}
		summary := run.Source
		if len(run.Params) > 0 {
			p := run.Params[0]
			summary = fmt.Sprintf("%s=%.4g", p.Name, p.MaxLikelihood)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Kind,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			temp,
			summary,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	if err := applyTheme(); err != nil {
		return err
	}
	return printRun(storage.New(dataDir), args[0])
}

// printRun prints the report, the MSD chart and one histogram per sampled
// parameter.
func printRun(st *storage.Store, runID string) error {
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	fmt.Println(viz.Report(meta))
	if meta.Curve != nil {
		fmt.Println(viz.Separator(separatorWidth))
		fmt.Println(viz.MSDChart(meta.Curve))
	}

	names, cols, err := st.LoadSamples(runID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for i, name := range names {
		fmt.Println(viz.Separator(separatorWidth))
		fmt.Println(viz.Histogram(name, cols[i], histogramBins))
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	names, cols, err := st.LoadSamples(runID)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	data := store.NewExportData(*meta, names, cols)
	if c := meta.Curve; c != nil && len(c.Lower) == len(c.Times) {
		data.Band = &store.BandData{CI: 0.95, X: c.Times, Lower: c.Lower, Fit: c.Fit, Upper: c.Upper}
	}

	if svgFile != "" {
		svg := export.MSDToSVG(meta.Curve, 800, 500)
		if svg == "" {
			return fmt.Errorf("%s has no MSD curve to plot", runID)
		}
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
	}

	if outFile == "" {
		return store.ExportJSONStdout(data)
	}
	return store.ExportJSON(outFile, data)
}
