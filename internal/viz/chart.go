package viz

import (
	"fmt"
	"math"
	"sort"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/diffusim/internal/storage"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	chartWidth  = 80
	chartHeight = 15
)

// MSDChart plots the observed MSD against the fitted model and, when
// present, the posterior band edges.
func MSDChart(c *storage.Curve) string {
	if c == nil || len(c.Mean) == 0 {
		return Subtle.Render("no MSD curve stored")
	}

	series := [][]float64{c.Mean}
	legends := []string{"observed"}
	colors := []asciigraph.AnsiColor{asciigraph.Default}
	if len(c.Fit) == len(c.Mean) {
		series = append(series, c.Fit)
		legends = append(legends, "fit")
		colors = append(colors, asciigraph.Red)
	}
	if len(c.Lower) == len(c.Mean) && len(c.Upper) == len(c.Mean) {
		series = append(series, c.Lower, c.Upper)
		legends = append(legends, "2.5%", "97.5%")
		colors = append(colors, asciigraph.DarkGray, asciigraph.DarkGray)
	}

	caption := fmt.Sprintf("MSD vs time (%g to %g)", c.Times[0], c.Times[len(c.Times)-1])
	return asciigraph.PlotMany(series,
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Caption(caption),
	)
}

// HistogramCounts bins samples into bins equal-width bins spanning the
// sample range.
func HistogramCounts(samples []float64, bins int) (counts, dividers []float64) {
	x := append([]float64(nil), samples...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		hi = lo + 1
	}
	// stat.Histogram needs the last divider strictly above the maximum.
	hi = math.Nextafter(hi, math.Inf(1))
	dividers = make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	counts = stat.Histogram(nil, dividers, x, nil)
	return counts, dividers
}

// Histogram plots the posterior samples of one parameter.
func Histogram(name string, samples []float64, bins int) string {
	if len(samples) == 0 {
		return Subtle.Render("no samples for " + name)
	}
	counts, dividers := HistogramCounts(samples, bins)
	caption := fmt.Sprintf("%s posterior (%d samples, %.4g to %.4g)", name, len(samples), dividers[0], dividers[len(dividers)-1])
	return asciigraph.Plot(counts,
		asciigraph.Height(chartHeight/2),
		asciigraph.Width(chartWidth),
		asciigraph.Precision(0),
		asciigraph.Caption(caption),
	)
}
